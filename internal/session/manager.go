// Package session owns the authenticated-identity lifecycle of one browser
// session and derives the role-augmented user.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/auth"
	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/observability"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
	"github.com/fluxo-erp/gateway/internal/tenant"
)

var (
	ErrUnauthenticated     = errors.New("user not authenticated")
	ErrEmptyCredentials    = errors.New("email and password are required")
	ErrProfileUnavailable  = errors.New("user profile could not be loaded")
	ErrRoleChangeForbidden = errors.New("only admins can change roles")
	ErrSessionEnded        = errors.New("session signed out while it was being established")
)

// Routes the manager navigates to.
const (
	LoginPath        = "/login"
	LandingPath      = "/dashboard"
	UnauthorizedPath = "/unauthorized"
)

// TenantSource supplies the resolved tenant. TenantID may run a resolution
// pass; Current never does.
type TenantSource interface {
	TenantID(ctx context.Context) (domain.TenantID, error)
	Current() *domain.Tenant
}

// Navigator moves the browser to another route.
type Navigator interface {
	Navigate(path string)
}

// Marker sets the one-shot "just logged in" flag read by the landing view.
type Marker interface {
	Mark(ctx context.Context) error
}

// RegisterInput carries the sign-up form.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	// TenantID optionally binds the new account to an invited tenant.
	TenantID string
}

// Manager is the auth session manager of one browser session.
type Manager struct {
	store    sessionstore.Store
	tenants  TenantSource
	notifier notify.Notifier
	nav      Navigator
	marker   Marker
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu           sync.RWMutex
	user         *domain.AuthenticatedUser
	session      *domain.Session
	initializing bool
	busy         int
	// changedAt is the time of the latest local auth change. Events stamped
	// earlier were caused by that change and are ignored, except SIGNED_OUT.
	changedAt time.Time
	// sessionSince is when the held session started being established. A
	// SIGNED_OUT stamped at or after it ends that session.
	sessionSince time.Time
	// signedOutAt is the stamp of the latest SIGNED_OUT applied.
	signedOutAt time.Time
}

// NewManager creates a manager that reports loading until Initialize settles.
func NewManager(store sessionstore.Store, tenants TenantSource, notifier notify.Notifier, nav Navigator, marker Marker, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		store:        store,
		tenants:      tenants,
		notifier:     notifier,
		nav:          nav,
		marker:       marker,
		logger:       logger,
		metrics:      metrics,
		initializing: true,
	}
}

// User returns the current user, or nil.
func (m *Manager) User() *domain.AuthenticatedUser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Session returns the current session, or nil.
func (m *Manager) Session() *domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// Loading reports whether initialization or a login/registration is in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initializing || m.busy > 0
}

// HasRole reports whether the current user's role is among roles.
func (m *Manager) HasRole(roles ...domain.Role) bool {
	return m.User().HasRole(roles...)
}

func (m *Manager) begin() func() {
	m.mu.Lock()
	m.busy++
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.busy--
		m.mu.Unlock()
	}
}

func (m *Manager) set(user *domain.AuthenticatedUser, sess *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user = user
	m.session = sess
	m.changedAt = time.Now()
}

// setSince installs a session whose establishment began at since. It refuses
// when a sign-out stamped after since was applied in the meantime.
func (m *Manager) setSince(since time.Time, user *domain.AuthenticatedUser, sess *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signedOutAt.After(since) {
		m.user = nil
		m.session = nil
		m.changedAt = time.Now()
		return ErrSessionEnded
	}
	m.user = user
	m.session = sess
	m.sessionSince = since
	m.changedAt = time.Now()
	return nil
}

func (m *Manager) clear() {
	m.set(nil, nil)
}

// Initialize loads the session held by the store and derives its user.
// Loading clears when it returns, whatever the outcome.
func (m *Manager) Initialize(ctx context.Context) error {
	started := time.Now()
	defer func() {
		m.mu.Lock()
		m.initializing = false
		m.mu.Unlock()
	}()

	sess, err := m.store.GetCurrentSession(ctx)
	if err != nil {
		m.logger.Error("auth setup failed", zap.Error(err))
		return err
	}
	if sess == nil {
		return nil
	}

	user, err := m.loadUserProfile(ctx, sess.Identity)
	if errors.Is(err, tenant.ErrTenantInconsistent) {
		m.clear()
		return err
	}
	return m.setSince(started, user, sess)
}

// Login signs in and derives the user. On success it marks the session as
// just logged in and navigates to the landing route.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	done := m.begin()
	defer done()

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		m.notifier.Notify(notify.Error(msgLoginFailed, msgCheckCredentials))
		m.metrics.RecordAuth("login", "failed")
		return ErrEmptyCredentials
	}

	started := time.Now()
	identity, sess, err := m.store.SignIn(ctx, email, password)
	if err != nil {
		description := err.Error()
		if errors.Is(err, sessionstore.ErrInvalidCredentials) {
			description = msgInvalidCredentials
		} else {
			m.logger.Error("login failed", zap.Error(err))
		}
		m.notifier.Notify(notify.Error(msgLoginFailed, description))
		m.metrics.RecordAuth("login", "failed")
		return err
	}
	if identity == nil {
		if sess == nil {
			m.notifier.Notify(notify.Error(msgLoginFailed, msgProfileUnavailable))
			m.metrics.RecordAuth("login", "failed")
			return ErrProfileUnavailable
		}
		identity = &sess.Identity
	}

	user, err := m.loadUserProfile(ctx, *identity)
	if user == nil {
		m.clear()
		if !errors.Is(err, tenant.ErrTenantInconsistent) {
			// the resolver already signed out an inconsistent identity
			if signOutErr := m.store.SignOut(ctx); signOutErr != nil {
				m.logger.Warn("sign-out after failed profile load", zap.Error(signOutErr))
			}
		}
		m.notifier.Notify(notify.Error(msgLoginFailed, msgProfileUnavailable))
		m.metrics.RecordAuth("login", "failed")
		if err == nil {
			err = ErrProfileUnavailable
		}
		return err
	}

	if err := m.setSince(started, user, sess); err != nil {
		m.logger.Warn("session ended during login", zap.String("identity_id", user.ID))
		m.notifier.Notify(notify.Error(msgLoginFailed, msgSessionExpiredDesc))
		m.metrics.RecordAuth("login", "failed")
		return err
	}
	if m.marker != nil {
		if err := m.marker.Mark(ctx); err != nil {
			m.logger.Warn("welcome marker not set", zap.Error(err))
		}
	}
	m.notifier.Notify(notify.Success(msgLoginSuccess, welcomeMessage(user.FullName)))
	m.nav.Navigate(LandingPath)
	m.metrics.RecordAuth("login", "ok")
	m.logger.Info("user logged in", zap.String("identity_id", user.ID), zap.String("role", string(user.Role)))
	return nil
}

// Logout always clears local state and navigates to the login route. A
// failed server-side sign-out is reported and returned but changes nothing
// locally.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.store.SignOut(ctx)
	m.clear()
	m.nav.Navigate(LoginPath)

	if err != nil {
		m.logger.Warn("logout: session store sign-out failed", zap.Error(err))
		m.notifier.Notify(notify.Error(msgLogoutFailed, err.Error()))
		m.metrics.RecordAuth("logout", "degraded")
		return err
	}
	m.metrics.RecordAuth("logout", "ok")
	m.logger.Info("user logged out")
	return nil
}

// Register creates the identity and, when a tenant is known, its profile.
// It never signs in.
func (m *Manager) Register(ctx context.Context, in RegisterInput) error {
	done := m.begin()
	defer done()

	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		m.notifier.Notify(notify.Error(msgRegisterFailed, msgRegisterGeneric))
		m.metrics.RecordAuth("register", "failed")
		return ErrEmptyCredentials
	}

	tenantID := domain.TenantID(strings.TrimSpace(in.TenantID))
	if tenantID.IsZero() {
		if current := m.tenants.Current(); current != nil {
			tenantID = current.ID
		}
	}

	metadata := map[string]string{"full_name": in.FullName}
	if !tenantID.IsZero() {
		metadata[sessionstore.MetadataTenantKey] = tenantID.String()
	}

	identity, err := m.store.SignUp(ctx, email, in.Password, metadata)
	if err != nil {
		description := msgRegisterGeneric
		if errors.Is(err, sessionstore.ErrEmailAlreadyRegistered) {
			description = msgEmailTaken
		} else {
			m.logger.Error("registration failed", zap.Error(err))
		}
		m.notifier.Notify(notify.Error(msgRegisterFailed, description))
		m.metrics.RecordAuth("register", "failed")
		return err
	}

	if tenantID.IsZero() {
		m.logger.Info("registered without tenant; profile deferred to first login", zap.String("identity_id", identity.ID))
	} else {
		row := domain.Profile{ID: identity.ID, Role: string(domain.DefaultRole), FullName: in.FullName}
		if _, err := m.store.UpsertProfile(ctx, tenantID, row); err != nil {
			m.logger.Warn("profile creation after sign-up failed", zap.String("identity_id", identity.ID), zap.Error(err))
		}
	}

	m.notifier.Notify(notify.Success(msgRegisterSuccess, msgRegisterSuccessDesc))
	m.nav.Navigate(LoginPath)
	m.metrics.RecordAuth("register", "ok")
	return nil
}

// ResetPassword asks the store to email a recovery link.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	var err error
	if email == "" {
		err = ErrEmptyCredentials
	} else {
		err = m.store.SendPasswordReset(ctx, email)
	}
	if err != nil {
		m.logger.Warn("password recovery failed", zap.Error(err))
		m.notifier.Notify(notify.Error(msgResetFailed, msgResetFailedDesc))
		m.metrics.RecordAuth("reset_password", "failed")
		return err
	}
	m.notifier.Notify(notify.Success(msgResetSent, msgResetSentDesc))
	m.metrics.RecordAuth("reset_password", "ok")
	return nil
}

// UpdateProfile persists a partial update and merges it into the in-memory
// user once the store confirms the write.
func (m *Manager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) error {
	user := m.User()
	if user == nil {
		m.notifier.Notify(notify.Error(msgUpdateFailed, msgUnauthenticated))
		return ErrUnauthenticated
	}
	if update.Role != nil && !user.HasRole(domain.RoleAdmin) {
		m.notifier.Notify(notify.Error(msgUpdateFailed, msgRoleChangeDenied))
		return ErrRoleChangeForbidden
	}
	if update.Role != nil {
		resolved := domain.ResolveRole(string(*update.Role))
		update.Role = &resolved
	}

	if err := m.store.UpdateProfile(ctx, user.ID, update); err != nil {
		m.logger.Error("profile update failed", zap.String("identity_id", user.ID), zap.Error(err))
		m.metrics.RecordAuth("update_profile", "failed")
		if !m.HandleAuthError(ctx, err) {
			m.notifier.Notify(notify.Error(msgUpdateFailed, msgUpdateFailedDesc))
		}
		return err
	}

	m.mu.Lock()
	if m.user != nil && m.user.ID == user.ID {
		m.user = m.user.Apply(update)
	}
	m.changedAt = time.Now()
	m.mu.Unlock()

	m.notifier.Notify(notify.Success(msgProfileUpdated, msgProfileUpdatedDesc))
	m.metrics.RecordAuth("update_profile", "ok")
	return nil
}

// RefreshSession renews the token pair and re-derives the user. Any failure
// logs the user out before it returns.
func (m *Manager) RefreshSession(ctx context.Context) error {
	started := time.Now()
	sess, err := m.store.RefreshSession(ctx)
	if err != nil {
		m.logger.Info("session refresh failed", zap.Error(err))
		m.metrics.RecordAuth("refresh", "failed")
		if !m.HandleAuthError(ctx, err) {
			_ = m.Logout(ctx)
		}
		return err
	}

	user, err := m.loadUserProfile(ctx, sess.Identity)
	if errors.Is(err, tenant.ErrTenantInconsistent) {
		m.clear()
		return err
	}
	if err := m.setSince(started, user, sess); err != nil {
		m.metrics.RecordAuth("refresh", "failed")
		return err
	}
	m.metrics.RecordAuth("refresh", "ok")
	return nil
}

// CheckPermission reports whether the user's role holds permission in the
// current tenant. Every failure reads as false.
func (m *Manager) CheckPermission(ctx context.Context, permission string) bool {
	user := m.User()
	current := m.tenants.Current()
	if user == nil || current == nil {
		return false
	}
	ok, err := m.store.HasPermission(ctx, current.ID, user.Role, permission)
	if err != nil {
		m.logger.Debug("permission lookup failed", zap.String("permission", permission), zap.Error(err))
		return false
	}
	return ok
}

// HandleAuthError logs the user out when err means the session is no
// longer valid. It reports whether it did.
func (m *Manager) HandleAuthError(ctx context.Context, err error) bool {
	if !isSessionError(err) {
		return false
	}
	m.notifier.Notify(notify.Error(msgSessionExpired, msgSessionExpiredDesc))
	_ = m.Logout(ctx)
	return true
}

func isSessionError(err error) bool {
	return errors.Is(err, sessionstore.ErrSessionExpired) ||
		errors.Is(err, sessionstore.ErrNoSession) ||
		errors.Is(err, auth.ErrTokenExpired)
}

// HandleAuthEvent applies an auth change pushed by the store. Events older
// than the latest local change are ignored. A SIGNED_OUT is only ignored
// when it predates the held session.
func (m *Manager) HandleAuthEvent(ctx context.Context, ev events.Event) {
	if ev.Type == events.EventSignedOut {
		m.applySignOut(ev)
		return
	}

	m.mu.RLock()
	stale := ev.Timestamp.Before(m.changedAt)
	m.mu.RUnlock()
	if stale {
		return
	}

	switch ev.Type {
	case events.EventSignedIn, events.EventTokenRefreshed, events.EventUserUpdated:
		if ev.Session == nil {
			m.clear()
			return
		}
		user, err := m.loadUserProfile(ctx, ev.Session.Identity)
		if errors.Is(err, tenant.ErrTenantInconsistent) {
			m.clear()
			return
		}
		m.set(user, ev.Session)
	}
}

func (m *Manager) applySignOut(ev events.Event) {
	m.mu.Lock()
	if ev.Timestamp.Before(m.sessionSince) {
		m.mu.Unlock()
		return
	}
	if ev.Timestamp.After(m.signedOutAt) {
		m.signedOutAt = ev.Timestamp
	}
	m.user = nil
	m.session = nil
	m.changedAt = time.Now()
	m.mu.Unlock()

	m.nav.Navigate(LoginPath)
}

// loadUserProfile derives the role-augmented user. A nil user with a nil
// error never happens; a nil user means the caller is not authenticated.
func (m *Manager) loadUserProfile(ctx context.Context, identity domain.Identity) (*domain.AuthenticatedUser, error) {
	profile, err := m.store.FetchProfile(ctx, identity.ID)
	if err == nil {
		return domain.NewAuthenticatedUser(identity, profile.Role, profile.FullName), nil
	}
	if !errors.Is(err, sessionstore.ErrNotFound) {
		m.logger.Error("loading user profile failed", zap.String("identity_id", identity.ID), zap.Error(err))
		return nil, err
	}

	fallback := domain.NewAuthenticatedUser(identity, string(domain.DefaultRole), identity.FullName())

	tenantID, err := m.tenants.TenantID(ctx)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantInconsistent) {
			return nil, err
		}
		m.logger.Warn("profile creation skipped: no tenant", zap.String("identity_id", identity.ID), zap.Error(err))
		m.metrics.RecordAuth("profile_create", "degraded")
		return fallback, nil
	}

	row := domain.Profile{ID: identity.ID, Role: string(domain.DefaultRole), FullName: identity.FullName()}
	created, err := m.store.UpsertProfile(ctx, tenantID, row)
	if err != nil {
		m.logger.Warn("profile creation failed; using default profile", zap.String("identity_id", identity.ID), zap.Error(err))
		m.metrics.RecordAuth("profile_create", "degraded")
		return fallback, nil
	}
	m.metrics.RecordAuth("profile_create", "ok")
	return domain.NewAuthenticatedUser(identity, created.Role, created.FullName), nil
}
