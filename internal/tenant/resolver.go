// Package tenant resolves the single active tenant of a browser session.
package tenant

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
)

var (
	// ErrTenantUnresolved means the session has no tenant yet.
	ErrTenantUnresolved = errors.New("tenant not resolved")
	// ErrTenantInconsistent means the identity has no usable tenant and the
	// session was signed out.
	ErrTenantInconsistent = errors.New("identity has no resolvable tenant")
)

// LoginPath is where a forced sign-out sends the browser.
const LoginPath = "/login"

const loadErrorTitle = "Erro ao carregar dados do tenant"

// Redirector performs a hard redirect that replaces the current view.
type Redirector interface {
	Redirect(path string)
}

// Resolver owns the tenant of one browser session.
type Resolver struct {
	store    sessionstore.Store
	notifier notify.Notifier
	redirect Redirector
	logger   *zap.Logger

	// resolving serializes resolution passes.
	resolving sync.Mutex

	mu         sync.RWMutex
	tenant     *domain.Tenant
	user       *domain.Identity
	resolvedID string
	loading    bool
}

// NewResolver creates a resolver that reports loading until its first pass.
func NewResolver(store sessionstore.Store, notifier notify.Notifier, redirect Redirector, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:    store,
		notifier: notifier,
		redirect: redirect,
		logger:   logger,
		loading:  true,
	}
}

// Initialize runs one resolution pass. It returns immediately when the
// tenant is already resolved for the session's identity.
func (r *Resolver) Initialize(ctx context.Context) error {
	r.resolving.Lock()
	defer r.resolving.Unlock()

	r.setLoading(true)
	defer r.setLoading(false)

	return r.resolve(ctx)
}

func (r *Resolver) resolve(ctx context.Context) error {
	sess, err := r.store.GetCurrentSession(ctx)
	if err != nil {
		r.logger.Error("tenant resolution: session lookup failed", zap.Error(err))
		r.notifier.Notify(notify.Error(loadErrorTitle, err.Error()))
		return err
	}
	if sess == nil {
		r.Clear()
		return nil
	}

	identity := sess.Identity
	if r.resolvedFor(identity.ID) {
		return nil
	}

	account, err := r.store.FetchAccountWithTenant(ctx, identity.ID)
	if err != nil || account == nil || account.TenantID == nil || account.Tenant == nil {
		r.logger.Warn("identity has no resolvable tenant; signing out",
			zap.String("identity_id", identity.ID),
			zap.Error(err))
		r.forceSignOut(ctx)
		return ErrTenantInconsistent
	}

	if err := r.store.ActivateTenantScope(ctx, *account.TenantID); err != nil {
		r.logger.Error("tenant resolution: activate scope failed",
			zap.String("tenant_id", account.TenantID.String()),
			zap.Error(err))
		r.notifier.Notify(notify.Error(loadErrorTitle, err.Error()))
		r.mu.Lock()
		r.tenant = nil
		r.resolvedID = ""
		r.user = &identity
		r.mu.Unlock()
		return err
	}

	tenant := *account.Tenant
	r.mu.Lock()
	r.tenant = &tenant
	r.user = &identity
	r.resolvedID = identity.ID
	r.mu.Unlock()

	r.logger.Info("tenant resolved",
		zap.String("identity_id", identity.ID),
		zap.String("tenant_id", tenant.ID.String()))
	return nil
}

func (r *Resolver) forceSignOut(ctx context.Context) {
	r.Clear()
	if err := r.store.SignOut(ctx); err != nil {
		r.logger.Warn("forced sign-out: revoke failed", zap.Error(err))
	}
	r.redirect.Redirect(LoginPath)
}

func (r *Resolver) resolvedFor(identityID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tenant != nil && r.resolvedID == identityID
}

func (r *Resolver) setLoading(v bool) {
	r.mu.Lock()
	r.loading = v
	r.mu.Unlock()
}

// TenantID returns the resolved tenant id, running a pass first when the
// tenant is missing or belongs to another identity.
func (r *Resolver) TenantID(ctx context.Context) (domain.TenantID, error) {
	if err := r.Initialize(ctx); err != nil {
		if errors.Is(err, ErrTenantInconsistent) {
			return "", ErrTenantInconsistent
		}
		r.logger.Debug("tenant pass failed", zap.Error(err))
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.tenant == nil {
		return "", ErrTenantUnresolved
	}
	return r.tenant.ID, nil
}

// HandleAuthEvent reacts to pushed auth changes.
func (r *Resolver) HandleAuthEvent(ctx context.Context, ev events.Event) {
	switch ev.Type {
	case events.EventSignedOut:
		r.Clear()
	case events.EventSignedIn:
		if err := r.Initialize(ctx); err != nil {
			r.logger.Info("tenant pass after sign-in failed", zap.Error(err))
		}
	}
}

// Clear drops the tenant and the identity.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenant = nil
	r.user = nil
	r.resolvedID = ""
}

// Current returns a copy of the active tenant, or nil.
func (r *Resolver) Current() *domain.Tenant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.tenant == nil {
		return nil
	}
	tenant := *r.tenant
	return &tenant
}

// User returns the identity the tenant was resolved for, or nil.
func (r *Resolver) User() *domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.user == nil {
		return nil
	}
	user := *r.user
	return &user
}

// Loading reports whether a pass is in flight or none has run yet.
func (r *Resolver) Loading() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loading
}
