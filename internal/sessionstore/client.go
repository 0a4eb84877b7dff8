package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fluxo-erp/gateway/internal/auth"
	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
)

// Client is one browser connection to the backend. It holds the current
// session and the tenant pinned by ActivateTenantScope. Events are published
// after the lock is released.
type Client struct {
	backend *Backend
	events  events.Dispatcher
	// refreshing keeps one refresh in flight; a refresh token is single-use.
	refreshing singleflight.Group

	mu      sync.Mutex
	session *domain.Session
	tenant  domain.TenantID
}

var _ Store = (*Client)(nil)

const refreshFlight = "refresh"

func (c *Client) current() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) clear() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session
	c.session = nil
	c.tenant = ""
	return sess
}

func (c *Client) publish(ctx context.Context, eventType events.EventType, sess *domain.Session) {
	c.events.Publish(ctx, events.NewEvent(eventType, sess))
}

// ActiveTenant returns the tenant pinned for this connection, if any.
func (c *Client) ActiveTenant() domain.TenantID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenant
}

// GetCurrentSession returns the held session, refreshing it once when the
// access token has expired. A failed refresh signs the connection out.
func (c *Client) GetCurrentSession(ctx context.Context) (*domain.Session, error) {
	sess := c.current()
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(c.backend.now()) {
		return sess, nil
	}

	v, err, _ := c.refreshing.Do(refreshFlight, func() (any, error) {
		// another caller may have refreshed while this one waited
		if current := c.current(); current != nil && !current.Expired(c.backend.now()) {
			return current, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		c.backend.logger.Info("expired session could not be refreshed", zap.Error(err))
		if c.clear() != nil {
			c.publish(ctx, events.EventSignedOut, nil)
		}
		return nil, nil
	}
	return v.(*domain.Session), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	record, err := c.backend.authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	sess, err := c.backend.issue(ctx, record.Identity, uuid.NewString())
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	previous := c.session
	c.session = sess
	if previous == nil || previous.Identity.ID != record.ID {
		c.tenant = ""
	}
	c.mu.Unlock()

	if previous != nil && previous.RefreshToken != "" {
		if err := c.backend.refresh.Revoke(ctx, auth.HashToken(previous.RefreshToken)); err != nil {
			c.backend.logger.Warn("revoke replaced refresh token", zap.Error(err))
		}
	}

	c.publish(ctx, events.EventSignedIn, sess)
	identity := record.Identity
	return &identity, sess, nil
}

// SignOut always drops the local session and tenant scope. The returned error
// only reports a failed server-side revocation.
func (c *Client) SignOut(ctx context.Context) error {
	sess := c.clear()

	var err error
	if sess != nil && sess.RefreshToken != "" {
		if revokeErr := c.backend.refresh.Revoke(ctx, auth.HashToken(sess.RefreshToken)); revokeErr != nil {
			err = fmt.Errorf("revoke refresh token: %w", revokeErr)
		}
	}

	c.publish(ctx, events.EventSignedOut, nil)
	return err
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error) {
	return c.backend.register(ctx, email, password, metadata)
}

func (c *Client) RefreshSession(ctx context.Context) (*domain.Session, error) {
	v, err, _ := c.refreshing.Do(refreshFlight, func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

func (c *Client) refresh(ctx context.Context) (*domain.Session, error) {
	sess := c.current()
	if sess == nil {
		return nil, ErrNoSession
	}

	rec, err := c.backend.refresh.Consume(ctx, auth.HashToken(sess.RefreshToken))
	if err != nil {
		return nil, err
	}
	record, err := c.backend.identities.GetByID(ctx, rec.IdentityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	refreshed, err := c.backend.issue(ctx, record.Identity, rec.SessionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = refreshed
	c.mu.Unlock()

	c.publish(ctx, events.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	if err := c.backend.sendPasswordReset(ctx, email); err != nil {
		return err
	}
	c.publish(ctx, events.EventPasswordRecovery, nil)
	return nil
}

func (c *Client) SubscribeAuthEvents(handler events.Handler) events.Subscription {
	return c.events.Subscribe(handler)
}

func (c *Client) FetchProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	profile, err := c.backend.profiles.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

// UpsertProfile creates or replaces the profile inside the given tenant.
func (c *Client) UpsertProfile(ctx context.Context, tenantID domain.TenantID, profile domain.Profile) (*domain.Profile, error) {
	if tenantID.IsZero() {
		return nil, ErrTenantScope
	}
	if err := c.backend.profiles.Upsert(ctx, tenantID, &profile); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return &profile, nil
}

// UpdateProfile applies a partial update inside the connection's tenant scope.
func (c *Client) UpdateProfile(ctx context.Context, identityID string, update domain.ProfileUpdate) error {
	tenantID := c.ActiveTenant()
	if tenantID.IsZero() {
		return ErrTenantScope
	}
	if err := c.backend.profiles.Update(ctx, tenantID, identityID, update); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update profile: %w", err)
	}
	c.publish(ctx, events.EventUserUpdated, c.current())
	return nil
}

func (c *Client) FetchAccountWithTenant(ctx context.Context, identityID string) (*domain.Account, error) {
	account, err := c.backend.accounts.GetWithTenant(ctx, identityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	return account, nil
}

// ActivateTenantScope pins the tenant for every later tenant-scoped call.
func (c *Client) ActivateTenantScope(ctx context.Context, tenantID domain.TenantID) error {
	if tenantID.IsZero() {
		return ErrTenantScope
	}
	exists, err := c.backend.accounts.TenantExists(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("check tenant: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: unknown tenant %s", ErrTenantScope, tenantID)
	}

	c.mu.Lock()
	c.tenant = tenantID
	c.mu.Unlock()
	return nil
}

func (c *Client) HasPermission(ctx context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error) {
	if tenantID.IsZero() {
		return false, ErrTenantScope
	}
	return c.backend.permissions.Has(ctx, tenantID, role, permission)
}
