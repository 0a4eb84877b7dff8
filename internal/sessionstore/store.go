// Package sessionstore is the auth and row-scoped data service every browser
// session talks to. A Backend holds the shared repositories and token stores;
// each browser connection gets its own Client.
package sessionstore

import (
	"context"
	"errors"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
)

var (
	ErrInvalidCredentials     = errors.New("invalid login credentials")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrNotFound               = errors.New("not found")
	ErrNoSession              = errors.New("no active session")
	ErrSessionExpired         = errors.New("session expired")
	ErrTenantScope            = errors.New("tenant scope required")
	ErrResetTokenInvalid      = errors.New("reset token expired or used")
)

// MetadataTenantKey is the sign-up metadata key carrying an invited tenant id.
const MetadataTenantKey = "tenant_id"

// Store is the contract the tenant resolver and the session manager consume.
type Store interface {
	GetCurrentSession(ctx context.Context) (*domain.Session, error)
	SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error)
	SignOut(ctx context.Context) error
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error)
	RefreshSession(ctx context.Context) (*domain.Session, error)
	SendPasswordReset(ctx context.Context, email string) error
	SubscribeAuthEvents(handler events.Handler) events.Subscription

	FetchProfile(ctx context.Context, identityID string) (*domain.Profile, error)
	UpsertProfile(ctx context.Context, tenantID domain.TenantID, profile domain.Profile) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, identityID string, update domain.ProfileUpdate) error
	FetchAccountWithTenant(ctx context.Context, identityID string) (*domain.Account, error)
	ActivateTenantScope(ctx context.Context, tenantID domain.TenantID) error
	HasPermission(ctx context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error)
}
