// Package sessionstoretest provides a testify mock of sessionstore.Store.
package sessionstoretest

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
)

var farFuture = time.Date(2999, 1, 1, 0, 0, 0, 0, time.UTC)

// MockStore mocks every data and auth call. Auth event subscriptions go to a
// real in-memory dispatcher so tests can push events with Emit.
type MockStore struct {
	mock.Mock

	// PublishAuthEvents makes successful SignIn calls publish SIGNED_IN and
	// SignOut calls publish SIGNED_OUT, as the real client does.
	PublishAuthEvents bool

	once       sync.Once
	dispatcher events.Dispatcher
}

var _ sessionstore.Store = (*MockStore)(nil)

func (m *MockStore) bus() events.Dispatcher {
	m.once.Do(func() { m.dispatcher = events.NewInMemoryDispatcher() })
	return m.dispatcher
}

// Emit publishes an auth event to the current subscribers.
func (m *MockStore) Emit(ctx context.Context, ev events.Event) {
	m.bus().Publish(ctx, ev)
}

// Subscribers returns the number of live auth event subscriptions.
func (m *MockStore) Subscribers() int {
	return m.bus().Len()
}

func (m *MockStore) GetCurrentSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) SignIn(ctx context.Context, email, password string) (*domain.Identity, *domain.Session, error) {
	args := m.Called(ctx, email, password)
	var (
		identity *domain.Identity
		sess     *domain.Session
	)
	if v := args.Get(0); v != nil {
		identity = v.(*domain.Identity)
	}
	if v := args.Get(1); v != nil {
		sess = v.(*domain.Session)
	}
	if m.PublishAuthEvents && args.Error(2) == nil && sess != nil {
		m.Emit(ctx, events.NewEvent(events.EventSignedIn, sess))
	}
	return identity, sess, args.Error(2)
}

func (m *MockStore) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	if m.PublishAuthEvents {
		m.Emit(ctx, events.NewEvent(events.EventSignedOut, nil))
	}
	return args.Error(0)
}

func (m *MockStore) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error) {
	args := m.Called(ctx, email, password, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockStore) RefreshSession(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockStore) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockStore) SubscribeAuthEvents(handler events.Handler) events.Subscription {
	return m.bus().Subscribe(handler)
}

func (m *MockStore) FetchProfile(ctx context.Context, identityID string) (*domain.Profile, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockStore) UpsertProfile(ctx context.Context, tenantID domain.TenantID, profile domain.Profile) (*domain.Profile, error) {
	args := m.Called(ctx, tenantID, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}

func (m *MockStore) UpdateProfile(ctx context.Context, identityID string, update domain.ProfileUpdate) error {
	args := m.Called(ctx, identityID, update)
	return args.Error(0)
}

func (m *MockStore) FetchAccountWithTenant(ctx context.Context, identityID string) (*domain.Account, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockStore) ActivateTenantScope(ctx context.Context, tenantID domain.TenantID) error {
	args := m.Called(ctx, tenantID)
	return args.Error(0)
}

func (m *MockStore) HasPermission(ctx context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error) {
	args := m.Called(ctx, tenantID, role, permission)
	return args.Bool(0), args.Error(1)
}

// AccountFor builds an account joined with a tenant of the given id.
func AccountFor(identityID string, tenantID domain.TenantID, name string) *domain.Account {
	id := tenantID
	return &domain.Account{
		IdentityID: identityID,
		TenantID:   &id,
		Tenant:     &domain.Tenant{ID: tenantID, Name: name},
	}
}

// SessionFor builds a session for the identity that never expires in tests.
func SessionFor(identity domain.Identity) *domain.Session {
	return &domain.Session{
		AccessToken:  "access-" + identity.ID,
		RefreshToken: "refresh-" + identity.ID,
		TokenType:    "bearer",
		ExpiresAt:    farFuture,
		Identity:     identity,
	}
}
