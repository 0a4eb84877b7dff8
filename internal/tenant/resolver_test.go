package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
	"github.com/fluxo-erp/gateway/internal/sessionstore/sessionstoretest"
)

type redirectRecorder struct {
	paths []string
}

func (r *redirectRecorder) Redirect(path string) {
	r.paths = append(r.paths, path)
}

type ResolverTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *sessionstoretest.MockStore
	inbox    *notify.Inbox
	redirect *redirectRecorder
	resolver *Resolver
	identity domain.Identity
	tenantID domain.TenantID
}

func (s *ResolverTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = new(sessionstoretest.MockStore)
	s.inbox = notify.NewInbox(0)
	s.redirect = &redirectRecorder{}
	s.resolver = NewResolver(s.store, s.inbox, s.redirect, zap.NewNop())
	s.identity = domain.Identity{ID: "id-ana", Email: "ana@x.com"}
	s.tenantID = domain.TenantID("tenant-7")
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (s *ResolverTestSuite) TestInitialize_NoSession() {
	s.store.On("GetCurrentSession", mock.Anything).Return(nil, nil)

	assert.True(s.T(), s.resolver.Loading())
	require.NoError(s.T(), s.resolver.Initialize(s.ctx))

	assert.False(s.T(), s.resolver.Loading())
	assert.Nil(s.T(), s.resolver.Current())
	assert.Nil(s.T(), s.resolver.User())
	s.store.AssertNotCalled(s.T(), "FetchAccountWithTenant", mock.Anything, mock.Anything)
}

func (s *ResolverTestSuite) TestInitialize_ResolvesAndActivatesScope() {
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(sessionstoretest.AccountFor(s.identity.ID, s.tenantID, "Oficina Sul"), nil).Once()
	s.store.On("ActivateTenantScope", mock.Anything, s.tenantID).Return(nil).Once()

	require.NoError(s.T(), s.resolver.Initialize(s.ctx))

	require.NotNil(s.T(), s.resolver.Current())
	assert.Equal(s.T(), "Oficina Sul", s.resolver.Current().Name)
	assert.Equal(s.T(), s.identity.ID, s.resolver.User().ID)
	assert.False(s.T(), s.resolver.Loading())

	// already resolved for this identity
	require.NoError(s.T(), s.resolver.Initialize(s.ctx))
	id, err := s.resolver.TenantID(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), s.tenantID, id)

	s.store.AssertNumberOfCalls(s.T(), "FetchAccountWithTenant", 1)
	s.store.AssertNumberOfCalls(s.T(), "ActivateTenantScope", 1)
	assert.Empty(s.T(), s.redirect.paths)
}

func (s *ResolverTestSuite) TestInitialize_AccountWithoutTenantForcesSignOutOnce() {
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(&domain.Account{IdentityID: s.identity.ID}, nil)
	s.store.On("SignOut", mock.Anything).Return(nil)

	err := s.resolver.Initialize(s.ctx)

	assert.ErrorIs(s.T(), err, ErrTenantInconsistent)
	assert.Nil(s.T(), s.resolver.Current())
	assert.Nil(s.T(), s.resolver.User())
	assert.False(s.T(), s.resolver.Loading())
	s.store.AssertNumberOfCalls(s.T(), "SignOut", 1)
	assert.Equal(s.T(), []string{LoginPath}, s.redirect.paths)
	s.store.AssertNotCalled(s.T(), "ActivateTenantScope", mock.Anything, mock.Anything)
}

func (s *ResolverTestSuite) TestInitialize_MissingTenantRelationForcesSignOut() {
	tenantID := s.tenantID
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(&domain.Account{IdentityID: s.identity.ID, TenantID: &tenantID}, nil)
	s.store.On("SignOut", mock.Anything).Return(errors.New("network down"))

	err := s.resolver.Initialize(s.ctx)

	assert.ErrorIs(s.T(), err, ErrTenantInconsistent)
	s.store.AssertNumberOfCalls(s.T(), "SignOut", 1)
	assert.Equal(s.T(), []string{LoginPath}, s.redirect.paths)
}

func (s *ResolverTestSuite) TestInitialize_LookupErrorForcesSignOut() {
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).Return(nil, sessionstore.ErrNotFound)
	s.store.On("SignOut", mock.Anything).Return(nil)

	_, err := s.resolver.TenantID(s.ctx)

	assert.ErrorIs(s.T(), err, ErrTenantInconsistent)
	s.store.AssertNumberOfCalls(s.T(), "SignOut", 1)
}

func (s *ResolverTestSuite) TestInitialize_ActivateFailureNotifiesAndKeepsTenantNil() {
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(sessionstoretest.AccountFor(s.identity.ID, s.tenantID, "Oficina Sul"), nil)
	s.store.On("ActivateTenantScope", mock.Anything, s.tenantID).Return(errors.New("timeout"))

	err := s.resolver.Initialize(s.ctx)

	assert.EqualError(s.T(), err, "timeout")
	assert.Nil(s.T(), s.resolver.Current())
	assert.False(s.T(), s.resolver.Loading())
	s.store.AssertNotCalled(s.T(), "SignOut", mock.Anything)

	notes := s.inbox.Drain()
	require.Len(s.T(), notes, 1)
	assert.Equal(s.T(), notify.LevelError, notes[0].Level)
	assert.Equal(s.T(), loadErrorTitle, notes[0].Title)

	_, err = s.resolver.TenantID(s.ctx)
	assert.ErrorIs(s.T(), err, ErrTenantUnresolved)
}

func (s *ResolverTestSuite) TestInitialize_SessionErrorClearsLoading() {
	s.store.On("GetCurrentSession", mock.Anything).Return(nil, errors.New("redis down"))

	assert.Error(s.T(), s.resolver.Initialize(s.ctx))
	assert.False(s.T(), s.resolver.Loading())
	assert.Equal(s.T(), 1, s.inbox.Len())
}

func (s *ResolverTestSuite) TestHandleAuthEvent() {
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(sessionstoretest.AccountFor(s.identity.ID, s.tenantID, "Oficina Sul"), nil)
	s.store.On("ActivateTenantScope", mock.Anything, s.tenantID).Return(nil)

	s.resolver.HandleAuthEvent(s.ctx, events.NewEvent(events.EventSignedIn, sessionstoretest.SessionFor(s.identity)))
	require.NotNil(s.T(), s.resolver.Current())

	s.resolver.HandleAuthEvent(s.ctx, events.NewEvent(events.EventTokenRefreshed, sessionstoretest.SessionFor(s.identity)))
	require.NotNil(s.T(), s.resolver.Current())

	s.resolver.HandleAuthEvent(s.ctx, events.NewEvent(events.EventSignedOut, nil))
	assert.Nil(s.T(), s.resolver.Current())
	assert.Nil(s.T(), s.resolver.User())
}

func (s *ResolverTestSuite) TestTenantID_ResolvesForNewIdentity() {
	bia := domain.Identity{ID: "id-bia", Email: "bia@x.com"}
	other := domain.TenantID("tenant-9")

	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(s.identity), nil).Once()
	s.store.On("GetCurrentSession", mock.Anything).Return(sessionstoretest.SessionFor(bia), nil).Once()
	s.store.On("FetchAccountWithTenant", mock.Anything, s.identity.ID).
		Return(sessionstoretest.AccountFor(s.identity.ID, s.tenantID, "Oficina Sul"), nil)
	s.store.On("FetchAccountWithTenant", mock.Anything, bia.ID).
		Return(sessionstoretest.AccountFor(bia.ID, other, "Loja Norte"), nil)
	s.store.On("ActivateTenantScope", mock.Anything, mock.Anything).Return(nil)

	first, err := s.resolver.TenantID(s.ctx)
	require.NoError(s.T(), err)
	second, err := s.resolver.TenantID(s.ctx)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), s.tenantID, first)
	assert.Equal(s.T(), other, second)
}
