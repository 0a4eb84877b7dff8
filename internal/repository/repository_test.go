package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/fluxo-erp/gateway/internal/domain"
)

type RepositoryTestSuite struct {
	suite.Suite
	mock     pgxmock.PgxPoolIface
	ctx      context.Context
	tenantID domain.TenantID
	now      time.Time
}

func (s *RepositoryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.ctx = context.Background()
	s.tenantID = domain.TenantID("7f3c2f6e-8d0b-4f43-9c1e-000000000007")
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) expectTenantScope() {
	s.mock.ExpectBegin()
	s.mock.ExpectExec(regexp.QuoteMeta(setTenantSQL)).
		WithArgs(s.tenantID.String()).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

func (s *RepositoryTestSuite) TestIdentityCreate_InsertsIdentityAndAccount() {
	repo := NewIdentityRepository(s.mock)
	record := &IdentityRecord{
		Identity:     domain.Identity{Email: "  Ana@X.com "},
		PasswordHash: "hash",
	}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`INSERT INTO identities`).
		WithArgs("ana@x.com", "hash", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("id-1", s.now))
	s.mock.ExpectExec(`INSERT INTO users`).
		WithArgs("id-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	s.mock.ExpectCommit()

	require.NoError(s.T(), repo.Create(s.ctx, record, nil))
	assert.Equal(s.T(), "id-1", record.ID)
	assert.Equal(s.T(), s.now, record.CreatedAt)
	assert.NotNil(s.T(), record.Metadata)
}

func (s *RepositoryTestSuite) TestIdentityCreate_DuplicateEmail() {
	repo := NewIdentityRepository(s.mock)
	record := &IdentityRecord{Identity: domain.Identity{Email: "ana@x.com"}, PasswordHash: "hash"}

	s.mock.ExpectBegin()
	s.mock.ExpectQuery(`INSERT INTO identities`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	s.mock.ExpectRollback()

	err := repo.Create(s.ctx, record, nil)
	assert.ErrorIs(s.T(), err, ErrDuplicate)
}

func (s *RepositoryTestSuite) TestIdentityGetByEmail_DecodesMetadata() {
	repo := NewIdentityRepository(s.mock)

	s.mock.ExpectQuery(`SELECT id, email, password_hash, metadata, created_at\s+FROM identities WHERE email=\$1`).
		WithArgs("ana@x.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "password_hash", "metadata", "created_at"}).
			AddRow("id-1", "ana@x.com", "hash", []byte(`{"full_name":"Ana"}`), s.now))

	record, err := repo.GetByEmail(s.ctx, "ANA@x.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Ana", record.FullName())
	assert.Equal(s.T(), "hash", record.PasswordHash)
}

func (s *RepositoryTestSuite) TestIdentityGetByID_NotFound() {
	repo := NewIdentityRepository(s.mock)

	s.mock.ExpectQuery(`FROM identities WHERE id=\$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(s.ctx, "missing")
	assert.ErrorIs(s.T(), err, pgx.ErrNoRows)
}

func (s *RepositoryTestSuite) TestIdentityUpdatePassword() {
	repo := NewIdentityRepository(s.mock)

	s.mock.ExpectExec(`UPDATE identities SET password_hash=\$1`).
		WithArgs("new-hash", "id-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	s.mock.ExpectExec(`UPDATE identities SET password_hash=\$1`).
		WithArgs("new-hash", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(s.T(), repo.UpdatePassword(s.ctx, "id-1", "new-hash"))
	assert.ErrorIs(s.T(), repo.UpdatePassword(s.ctx, "missing", "new-hash"), pgx.ErrNoRows)
}

func (s *RepositoryTestSuite) TestAccountGetWithTenant_Joined() {
	repo := NewAccountRepository(s.mock)
	tenant := s.tenantID.String()
	name := "Oficina Sul"

	s.mock.ExpectQuery(`LEFT JOIN tenants t ON t.id = u.tenant_id`).
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "tid", "name", "user_id", "created_at"}).
			AddRow("id-1", &tenant, &tenant, &name, (*string)(nil), &s.now))

	account, err := repo.GetWithTenant(s.ctx, "id-1")
	require.NoError(s.T(), err)
	require.NotNil(s.T(), account.TenantID)
	assert.Equal(s.T(), s.tenantID, *account.TenantID)
	require.NotNil(s.T(), account.Tenant)
	assert.Equal(s.T(), "Oficina Sul", account.Tenant.Name)
	assert.Nil(s.T(), account.Tenant.UserID)
}

func (s *RepositoryTestSuite) TestAccountGetWithTenant_NoTenant() {
	repo := NewAccountRepository(s.mock)

	s.mock.ExpectQuery(`FROM users u`).
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "tid", "name", "user_id", "created_at"}).
			AddRow("id-1", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil)))

	account, err := repo.GetWithTenant(s.ctx, "id-1")
	require.NoError(s.T(), err)
	assert.Nil(s.T(), account.TenantID)
	assert.Nil(s.T(), account.Tenant)
}

func (s *RepositoryTestSuite) TestAccountTenantExists() {
	repo := NewAccountRepository(s.mock)

	s.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM tenants WHERE id=\$1\)`).
		WithArgs(s.tenantID.String()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.TenantExists(s.ctx, s.tenantID)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *RepositoryTestSuite) TestProfileUpsert_RunsInTenantScope() {
	repo := NewProfileRepository(s.mock)
	profile := &domain.Profile{ID: "id-1", Role: "user", FullName: "Ana"}

	s.expectTenantScope()
	s.mock.ExpectQuery(`ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("id-1", s.tenantID.String(), "user", "Ana").
		WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(s.now))
	s.mock.ExpectCommit()

	require.NoError(s.T(), repo.Upsert(s.ctx, s.tenantID, profile))
	require.NotNil(s.T(), profile.TenantID)
	assert.Equal(s.T(), s.tenantID, *profile.TenantID)
	assert.Equal(s.T(), s.now, profile.UpdatedAt)
}

func (s *RepositoryTestSuite) TestProfileUpsert_TwiceSameIdentity() {
	repo := NewProfileRepository(s.mock)

	for i := 0; i < 2; i++ {
		s.expectTenantScope()
		s.mock.ExpectQuery(`ON CONFLICT \(id\) DO UPDATE`).
			WithArgs("id-1", s.tenantID.String(), "user", "Ana").
			WillReturnRows(pgxmock.NewRows([]string{"updated_at"}).AddRow(s.now))
		s.mock.ExpectCommit()
	}

	for i := 0; i < 2; i++ {
		profile := &domain.Profile{ID: "id-1", Role: "user", FullName: "Ana"}
		require.NoError(s.T(), repo.Upsert(s.ctx, s.tenantID, profile))
	}
}

func (s *RepositoryTestSuite) TestProfileUpsert_RequiresTenant() {
	repo := NewProfileRepository(s.mock)

	err := repo.Upsert(s.ctx, "", &domain.Profile{ID: "id-1"})
	assert.ErrorIs(s.T(), err, ErrMissingTenant)
}

func (s *RepositoryTestSuite) TestProfileUpsert_RollsBackOnFailure() {
	repo := NewProfileRepository(s.mock)

	s.expectTenantScope()
	s.mock.ExpectQuery(`INSERT INTO profiles`).
		WillReturnError(errors.New("permission denied"))
	s.mock.ExpectRollback()

	err := repo.Upsert(s.ctx, s.tenantID, &domain.Profile{ID: "id-1", Role: "user"})
	assert.EqualError(s.T(), err, "permission denied")
}

func (s *RepositoryTestSuite) TestProfileGetByID() {
	repo := NewProfileRepository(s.mock)
	tenant := s.tenantID.String()

	s.mock.ExpectQuery(`FROM profiles WHERE id=\$1`).
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "tenant_id", "role", "full_name", "updated_at"}).
			AddRow("id-1", &tenant, "admin", "Ana", s.now))

	profile, err := repo.GetByID(s.ctx, "id-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "admin", profile.Role)
	assert.Equal(s.T(), "Ana", profile.FullName)
	require.NotNil(s.T(), profile.TenantID)
}

func (s *RepositoryTestSuite) TestProfileUpdate_NoRows() {
	repo := NewProfileRepository(s.mock)
	name := "Ana Maria"

	s.expectTenantScope()
	s.mock.ExpectExec(`UPDATE profiles`).
		WithArgs(&name, (*string)(nil), "id-1", s.tenantID.String()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectRollback()

	err := repo.Update(s.ctx, s.tenantID, "id-1", domain.ProfileUpdate{FullName: &name})
	assert.ErrorIs(s.T(), err, pgx.ErrNoRows)
}

func (s *RepositoryTestSuite) TestPermissionHas() {
	repo := NewPermissionRepository(s.mock)

	s.expectTenantScope()
	s.mock.ExpectQuery(`FROM permissions`).
		WithArgs(s.tenantID.String(), "finance", "invoices.write").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	s.mock.ExpectCommit()

	ok, err := repo.Has(s.ctx, s.tenantID, domain.RoleFinance, "invoices.write")
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)
}

func (s *RepositoryTestSuite) TestPasswordResetCreateAndMarkUsed() {
	repo := NewPasswordResetRepository(s.mock)
	token := &PasswordResetToken{IdentityID: "id-1", Token: "tok", ExpiresAt: s.now.Add(time.Hour)}

	s.mock.ExpectQuery(`INSERT INTO password_reset_tokens`).
		WithArgs("id-1", "tok", token.ExpiresAt).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("reset-1", s.now))
	s.mock.ExpectExec(`UPDATE password_reset_tokens SET used_at=NOW\(\)`).
		WithArgs("reset-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(s.T(), repo.Create(s.ctx, token))
	assert.Equal(s.T(), "reset-1", token.ID)
	require.NoError(s.T(), repo.MarkUsed(s.ctx, token.ID))
}
