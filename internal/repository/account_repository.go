package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// AccountRepository reads account rows joined with their tenant.
type AccountRepository interface {
	GetWithTenant(ctx context.Context, identityID string) (*domain.Account, error)
	TenantExists(ctx context.Context, tenantID domain.TenantID) (bool, error)
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetWithTenant(ctx context.Context, identityID string) (*domain.Account, error) {
	const query = `
        SELECT u.id, u.tenant_id, t.id, t.name, t.user_id, t.created_at
        FROM users u
        LEFT JOIN tenants t ON t.id = u.tenant_id
        WHERE u.id=$1`

	var (
		account       domain.Account
		accountTenant *string
		tenantID      *string
		tenantName    *string
		tenantOwner   *string
		tenantCreated *time.Time
	)
	if err := r.db.QueryRow(ctx, query, identityID).Scan(
		&account.IdentityID,
		&accountTenant,
		&tenantID,
		&tenantName,
		&tenantOwner,
		&tenantCreated,
	); err != nil {
		return nil, err
	}

	if accountTenant != nil {
		id := domain.TenantID(*accountTenant)
		account.TenantID = &id
	}
	if tenantID != nil {
		tenant := &domain.Tenant{ID: domain.TenantID(*tenantID), UserID: tenantOwner}
		if tenantName != nil {
			tenant.Name = *tenantName
		}
		if tenantCreated != nil {
			tenant.CreatedAt = *tenantCreated
		}
		account.Tenant = tenant
	}
	return &account, nil
}

func (r *accountRepository) TenantExists(ctx context.Context, tenantID domain.TenantID) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM tenants WHERE id=$1)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, tenantID.String()).Scan(&exists); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return exists, nil
}
