package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// PermissionRepository answers role permission lookups within a tenant.
type PermissionRepository interface {
	Has(ctx context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error)
}

type permissionRepository struct {
	db DBTX
}

// NewPermissionRepository constructs repository.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Has(ctx context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM permissions
            WHERE tenant_id=$1 AND role=$2 AND permission=$3
        )`

	var found bool
	err := withTenant(ctx, r.db, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, tenantID.String(), string(role), permission).Scan(&found)
	})
	return found, err
}
