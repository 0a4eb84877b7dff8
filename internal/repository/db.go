package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var (
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate key")
	// ErrMissingTenant is returned by tenant-scoped writes given no tenant.
	ErrMissingTenant = errors.New("tenant id required")
)

const uniqueViolation = "23505"

const setTenantSQL = `SELECT set_config('app.tenant_id', $1, true)`

// withTenant runs fn in a transaction whose row-level security scope is the
// given tenant. The setting is transaction-local.
func withTenant(ctx context.Context, db DBTX, tenantID domain.TenantID, fn func(pgx.Tx) error) error {
	if tenantID.IsZero() {
		return ErrMissingTenant
	}
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, setTenantSQL, tenantID.String()); err != nil {
			return fmt.Errorf("set tenant scope: %w", err)
		}
		return fn(tx)
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
