package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// ProfileRepository manages the per-identity profile rows.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	Upsert(ctx context.Context, tenantID domain.TenantID, profile *domain.Profile) error
	Update(ctx context.Context, tenantID domain.TenantID, id string, update domain.ProfileUpdate) error
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository constructs repository.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
        SELECT id, tenant_id, role, full_name, updated_at
        FROM profiles WHERE id=$1`

	var (
		profile  domain.Profile
		tenantID *string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&tenantID,
		&profile.Role,
		&profile.FullName,
		&profile.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if tenantID != nil {
		t := domain.TenantID(*tenantID)
		profile.TenantID = &t
	}
	return &profile, nil
}

// Upsert inserts the profile or overwrites the row with the same id. The
// stored tenant is always the scope tenant.
func (r *profileRepository) Upsert(ctx context.Context, tenantID domain.TenantID, profile *domain.Profile) error {
	const query = `
        INSERT INTO profiles (id, tenant_id, role, full_name, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (id) DO UPDATE
        SET tenant_id = EXCLUDED.tenant_id, role = EXCLUDED.role,
            full_name = EXCLUDED.full_name, updated_at = NOW()
        RETURNING updated_at`

	return withTenant(ctx, r.db, tenantID, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, query,
			profile.ID,
			tenantID.String(),
			profile.Role,
			profile.FullName,
		).Scan(&profile.UpdatedAt); err != nil {
			return err
		}
		scoped := tenantID
		profile.TenantID = &scoped
		return nil
	})
}

func (r *profileRepository) Update(ctx context.Context, tenantID domain.TenantID, id string, update domain.ProfileUpdate) error {
	const query = `
        UPDATE profiles
        SET full_name = COALESCE($1, full_name), role = COALESCE($2, role), updated_at = NOW()
        WHERE id=$3 AND tenant_id=$4`

	var role *string
	if update.Role != nil {
		r := string(*update.Role)
		role = &r
	}

	return withTenant(ctx, r.db, tenantID, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, query, update.FullName, role, id, tenantID.String())
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}
