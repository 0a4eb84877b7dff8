package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/fluxo-erp/gateway/internal/domain"
)

// IdentityRecord is an identity together with its stored password hash.
type IdentityRecord struct {
	domain.Identity
	PasswordHash string
}

// IdentityRepository defines persistence access for session store identities.
type IdentityRepository interface {
	Create(ctx context.Context, record *IdentityRecord, tenantID *domain.TenantID) error
	GetByEmail(ctx context.Context, email string) (*IdentityRecord, error)
	GetByID(ctx context.Context, id string) (*IdentityRecord, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type identityRepository struct {
	db DBTX
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(db DBTX) IdentityRepository {
	return &identityRepository{db: db}
}

// Create inserts the identity and its account row in one transaction. The
// account's tenant stays NULL unless tenantID is given.
func (r *identityRepository) Create(ctx context.Context, record *IdentityRecord, tenantID *domain.TenantID) error {
	const insertIdentity = `
        INSERT INTO identities (email, password_hash, metadata)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	const insertAccount = `
        INSERT INTO users (id, tenant_id)
        VALUES ($1, $2)`

	if record.Metadata == nil {
		record.Metadata = map[string]string{}
	}
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}

	var tenant *string
	if tenantID != nil && !tenantID.IsZero() {
		t := tenantID.String()
		tenant = &t
	}

	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertIdentity,
			normalizeEmail(record.Email),
			record.PasswordHash,
			metadata,
		).Scan(&record.ID, &record.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertAccount, record.ID, tenant)
		return err
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*IdentityRecord, error) {
	const query = `
        SELECT id, email, password_hash, metadata, created_at
        FROM identities WHERE email=$1`
	return r.scanOne(ctx, query, normalizeEmail(email))
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*IdentityRecord, error) {
	const query = `
        SELECT id, email, password_hash, metadata, created_at
        FROM identities WHERE id=$1`
	return r.scanOne(ctx, query, id)
}

func (r *identityRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
        UPDATE identities SET password_hash=$1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := r.db.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *identityRepository) scanOne(ctx context.Context, query string, arg any) (*IdentityRecord, error) {
	var (
		record   IdentityRecord
		metadata []byte
	)
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&record.ID,
		&record.Email,
		&record.PasswordHash,
		&metadata,
		&record.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
