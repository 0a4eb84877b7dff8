package sessionstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/repository"
)

// memoryDB backs every repository interface with maps.
type memoryDB struct {
	mu          sync.Mutex
	identities  map[string]*repository.IdentityRecord
	accounts    map[string]*domain.TenantID
	tenants     map[domain.TenantID]domain.Tenant
	profiles    map[string]domain.Profile
	permissions map[string]bool
	resets      map[string]*repository.PasswordResetToken
	upserts     int
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		identities:  map[string]*repository.IdentityRecord{},
		accounts:    map[string]*domain.TenantID{},
		tenants:     map[domain.TenantID]domain.Tenant{},
		profiles:    map[string]domain.Profile{},
		permissions: map[string]bool{},
		resets:      map[string]*repository.PasswordResetToken{},
	}
}

func (m *memoryDB) deps() Dependencies {
	return Dependencies{
		IdentityRepo:      identityFake{m},
		AccountRepo:       accountFake{m},
		ProfileRepo:       profileFake{m},
		PermissionRepo:    permissionFake{m},
		PasswordResetRepo: resetFake{m},
	}
}

type identityFake struct{ m *memoryDB }

func (f identityFake) Create(_ context.Context, record *repository.IdentityRecord, tenantID *domain.TenantID) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(record.Email))
	for _, existing := range f.m.identities {
		if existing.Email == email {
			return repository.ErrDuplicate
		}
	}
	record.ID = uuid.NewString()
	record.Email = email
	record.CreatedAt = time.Now()
	stored := *record
	f.m.identities[record.ID] = &stored
	f.m.accounts[record.ID] = tenantID
	return nil
}

func (f identityFake) GetByEmail(_ context.Context, email string) (*repository.IdentityRecord, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, record := range f.m.identities {
		if record.Email == email {
			copied := *record
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f identityFake) GetByID(_ context.Context, id string) (*repository.IdentityRecord, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	record, ok := f.m.identities[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (f identityFake) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	record, ok := f.m.identities[id]
	if !ok {
		return pgx.ErrNoRows
	}
	record.PasswordHash = passwordHash
	return nil
}

type accountFake struct{ m *memoryDB }

func (f accountFake) GetWithTenant(_ context.Context, identityID string) (*domain.Account, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	tenantID, ok := f.m.accounts[identityID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	account := &domain.Account{IdentityID: identityID, TenantID: tenantID}
	if tenantID != nil {
		if tenant, ok := f.m.tenants[*tenantID]; ok {
			account.Tenant = &tenant
		}
	}
	return account, nil
}

func (f accountFake) TenantExists(_ context.Context, tenantID domain.TenantID) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	_, ok := f.m.tenants[tenantID]
	return ok, nil
}

type profileFake struct{ m *memoryDB }

func (f profileFake) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	profile, ok := f.m.profiles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &profile, nil
}

func (f profileFake) Upsert(_ context.Context, tenantID domain.TenantID, profile *domain.Profile) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	scoped := tenantID
	profile.TenantID = &scoped
	profile.UpdatedAt = time.Now()
	f.m.profiles[profile.ID] = *profile
	f.m.upserts++
	return nil
}

func (f profileFake) Update(_ context.Context, tenantID domain.TenantID, id string, update domain.ProfileUpdate) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	profile, ok := f.m.profiles[id]
	if !ok || profile.TenantID == nil || *profile.TenantID != tenantID {
		return pgx.ErrNoRows
	}
	if update.FullName != nil {
		profile.FullName = *update.FullName
	}
	if update.Role != nil {
		profile.Role = string(*update.Role)
	}
	f.m.profiles[id] = profile
	return nil
}

type permissionFake struct{ m *memoryDB }

func permissionKey(tenantID domain.TenantID, role domain.Role, permission string) string {
	return tenantID.String() + "|" + string(role) + "|" + permission
}

func (f permissionFake) Has(_ context.Context, tenantID domain.TenantID, role domain.Role, permission string) (bool, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	return f.m.permissions[permissionKey(tenantID, role, permission)], nil
}

type resetFake struct{ m *memoryDB }

func (f resetFake) Create(_ context.Context, token *repository.PasswordResetToken) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	token.ID = uuid.NewString()
	token.CreatedAt = time.Now()
	stored := *token
	f.m.resets[token.Token] = &stored
	return nil
}

func (f resetFake) GetByToken(_ context.Context, token string) (*repository.PasswordResetToken, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	stored, ok := f.m.resets[token]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *stored
	return &copied, nil
}

func (f resetFake) MarkUsed(_ context.Context, id string) error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	for _, stored := range f.m.resets {
		if stored.ID == id {
			now := time.Now()
			stored.UsedAt = &now
		}
	}
	return nil
}

type recordingMailer struct {
	mu    sync.Mutex
	links map[string]string
}

func (r *recordingMailer) SendRecovery(_ context.Context, to, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links == nil {
		r.links = map[string]string{}
	}
	r.links[to] = link
	return nil
}
