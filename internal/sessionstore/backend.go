package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/auth"
	"github.com/fluxo-erp/gateway/internal/config"
	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/repository"
)

const tokenType = "bearer"

// Dependencies encapsulates the repositories the backend reads and writes.
type Dependencies struct {
	IdentityRepo      repository.IdentityRepository
	AccountRepo       repository.AccountRepository
	ProfileRepo       repository.ProfileRepository
	PermissionRepo    repository.PermissionRepository
	PasswordResetRepo repository.PasswordResetRepository
}

// Backend is shared by every browser connection.
type Backend struct {
	identities  repository.IdentityRepository
	accounts    repository.AccountRepository
	profiles    repository.ProfileRepository
	permissions repository.PermissionRepository
	resets      repository.PasswordResetRepository
	refresh     *RefreshTokens
	tokenMgr    *auth.TokenManager
	mailer      notify.Mailer
	logger      *zap.Logger
	bcryptCost  int
	resetTTL    time.Duration
	publicURL   string
	now         func() time.Time
}

// NewBackend builds the backend.
func NewBackend(cfg config.Config, deps Dependencies, redisClient *redis.Client, mailer notify.Mailer, logger *zap.Logger) *Backend {
	return &Backend{
		identities:  deps.IdentityRepo,
		accounts:    deps.AccountRepo,
		profiles:    deps.ProfileRepo,
		permissions: deps.PermissionRepo,
		resets:      deps.PasswordResetRepo,
		refresh:     NewRefreshTokens(redisClient, cfg.Auth.RefreshTokenTTL()),
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		mailer:      mailer,
		logger:      logger,
		bcryptCost:  cfg.Auth.BcryptCost,
		resetTTL:    cfg.Auth.PasswordResetTTL(),
		publicURL:   strings.TrimRight(cfg.App.PublicURL, "/"),
		now:         time.Now,
	}
}

// NewClient opens a connection with no session and no tenant scope.
func (b *Backend) NewClient() *Client {
	return &Client{
		backend: b,
		events:  events.NewInMemoryDispatcher(),
	}
}

// TokenManager exposes the access token manager.
func (b *Backend) TokenManager() *auth.TokenManager {
	return b.tokenMgr
}

// ConfirmPasswordReset validates a recovery token and stores the new password.
func (b *Backend) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	token, err := b.resets.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if token.UsedAt != nil || b.now().After(token.ExpiresAt) {
		return ErrResetTokenInvalid
	}

	hash, err := auth.HashPassword(newPassword, b.bcryptCost)
	if err != nil {
		return err
	}
	if err := b.identities.UpdatePassword(ctx, token.IdentityID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return b.resets.MarkUsed(ctx, token.ID)
}

func (b *Backend) authenticate(ctx context.Context, email, password string) (*repository.IdentityRecord, error) {
	record, err := b.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}
	if err := auth.ComparePassword(record.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return record, nil
}

// issue signs a new access token and stores a fresh refresh token.
func (b *Backend) issue(ctx context.Context, identity domain.Identity, sessionID string) (*domain.Session, error) {
	access, expiresAt, err := b.tokenMgr.GenerateToken(identity.ID, identity.Email, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := b.refresh.Save(ctx, hash, refreshRecord{IdentityID: identity.ID, SessionID: sessionID}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &domain.Session{
		AccessToken:  access,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		Identity:     identity,
	}, nil
}

func (b *Backend) register(ctx context.Context, email, password string, metadata map[string]string) (*domain.Identity, error) {
	hash, err := auth.HashPassword(password, b.bcryptCost)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(metadata))
	var invited *domain.TenantID
	for k, v := range metadata {
		if k == MetadataTenantKey {
			if v != "" {
				id := domain.TenantID(v)
				invited = &id
			}
			continue
		}
		meta[k] = v
	}
	if invited != nil {
		exists, err := b.accounts.TenantExists(ctx, *invited)
		if err != nil {
			return nil, fmt.Errorf("check tenant: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: unknown tenant %s", ErrTenantScope, invited)
		}
	}

	record := &repository.IdentityRecord{
		Identity:     domain.Identity{Email: email, Metadata: meta},
		PasswordHash: hash,
	}
	if err := b.identities.Create(ctx, record, invited); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return &record.Identity, nil
}

func (b *Backend) sendPasswordReset(ctx context.Context, email string) error {
	record, err := b.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			b.logger.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup identity: %w", err)
	}

	token := &repository.PasswordResetToken{
		IdentityID: record.ID,
		Token:      uuid.NewString(),
		ExpiresAt:  b.now().Add(b.resetTTL),
	}
	if err := b.resets.Create(ctx, token); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := b.publicURL + "/reset-password?token=" + url.QueryEscape(token.Token)
	return b.mailer.SendRecovery(ctx, record.Email, link)
}
