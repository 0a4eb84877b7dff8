package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "fluxo:refresh:"

type refreshRecord struct {
	IdentityID string `json:"identity_id"`
	SessionID  string `json:"sid"`
}

// RefreshTokens keeps refresh token hashes in Redis. A token is consumed on
// use, so every refresh rotates the pair.
type RefreshTokens struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRefreshTokens creates the store.
func NewRefreshTokens(client *redis.Client, ttl time.Duration) *RefreshTokens {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RefreshTokens{client: client, ttl: ttl}
}

func refreshKey(hash string) string {
	return refreshKeyPrefix + hash
}

// Save stores the record under the token hash.
func (r *RefreshTokens) Save(ctx context.Context, hash string, rec refreshRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, refreshKey(hash), payload, r.ttl).Err()
}

// Consume atomically reads and deletes the record. A missing or expired hash
// yields ErrSessionExpired.
func (r *RefreshTokens) Consume(ctx context.Context, hash string) (refreshRecord, error) {
	var rec refreshRecord
	payload, err := r.client.GetDel(ctx, refreshKey(hash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rec, ErrSessionExpired
		}
		return rec, fmt.Errorf("consume refresh token: %w", err)
	}
	if err := json.Unmarshal(payload, &rec); err != nil {
		return rec, fmt.Errorf("decode refresh token: %w", err)
	}
	return rec, nil
}

// Revoke deletes the hash. Revoking an unknown hash is not an error.
func (r *RefreshTokens) Revoke(ctx context.Context, hash string) error {
	return r.client.Del(ctx, refreshKey(hash)).Err()
}
