package frontend

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	welcomeKeyPrefix = "fluxo:welcome:"
	welcomeTTL       = 5 * time.Minute
)

// Marker is the one-shot "just logged in" flag of one browser session.
type Marker struct {
	client *redis.Client
	key    string
}

// NewMarker creates the marker for sid.
func NewMarker(client *redis.Client, sid string) *Marker {
	return &Marker{client: client, key: welcomeKeyPrefix + sid}
}

// Mark sets the flag.
func (m *Marker) Mark(ctx context.Context) error {
	return m.client.Set(ctx, m.key, "1", welcomeTTL).Err()
}

// Consume reports whether the flag was set and clears it.
func (m *Marker) Consume(ctx context.Context) (bool, error) {
	err := m.client.GetDel(ctx, m.key).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Clear drops the flag without reading it.
func (m *Marker) Clear(ctx context.Context) error {
	return m.client.Del(ctx, m.key).Err()
}
