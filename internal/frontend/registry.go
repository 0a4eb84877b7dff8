package frontend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/observability"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
)

const defaultEvictInterval = time.Minute

// ErrRegistryClosed is returned by Create after Close.
var ErrRegistryClosed = errors.New("app registry closed")

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// NewStore returns a fresh Session Store connection for a new app.
	NewStore      func() sessionstore.Store
	Redis         *redis.Client
	IdleTTL       time.Duration
	EvictInterval time.Duration
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// Registry maps browser session ids to mounted apps.
type Registry struct {
	opts RegistryOptions

	mu     sync.RWMutex
	apps   map[string]*App
	closed bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	if opts.EvictInterval <= 0 {
		opts.EvictInterval = defaultEvictInterval
	}
	return &Registry{opts: opts, apps: make(map[string]*App)}
}

// Get returns the app for sid and records activity on it.
func (r *Registry) Get(sid string) (*App, bool) {
	if sid == "" {
		return nil, false
	}
	r.mu.RLock()
	app, ok := r.apps[sid]
	r.mu.RUnlock()
	if ok {
		app.Touch()
	}
	return app, ok
}

// Create mounts a new app under a fresh sid. Initialization errors are
// reported through the app's notifications; the app is usable either way.
func (r *Registry) Create(ctx context.Context) (*App, error) {
	sid := uuid.NewString()
	app := NewApp(sid, r.opts.NewStore(), r.opts.Redis, r.opts.Logger, r.opts.Metrics)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	r.apps[sid] = app
	r.mu.Unlock()

	if err := app.Mount(ctx); err != nil {
		r.opts.Logger.Debug("app mounted with initialization error", zap.Error(err))
	}
	return app, nil
}

// Remove unmounts and forgets the app for sid.
func (r *Registry) Remove(sid string) {
	r.mu.Lock()
	app, ok := r.apps[sid]
	delete(r.apps, sid)
	r.mu.Unlock()
	if ok {
		app.Unmount()
	}
}

// Len returns the number of mounted apps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.apps)
}

// EvictIdle unmounts apps idle since before now minus the idle TTL.
func (r *Registry) EvictIdle(now time.Time) int {
	if r.opts.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-r.opts.IdleTTL)

	r.mu.Lock()
	var stale []*App
	for sid, app := range r.apps {
		if app.IdleSince().Before(cutoff) {
			stale = append(stale, app)
			delete(r.apps, sid)
		}
	}
	r.mu.Unlock()

	for _, app := range stale {
		app.Unmount()
	}
	if len(stale) > 0 {
		r.opts.Logger.Info("idle apps evicted", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Run evicts idle apps until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.EvictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.EvictIdle(now)
		}
	}
}

// Close unmounts every app. Later Create calls fail.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	apps := r.apps
	r.apps = make(map[string]*App)
	r.mu.Unlock()

	for _, app := range apps {
		app.Unmount()
	}
}
