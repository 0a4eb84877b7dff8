// Package frontend binds one browser session to its session components.
package frontend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/events"
	"github.com/fluxo-erp/gateway/internal/guard"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/observability"
	"github.com/fluxo-erp/gateway/internal/session"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
	"github.com/fluxo-erp/gateway/internal/tenant"
)

const (
	eventQueueSize = 64
	eventTimeout   = 10 * time.Second
)

// App is the mounted application of one browser session. It owns a single
// auth event subscription whose events are applied in order by one loop.
type App struct {
	sid      string
	store    sessionstore.Store
	resolver *tenant.Resolver
	manager  *session.Manager
	inbox    *notify.Inbox
	nav      *Navigator
	marker   *Marker
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu        sync.Mutex
	mounted   bool
	unmounted bool
	sub       events.Subscription
	queue     chan events.Event
	stop      chan struct{}
	loopDone  chan struct{}

	lastSeen atomic.Int64
}

var _ guard.Target = (*App)(nil)

// NewApp wires the session components for sid around store.
func NewApp(sid string, store sessionstore.Store, redisClient *redis.Client, logger *zap.Logger, metrics *observability.Metrics) *App {
	logger = logger.With(zap.String("sid", observability.ShortSID(sid)))
	inbox := notify.NewInbox(0)
	nav := &Navigator{}
	marker := NewMarker(redisClient, sid)
	resolver := tenant.NewResolver(store, inbox, nav, logger.Named("tenant"))

	a := &App{
		sid:      sid,
		store:    store,
		resolver: resolver,
		manager:  session.NewManager(store, resolver, inbox, nav, marker, logger.Named("session"), metrics),
		inbox:    inbox,
		nav:      nav,
		marker:   marker,
		logger:   logger,
		metrics:  metrics,
		queue:    make(chan events.Event, eventQueueSize),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	a.Touch()
	return a
}

// Mount subscribes to auth events and initializes the tenant resolver and
// the session manager concurrently. Mounting twice is a no-op.
func (a *App) Mount(ctx context.Context) error {
	a.mu.Lock()
	if a.mounted || a.unmounted {
		a.mu.Unlock()
		return nil
	}
	a.mounted = true
	a.sub = a.store.SubscribeAuthEvents(a.enqueue)
	a.mu.Unlock()

	go a.loop()
	a.metrics.AppMounted(1)
	a.logger.Info("app mounted")

	var g errgroup.Group
	g.Go(func() error { return a.resolver.Initialize(ctx) })
	g.Go(func() error { return a.manager.Initialize(ctx) })
	if err := g.Wait(); err != nil {
		a.logger.Info("app initialization settled with error", zap.Error(err))
		return err
	}
	return nil
}

// Unmount disposes the subscription and stops the event loop. Only the
// first call has an effect.
func (a *App) Unmount() {
	a.mu.Lock()
	if a.unmounted {
		a.mu.Unlock()
		return
	}
	a.unmounted = true
	mounted := a.mounted
	sub := a.sub
	a.mu.Unlock()

	if !mounted {
		return
	}
	sub.Unsubscribe()
	close(a.stop)
	<-a.loopDone
	a.metrics.AppMounted(-1)
	a.logger.Info("app unmounted")
}

func (a *App) enqueue(_ context.Context, ev events.Event) {
	select {
	case <-a.stop:
		return
	default:
	}
	select {
	case a.queue <- ev:
	default:
		a.logger.Warn("auth event dropped: queue full", zap.String("type", string(ev.Type)))
	}
}

func (a *App) loop() {
	defer close(a.loopDone)
	for {
		select {
		case <-a.stop:
			return
		case ev := <-a.queue:
			a.apply(ev)
		}
	}
}

func (a *App) apply(ev events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	a.logger.Debug("auth event", zap.String("type", string(ev.Type)))
	a.resolver.HandleAuthEvent(ctx, ev)
	a.manager.HandleAuthEvent(ctx, ev)
}

// SID returns the browser session id.
func (a *App) SID() string {
	return a.sid
}

// Manager returns the auth session manager.
func (a *App) Manager() *session.Manager {
	return a.manager
}

// Resolver returns the tenant resolver.
func (a *App) Resolver() *tenant.Resolver {
	return a.resolver
}

// Navigator returns the pending-navigation recorder.
func (a *App) Navigator() *Navigator {
	return a.nav
}

// Marker returns the "just logged in" flag.
func (a *App) Marker() *Marker {
	return a.marker
}

// Notifications drains the pending notifications.
func (a *App) Notifications() []notify.Notification {
	return a.inbox.Drain()
}

// Loading reports whether either component is still settling.
func (a *App) Loading() bool {
	return a.manager.Loading() || a.resolver.Loading()
}

// Tenant returns the active tenant, or nil.
func (a *App) Tenant() *domain.Tenant {
	return a.resolver.Current()
}

// GuardState snapshots the state the route guard decides on.
func (a *App) GuardState() guard.State {
	return guard.State{Loading: a.Loading(), User: a.manager.User()}
}

// HasSession reports whether a session token is held.
func (a *App) HasSession() bool {
	return a.manager.Session() != nil
}

// RefreshSession renews the session through the manager.
func (a *App) RefreshSession(ctx context.Context) error {
	return a.manager.RefreshSession(ctx)
}

// Notify queues a notification for the browser.
func (a *App) Notify(n notify.Notification) {
	a.inbox.Notify(n)
}

// Touch records activity.
func (a *App) Touch() {
	a.lastSeen.Store(time.Now().UnixNano())
}

// IdleSince returns the time of the last activity.
func (a *App) IdleSince() time.Time {
	return time.Unix(0, a.lastSeen.Load())
}
