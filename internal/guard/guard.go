// Package guard decides, per navigation, whether a protected view renders.
package guard

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/domain"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/observability"
)

// Boundary routes.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

const (
	unauthorizedTitle = "Acesso não autorizado"
	unauthorizedDesc  = "Você não tem permissão para acessar esta página"
)

// Action is the outcome of a guard evaluation.
type Action int

const (
	Loading Action = iota
	RedirectLogin
	Unauthorized
	Render
)

func (a Action) String() string {
	switch a {
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case Unauthorized:
		return "unauthorized"
	case Render:
		return "render"
	default:
		return "unknown"
	}
}

// State is the auth state a decision is made on.
type State struct {
	Loading bool
	User    *domain.AuthenticatedUser
}

// Route is a view and the roles allowed to see it. No roles means any
// authenticated user.
type Route struct {
	Path   string
	Roles  []domain.Role
	Public bool
}

// Decision tells the caller what to do with the navigation.
type Decision struct {
	Action   Action
	Location string
	// From is the attempted path, kept for the post-login return.
	From string
}

// Evaluate applies the decision table in order. It has no side effects.
func Evaluate(state State, route Route) Decision {
	if route.Public {
		return Decision{Action: Render}
	}
	if state.Loading {
		return Decision{Action: Loading}
	}
	if state.User == nil {
		return Decision{
			Action:   RedirectLogin,
			Location: LoginPath + "?from=" + url.QueryEscape(route.Path),
			From:     route.Path,
		}
	}
	if len(route.Roles) > 0 && !state.User.HasRole(route.Roles...) {
		return Decision{Action: Unauthorized, Location: UnauthorizedPath, From: route.Path}
	}
	return Decision{Action: Render}
}

// Target is the browser session a guard check runs against.
type Target interface {
	GuardState() State
	HasSession() bool
	RefreshSession(ctx context.Context) error
	Notify(n notify.Notification)
}

// Guard runs Evaluate and performs its side effects.
type Guard struct {
	logger  *zap.Logger
	metrics *observability.Metrics
}

// New creates a guard.
func New(logger *zap.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{logger: logger, metrics: metrics}
}

// Check evaluates route for t. A missing user with a held session gets one
// refresh attempt before the decision is taken again.
func (g *Guard) Check(ctx context.Context, t Target, route Route) Decision {
	decision := Evaluate(t.GuardState(), route)

	if decision.Action == RedirectLogin && t.HasSession() {
		if err := t.RefreshSession(ctx); err != nil {
			g.logger.Debug("guard refresh failed", zap.String("path", route.Path), zap.Error(err))
		}
		decision = Evaluate(t.GuardState(), route)
	}

	if decision.Action == Unauthorized {
		t.Notify(notify.Error(unauthorizedTitle, unauthorizedDesc))
		g.logger.Info("unauthorized navigation", zap.String("path", route.Path))
	}

	g.metrics.RecordGuard(decision.Action.String())
	return decision
}
