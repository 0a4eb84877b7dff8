package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/config"
	"github.com/fluxo-erp/gateway/internal/frontend"
	"github.com/fluxo-erp/gateway/internal/observability"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

const appKey = "frontend_app"

// AppBinder attaches the browser session's app to every request, mounting a
// new one when the cookie is missing or unknown.
type AppBinder struct {
	registry *frontend.Registry
	cfg      config.SessionConfig
	logger   *zap.Logger
}

// NewAppBinder constructs middleware.
func NewAppBinder(registry *frontend.Registry, cfg config.SessionConfig, logger *zap.Logger) *AppBinder {
	return &AppBinder{registry: registry, cfg: cfg, logger: logger}
}

// Handle binds the app and refreshes the session cookie.
func (b *AppBinder) Handle(c *fiber.Ctx) error {
	app, ok := b.registry.Get(c.Cookies(b.cfg.CookieName))
	if !ok {
		created, err := b.registry.Create(c.UserContext())
		if err != nil {
			return apperrors.NewServiceUnavailable("session unavailable", err)
		}
		app = created
		b.logger.Debug("browser session created", zap.String("sid", observability.ShortSID(app.SID())))
	}

	c.Cookie(&fiber.Cookie{
		Name:     b.cfg.CookieName,
		Value:    app.SID(),
		Path:     "/",
		HTTPOnly: true,
		Secure:   b.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(b.cfg.IdleTTL()),
	})
	c.Locals(appKey, app)
	c.Locals(observability.SIDLocalKey, observability.ShortSID(app.SID()))
	return c.Next()
}

// AppFromContext retrieves the bound app.
func AppFromContext(c *fiber.Ctx) (*frontend.App, bool) {
	val := c.Locals(appKey)
	if val == nil {
		return nil, false
	}
	app, ok := val.(*frontend.App)
	return app, ok
}

func mustApp(c *fiber.Ctx) (*frontend.App, error) {
	app, ok := AppFromContext(c)
	if !ok {
		return nil, apperrors.NewInternalError(nil)
	}
	return app, nil
}
