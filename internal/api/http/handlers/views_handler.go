package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/api/dto"
	"github.com/fluxo-erp/gateway/internal/guard"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

// ViewsHandler renders guarded views from the route table.
type ViewsHandler struct {
	guard  *guard.Guard
	table  *guard.Table
	logger *zap.Logger
}

// NewViewsHandler constructs handler.
func NewViewsHandler(g *guard.Guard, table *guard.Table, logger *zap.Logger) *ViewsHandler {
	return &ViewsHandler{guard: g, table: table, logger: logger}
}

// Show handles GET /views/*.
func (h *ViewsHandler) Show(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}

	requested := "/" + strings.Trim(c.Params("*"), "/")
	route, ok := h.table.Lookup(requested)
	if !ok {
		return apperrors.NewNotFound("view", map[string]any{"path": requested})
	}

	decision := h.guard.Check(c.UserContext(), app, route)
	if decision.Action != guard.Render {
		return RespondDecision(c, app, decision)
	}

	if requested == "/" {
		c.Location(guard.LandingPath)
		return c.Status(http.StatusSeeOther).JSON(dto.GuardResponse{
			Status:        "redirect",
			RedirectTo:    stringPtr(guard.LandingPath),
			Notifications: app.Notifications(),
		})
	}

	welcome := false
	if route.Path == guard.LandingPath {
		seen, err := app.Marker().Consume(c.UserContext())
		if err != nil {
			h.logger.Warn("welcome marker read failed", zap.Error(err))
		}
		welcome = seen
	}

	app.Navigator().Take()
	return c.JSON(dto.ViewResponse{
		View:          viewName(route.Path),
		User:          dto.NewUserResponse(app.Manager().User()),
		Tenant:        dto.NewTenantResponse(app.Tenant()),
		Welcome:       welcome,
		Notifications: app.Notifications(),
	})
}

// Guarded returns middleware that runs the guard for route before next.
func (h *ViewsHandler) Guarded(route guard.Route) fiber.Handler {
	return func(c *fiber.Ctx) error {
		app, err := mustApp(c)
		if err != nil {
			return err
		}
		decision := h.guard.Check(c.UserContext(), app, route)
		if decision.Action != guard.Render {
			return RespondDecision(c, app, decision)
		}
		return c.Next()
	}
}

func viewName(path string) string {
	name := strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
	if name == "" {
		return "index"
	}
	return name
}

func stringPtr(s string) *string {
	return &s
}
