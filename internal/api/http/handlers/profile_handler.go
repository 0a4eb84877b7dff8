package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fluxo-erp/gateway/internal/api/dto"
	"github.com/fluxo-erp/gateway/internal/domain"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

// ProfileHandler exposes profile and permission operations of the
// authenticated user. Routes are guarded before they reach it.
type ProfileHandler struct{}

// NewProfileHandler constructs handler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Update handles PATCH /profile.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var update domain.ProfileUpdate
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return apperrors.NewValidationError("full_name must not be empty", nil)
		}
		update.FullName = &name
	}
	if req.Role != nil {
		role := domain.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		if !role.Valid() {
			return apperrors.NewValidationError("unknown role", map[string]any{"role": *req.Role})
		}
		update.Role = &role
	}
	if update.Empty() {
		return apperrors.NewValidationError("nothing to update", nil)
	}

	err = app.Manager().UpdateProfile(c.UserContext(), update)
	return respond(c, app, http.StatusOK, dto.NewUserResponse(app.Manager().User()), err)
}

// Permission handles GET /permissions/:permission.
func (h *ProfileHandler) Permission(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	permission := strings.TrimSpace(c.Params("permission"))
	if permission == "" {
		return apperrors.NewValidationError("permission required", nil)
	}

	allowed := app.Manager().CheckPermission(c.UserContext(), permission)
	return c.JSON(fiber.Map{
		"data": dto.PermissionResponse{Permission: permission, Allowed: allowed},
	})
}
