package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/api/dto"
	"github.com/fluxo-erp/gateway/internal/frontend"
	"github.com/fluxo-erp/gateway/internal/observability"
	"github.com/fluxo-erp/gateway/internal/session"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

const minPasswordLength = 6

// PasswordResetter completes a password recovery.
type PasswordResetter interface {
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// AuthHandler exposes the session manager operations.
type AuthHandler struct {
	resets PasswordResetter
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(resets PasswordResetter, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{resets: resets, logger: logger}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	err = app.Manager().Login(c.UserContext(), req.Email, req.Password)
	return respond(c, app, http.StatusOK, sessionData(app), err)
}

// Logout handles POST /auth/logout. Local state is always cleared, so a
// failed server-side sign-out still answers 200 with its notification.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	_ = app.Manager().Logout(c.UserContext())
	if err := app.Marker().Clear(c.UserContext()); err != nil {
		// an unread welcome flag still expires on its own
		h.logger.Warn("welcome marker clear failed",
			zap.String("sid", observability.ShortSID(app.SID())),
			zap.Error(err))
	}
	return respond(c, app, http.StatusOK, sessionData(app), nil)
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.Password) > 0 && len(req.Password) < minPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}

	err = app.Manager().Register(c.UserContext(), session.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: strings.TrimSpace(req.FullName),
		TenantID: req.TenantID,
	})
	return respond(c, app, http.StatusCreated, nil, err)
}

// RecoverPassword handles POST /auth/recover-password.
func (h *AuthHandler) RecoverPassword(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	var req dto.RecoverPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	err = app.Manager().ResetPassword(c.UserContext(), req.Email)
	return respond(c, app, http.StatusAccepted, nil, err)
}

// ConfirmPasswordReset handles POST /auth/reset-password.
func (h *AuthHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" || len(req.NewPassword) < minPasswordLength {
		return apperrors.NewValidationError("token and new_password required", map[string]any{"min_length": minPasswordLength})
	}

	if err := h.resets.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		de := mapSessionError(err)
		if de.HTTPStatus >= http.StatusInternalServerError {
			return apperrors.NewInternalError(err)
		}
		return de
	}
	return c.SendStatus(http.StatusNoContent)
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	err = app.Manager().RefreshSession(c.UserContext())
	return respond(c, app, http.StatusOK, sessionData(app), err)
}

// Session handles GET /auth/session.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	app, err := mustApp(c)
	if err != nil {
		return err
	}
	return respond(c, app, http.StatusOK, sessionData(app), nil)
}

func sessionData(app *frontend.App) dto.SessionResponse {
	manager := app.Manager()
	data := dto.SessionResponse{
		User:          dto.NewUserResponse(manager.User()),
		Tenant:        dto.NewTenantResponse(app.Tenant()),
		Loading:       manager.Loading(),
		TenantLoading: app.Resolver().Loading(),
	}
	if sess := manager.Session(); sess != nil {
		expires := sess.ExpiresAt
		data.ExpiresAt = &expires
	}
	return data
}
