package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fluxo-erp/gateway/internal/api/dto"
	"github.com/fluxo-erp/gateway/internal/frontend"
	"github.com/fluxo-erp/gateway/internal/guard"
	"github.com/fluxo-erp/gateway/internal/session"
	"github.com/fluxo-erp/gateway/internal/sessionstore"
	"github.com/fluxo-erp/gateway/internal/tenant"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

// respond writes the session envelope, draining the app's notifications and
// pending navigation.
func respond(c *fiber.Ctx, app *frontend.App, status int, data any, err error) error {
	env := dto.Envelope{
		Data:          data,
		Notifications: app.Notifications(),
	}
	if nav, ok := app.Navigator().Take(); ok {
		env.RedirectTo = &nav.Path
	}
	if err != nil {
		de := mapSessionError(err)
		status = de.HTTPStatus
		env.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message}
	}
	return c.Status(status).JSON(env)
}

// mapSessionError translates session outcomes into the HTTP error taxonomy.
func mapSessionError(err error) *apperrors.DomainError {
	var domainErr *apperrors.DomainError
	switch {
	case errors.As(err, &domainErr):
		return domainErr
	case errors.Is(err, session.ErrEmptyCredentials):
		return apperrors.NewDomainError("VALIDATION_FAILED", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, sessionstore.ErrInvalidCredentials):
		return apperrors.NewDomainError("INVALID_CREDENTIALS", err.Error(), http.StatusUnauthorized, nil)
	case errors.Is(err, sessionstore.ErrEmailAlreadyRegistered):
		return apperrors.NewDomainError("EMAIL_TAKEN", err.Error(), http.StatusConflict, nil)
	case errors.Is(err, sessionstore.ErrResetTokenInvalid):
		return apperrors.NewDomainError("RESET_TOKEN_INVALID", err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, session.ErrUnauthenticated),
		errors.Is(err, sessionstore.ErrNoSession),
		errors.Is(err, sessionstore.ErrSessionExpired),
		errors.Is(err, session.ErrSessionEnded),
		errors.Is(err, tenant.ErrTenantInconsistent):
		return apperrors.NewDomainError("UNAUTHENTICATED", err.Error(), http.StatusUnauthorized, nil)
	case errors.Is(err, session.ErrRoleChangeForbidden):
		return apperrors.NewDomainError("FORBIDDEN", err.Error(), http.StatusForbidden, nil)
	case errors.Is(err, session.ErrProfileUnavailable):
		return apperrors.NewDomainError("PROFILE_UNAVAILABLE", err.Error(), http.StatusServiceUnavailable, nil)
	default:
		return apperrors.NewDomainError("SESSION_STORE_UNAVAILABLE", "session store request failed", http.StatusServiceUnavailable, nil)
	}
}

// RespondDecision writes a guard outcome that did not render.
func RespondDecision(c *fiber.Ctx, app *frontend.App, decision guard.Decision) error {
	// guard redirects replace any navigation queued while checking
	app.Navigator().Take()

	body := dto.GuardResponse{
		Status:        decision.Action.String(),
		Notifications: app.Notifications(),
	}
	switch decision.Action {
	case guard.Loading:
		return c.Status(http.StatusAccepted).JSON(body)
	case guard.RedirectLogin, guard.Unauthorized:
		location := decision.Location
		body.RedirectTo = &location
		c.Location(location)
		return c.Status(http.StatusSeeOther).JSON(body)
	default:
		return apperrors.NewInternalError(nil)
	}
}
