package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fluxo-erp/gateway/internal/api/dto"
	"github.com/fluxo-erp/gateway/internal/api/http/handlers"
	"github.com/fluxo-erp/gateway/internal/notify"
	"github.com/fluxo-erp/gateway/internal/observability"
	apperrors "github.com/fluxo-erp/gateway/pkg/util/errorutil"
)

// RegisterMiddlewares attaches the request timeout, the request logger and
// the error envelope.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	// the request logger wraps the error handler so it sees the final status
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorHandlingMiddleware turns returned errors and panics into the session
// envelope. Notifications and navigation already queued by the bound app
// travel with the error.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					append(requestFields(c), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))...)
				err = apperrors.NewInternalError(nil)
			}
			if err == nil {
				return
			}

			domainErr := toDomainError(err)
			metrics.RecordError(c.Path(), c.Method(), domainErr.Code)
			switch {
			case domainErr.HTTPStatus >= 500:
				logger.Error("request failed", append(requestFields(c), zap.Error(domainErr))...)
			case domainErr.HTTPStatus == fiber.StatusTooManyRequests:
				logger.Warn("request throttled", requestFields(c)...)
			}

			c.Status(domainErr.HTTPStatus)
			err = c.JSON(errorEnvelope(c, domainErr))
		}()
		return c.Next()
	}
}

func errorEnvelope(c *fiber.Ctx, domainErr *apperrors.DomainError) dto.Envelope {
	env := dto.Envelope{
		Error: &dto.ErrorBody{
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		},
		Notifications: []notify.Notification{},
	}
	if app, ok := handlers.AppFromContext(c); ok {
		env.Notifications = app.Notifications()
		if nav, ok := app.Navigator().Take(); ok {
			env.RedirectTo = &nav.Path
		}
	}
	return env
}

func requestFields(c *fiber.Ctx) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	}
	if sid, ok := c.Locals(observability.SIDLocalKey).(string); ok && sid != "" {
		fields = append(fields, zap.String("sid", sid))
	}
	return fields
}

func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return apperrors.FromStatus(fiberErr.Code, fiberErr.Message)
	}
	return apperrors.ToDomainError(err)
}
