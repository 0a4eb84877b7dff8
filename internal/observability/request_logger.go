package observability

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SIDLocalKey is the fiber local holding the logged form of the session id.
const SIDLocalKey = "sid"

// ShortSID returns a short hash of a browser session id, safe to log.
func ShortSID(sid string) string {
	if sid == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])[:8]
}

// RequestLogger logs one line per request and feeds the request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		route := c.Route().Path
		status := c.Response().StatusCode()
		metrics.RecordRequest(route, c.Method(), status, latency)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency),
		}
		if sid, ok := c.Locals(SIDLocalKey).(string); ok && sid != "" {
			fields = append(fields, zap.String("sid", sid))
		}
		logger.Info("request", fields...)
		return err
	}
}
