package middleware

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/moltocasto/podcast-qa/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(action, resource, resourceID, details, ip, userAgent string) error
}

// AuditMiddleware logs every request for later review.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		details := map[string]any{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		write(writer, domain.AuditActionHTTPRequest, "api", path, details, ip, userAgent)

		return err
	}
}

// RecordAudit writes a domain action for the current request. A nil writer is a no-op.
func RecordAudit(c fiber.Ctx, writer AuditWriter, action, resource, resourceID string, details map[string]any) {
	if writer == nil {
		return
	}
	write(writer, action, resource, resourceID, details, c.IP(), c.Get("User-Agent"))
}

// write marshals details and persists the record asynchronously. All
// arguments must already be copied out of the Fiber context.
func write(writer AuditWriter, action, resource, resourceID string, details map[string]any, ip, userAgent string) {
	detailsJSON, _ := json.Marshal(details)
	resourceID = string([]byte(resourceID))
	ip = string([]byte(ip))
	userAgent = string([]byte(userAgent))

	go func() {
		if err := writer.WriteAudit(action, resource, resourceID, string(detailsJSON), ip, userAgent); err != nil {
			slog.Error("failed to write audit log", "action", action, "error", err)
		}
	}()
}
