package audit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const writeBudget = 2 * time.Second

// Writer is what the middleware needs from a Client.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// WriteMiddleware records every mutating request against the opportunity
// routes once the handler has finished. Reads are never audited.
func WriteMiddleware(w Writer, logger *zap.Logger) gin.HandlerFunc {
	if w == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		method := strings.ToUpper(c.Request.Method)
		if !audited(path) {
			return
		}
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			return
		}

		status := c.Writer.Status()
		details := map[string]any{
			"method":   method,
			"path":     path,
			"status":   status,
			"duration": time.Since(start).String(),
		}
		if id := c.Param("id"); id != "" {
			details["opportunity_id"] = id
		}

		// The request context may already be done once the response is written.
		ctx, cancel := context.WithTimeout(context.Background(), writeBudget)
		defer cancel()
		err := w.Write(ctx, Entry{
			Action:  "opportunity_http_write",
			Level:   levelFromStatus(status),
			Details: details,
		})
		if err != nil {
			logger.Debug("audit write failed", zap.Error(err))
		}
	}
}

func audited(path string) bool {
	return strings.HasPrefix(path, "/opportunities") || strings.HasPrefix(path, "/api/")
}

func levelFromStatus(status int) string {
	if status >= 500 {
		return "error"
	}
	if status >= 400 {
		return "warn"
	}
	return "info"
}
