package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/sellerflow/internal/actorcontext"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps a handler error to its response type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware tags every request with a request id and writes one
// http_request line once the handler chain has finished.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(actorcontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		fields := append(make([]zap.Field, 0, 12),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
		)
		fields = append(fields, resourceFields(c, route)...)

		var errorType string
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			var errorCode string
			errorType, errorCode = cfg.ErrorClassifier(last.Err)
			fields = append(fields,
				zap.String("error_type", errorType),
				zap.String("error_code", errorCode),
			)
			if cfg.Debug && status >= http.StatusInternalServerError {
				fields = append(fields, zap.String("error", last.Err.Error()))
			}
		}

		log := FromContext(c.Request.Context())
		if ce := log.Check(requestLevel(route, status, errorType), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

func requestIDFor(c *gin.Context) string {
	// header lookup is case-insensitive
	id := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(requestIDHeader, id)
	return id
}

// resourceFields names the path ids after the resource they point at, so a
// quote id logged by the service and by the access log share one key.
func resourceFields(c *gin.Context, route string) []zap.Field {
	var fields []zap.Field
	if id := c.Param("id"); id != "" {
		key := "resource_id"
		switch {
		case strings.HasPrefix(route, "/api/quotes/"):
			key = "quote_id"
		case strings.HasPrefix(route, "/api/approvals/"):
			key = "approval_request_id"
		case strings.HasPrefix(route, "/api/admin/approval-rules/"):
			key = "approval_rule_id"
		}
		fields = append(fields, zap.String(key, id))
	}
	if id := c.Param("itemId"); id != "" {
		fields = append(fields, zap.String("quote_item_id", id))
	}
	if region := c.Param("region"); region != "" {
		fields = append(fields, zap.String("region", region))
	}
	return fields
}

func requestLevel(route string, status int, errorType string) zapcore.Level {
	switch {
	case route == "/health" || route == "/metrics":
		return zapcore.DebugLevel
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case route == "/api/pricing/simulate" && errorType == "validation_error":
		// the simulator is interactive and rejects half-typed input constantly
		return zapcore.DebugLevel
	case status == http.StatusForbidden || status == http.StatusConflict:
		// denied grants and lost approval races are worth noticing
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
