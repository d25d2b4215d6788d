package logger

import (
	"strings"
	"time"

	obsctx "github.com/1rokoko/stripe-deposit-sub000/internal/observability/context"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const HeaderRequestID = "X-Request-Id"

// MiddlewareConfig tunes request logging.
type MiddlewareConfig struct {
	// SkipPaths are logged at debug level only.
	SkipPaths []string
}

// GinMiddleware assigns a request id, stores it on the request context and logs a summary.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		skip[path] = struct{}{}
	}

	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(obsctx.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		log := FromContext(c.Request.Context())
		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Any("request", RequestFields(c.Request)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			log.Debug("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}
