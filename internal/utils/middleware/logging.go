package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uniedit/paygate/internal/shared/logger"
	"go.uber.org/zap"
)

// Logging returns a middleware that logs HTTP requests.
// It also attaches a request scoped logger to the request context.
func Logging(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		reqLog := log
		if requestID := GetRequestID(c); requestID != "" {
			reqLog = log.With(zap.String("request_id", requestID))
		}
		c.Request = c.Request.WithContext(logger.ContextWithLogger(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if ua := c.Request.UserAgent(); ua != "" {
			fields = append(fields, zap.String("user_agent", ua))
		}
		if userID := GetUserID(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		msg := "HTTP Request"
		switch {
		case status >= 500:
			reqLog.Error(msg, fields...)
		case status >= 400:
			reqLog.Warn(msg, fields...)
		default:
			reqLog.Info(msg, fields...)
		}
	}
}
