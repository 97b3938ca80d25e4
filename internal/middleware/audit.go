package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Audit logs every successful call of a mutating route with the operator
// that made it.
func Audit(logger *zap.Logger, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}
		logger.Info("audit",
			zap.String("action", action),
			zap.String("operator", c.GetString(ContextOperatorKey)),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Time("at", start),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.ClientIP()))
	}
}
