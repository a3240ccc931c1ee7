package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// zapLogger logs each request's method, path, status and latency.
func zapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
		)
		requestDuration.WithLabelValues(c.FullPath(), strconv.Itoa(c.Writer.Status())).Observe(latency.Seconds())
	}
}

// zapRecovery converts a panic into a 500 response and a logged stack trace
// instead of crashing the process, so other requests keep being served
// after one handler blows up.
func zapRecovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("error", r))
				c.AbortWithStatusJSON(500, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// bearerAuth rejects requests missing authToken when one is configured. An
// empty authToken disables the check entirely.
func bearerAuth(authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token != authToken {
			c.AbortWithStatusJSON(401, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Next()
	}
}
