package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pulsewire/broker/internal/logger"
)

// AccessLog emits one structured zerolog line per admin HTTP request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		log := logger.HTTP().With().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Logger()

		switch {
		case status >= 500:
			log.Error().Msg("admin request failed")
		case status >= 400:
			log.Warn().Msg("admin request rejected")
		default:
			log.Info().Msg("admin request handled")
		}
	}
}

// Recovery logs a panic as an Internal-kind error and returns 500 instead
// of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().
					Str("request_id", GetRequestID(c)).
					Interface("panic", r).
					Msg("recovered from panic in admin handler")
				c.AbortWithStatusJSON(500, gin.H{"error": "Internal", "message": "internal server error"})
			}
		}()
		c.Next()
	}
}
