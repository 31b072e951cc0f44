package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// ErrorLogger logs errors attached to the context by handlers. The
// response itself has already been written.
func ErrorLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		reqLog := RequestLogger(c, log)
		for _, e := range c.Errors {
			reqLog.Error().
				Err(e.Err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("Request error")
		}
	}
}
