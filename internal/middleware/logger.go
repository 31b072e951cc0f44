package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/passpolicy/pkg/logger"
)

// Logger logs one line per request. Bodies are never logged; hook
// requests carry plaintext passwords.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		reqLog := RequestLogger(c, log)
		statusCode := c.Writer.Status()
		evt := reqLog.Info()
		msg := "Request processed"
		switch {
		case statusCode >= 500:
			evt = reqLog.Error()
			msg = "Server error"
		case statusCode >= 400:
			evt = reqLog.Warn()
			msg = "Client error"
		}

		evt.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Int("status", statusCode).
			Dur("latency", time.Since(start)).
			Str("user_agent", c.Request.UserAgent()).
			Msg(msg)
	}
}
