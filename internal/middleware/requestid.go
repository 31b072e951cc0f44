package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/passpolicy/pkg/logger"
)

const (
	HeaderXRequestID = "X-Request-ID"
	ContextRequestID = "request_id"

	maxRequestIDLen = 128
)

// RequestID tags each request with an ID, echoed back to the caller, and
// puts a logger carrying that ID on the request context.
func RequestID(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderXRequestID)
		if !validRequestID(rid) {
			rid = uuid.NewString()
		}

		c.Set(ContextRequestID, rid)
		c.Header(HeaderXRequestID, rid)

		reqLog := log.ZL.With().Str("request_id", rid).Logger()
		c.Request = c.Request.WithContext(reqLog.WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequestLogger returns the logger RequestID attached, or fallback when
// the middleware did not run.
func RequestLogger(c *gin.Context, fallback *logger.Logger) *zerolog.Logger {
	if _, ok := c.Get(ContextRequestID); ok {
		return zerolog.Ctx(c.Request.Context())
	}
	return &fallback.ZL
}

// Caller-supplied IDs end up in log lines; only short printable ASCII
// is accepted.
func validRequestID(rid string) bool {
	if rid == "" || len(rid) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(rid); i++ {
		if rid[i] < 0x21 || rid[i] > 0x7e {
			return false
		}
	}
	return true
}
