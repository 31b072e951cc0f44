package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/passpolicy/pkg/errors"
)

// ErrorBody is the error shape returned to API clients.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondWithError sends an error response
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	body := ErrorBody{Code: "internal_error", Message: "Internal server error"}

	if appErr, ok := errors.As(err); ok {
		status = appErr.StatusCode()
		body.Code = appErr.Reason
		if status != http.StatusInternalServerError {
			body.Message = appErr.Message
		}
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}
