package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/passpolicy/pkg/auth"
	apperrors "github.com/jwalitptl/passpolicy/pkg/errors"
	"github.com/jwalitptl/passpolicy/pkg/httputil"
)

const (
	ContextClaims    = "claims"
	HeaderHookSecret = "X-Hook-Secret"
)

type AuthMiddleware struct {
	tokens auth.TokenValidator
}

func NewAuthMiddleware(tokens auth.TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and stores its claims in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		claims, err := m.tokens.ValidateToken(token)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireCapability rejects callers whose token lacks capability.
func (m *AuthMiddleware) RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ContextClaims)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("no claims in context")))
			return
		}
		if !claims.(*auth.Claims).Can(capability) {
			httputil.RespondWithError(c, apperrors.Forbidden("Sorry, you are not allowed to do that."))
			return
		}
		c.Next()
	}
}

// HookSecret admits only callers presenting the shared hook secret.
func HookSecret(secret string) gin.HandlerFunc {
	expected := []byte(secret)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderHookSecret))
		if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
			httputil.RespondWithError(c, apperrors.Forbidden("Invalid hook secret."))
			return
		}
		c.Next()
	}
}
