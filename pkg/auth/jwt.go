package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CapabilityManageOptions is required to read or change settings.
const CapabilityManageOptions = "manage_options"

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the caller identity and granted capabilities.
type Claims struct {
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// Can reports whether the token grants capability.
func (c *Claims) Can(capability string) bool {
	return slices.Contains(c.Capabilities, capability)
}

// TokenValidator parses and verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// JWTService signs and verifies HS256 tokens.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
}

func NewJWTService(secret, issuer, audience string) *JWTService {
	return &JWTService{secret: []byte(secret), issuer: issuer, audience: audience}
}

// GenerateToken issues a token for subject. Used by tooling and tests;
// production tokens come from the host's identity provider.
func (s *JWTService) GenerateToken(subject string, capabilities []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

var _ TokenValidator = (*JWTService)(nil)
