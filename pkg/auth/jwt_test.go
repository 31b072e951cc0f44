package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenRoundTripCarriesCapabilities(t *testing.T) {
	svc := NewJWTService(testSecret, "passpolicy", "admin")

	token, err := svc.GenerateToken("42", []string{CapabilityManageOptions}, time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.True(t, claims.Can(CapabilityManageOptions))
	assert.False(t, claims.Can("edit_users"))
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewJWTService("another-secret-another-secret", "", "").GenerateToken("1", nil, time.Minute)
	require.NoError(t, err)

	_, err = NewJWTService(testSecret, "", "").ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := NewJWTService(testSecret, "", "")
	token, err := svc.GenerateToken("1", nil, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateChecksIssuer(t *testing.T) {
	token, err := NewJWTService(testSecret, "someone-else", "").GenerateToken("1", nil, time.Minute)
	require.NoError(t, err)

	_, err = NewJWTService(testSecret, "passpolicy", "").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := NewJWTService(testSecret, "", "").ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
