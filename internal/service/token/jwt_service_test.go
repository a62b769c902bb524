package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	service, err := NewJWTService("test-secret-key", time.Hour)
	require.NoError(t, err)

	tokenString, err := service.Generate("user-42")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	userID, err := service.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", time.Hour)
	assert.Error(t, err)
}

func TestJWTService_RejectsGarbageToken(t *testing.T) {
	service, err := NewJWTService("test-secret-key", time.Hour)
	require.NoError(t, err)

	_, err = service.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	service, err := NewJWTService("test-secret-key", time.Hour)
	require.NoError(t, err)
	service.ttl = -time.Minute

	tokenString, err := service.Generate("user-42")
	require.NoError(t, err)

	_, err = service.Validate(tokenString)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTService_RejectsTokenSignedWithOtherSecret(t *testing.T) {
	issuer, err := NewJWTService("secret-a", time.Hour)
	require.NoError(t, err)
	verifier, err := NewJWTService("secret-b", time.Hour)
	require.NoError(t, err)

	tokenString, err := issuer.Generate("user-42")
	require.NoError(t, err)

	_, err = verifier.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
