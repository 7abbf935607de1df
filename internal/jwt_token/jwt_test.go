package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "warden/pkg/domain-errors"
)

func newService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService("test-signing-key", DefaultIssuer, DefaultAudience)
	require.NoError(t, err)
	return svc
}

func Test_GenerateToken(t *testing.T) {
	svc := newService(t)

	token, err := svc.GenerateToken("lobby-1", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "lobby-1", claims.Operator)
	assert.NotEmpty(t, claims.JTI)
}

func Test_GenerateToken_WithoutExpiry(t *testing.T) {
	svc := newService(t)

	token, err := svc.GenerateToken("survival", 0)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "survival", claims.Operator)
}

func Test_GenerateToken_RequiresOperator(t *testing.T) {
	_, err := newService(t).GenerateToken("", time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := newService(t).ValidateToken("invalid-token-string")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := newService(t)
	token, err := svc.GenerateToken("lobby-1", -time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token has expired")
}

func Test_ValidateToken_WrongKeyOrAudience(t *testing.T) {
	other, err := NewJWTService("another-key", DefaultIssuer, DefaultAudience)
	require.NoError(t, err)
	token, err := other.GenerateToken("lobby-1", time.Hour)
	require.NoError(t, err)
	_, err = newService(t).ValidateToken(token)
	assert.Error(t, err)

	foreign, err := NewJWTService("test-signing-key", DefaultIssuer, "someone-else")
	require.NoError(t, err)
	token, err = foreign.GenerateToken("lobby-1", time.Hour)
	require.NoError(t, err)
	_, err = newService(t).ValidateToken(token)
	assert.Error(t, err)
}

func Test_NewJWTService_RequiresKey(t *testing.T) {
	_, err := NewJWTService("", DefaultIssuer, DefaultAudience)
	assert.Error(t, err)
}
