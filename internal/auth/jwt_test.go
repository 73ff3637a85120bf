package auth

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	secret = []byte("test-secret")
	now    = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
)

func TestGenerateAndVerify(t *testing.T) {
	token, err := GenerateToken("u1", secret, time.Hour, now)
	require.NoError(t, err)

	owner, err := OwnerFromToken(token, secret, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)
}

func TestOwnerFromToken_Expired(t *testing.T) {
	token, err := GenerateToken("u1", secret, time.Minute, now)
	require.NoError(t, err)

	_, err = OwnerFromToken(token, secret, now.Add(2*time.Minute))
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestOwnerFromToken_WrongSecret(t *testing.T) {
	token, err := GenerateToken("u1", secret, time.Hour, now)
	require.NoError(t, err)

	_, err = OwnerFromToken(token, []byte("other"), now)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestOwnerFromToken_Garbage(t *testing.T) {
	_, err := OwnerFromToken("not-a-jwt", secret, now)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestPeekClaims(t *testing.T) {
	token, err := GenerateToken("u7", secret, time.Hour, now)
	require.NoError(t, err)

	claims, err := PeekClaims(token)
	require.NoError(t, err)
	assert.Equal(t, "u7", claims.OwnerID)
	assert.Equal(t, "u7", claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(now.Add(time.Hour)))

	_, err = PeekClaims("nope")
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
