package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	claims := SessionClaims{
		UserID:   7,
		Username: "jperez",
		FullName: "Juan Pérez",
		RoleID:   2,
		RoleName: "operador",
	}

	token, err := GenerateSessionToken("secret", claims, time.Minute)
	require.NoError(t, err)

	parsed, err := ParseSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, 7, parsed.UserID)
	assert.Equal(t, "jperez", parsed.Username)
	assert.Equal(t, "operador", parsed.RoleName)
	assert.Empty(t, parsed.ChangeKind)
}

func TestSessionTokenChangeKind(t *testing.T) {
	token, err := GenerateSessionToken("secret", SessionClaims{
		UserID:     3,
		Username:   "mlopez",
		ChangeKind: ChangeKindForced,
	}, time.Minute)
	require.NoError(t, err)

	parsed, err := ParseSessionToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, ChangeKindForced, parsed.ChangeKind)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := GenerateSessionToken("secret", SessionClaims{UserID: 1}, time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "other")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestSessionTokenExpired(t *testing.T) {
	token, err := GenerateSessionToken("secret", SessionClaims{UserID: 1}, -time.Minute)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := ParseSessionToken("not-a-token", "secret")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
