package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The signing key must be read when a token is issued, not at package init;
// deployments that ship the key in .env only have it in the environment
// after main has loaded it.
func TestGenerateTokenReadsSecretAtCallTime(t *testing.T) {
	t.Setenv("JWT_SECRET", "late-loaded-secret")

	tokenString, err := generateToken("user-1", "u@example.com")
	require.NoError(t, err)

	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte("late-loaded-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "user-1", claims["user_id"])
	assert.Equal(t, "u@example.com", claims["email"])
	assert.Greater(t, claims["exp"].(float64), float64(time.Now().Unix()))
}

func TestGenerateTokenFollowsSecretRotation(t *testing.T) {
	t.Setenv("JWT_SECRET", "first")
	first, err := generateToken("user-1", "u@example.com")
	require.NoError(t, err)

	t.Setenv("JWT_SECRET", "second")
	_, err = jwt.Parse(first, func(*jwt.Token) (interface{}, error) {
		return []byte("second"), nil
	})
	assert.Error(t, err, "token signed with the old key must not verify")

	second, err := generateToken("user-1", "u@example.com")
	require.NoError(t, err)
	token, err := jwt.Parse(second, func(*jwt.Token) (interface{}, error) {
		return []byte("second"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
}
