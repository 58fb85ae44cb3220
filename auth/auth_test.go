package auth_test

import (
	"testing"
	"time"

	"chatcore/apperrors"
	"chatcore/auth"
	"chatcore/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	provider := auth.NewJWT("test-secret")

	token, err := provider.GenerateToken("alice", time.Hour)
	require.NoError(t, err)

	userID, err := provider.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestJWTRejections(t *testing.T) {
	provider := auth.NewJWT("test-secret")

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"truncated": "eyJhbGciOiJIUzI1NiJ9",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := provider.Authenticate(token)
			assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
		})
	}
}

func TestJWTWrongSecret(t *testing.T) {
	token, err := auth.NewJWT("right-secret").GenerateToken("alice", time.Hour)
	require.NoError(t, err)

	_, err = auth.NewJWT("wrong-secret").Authenticate(token)
	assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
}

func TestJWTExpired(t *testing.T) {
	provider := auth.NewJWT("test-secret")

	token, err := provider.GenerateToken("alice", -time.Minute)
	require.NoError(t, err)

	_, err = provider.Authenticate(token)
	assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
}

func TestInsecureProvider(t *testing.T) {
	provider := auth.InsecureProvider{}

	userID, err := provider.Authenticate("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = provider.Authenticate("")
	assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
}

func TestFromConfig(t *testing.T) {
	p, err := auth.FromConfig(config.AuthConfig{Mode: "jwt", JWTSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &auth.JWTProvider{}, p)

	p, err = auth.FromConfig(config.AuthConfig{Mode: "insecure"})
	require.NoError(t, err)
	assert.IsType(t, auth.InsecureProvider{}, p)

	_, err = auth.FromConfig(config.AuthConfig{Mode: "oauth"})
	assert.Error(t, err)
}
