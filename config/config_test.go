package config_test

import (
	"testing"
	"time"

	"chatcore/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "insecure")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.ServerAddress())
	assert.Equal(t, 256, cfg.Delivery.SessionQueueSize)
	assert.Equal(t, 30*time.Second, cfg.Delivery.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Delivery.PongTimeout)
	assert.Empty(t, cfg.Database.ConnectionString)
	assert.Empty(t, cfg.Redis.Address)
	assert.Empty(t, cfg.Kafka.Address)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SESSION_QUEUE_SIZE", "64")
	t.Setenv("WS_PING_INTERVAL", "10s")
	t.Setenv("WS_PONG_TIMEOUT", "25s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 64, cfg.Delivery.SessionQueueSize)
	assert.Equal(t, 10*time.Second, cfg.Delivery.PingInterval)
	assert.Equal(t, 25*time.Second, cfg.Delivery.PongTimeout)
}

func TestValidateJWTNeedsSecret(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "AUTH_JWT_SECRET")
}

func TestValidateRejectsUnknownAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "oauth")

	_, err := config.Load()
	assert.ErrorContains(t, err, "unknown auth mode")
}

func TestValidatePongMustExceedPing(t *testing.T) {
	t.Setenv("AUTH_MODE", "insecure")
	t.Setenv("WS_PING_INTERVAL", "30s")
	t.Setenv("WS_PONG_TIMEOUT", "30s")

	_, err := config.Load()
	assert.ErrorContains(t, err, "pong timeout")
}
