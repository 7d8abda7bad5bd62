package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("defaults with required secrets", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
		t.Setenv("ADMIN_API_TOKEN", "operator")
		t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
		assert.Equal(t, 3, cfg.OTP.MaxAttempts)
		assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
		assert.True(t, cfg.Kafka.Enabled())
		assert.False(t, cfg.SMTP.Enabled())
		assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
		assert.Equal(t, 5, cfg.RateLimit.OTPSendPerEmail)
	})

	t.Run("missing master key is fatal", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "")
		t.Setenv("ADMIN_API_TOKEN", "operator")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CREDIFY_MASTER_KEY")
	})

	t.Run("admin token optional in demo mode", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "x")
		t.Setenv("ADMIN_API_TOKEN", "")
		t.Setenv("CREDIFY_DEMO_MODE", "true")

		_, err := FromEnv()
		require.NoError(t, err)
	})

	t.Run("rejects non-postgres database url", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "x")
		t.Setenv("ADMIN_API_TOKEN", "operator")
		t.Setenv("DATABASE_URL", "mysql://localhost/credify")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("bad duration falls back", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "x")
		t.Setenv("ADMIN_API_TOKEN", "operator")
		t.Setenv("OTP_TTL", "soon")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, 5*time.Minute, cfg.OTP.TTL)
	})

	t.Run("rate limits must be positive", func(t *testing.T) {
		t.Setenv("CREDIFY_MASTER_KEY", "x")
		t.Setenv("ADMIN_API_TOKEN", "operator")
		t.Setenv("RATE_LIMIT_OTP_SEND_PER_EMAIL", "0")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limits")

		t.Setenv("RATE_LIMIT_DISABLED", "true")
		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.True(t, cfg.RateLimit.Disabled)
	})
}
