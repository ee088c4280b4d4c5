package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validProdConfig() Config {
	return Config{
		Env:           "production",
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		AccessTTL:     30 * 24 * time.Hour,
		RefreshTTL:    60 * 24 * time.Hour,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid production config", func(t *testing.T) {
		require.NoError(t, validProdConfig().Validate())
	})

	t.Run("production requires secrets", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.AccessSecret = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("secrets must differ", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.RefreshSecret = cfg.AccessSecret
		require.Error(t, cfg.Validate())
	})

	t.Run("bypasses rejected outside development", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.SkipSignature = true
		require.Error(t, cfg.Validate())

		cfg = validProdConfig()
		cfg.SkipAuthn = true
		require.Error(t, cfg.Validate())
	})

	t.Run("bypasses allowed in development", func(t *testing.T) {
		cfg := Config{
			Env:           "development",
			AccessTTL:     time.Hour,
			RefreshTTL:    2 * time.Hour,
			SkipSignature: true,
			SkipAuthn:     true,
		}
		require.NoError(t, cfg.Validate())
	})

	t.Run("refresh ttl must exceed access ttl", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.RefreshTTL = cfg.AccessTTL
		require.Error(t, cfg.Validate())
	})

	t.Run("bootstrap key required with bootstrap id", func(t *testing.T) {
		cfg := validProdConfig()
		cfg.ExtensionID = "ext-1"
		require.Error(t, cfg.Validate())

		cfg.ExtensionPublicKey = "-----BEGIN PUBLIC KEY-----\n..."
		require.NoError(t, cfg.Validate())
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "development", cfg.Env)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	require.Greater(t, cfg.RefreshTTL, cfg.AccessTTL)
}

func TestLoadConfigParsesEnvironment(t *testing.T) {
	t.Setenv("ENV", "staging")
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "720h")
	t.Setenv("REFRESH_TOKEN_TTL", "60")
	t.Setenv("SKIP_SIGNATURE_VERIFICATION", "true")
	t.Setenv("EXTENSION_PUBLIC_KEY", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)

	cfg := LoadConfig()

	require.Equal(t, "staging", cfg.Env)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 720*time.Hour, cfg.AccessTTL)
	// Bare integers are read as days.
	require.Equal(t, 60*24*time.Hour, cfg.RefreshTTL)
	require.True(t, cfg.SkipSignature)
	// Escaped newlines in the env var become real ones.
	require.Contains(t, cfg.ExtensionPublicKey, "-----BEGIN PUBLIC KEY-----\nabc\n")
}
