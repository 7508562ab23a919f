package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TOKEN_ACCESS_SECRET", "access-secret-for-tests")
	t.Setenv("TOKEN_REFRESH_SECRET", "refresh-secret-for-tests")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Token.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.Token.RefreshTokenTTL)
	assert.Equal(t, "refresh_token", cfg.Token.CookieName)
	assert.Equal(t, "5 3 * * *", cfg.Token.PurgeSchedule)
	assert.Equal(t, "rt", cfg.Redis.KeyPrefix)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("POSTGRES_USER", "cafe")
	t.Setenv("POSTGRES_DB", "auth")
	t.Setenv("TOKEN_ACCESS_TTL", "5m")
	t.Setenv("REDIS_ADDR", "redis:6379")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, StoreBackendRedis, cfg.StoreBackend)
	assert.Equal(t, 5*time.Minute, cfg.Token.AccessTokenTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN(), "user=cafe")
	assert.Contains(t, cfg.Database.DSN(), "dbname=auth")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreBackend: StoreBackendPostgres,
			Token: TokenConfig{
				AccessTokenSecret:  "a",
				RefreshTokenSecret: "b",
				AccessTokenTTL:     time.Minute,
				RefreshTokenTTL:    time.Hour,
			},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Token.RefreshTokenSecret = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingTokenSecret)

	cfg = valid()
	cfg.Token.RefreshTokenSecret = "a"
	assert.ErrorIs(t, cfg.Validate(), ErrSharedTokenSecret)

	cfg = valid()
	cfg.Token.AccessTokenTTL = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTokenTTL)

	cfg = valid()
	cfg.StoreBackend = "mongo"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownStore)
}
