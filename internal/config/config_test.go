package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "roster", cfg.Database.Name)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.LoginAuditRetention)
	assert.Equal(t, time.Hour, cfg.Auth.PruneInterval)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenExpiry)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "a-sufficiently-long-test-secret")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsShortJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresLongerSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "just-over-sixteen-ch")
	t.Setenv("DB_PASSWORD", "postgres")
	t.Setenv("ENV", "production")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidMaxLoginAttempts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_LOGIN_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_LOGIN_ATTEMPTS", "10")
	t.Setenv("LOGIN_AUDIT_RETENTION", "720h")
	t.Setenv("DB_NAME", "roster_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Auth.MaxLoginAttempts)
	assert.Equal(t, 720*time.Hour, cfg.Auth.LoginAuditRetention)
	assert.Equal(t, "roster_test", cfg.Database.Name)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "roster",
		Password: "secret",
		Name:     "roster",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=roster password=secret dbname=roster sslmode=require",
		cfg.DSN())
}
