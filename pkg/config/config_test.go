package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsConfigFile(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, 240*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10, cfg.Limits.SendBurst)
	assert.Equal(t, 5*time.Minute, cfg.Client.ParticipantTTL)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("EVENTCHAT_DB_DRIVER", "sqlite")
	t.Setenv("EVENTCHAT_DB_PATH", "/tmp/chat.db")
	t.Setenv("EVENTCHAT_AUTH_JWT_SECRET", "from-env")
	t.Setenv("EVENTCHAT_LIMITS_SEND_RPS", "0.5")
	t.Setenv("EVENTCHAT_CLIENT_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/chat.db", cfg.DB.Path)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 0.5, cfg.Limits.SendRPS)
	assert.Equal(t, "tok", cfg.Client.Token)
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "eventchat.db", cfg.DB.Path)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, 5.0, cfg.Limits.SendRPS)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
}
