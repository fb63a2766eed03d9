package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
jwt:
  secret: file-secret
storage:
  driver: local
`)
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 2*time.Hour, cfg.JWT.AccessTokenExpire)
	assert.Equal(t, "cmg:changes", cfg.Redis.ChangeChannel)
	assert.Equal(t, "127.0.0.1:6379", cfg.Redis.Addr())
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
	assert.False(t, cfg.Google.Enabled())
}

func TestLoadFile_EnvSecret(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8081\n")
	t.Setenv("JWT_SECRET", "env-secret")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: x\nstorage:\n  driver: ftp\n")
	_, err := LoadFile(path)
	assert.Error(t, err)

	path = writeConfig(t, "jwt:\n  secret: x\nstorage:\n  driver: s3\n")
	_, err = LoadFile(path)
	assert.Error(t, err, "bucket required")

	path = writeConfig(t, "storage:\n  driver: local\n")
	t.Setenv("JWT_SECRET", "")
	_, err = LoadFile(path)
	assert.Error(t, err, "secret required")
}

func TestLoadFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
