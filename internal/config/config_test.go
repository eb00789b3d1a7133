package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QMS_CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "qms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
transport:
  mode: http
auth:
  enabled: true
db:
  path: /var/lib/qms/qms.db
users:
  alice: initiator
  bob: reviewer
`), 0o644))

	t.Setenv("QMS_CONFIG_PATH", path)
	t.Setenv("QMS_SERVER_PORT", "9100")
	t.Setenv("QMS_LOG_LEVEL", "debug")
	t.Setenv("QMS_USER", "alice")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Server.Port)
	require.Equal(t, "http", cfg.Transport.Mode)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "/var/lib/qms/qms.db", cfg.DB.Path)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "alice", cfg.DefaultUser)
	require.Equal(t, map[string]string{"alice": "initiator", "bob": "reviewer"}, cfg.Users)
}

func TestLoad_DefaultPathIsOptional(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("QMS_CONFIG_PATH", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".qms"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultPath), []byte("log:\n  level: warn\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QMS_CONFIG_PATH", "/nonexistent/qms.yaml")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QMS_CONFIG_PATH", "")

	t.Run("port", func(t *testing.T) {
		t.Setenv("QMS_SERVER_PORT", "eighty")
		_, err := Load()
		require.ErrorContains(t, err, "QMS_SERVER_PORT")
	})
	t.Run("auth", func(t *testing.T) {
		t.Setenv("QMS_AUTH_ENABLED", "maybe")
		_, err := Load()
		require.ErrorContains(t, err, "QMS_AUTH_ENABLED")
	})
	t.Run("transport", func(t *testing.T) {
		t.Setenv("QMS_TRANSPORT_MODE", "carrier-pigeon")
		_, err := Load()
		require.ErrorContains(t, err, "transport mode")
	})
}
