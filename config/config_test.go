package config

import (
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tianxinzizhen/asyncdb/backend"
)

func memFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	prev := AppFs
	AppFs = fs
	t.Cleanup(func() { AppFs = prev })
	return fs
}

// unsetLater removes variables a .env file exported during the test.
func unsetLater(t *testing.T, keys ...string) {
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	memFs(t)
	cfg, err := Load("/nonexistent")
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Driver)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Log.MaxSize)
}

func TestLoadFileEnvAndDotenv(t *testing.T) {
	fs := memFs(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/asyncdb/asyncdb.yaml", []byte(`
driver: sqlite3
host: db.internal
port: 3307
user: app
database: shop
multi_statements: true
log:
  level: debug
  file: /var/log/asyncdb.log
`), 0o644))
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("ASYNCDB_PASSWORD=secret\nASYNCDB_USER=fromdotenv\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, ".env.local", []byte("ASYNCDB_DATABASE=local\n"), 0o644))
	unsetLater(t, "ASYNCDB_PASSWORD", "ASYNCDB_DATABASE")
	t.Setenv("ASYNCDB_USER", "fromenv")

	cfg, err := Load("/etc/asyncdb")
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "fromenv", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "local", cfg.Database)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/asyncdb.log", cfg.Log.File)

	b := cfg.Backend()
	assert.Equal(t, backend.FlagMultiStatements, b.Flags)
	assert.Equal(t, "db.internal", b.Host)
	assert.Equal(t, "secret", b.Password)
}

func TestBackendFlags(t *testing.T) {
	c := &Config{FoundRows: true, Compress: true, DSN: "file:test.db"}
	b := c.Backend()
	assert.Equal(t, backend.FlagFoundRows|backend.FlagCompress, b.Flags)
	assert.Equal(t, "file:test.db", b.DSN)
}
