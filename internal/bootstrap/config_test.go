package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, "dr:", cfg.KeyPrefix)
	assert.Equal(t, 5, cfg.TxMaxRetries)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.AgendaTimeout)
	assert.Zero(t, cfg.RoomMaxAge, "room sweep is off unless ROOM_MAX_AGE is set")
	assert.Equal(t, "@every 10m", cfg.RoomSweepSchedule)
	assert.False(t, cfg.BroadcastRelay)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("SQLITE_PATH", "rooms.db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("ROOM_MAX_AGE", "6h")
	t.Setenv("BROADCAST_RELAY", "true")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, StoreSQLite, cfg.StoreBackend)
	assert.Equal(t, "rooms.db", cfg.SQLitePath)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 6*time.Hour, cfg.RoomMaxAge)
	assert.True(t, cfg.BroadcastRelay)
	assert.Equal(t, "info", cfg.LogLevel, "invalid level falls back to info")
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT=9999\nREDIS_KEY_PREFIX=envfile:\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("REDIS_KEY_PREFIX")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.ServerPort)
	assert.Equal(t, "envfile:", cfg.KeyPrefix)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}},
		{"mysql without user", map[string]string{"STORE_BACKEND": "mysql"}},
		{"bad max age", map[string]string{"ROOM_MAX_AGE": "soon"}},
		{"zero max age", map[string]string{"ROOM_MAX_AGE": "0s"}},
		{"zero rate limit", map[string]string{"RATE_LIMIT_MAX": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}
