package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/loom/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, config.StoreMemory, cfg.Store.Kind)
	assert.Equal(t, "loom:", cfg.Store.Redis.Prefix)
	assert.Equal(t, 30*time.Second, cfg.Store.Redis.LockTTL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
library: ./operators
store:
  kind: redis
  redis:
    addr: redis:6379
    ttl: 1h
server:
  addr: ":9090"
`), 0644))

	t.Setenv("LOOM_STORE_REDIS_DB", "3")
	t.Setenv("LOOM_SERVER_CORS_ORIGIN", "https://editor.example")

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "./operators", cfg.Library)
	assert.Equal(t, config.StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, 3, cfg.Store.Redis.DB)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://editor.example", cfg.Server.CORSOrigin)
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "loom.yaml"), []byte("store:\n  kind: file\n  dir: docs\n"), 0644))
	t.Chdir(dir)

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, config.StoreFile, cfg.Store.Kind)
	assert.Equal(t, "docs", cfg.Store.Dir)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown store", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("LOOM_STORE_KIND", "postgres")
		_, err := config.Load(viper.New(), "")
		assert.ErrorContains(t, err, "postgres")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{"memory", config.Config{Store: config.StoreConfig{Kind: config.StoreMemory}}, false},
		{"file without dir", config.Config{Store: config.StoreConfig{Kind: config.StoreFile}}, true},
		{"negative ttl", config.Config{Store: config.StoreConfig{Kind: config.StoreRedis, Redis: config.RedisConfig{TTL: -time.Second}}}, true},
		{"fallback without key", config.Config{Store: config.StoreConfig{Kind: config.StoreMemory, Encryption: config.EncryptionConfig{FallbackKeys: []string{"a2V5"}}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncryptionConfig_Keys(t *testing.T) {
	active, fallbacks, err := config.EncryptionConfig{
		Key:          "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=",
		FallbackKeys: []string{"a2V5"},
	}.Keys()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef0123456789abcdef"), active)
	assert.Equal(t, [][]byte{[]byte("key")}, fallbacks)

	_, _, err = config.EncryptionConfig{Key: "not base64!"}.Keys()
	assert.ErrorContains(t, err, "store.encryption.key")
}

func TestLoad_StoreMiddlewareFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOOM_STORE_ENCRYPTION_KEY", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=", cfg.Store.Encryption.Key)
	assert.Empty(t, cfg.Store.Redact)
}
