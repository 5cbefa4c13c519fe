package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ModeBatch, cfg.Thumb.Mode)
	assert.Equal(t, 500, cfg.Thumb.RequestTimeoutMs)
	assert.Equal(t, 10, cfg.Thumb.BatchIntervalSeconds)
	assert.Equal(t, 100, cfg.Sketch.TopK)
	assert.Equal(t, 100000, cfg.Sketch.Width)
	assert.Equal(t, 5, cfg.Sketch.Depth)
	assert.InDelta(t, 0.92, cfg.Sketch.Decay, 1e-9)
	assert.Equal(t, uint32(10), cfg.Sketch.MinCount)
	assert.Equal(t, EngineLRU, cfg.LocalCache.Engine)
	assert.Equal(t, 1000, cfg.LocalCache.MaxEntries)
	assert.Equal(t, 300, cfg.LocalCache.TTLSeconds)
	assert.Equal(t, "thumb-topic", cfg.Kafka.Topic)
	assert.Equal(t, "thumb-dlq-topic", cfg.Kafka.DeadLetterTopic)
	assert.Equal(t, "thumb-subscription", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, 6, cfg.Kafka.MaxRetries)
	assert.Equal(t, 500, cfg.Kafka.RetryBackoff)
	assert.Equal(t, "0 0 2 * * *", cfg.Jobs.Reconcile)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
thumb:
  mode: broker
  max_catch_up: 5
redis:
  addrs: ["redis-a:6379", "redis-b:6379"]
local_cache:
  engine: freecache
`)
	t.Setenv("THUMB_THUMB_MAX_CATCH_UP", "7")
	t.Setenv("THUMB_DATABASE_DRIVER", "postgres")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeBroker, cfg.Thumb.Mode)
	assert.Equal(t, 7, cfg.Thumb.MaxCatchUp)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, EngineFreeCache, cfg.LocalCache.Engine)
	assert.Equal(t, "postgres", cfg.Database.Driver)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown_mode", "thumb:\n  mode: eventual\n"},
		{"unknown_engine", "local_cache:\n  engine: ristretto\n"},
		{"zero_interval", "thumb:\n  batch_interval_seconds: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "thumb: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ModeBatch, cfg.Thumb.Mode)
}
