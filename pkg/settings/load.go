package settings

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "THUMB"

const (
	ModeBatch  = "batch"
	ModeBroker = "broker"

	EngineLRU       = "lru"
	EngineFreeCache = "freecache"
)

var defaults = map[string]any{
	"logger.log_level":     "info",
	"logger.max_backups":   5,
	"logger.max_age":       30,
	"logger.max_size":      100,
	"logger.compress":      true,
	"logger.file_log_name": "",

	"redis.addrs":    []string{"127.0.0.1:6379"},
	"redis.database": 0,

	"kafka.brokers":                 []string{"127.0.0.1:9092"},
	"kafka.client_id":               "thumbd",
	"kafka.version":                 "",
	"kafka.topic":                   "thumb-topic",
	"kafka.dead_letter_topic":       "thumb-dlq-topic",
	"kafka.consumer_group":          "thumb-subscription",
	"kafka.flush_frequency":         100,
	"kafka.max_retries":             6,
	"kafka.retry_backoff":           500,
	"kafka.timeout":                 10,
	"kafka.consumer_batch_size":     1000,
	"kafka.consumer_batch_interval": 1000,

	"database.driver":            "mysql",
	"database.host":              "127.0.0.1",
	"database.port":              3306,
	"database.username":          "root",
	"database.password":          "",
	"database.database":          "thumb",
	"database.max_open_conns":    20,
	"database.max_idle_conns":    10,
	"database.conn_max_lifetime": 300,

	"sketch.top_k":     100,
	"sketch.width":     100000,
	"sketch.depth":     5,
	"sketch.decay":     0.92,
	"sketch.min_count": 10,

	"local_cache.engine":      EngineLRU,
	"local_cache.max_entries": 1000,
	"local_cache.ttl_seconds": 300,
	"local_cache.max_bytes":   32 << 20,
	"local_cache.stripe_size": 64,

	"thumb.mode":                   ModeBatch,
	"thumb.request_timeout_ms":     500,
	"thumb.batch_interval_seconds": 10,
	"thumb.max_catch_up":           30,
	"thumb.reconcile_concurrency":  8,

	"jobs.fade_interval": "@every 20s",
	"jobs.batch_sync":    "@every 10s",
	"jobs.reconcile":     "0 0 2 * * *",

	"metrics.addr": ":9100",
}

// Load reads the YAML file at path (optional when empty or missing), a .env file if
// present, and THUMB_ prefixed environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "read config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Thumb.Mode {
	case ModeBatch, ModeBroker:
	default:
		return errors.Errorf("thumb.mode must be %q or %q, got %q", ModeBatch, ModeBroker, c.Thumb.Mode)
	}
	switch c.LocalCache.Engine {
	case EngineLRU, EngineFreeCache:
	default:
		return errors.Errorf("local_cache.engine must be %q or %q, got %q", EngineLRU, EngineFreeCache, c.LocalCache.Engine)
	}
	if c.Thumb.BatchIntervalSeconds <= 0 {
		return errors.New("thumb.batch_interval_seconds must be positive")
	}
	if len(c.Redis.Addrs) == 0 {
		return errors.New("redis.addrs is empty")
	}
	if c.Thumb.Mode == ModeBroker && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is empty")
	}
	return nil
}
