package settings

type Config struct {
	Logger     Logger     `mapstructure:"logger"`
	Redis      Redis      `mapstructure:"redis"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Database   Database   `mapstructure:"database"`
	Sketch     Sketch     `mapstructure:"sketch"`
	LocalCache LocalCache `mapstructure:"local_cache"`
	Thumb      Thumb      `mapstructure:"thumb"`
	Jobs       Jobs       `mapstructure:"jobs"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

// Database is the configuration for the durable SQL store
type Database struct {
	Driver          string `mapstructure:"driver"` // mysql, postgres or sqlite3
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"` // file path or DSN for sqlite3
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Seconds
}

// Logger is the configuration for the logger
type Logger struct {
	LogLevel    string `mapstructure:"log_level"`
	FileLogName string `mapstructure:"file_log_name"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxSize     int    `mapstructure:"max_size"`
	Compress    bool   `mapstructure:"compress"`
}

// Redis is the configuration for Redis
type Redis struct {
	Addrs           []string `mapstructure:"addrs"`
	MasterName      string   `mapstructure:"master_name"`
	Password        string   `mapstructure:"password"`
	Database        int      `mapstructure:"database"`
	PoolSize        int      `mapstructure:"pool_size"`
	MinIdleConns    int      `mapstructure:"min_idle_conns"`
	PoolTimeout     int      `mapstructure:"pool_timeout"`  // Seconds
	DialTimeout     int      `mapstructure:"dial_timeout"`  // Seconds
	ReadTimeout     int      `mapstructure:"read_timeout"`  // Seconds
	WriteTimeout    int      `mapstructure:"write_timeout"` // Seconds
	MaxRetries      int      `mapstructure:"max_retries"`
	MaxRetryBackoff int      `mapstructure:"max_retry_backoff"` // Milliseconds
	MinRetryBackoff int      `mapstructure:"min_retry_backoff"` // Milliseconds
}

// Kafka is the configuration for Kafka
type Kafka struct {
	Brokers               []string `mapstructure:"brokers"`
	ClientID              string   `mapstructure:"client_id"`
	Version               string   `mapstructure:"version"`
	Topic                 string   `mapstructure:"topic"`
	DeadLetterTopic       string   `mapstructure:"dead_letter_topic"`
	ConsumerGroup         string   `mapstructure:"consumer_group"`
	FlushFrequency        int      `mapstructure:"flush_frequency"`         // Milliseconds
	FlushBytes            int      `mapstructure:"flush_bytes"`             // Bytes
	MaxMessageBytes       int      `mapstructure:"max_message_bytes"`       // Bytes
	Timeout               int      `mapstructure:"timeout"`                 // Seconds
	MaxRetries            int      `mapstructure:"max_retries"`             // Number of retries
	RetryBackoff          int      `mapstructure:"retry_backoff"`           // Milliseconds
	MaxProcessingTime     int      `mapstructure:"max_processing_time"`     // Milliseconds
	ConsumerBatchSize     int      `mapstructure:"consumer_batch_size"`     // Number of messages
	ConsumerBatchInterval int      `mapstructure:"consumer_batch_interval"` // Milliseconds
}

// Sketch configures the hot-key detector.
type Sketch struct {
	TopK     int     `mapstructure:"top_k"`
	Width    int     `mapstructure:"width"`
	Depth    int     `mapstructure:"depth"`
	Decay    float64 `mapstructure:"decay"`
	MinCount uint32  `mapstructure:"min_count"`
}

// LocalCache configures the in-process tier.
type LocalCache struct {
	Engine     string `mapstructure:"engine"` // lru or freecache
	MaxEntries int    `mapstructure:"max_entries"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
	MaxBytes   int    `mapstructure:"max_bytes"` // freecache only
	StripeSize int    `mapstructure:"stripe_size"`
}

// Thumb configures the like engine.
type Thumb struct {
	Mode                 string `mapstructure:"mode"` // batch or broker
	RequestTimeoutMs     int    `mapstructure:"request_timeout_ms"`
	BatchIntervalSeconds int    `mapstructure:"batch_interval_seconds"`
	MaxCatchUp           int    `mapstructure:"max_catch_up"`
	ReconcileConcurrency int    `mapstructure:"reconcile_concurrency"`
}

// Jobs holds cron specs. The seconds field is enabled.
type Jobs struct {
	FadeInterval string `mapstructure:"fade_interval"`
	BatchSync    string `mapstructure:"batch_sync"`
	Reconcile    string `mapstructure:"reconcile"`
}

type Metrics struct {
	Addr string `mapstructure:"addr"`
}
