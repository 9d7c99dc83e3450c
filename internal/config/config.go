package config

import "time"

// Config is the root configuration for a bookfeed instance.
type Config struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Sources    []SourceConfig   `yaml:"sources"`
	Connection ConnectionConfig `yaml:"connection"`
	Worker     WorkerConfig     `yaml:"worker"`
	Reader     ReaderConfig     `yaml:"reader"`
	Outputs    OutputsConfig    `yaml:"outputs"`
	Shutdown   ShutdownConfig   `yaml:"shutdown"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// InstanceConfig identifies this bookfeed instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// SourceConfig describes one upstream websocket feed.
type SourceConfig struct {
	ID            string            `yaml:"id"`
	URL           string            `yaml:"url"`
	Format        string            `yaml:"format"`      // wire format, default book.v1
	Compression   string            `yaml:"compression"` // none, gzip or flate
	Subscriptions []string          `yaml:"subscriptions"`
	ProbeReply    string            `yaml:"probe_reply"`
	WriteTimeout  time.Duration     `yaml:"write_timeout"` // overrides connection.write_timeout
	Headers       map[string]string `yaml:"headers"`
}

// ConnectionConfig holds websocket tuning shared by every source.
type ConnectionConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
}

// WorkerConfig holds per-source worker tuning shared by every source.
type WorkerConfig struct {
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	BackoffResetAfter  time.Duration `yaml:"backoff_reset_after"`
	DecodeFailureLimit int           `yaml:"decode_failure_limit"`
}

// ReaderConfig holds reader settings.
type ReaderConfig struct {
	Strategy string        `yaml:"strategy"` // interval or onchange
	Interval time.Duration `yaml:"interval"`
	Tick     time.Duration `yaml:"tick"`
}

// OutputsConfig holds the writer sinks.
type OutputsConfig struct {
	Console ConsoleConfig `yaml:"console"`
	Redis   RedisConfig   `yaml:"redis"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// ConsoleConfig holds the stdout sink settings.
type ConsoleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedisConfig holds the Redis latest-value sink settings.
type RedisConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	KeyPrefix     string        `yaml:"key_prefix"`
	ChannelPrefix string        `yaml:"channel_prefix"`
	TTL           time.Duration `yaml:"ttl"`
}

// KafkaConfig holds the Kafka sink settings.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ShutdownConfig bounds how long a graceful stop may take.
type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig holds the HTTP ops surface settings.
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn or error
}
