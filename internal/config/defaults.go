package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultFormat             = "book.v1"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultBufferSize         = 4096
	DefaultBackoffBase        = 1 * time.Second
	DefaultBackoffMax         = 30 * time.Second
	DefaultBackoffResetAfter  = 60 * time.Second
	DefaultDecodeFailureLimit = 5
	DefaultReaderStrategy     = "interval"
	DefaultReaderInterval     = 1 * time.Second
	DefaultReaderTick         = 100 * time.Millisecond
	DefaultRedisAddr          = "localhost:6379"
	DefaultRedisKeyPrefix     = "book:"
	DefaultRedisChannelPrefix = "books."
	DefaultRedisTTL           = time.Hour
	DefaultKafkaTopic         = "quotes"
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultHealthAddr         = ":8080"
	DefaultLogLevel           = "info"
)

func (c *Config) applyDefaults() {
	// Source defaults
	for i := range c.Sources {
		if c.Sources[i].Format == "" {
			c.Sources[i].Format = DefaultFormat
		}
	}

	// Connection defaults
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Worker defaults
	if c.Worker.BackoffBase == 0 {
		c.Worker.BackoffBase = DefaultBackoffBase
	}
	if c.Worker.BackoffMax == 0 {
		c.Worker.BackoffMax = DefaultBackoffMax
	}
	if c.Worker.BackoffResetAfter == 0 {
		c.Worker.BackoffResetAfter = DefaultBackoffResetAfter
	}
	if c.Worker.DecodeFailureLimit == 0 {
		c.Worker.DecodeFailureLimit = DefaultDecodeFailureLimit
	}

	// Reader defaults
	if c.Reader.Strategy == "" {
		c.Reader.Strategy = DefaultReaderStrategy
	}
	if c.Reader.Interval == 0 {
		c.Reader.Interval = DefaultReaderInterval
	}
	if c.Reader.Tick == 0 {
		c.Reader.Tick = DefaultReaderTick
	}

	// Output defaults
	if c.Outputs.Redis.Addr == "" {
		c.Outputs.Redis.Addr = DefaultRedisAddr
	}
	if c.Outputs.Redis.KeyPrefix == "" {
		c.Outputs.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if c.Outputs.Redis.ChannelPrefix == "" {
		c.Outputs.Redis.ChannelPrefix = DefaultRedisChannelPrefix
	}
	if c.Outputs.Redis.TTL == 0 {
		c.Outputs.Redis.TTL = DefaultRedisTTL
	}
	if c.Outputs.Kafka.Topic == "" {
		c.Outputs.Kafka.Topic = DefaultKafkaTopic
	}

	// Shutdown defaults
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultShutdownTimeout
	}

	// Health defaults
	if c.Health.Addr == "" {
		c.Health.Addr = DefaultHealthAddr
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
