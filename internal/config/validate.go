package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/bookfeed/internal/decode"
)

// Validate checks that all required fields are set and values are valid.
// An empty sources list is valid; an instance with nothing to watch
// still runs its outputs and ops surface.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if err := src.validate(fmt.Sprintf("sources[%d]", i)); err != nil {
			return err
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, src.ID)
		}
		seen[src.ID] = true
	}

	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}
	if c.Connection.PingInterval <= 0 {
		return errors.New("connection.ping_interval must be > 0")
	}
	if c.Connection.PingTimeout < c.Connection.PingInterval {
		return errors.New("connection.ping_timeout must be >= ping_interval")
	}

	if c.Worker.BackoffBase <= 0 {
		return errors.New("worker.backoff_base must be > 0")
	}
	if c.Worker.BackoffMax < c.Worker.BackoffBase {
		return errors.New("worker.backoff_max must be >= backoff_base")
	}
	if c.Worker.DecodeFailureLimit < 1 {
		return errors.New("worker.decode_failure_limit must be >= 1")
	}

	switch c.Reader.Strategy {
	case "interval", "onchange":
	default:
		return fmt.Errorf("reader.strategy must be interval or onchange, got %q", c.Reader.Strategy)
	}
	if c.Reader.Interval <= 0 {
		return errors.New("reader.interval must be > 0")
	}
	if c.Reader.Tick <= 0 {
		return errors.New("reader.tick must be > 0")
	}

	if err := c.Outputs.validate(); err != nil {
		return err
	}

	if c.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be > 0")
	}

	if c.Health.Enabled && c.Health.Addr == "" {
		return errors.New("health.addr is required when health is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

func (s *SourceConfig) validate(prefix string) error {
	if s.ID == "" {
		return fmt.Errorf("%s.id is required", prefix)
	}
	if s.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	if !strings.HasPrefix(s.URL, "ws://") && !strings.HasPrefix(s.URL, "wss://") {
		return fmt.Errorf("%s.url must be a ws:// or wss:// endpoint", prefix)
	}
	if _, err := decode.ForFormat(s.Format); err != nil {
		return fmt.Errorf("%s.format: %w", prefix, err)
	}
	if _, err := decode.ForCompression(s.Compression); err != nil {
		return fmt.Errorf("%s.compression: %w", prefix, err)
	}
	if s.WriteTimeout < 0 {
		return fmt.Errorf("%s.write_timeout must be >= 0", prefix)
	}
	return nil
}

func (o *OutputsConfig) validate() error {
	if !o.Console.Enabled && !o.Redis.Enabled && !o.Kafka.Enabled {
		return errors.New("outputs: at least one output must be enabled")
	}
	if o.Redis.Enabled && o.Redis.Addr == "" {
		return errors.New("outputs.redis.addr is required when redis is enabled")
	}
	if o.Kafka.Enabled {
		if len(o.Kafka.Brokers) == 0 {
			return errors.New("outputs.kafka.brokers is required when kafka is enabled")
		}
		if o.Kafka.Topic == "" {
			return errors.New("outputs.kafka.topic is required when kafka is enabled")
		}
	}
	return nil
}
