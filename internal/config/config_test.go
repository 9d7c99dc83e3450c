package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: bookfeed-test
sources:
  - id: alpha
    url: wss://feed-a.example.com/ws
    format: book.v1
    compression: gzip
    subscriptions:
      - '{"op":"subscribe","channel":"book","ticket":"{ticket}"}'
    probe_reply: '{"pong":{payload}}'
    headers:
      X-Api-Key: alpha-key
  - id: beta
    url: wss://feed-b.example.com/ws
    write_timeout: 2s
reader:
  strategy: onchange
  tick: 50ms
outputs:
  redis:
    enabled: true
    addr: redis:6379
    ttl: 30m
shutdown:
  timeout: 5s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "bookfeed-test" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "bookfeed-test")
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2", len(cfg.Sources))
	}
	if cfg.Sources[0].URL != "wss://feed-a.example.com/ws" {
		t.Errorf("Sources[0].URL = %q", cfg.Sources[0].URL)
	}
	if cfg.Sources[0].Compression != "gzip" {
		t.Errorf("Sources[0].Compression = %q, want gzip", cfg.Sources[0].Compression)
	}
	if len(cfg.Sources[0].Subscriptions) != 1 || !strings.Contains(cfg.Sources[0].Subscriptions[0], "{ticket}") {
		t.Errorf("Sources[0].Subscriptions = %v", cfg.Sources[0].Subscriptions)
	}
	if cfg.Sources[0].Headers["X-Api-Key"] != "alpha-key" {
		t.Errorf("Sources[0].Headers = %v", cfg.Sources[0].Headers)
	}
	if cfg.Sources[0].WriteTimeout != 0 {
		t.Errorf("Sources[0].WriteTimeout = %v, want unset", cfg.Sources[0].WriteTimeout)
	}
	if cfg.Sources[1].WriteTimeout != 2*time.Second {
		t.Errorf("Sources[1].WriteTimeout = %v, want 2s", cfg.Sources[1].WriteTimeout)
	}
	if cfg.Reader.Strategy != "onchange" || cfg.Reader.Tick != 50*time.Millisecond {
		t.Errorf("Reader = %+v", cfg.Reader)
	}
	if !cfg.Outputs.Redis.Enabled || cfg.Outputs.Redis.Addr != "redis:6379" {
		t.Errorf("Outputs.Redis = %+v", cfg.Outputs.Redis)
	}
	if cfg.Outputs.Redis.TTL != 30*time.Minute {
		t.Errorf("Outputs.Redis.TTL = %v, want 30m", cfg.Outputs.Redis.TTL)
	}
	if cfg.Shutdown.Timeout != 5*time.Second {
		t.Errorf("Shutdown.Timeout = %v, want 5s", cfg.Shutdown.Timeout)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("BOOKFEED_TEST_KEY", "secret123")

	yaml := `
instance:
  id: bookfeed-test
sources:
  - id: alpha
    url: wss://feed.example.com/ws
    headers:
      X-Api-Key: ${BOOKFEED_TEST_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := cfg.Sources[0].Headers["X-Api-Key"]; got != "secret123" {
		t.Errorf("Headers[X-Api-Key] = %q, want %q", got, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: bookfeed-test
sources:
  - id: alpha
    url: wss://feed.example.com/ws
outputs:
  console:
    enabled: true
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Sources[0].Format != DefaultFormat {
		t.Errorf("Sources[0].Format = %q, want default %q", cfg.Sources[0].Format, DefaultFormat)
	}
	if cfg.Connection.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Connection.HandshakeTimeout = %v, want default %v", cfg.Connection.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Worker.BackoffBase != DefaultBackoffBase {
		t.Errorf("Worker.BackoffBase = %v, want default %v", cfg.Worker.BackoffBase, DefaultBackoffBase)
	}
	if cfg.Worker.DecodeFailureLimit != DefaultDecodeFailureLimit {
		t.Errorf("Worker.DecodeFailureLimit = %d, want default %d", cfg.Worker.DecodeFailureLimit, DefaultDecodeFailureLimit)
	}
	if cfg.Reader.Strategy != DefaultReaderStrategy {
		t.Errorf("Reader.Strategy = %q, want default %q", cfg.Reader.Strategy, DefaultReaderStrategy)
	}
	if cfg.Outputs.Redis.KeyPrefix != DefaultRedisKeyPrefix {
		t.Errorf("Outputs.Redis.KeyPrefix = %q, want default %q", cfg.Outputs.Redis.KeyPrefix, DefaultRedisKeyPrefix)
	}
	if cfg.Shutdown.Timeout != DefaultShutdownTimeout {
		t.Errorf("Shutdown.Timeout = %v, want default %v", cfg.Shutdown.Timeout, DefaultShutdownTimeout)
	}
	if cfg.Health.Addr != DefaultHealthAddr {
		t.Errorf("Health.Addr = %q, want default %q", cfg.Health.Addr, DefaultHealthAddr)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
instance:
  id: bookfeed-test
sources:
  - id: alpha
    url: ftp://not-a-websocket
outputs:
  console:
    enabled: true
`
	path := writeTempFile(t, yaml)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("LoadAndValidate accepted a non-websocket source url")
	}
	if !strings.Contains(err.Error(), "sources[0].url") {
		t.Errorf("error = %v, want a sources[0].url message", err)
	}
}

func validConfig() Config {
	return Config{
		Instance: InstanceConfig{ID: "bookfeed-test"},
		Sources: []SourceConfig{
			{ID: "alpha", URL: "wss://feed.example.com/ws"},
		},
		Connection: ConnectionConfig{
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
			PingTimeout:      60 * time.Second,
			WriteTimeout:     5 * time.Second,
			BufferSize:       4096,
		},
		Worker: WorkerConfig{
			BackoffBase:        time.Second,
			BackoffMax:         30 * time.Second,
			BackoffResetAfter:  time.Minute,
			DecodeFailureLimit: 5,
		},
		Reader:   ReaderConfig{Strategy: "interval", Interval: time.Second, Tick: 100 * time.Millisecond},
		Outputs:  OutputsConfig{Console: ConsoleConfig{Enabled: true}},
		Shutdown: ShutdownConfig{Timeout: 10 * time.Second},
		Health:   HealthConfig{Enabled: true, Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "no sources is valid",
			mutate:  func(c *Config) { c.Sources = nil },
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "source missing url",
			mutate:  func(c *Config) { c.Sources[0].URL = "" },
			wantErr: "sources[0].url is required",
		},
		{
			name:    "source url not websocket",
			mutate:  func(c *Config) { c.Sources[0].URL = "https://feed.example.com" },
			wantErr: "sources[0].url must be a ws:// or wss:// endpoint",
		},
		{
			name:    "source unknown format",
			mutate:  func(c *Config) { c.Sources[0].Format = "fix.42" },
			wantErr: `sources[0].format: unknown wire format "fix.42"`,
		},
		{
			name:    "source unknown compression",
			mutate:  func(c *Config) { c.Sources[0].Compression = "zstd" },
			wantErr: `sources[0].compression: unknown compression "zstd"`,
		},
		{
			name:    "negative source write timeout",
			mutate:  func(c *Config) { c.Sources[0].WriteTimeout = -time.Second },
			wantErr: "sources[0].write_timeout must be >= 0",
		},
		{
			name: "duplicate source ids",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{ID: "alpha", URL: "wss://other.example.com/ws"})
			},
			wantErr: `sources[1].id "alpha" is duplicated`,
		},
		{
			name:    "ping timeout below interval",
			mutate:  func(c *Config) { c.Connection.PingTimeout = time.Second },
			wantErr: "connection.ping_timeout must be >= ping_interval",
		},
		{
			name:    "backoff max below base",
			mutate:  func(c *Config) { c.Worker.BackoffMax = time.Millisecond },
			wantErr: "worker.backoff_max must be >= backoff_base",
		},
		{
			name:    "zero decode failure limit",
			mutate:  func(c *Config) { c.Worker.DecodeFailureLimit = 0 },
			wantErr: "worker.decode_failure_limit must be >= 1",
		},
		{
			name:    "bad reader strategy",
			mutate:  func(c *Config) { c.Reader.Strategy = "sometimes" },
			wantErr: `reader.strategy must be interval or onchange, got "sometimes"`,
		},
		{
			name: "no outputs enabled",
			mutate: func(c *Config) {
				c.Outputs.Console.Enabled = false
			},
			wantErr: "outputs: at least one output must be enabled",
		},
		{
			name: "redis enabled without addr",
			mutate: func(c *Config) {
				c.Outputs.Redis.Enabled = true
			},
			wantErr: "outputs.redis.addr is required when redis is enabled",
		},
		{
			name: "kafka enabled without brokers",
			mutate: func(c *Config) {
				c.Outputs.Kafka = KafkaConfig{Enabled: true, Topic: "quotes"}
			},
			wantErr: "outputs.kafka.brokers is required when kafka is enabled",
		},
		{
			name:    "zero shutdown timeout",
			mutate:  func(c *Config) { c.Shutdown.Timeout = 0 },
			wantErr: "shutdown.timeout must be > 0",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: `logging.level must be debug, info, warn or error, got "verbose"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
