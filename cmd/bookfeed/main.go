// bookfeed maintains live top-of-book snapshots from the configured
// websocket feeds and emits them to the configured outputs.
// Usage: go run ./cmd/bookfeed --config configs/bookfeed.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/bookfeed/internal/config"
	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/reader"
	"github.com/rickgao/bookfeed/internal/supervisor"
	"github.com/rickgao/bookfeed/internal/version"
	"github.com/rickgao/bookfeed/internal/worker"
	"github.com/rickgao/bookfeed/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/bookfeed.yaml", "path to config file")
	logLevel := flag.String("log-level", "", "override configured log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("bookfeed", version.String())
		return
	}

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if *logLevel != "" {
		level = *logLevel
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting bookfeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
		"sources", len(cfg.Sources),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Build output writers
	writers := buildWriters(cfg)
	defer func() {
		for _, w := range writers {
			if err := w.Close(); err != nil {
				logger.Warn("close writer", "writer", w.Name(), "error", err)
			}
		}
	}()

	// Create the supervisor (resolves every source's format up front)
	sup, err := supervisor.New(supervisorConfig(cfg), writers, logger)
	if err != nil {
		logger.Error("failed to create supervisor", "error", err)
		os.Exit(1)
	}

	// Start ops HTTP server
	var opsServer *http.Server
	if cfg.Health.Enabled {
		opsServer = &http.Server{
			Addr:    cfg.Health.Addr,
			Handler: createOpsHandler(sup, cfg.Instance.ID, time.Now()),
		}
		go func() {
			logger.Info("starting ops server", "addr", cfg.Health.Addr)
			if err := opsServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("ops server error", "error", err)
			}
		}()
	}

	// Start the pipeline
	if err := sup.Start(ctx); err != nil {
		logger.Error("failed to start supervisor", "error", err)
		os.Exit(1)
	}

	logger.Info("bookfeed running", "instance_id", cfg.Instance.ID)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer stopCancel()

	report := sup.Stop(stopCtx)

	if opsServer != nil {
		opsServer.Shutdown(stopCtx)
	}

	if !report.CleanShutdown() {
		logger.Error("shutdown incomplete",
			"clean", report.Clean,
			"forced", report.Forced,
		)
		os.Exit(1)
	}

	logger.Info("bookfeed stopped", "clean", len(report.Clean))
}

// buildWriters constructs every enabled output sink.
func buildWriters(cfg *config.Config) []writer.Writer {
	var writers []writer.Writer
	if cfg.Outputs.Console.Enabled {
		writers = append(writers, writer.NewConsole(os.Stdout))
	}
	if cfg.Outputs.Redis.Enabled {
		writers = append(writers, writer.NewRedis(writer.RedisConfig{
			Addr:          cfg.Outputs.Redis.Addr,
			KeyPrefix:     cfg.Outputs.Redis.KeyPrefix,
			ChannelPrefix: cfg.Outputs.Redis.ChannelPrefix,
			TTL:           cfg.Outputs.Redis.TTL,
		}))
	}
	if cfg.Outputs.Kafka.Enabled {
		writers = append(writers, writer.NewKafka(writer.KafkaConfig{
			Brokers: cfg.Outputs.Kafka.Brokers,
			Topic:   cfg.Outputs.Kafka.Topic,
		}))
	}
	return writers
}

// supervisorConfig maps the file-level config onto component configs.
func supervisorConfig(cfg *config.Config) supervisor.Config {
	out := supervisor.Config{
		Worker: worker.Config{
			DecodeFailureLimit: cfg.Worker.DecodeFailureLimit,
			BackoffBase:        cfg.Worker.BackoffBase,
			BackoffMax:         cfg.Worker.BackoffMax,
			BackoffResetAfter:  cfg.Worker.BackoffResetAfter,
			Client: connection.ClientConfig{
				HandshakeTimeout: cfg.Connection.HandshakeTimeout,
				PingInterval:     cfg.Connection.PingInterval,
				PingTimeout:      cfg.Connection.PingTimeout,
				WriteTimeout:     cfg.Connection.WriteTimeout,
				BufferSize:       cfg.Connection.BufferSize,
			},
		},
		Reader: reader.Config{
			Strategy: reader.Strategy(cfg.Reader.Strategy),
			Interval: cfg.Reader.Interval,
			Tick:     cfg.Reader.Tick,
		},
	}
	for _, src := range cfg.Sources {
		out.Sources = append(out.Sources, supervisor.SourceConfig{
			ID:            model.SourceID(src.ID),
			URL:           src.URL,
			Format:        src.Format,
			Compression:   src.Compression,
			Subscriptions: src.Subscriptions,
			ProbeReply:    src.ProbeReply,
			WriteTimeout:  src.WriteTimeout,
			Headers:       src.Headers,
		})
	}
	return out
}

// createOpsHandler serves the read-only ops surface.
func createOpsHandler(sup supervisor.Supervisor, instanceID string, started time.Time) http.Handler {
	mux := http.NewServeMux()

	type sourceHealth struct {
		State      string `json:"state"`
		Reconnects int64  `json:"reconnects"`
		Drops      int64  `json:"drops"`
	}
	type emissionHealth struct {
		Cycles     int64 `json:"cycles"`
		SinkErrors int64 `json:"sink_errors"`
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := sup.Status()
		sources := make(map[string]sourceHealth, len(status))
		running := 0
		for id, st := range status {
			sources[string(id)] = sourceHealth{
				State:      st.State.String(),
				Reconnects: st.Reconnects,
				Drops:      st.Drops,
			}
			if st.State == worker.StateRunning {
				running++
			}
		}

		overall := "healthy"
		if running < len(status) {
			overall = "degraded"
		}

		rd := sup.Reader()
		health := struct {
			Status        string                  `json:"status"`
			Instance      string                  `json:"instance"`
			Version       string                  `json:"version"`
			UptimeSeconds int64                   `json:"uptime_seconds"`
			Sources       map[string]sourceHealth `json:"sources"`
			Emission      emissionHealth          `json:"emission"`
		}{
			Status:        overall,
			Instance:      instanceID,
			Version:       version.Version,
			UptimeSeconds: int64(time.Since(started).Seconds()),
			Sources:       sources,
			Emission: emissionHealth{
				Cycles:     rd.Cycles(),
				SinkErrors: rd.SinkErrors(),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/quotes", func(w http.ResponseWriter, r *http.Request) {
		quotes := sup.Store().Snapshot()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":  len(quotes),
			"quotes": quotes,
		})
	})

	return mux
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
