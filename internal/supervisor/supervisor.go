package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rickgao/bookfeed/internal/book"
	"github.com/rickgao/bookfeed/internal/decode"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/reader"
	"github.com/rickgao/bookfeed/internal/worker"
	"github.com/rickgao/bookfeed/internal/writer"
)

// Supervisor runs the source workers and the reader as one unit.
type Supervisor interface {
	// Start launches every worker and the reader.
	Start(ctx context.Context) error

	// Stop shuts the pipeline down: reader first, then all workers
	// against ctx's deadline. Workers that miss the deadline have
	// their connections force-closed and are reported as such.
	Stop(ctx context.Context) ShutdownReport

	// Store exposes the shared book store.
	Store() *book.Store

	// Reader exposes the emission loop for the ops surface.
	Reader() *reader.Reader

	// Status reports each worker's current lifecycle state, reconnect
	// count and dropped-frame count for the ops surface.
	Status() map[model.SourceID]SourceStatus
}

// runner is the slice of worker.Worker the supervisor drives. Narrowed
// to an interface so shutdown handling is testable without a live feed.
type runner interface {
	Run(ctx context.Context)
	Done() <-chan struct{}
	ForceClose()
	Source() model.SourceID
	State() worker.State
	Reconnects() int64
	Drops() int64
}

type supervisor struct {
	store   *book.Store
	workers []runner
	reader  *reader.Reader
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the store, one worker per source, and the reader. Every
// source's format and compression are resolved here; an unknown name is
// a construction error.
func New(cfg Config, writers []writer.Writer, logger *slog.Logger) (Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ids := make([]model.SourceID, 0, len(cfg.Sources))
	seen := make(map[model.SourceID]bool, len(cfg.Sources))
	for _, src := range cfg.Sources {
		// Duplicate ids would collapse to one store entry and leave two
		// workers mutating it; refuse the config instead.
		if seen[src.ID] {
			return nil, fmt.Errorf("source %s: duplicate id", src.ID)
		}
		seen[src.ID] = true
		ids = append(ids, src.ID)
	}
	store := book.NewStore(ids)

	workers := make([]runner, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		decodeFn, err := decode.ForFormat(src.Format)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.ID, err)
		}
		decompress, err := decode.ForCompression(src.Compression)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.ID, err)
		}

		entry, _ := store.Entry(src.ID)

		wcfg := cfg.Worker
		wcfg.Source = src.ID
		wcfg.Subscriptions = src.Subscriptions
		wcfg.ProbeReply = src.ProbeReply
		wcfg.Client.URL = src.URL
		wcfg.Client.Headers = src.Headers
		if src.WriteTimeout > 0 {
			wcfg.Client.WriteTimeout = src.WriteTimeout
		}

		workers = append(workers, worker.New(wcfg, entry, decodeFn, decompress, logger))
	}

	return &supervisor{
		store:   store,
		workers: workers,
		reader:  reader.New(cfg.Reader, store, writers, logger),
		logger:  logger.With("component", "supervisor"),
	}, nil
}

func (s *supervisor) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, w := range s.workers {
		go w.Run(s.ctx)
	}

	if err := s.reader.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("start reader: %w", err)
	}

	s.logger.Info("supervisor started", "sources", len(s.workers))
	return nil
}

func (s *supervisor) Stop(ctx context.Context) ShutdownReport {
	s.logger.Info("stopping")

	// Reader first, so no cycle observes a half-stopped fleet.
	if err := s.reader.Stop(ctx); err != nil {
		s.logger.Warn("reader did not drain before the deadline", "error", err)
	}

	if s.cancel != nil {
		s.cancel()
	}

	var report ShutdownReport
	for _, w := range s.workers {
		select {
		case <-w.Done():
			report.Clean = append(report.Clean, w.Source())
			continue
		case <-ctx.Done():
		}

		// Deadline passed. A worker that finished in the meantime
		// still counts as clean; only the truly stuck get forced.
		select {
		case <-w.Done():
			report.Clean = append(report.Clean, w.Source())
		default:
			w.ForceClose()
			report.Forced = append(report.Forced, w.Source())
			s.logger.Warn("worker missed shutdown deadline, connection force-closed",
				"source", w.Source())
		}
	}

	s.logger.Info("supervisor stopped",
		"clean", len(report.Clean),
		"forced", len(report.Forced),
	)
	return report
}

func (s *supervisor) Store() *book.Store {
	return s.store
}

func (s *supervisor) Reader() *reader.Reader {
	return s.reader
}

func (s *supervisor) Status() map[model.SourceID]SourceStatus {
	status := make(map[model.SourceID]SourceStatus, len(s.workers))
	for _, w := range s.workers {
		status[w.Source()] = SourceStatus{
			State:      w.State(),
			Reconnects: w.Reconnects(),
			Drops:      w.Drops(),
		}
	}
	return status
}
