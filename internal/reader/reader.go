package reader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bookfeed/internal/book"
	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/writer"
)

// ErrUnknownStrategy is returned by Start for an unrecognized strategy.
var ErrUnknownStrategy = errors.New("unknown reader strategy")

// Strategy selects what the reader emits each cycle.
type Strategy string

const (
	// StrategyInterval emits every source's quote on every tick,
	// including sources that have no data yet.
	StrategyInterval Strategy = "interval"

	// StrategyOnChange emits only quotes whose book advanced since the
	// previous cycle.
	StrategyOnChange Strategy = "onchange"
)

// Config holds reader configuration.
type Config struct {
	Strategy Strategy      // emission strategy (default: interval)
	Interval time.Duration // cadence for the interval strategy (default: 1s)
	Tick     time.Duration // change-check cadence for onchange (default: 100ms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyInterval,
		Interval: time.Second,
		Tick:     100 * time.Millisecond,
	}
}

// Reader periodically projects the store's published tops and fans them
// out to the configured writers. It only ever touches atomically
// published state, so a cycle never blocks a source worker.
type Reader struct {
	cfg     Config
	store   *book.Store
	writers []writer.Writer
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// lastSeen maps each source to the update stamp of its previous
	// emission. Owned by the run goroutine (onchange strategy only).
	lastSeen map[model.SourceID]int64

	cycles     atomic.Int64
	sinkErrors atomic.Int64
}

// New creates a Reader over the store.
func New(cfg Config, store *book.Store, writers []writer.Writer, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		cfg:      cfg,
		store:    store,
		writers:  writers,
		logger:   logger.With("component", "reader"),
		lastSeen: make(map[model.SourceID]int64),
	}
}

// Start begins the emission loop.
func (r *Reader) Start(ctx context.Context) error {
	switch r.cfg.Strategy {
	case StrategyInterval, StrategyOnChange:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, r.cfg.Strategy)
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("reader started",
		"strategy", string(r.cfg.Strategy),
		"sources", r.store.Len(),
		"writers", len(r.writers),
	)
	return nil
}

// Stop shuts the reader down and waits for the loop to drain.
func (r *Reader) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("reader stopped", "cycles", r.cycles.Load())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycles returns how many emission cycles have completed.
func (r *Reader) Cycles() int64 {
	return r.cycles.Load()
}

// SinkErrors returns how many cycles had at least one failing writer.
func (r *Reader) SinkErrors() int64 {
	return r.sinkErrors.Load()
}

func (r *Reader) run() {
	defer r.wg.Done()

	switch r.cfg.Strategy {
	case StrategyInterval:
		r.runInterval()
	case StrategyOnChange:
		r.runOnChange()
	}
}

// runInterval emits the full projection on every tick, starting with an
// immediate first cycle.
func (r *Reader) runInterval() {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.emit(r.store.Snapshot())

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.emit(r.store.Snapshot())
		}
	}
}

// runOnChange checks each entry's update stamp every tick and emits only
// the sources whose book advanced.
func (r *Reader) runOnChange() {
	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.emitChanged()
		}
	}
}

func (r *Reader) emitChanged() {
	var quotes []model.Quote
	for _, id := range r.store.Sources() {
		entry, ok := r.store.Entry(id)
		if !ok {
			continue
		}
		// The stamp strictly increases with every publish; the quote
		// itself is read from the published snapshot.
		stamp := entry.LastUpdateMicros()
		if stamp == 0 || stamp == r.lastSeen[id] {
			continue
		}
		r.lastSeen[id] = stamp
		quotes = append(quotes, entry.Quote())
	}
	r.emit(quotes)
}

// emit fans one cycle out to every writer concurrently. A failing
// writer is logged and counted; it never stops the cycle, the other
// writers, or the reader.
func (r *Reader) emit(quotes []model.Quote) {
	if len(quotes) == 0 {
		return
	}

	start := time.Now()
	var g errgroup.Group
	for _, w := range r.writers {
		g.Go(func() error {
			if err := w.Write(r.ctx, quotes); err != nil {
				r.logger.Warn("writer failed",
					"writer", w.Name(),
					"quotes", len(quotes),
					"error", err,
				)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.sinkErrors.Add(1)
	}

	r.cycles.Add(1)
	r.logger.Debug("emit cycle complete",
		"quotes", len(quotes),
		"duration", time.Since(start),
	)
}
