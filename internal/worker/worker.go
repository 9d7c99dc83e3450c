package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bookfeed/internal/book"
	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/decode"
	"github.com/rickgao/bookfeed/internal/model"
)

// Worker drives one feed into one book entry. It runs until cancelled:
// connection failures feed the backoff schedule and re-enter the
// connect path, never terminate the worker.
type Worker struct {
	cfg        Config
	entry      *book.Entry
	decodeFn   decode.Func
	decompress decode.Decompressor
	logger     *slog.Logger

	// newClient builds one connection generation; tests swap it out.
	newClient func() connection.Client

	state      atomic.Int32
	reconnects atomic.Int64

	// mu guards the current connection generation, so a missed shutdown
	// deadline can force-close it from outside the run loop, and the
	// drop count folded in from retired generations.
	mu     sync.Mutex
	client connection.Client
	drops  int64

	done chan struct{}
}

// New creates a worker bound to its entry. The decoder and optional
// decompressor are resolved by the caller so an unknown format fails at
// construction time, not mid-stream.
func New(cfg Config, entry *book.Entry, decodeFn decode.Func, decompress decode.Decompressor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("source", string(cfg.Source))

	w := &Worker{
		cfg:        cfg,
		entry:      entry,
		decodeFn:   decodeFn,
		decompress: decompress,
		logger:     logger,
		done:       make(chan struct{}),
	}
	w.newClient = func() connection.Client {
		return connection.NewClient(cfg.Client, logger)
	}
	w.state.Store(int32(StateCreated))
	return w
}

// Source returns the owning source id.
func (w *Worker) Source() model.SourceID {
	return w.cfg.Source
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Reconnects returns how many times the connection has been rebuilt.
func (w *Worker) Reconnects() int64 {
	return w.reconnects.Load()
}

// Drops returns how many frames have been discarded on buffer overflow
// across all connection generations.
func (w *Worker) Drops() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := w.drops
	if w.client != nil {
		total += w.client.Drops()
	}
	return total
}

// Done closes when the run loop has fully exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// ForceClose tears down the current connection generation without
// waiting for the run loop. Used when a worker misses the shutdown
// deadline; the run loop then exits on the broken connection.
func (w *Worker) ForceClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.client != nil {
		w.client.Close()
	}
}

// Run drives the worker until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)
	defer w.setState(StateStopped)
	defer w.entry.SetLive(false)

	backoff := Backoff{Base: w.cfg.BackoffBase, Max: w.cfg.BackoffMax}

	for {
		w.setState(StateConnecting)

		client := w.newClient()
		w.setClient(client)

		if err := client.Connect(ctx); err != nil {
			w.retire(client)
			if ctx.Err() != nil {
				return
			}
			wait := backoff.Next()
			w.logger.Warn("connect failed", "error", err, "retry_in", wait)
			if !w.sleep(ctx, wait) {
				return
			}
			continue
		}

		if err := w.subscribe(client); err != nil {
			w.retire(client)
			wait := backoff.Next()
			w.logger.Warn("subscribe failed", "error", err, "retry_in", wait)
			if !w.sleep(ctx, wait) {
				return
			}
			continue
		}

		w.setState(StateRunning)
		w.entry.SetLive(true)
		connectedAt := time.Now()
		w.logger.Info("source running", "url", w.cfg.Client.URL)

		stopped := w.pump(ctx, client)

		w.entry.SetLive(false)
		w.retire(client)

		if stopped {
			w.logger.Info("source stopped")
			return
		}

		// Sustained uptime earns a fresh backoff schedule.
		if time.Since(connectedAt) >= w.cfg.BackoffResetAfter {
			backoff.Reset()
		}

		w.setState(StateReconnecting)
		w.reconnects.Add(1)
		wait := backoff.Next()
		w.logger.Warn("connection lost, reconnecting", "wait", wait)
		if !w.sleep(ctx, wait) {
			return
		}
	}
}

// pump processes frames until the connection dies or ctx is cancelled.
// It reports true when the worker must stop for good.
func (w *Worker) pump(ctx context.Context, client connection.Client) bool {
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return true

		case err := <-client.Errors():
			w.logger.Warn("connection error", "error", err)
			return false

		case msg := <-client.Messages():
			if !w.handleFrame(client, msg, &failures) {
				return false
			}
		}
	}
}

// handleFrame decompresses, decodes and applies one frame. It reports
// false when the connection must be rebuilt (probe reply failed or too
// many consecutive malformed frames).
func (w *Worker) handleFrame(client connection.Client, msg connection.TimestampedMessage, failures *int) bool {
	data := msg.Data

	if w.decompress != nil {
		out, err := w.decompress(data)
		if err != nil {
			return w.countDecodeFailure(failures, err)
		}
		data = out
	}

	res, err := w.decodeFn(data)
	if err != nil {
		return w.countDecodeFailure(failures, err)
	}
	*failures = 0

	switch res.Kind {
	case decode.KindEvent:
		w.entry.Apply(res.Event, msg.ReceivedAt)

	case decode.KindProbe:
		// The reply must go out before the next receive; sending here,
		// inside the pump, guarantees that ordering.
		reply := buildProbeReply(w.cfg.ProbeReply, res.Probe)
		if len(reply) == 0 {
			w.logger.Debug("probe with nothing to reply, skipping")
			return true
		}
		if err := client.Send(reply); err != nil {
			w.logger.Warn("probe reply failed", "error", err)
			return false
		}

	case decode.KindIgnore:
		// Protocol chatter; nothing to do.
	}

	return true
}

// countDecodeFailure records one malformed frame and reports false once
// the consecutive-failure limit treats the connection as unhealthy.
func (w *Worker) countDecodeFailure(failures *int, err error) bool {
	*failures++
	w.logger.Warn("frame decode failed",
		"error", err,
		"consecutive", *failures,
	)
	if *failures >= w.cfg.DecodeFailureLimit {
		w.logger.Warn("decode failure limit reached, reconnecting",
			"limit", w.cfg.DecodeFailureLimit,
		)
		return false
	}
	return true
}

// subscribe sends the configured subscription frames in order.
func (w *Worker) subscribe(client connection.Client) error {
	for _, sub := range w.cfg.Subscriptions {
		frame := sub
		if strings.Contains(frame, "{ticket}") {
			frame = strings.ReplaceAll(frame, "{ticket}", uuid.NewString())
		}
		if err := client.Send([]byte(frame)); err != nil {
			return fmt.Errorf("send subscription: %w", err)
		}
	}
	return nil
}

// sleep waits for d unless cancelled first; false means cancelled.
func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) setClient(c connection.Client) {
	w.mu.Lock()
	w.client = c
	w.mu.Unlock()
}

// retire closes a connection generation and folds its drop count into
// the worker total before the client is discarded.
func (w *Worker) retire(client connection.Client) {
	client.Close()
	w.mu.Lock()
	w.drops += client.Drops()
	w.client = nil
	w.mu.Unlock()
}

// buildProbeReply fills the reply template with the probe's payload. An
// empty template echoes the payload back unchanged.
func buildProbeReply(template string, payload []byte) []byte {
	if template == "" {
		return payload
	}
	return []byte(strings.ReplaceAll(template, "{payload}", string(payload)))
}
