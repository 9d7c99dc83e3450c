package supervisor

import (
	"time"

	"github.com/rickgao/bookfeed/internal/model"
	"github.com/rickgao/bookfeed/internal/reader"
	"github.com/rickgao/bookfeed/internal/worker"
)

// Config holds supervisor configuration.
type Config struct {
	// Sources lists the feeds to supervise, one worker each.
	Sources []SourceConfig

	// Worker carries tuning shared by every worker. Per-source fields
	// (source id, subscriptions, probe reply, connection URL and
	// headers) are filled from each SourceConfig.
	Worker worker.Config

	// Reader configures the emission loop.
	Reader reader.Config
}

// SourceConfig describes one upstream feed.
type SourceConfig struct {
	// ID names the source; it keys the store entry and all logs.
	ID model.SourceID

	// URL is the websocket endpoint.
	URL string

	// Format names the wire format; empty selects book.v1.
	Format string

	// Compression names the frame compression; empty means none.
	Compression string

	// Subscriptions are sent verbatim after connecting, in order. A
	// {ticket} placeholder expands to a fresh id per send.
	Subscriptions []string

	// ProbeReply templates the reply to liveness probes; {payload}
	// expands to the probe's payload. Empty echoes the payload back.
	ProbeReply string

	// WriteTimeout, when set, overrides the shared write deadline for
	// this source. Feeds that drop slow probe responders get a tighter
	// window here.
	WriteTimeout time.Duration

	// Headers are added to the websocket handshake.
	Headers map[string]string
}

// SourceStatus is one worker's health as reported on the ops surface.
type SourceStatus struct {
	State      worker.State
	Reconnects int64
	Drops      int64
}

// ShutdownReport records the outcome of a bounded shutdown.
type ShutdownReport struct {
	// Clean lists sources whose workers exited before the deadline.
	Clean []model.SourceID

	// Forced lists sources whose connections had to be torn down.
	Forced []model.SourceID
}

// CleanShutdown reports whether every worker stopped on its own.
func (r ShutdownReport) CleanShutdown() bool {
	return len(r.Forced) == 0
}
