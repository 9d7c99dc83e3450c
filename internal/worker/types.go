package worker

import (
	"time"

	"github.com/rickgao/bookfeed/internal/connection"
	"github.com/rickgao/bookfeed/internal/model"
)

// State is a worker's position in its lifecycle. Transitions:
// Created -> Connecting -> Running -> (Reconnecting -> Connecting | Stopped).
type State int32

const (
	StateCreated State = iota
	StateConnecting
	StateRunning
	StateReconnecting
	StateStopped
)

// String returns the state name for logs and the ops surface.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures one source worker.
type Config struct {
	Source model.SourceID

	// Raw frames sent after every successful connect. A {ticket}
	// placeholder expands to a fresh id per connection generation.
	Subscriptions []string

	// Reply template for application-level liveness probes; {payload}
	// is replaced with the probe's raw payload. Empty echoes the
	// payload unchanged.
	ProbeReply string

	// Consecutive malformed frames tolerated before the connection is
	// treated as unhealthy and rebuilt.
	DecodeFailureLimit int

	// Reconnect schedule.
	BackoffBase       time.Duration
	BackoffMax        time.Duration
	BackoffResetAfter time.Duration

	// Transport settings handed to each connection generation.
	Client connection.ClientConfig
}

// DefaultConfig returns sensible defaults. Source, Client.URL and
// Subscriptions always come from configuration.
func DefaultConfig() Config {
	return Config{
		DecodeFailureLimit: 5,
		BackoffBase:        time.Second,
		BackoffMax:         30 * time.Second,
		BackoffResetAfter:  60 * time.Second,
		Client:             connection.DefaultClientConfig(),
	}
}
