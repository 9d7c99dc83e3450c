package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw frame bytes with a receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from the socket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures one WebSocket client. A client serves exactly
// one feed connection; reconnecting means building a new client.
type ClientConfig struct {
	URL              string            // Feed endpoint (e.g., wss://feed.example.com/ws)
	Headers          map[string]string // Extra handshake headers (API keys and the like)
	HandshakeTimeout time.Duration     // Dial deadline
	PingInterval     time.Duration     // Keepalive ping cadence
	PingTimeout      time.Duration     // Max silence before the connection is considered stale
	WriteTimeout     time.Duration     // Write deadline for sends
	BufferSize       int               // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       4096,
	}
}
