package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// SourceID identifies one configured feed (e.g., an exchange name).
// Assigned at worker creation and immutable afterwards.
type SourceID string

// -----------------------------------------------------------------------------
// Book State
// -----------------------------------------------------------------------------

// PriceLevel is one resting level of an order book. Ordering is by price;
// book sides key levels by price, so two levels at the same price are the
// same level with a new size.
type PriceLevel struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Cmp orders levels by price: -1 if l is priced below other, 0 if equal,
// +1 if above.
func (l PriceLevel) Cmp(other PriceLevel) int {
	return l.Price.Cmp(other.Price)
}

// Equal reports full value equality (price and size).
func (l PriceLevel) Equal(other PriceLevel) bool {
	return l.Price.Equal(other.Price) && l.Size.Equal(other.Size)
}

// TopOfBook is the published best bid/ask pair for one source at an
// instant. Bid and Ask are nil until the first update arrives, and nil
// again when a delta empties a side (gap, never a stale value). Values
// are immutable once published; mutation happens by swapping in a new
// TopOfBook.
type TopOfBook struct {
	Bid       *PriceLevel `json:"bid,omitempty"`
	Ask       *PriceLevel `json:"ask,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// HasData reports whether at least one side has been learned.
func (t TopOfBook) HasData() bool {
	return t.Bid != nil || t.Ask != nil
}

// Quote is the reader's outward projection for one source. Live is false
// while the source is disconnected or reconnecting; the last known top is
// still reported so consumers see stale data marked as such rather than
// nothing.
type Quote struct {
	Source    SourceID    `json:"source"`
	Bid       *PriceLevel `json:"bid,omitempty"`
	Ask       *PriceLevel `json:"ask,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
	HasData   bool        `json:"has_data"`
	Live      bool        `json:"live"`
}

// -----------------------------------------------------------------------------
// Decoded Events
// -----------------------------------------------------------------------------

// EventKind distinguishes full-book snapshots from incremental deltas.
type EventKind int

const (
	// EventSnapshot replaces everything known about a book.
	EventSnapshot EventKind = iota
	// EventDelta applies per-level inserts, updates and deletes.
	EventDelta
)

// String returns the kind name for logs.
func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// BookEvent is a decoded domain event for one source's book. For deltas,
// a level with Size zero deletes that price.
type BookEvent struct {
	Kind EventKind
	Bids []PriceLevel
	Asks []PriceLevel
}
