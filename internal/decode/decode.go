package decode

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/bookfeed/internal/model"
)

// FormatBookV1 is the built-in generic book feed format.
const FormatBookV1 = "book.v1"

// Kind classifies a successfully decoded frame.
type Kind int

const (
	// KindEvent carries a domain event for the book.
	KindEvent Kind = iota
	// KindProbe is a liveness probe obligating a reply.
	KindProbe
	// KindIgnore is a recognized frame with no domain meaning
	// (subscription acks, info banners).
	KindIgnore
)

// Result is the outcome of decoding one raw frame.
type Result struct {
	Kind  Kind
	Event model.BookEvent // valid when Kind == KindEvent
	Probe []byte          // raw probe payload when Kind == KindProbe
}

// Func decodes one raw, already-decompressed frame. A non-nil error
// means the frame was malformed; well-formed frames the format simply
// does not care about return KindIgnore instead.
type Func func(frame []byte) (Result, error)

// ForFormat resolves a wire format name from configuration to its
// decoder. An empty name selects book.v1.
func ForFormat(format string) (Func, error) {
	switch format {
	case "", FormatBookV1:
		return BookV1, nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", format)
	}
}

// bookV1Envelope mirrors the book.v1 frame layout. Price levels arrive
// as [price, size] pairs, quoted or bare numbers.
type bookV1Envelope struct {
	Type    string              `json:"type"`
	Bids    [][]decimal.Decimal `json:"bids"`
	Asks    [][]decimal.Decimal `json:"asks"`
	Payload json.RawMessage     `json:"payload"`
}

// BookV1 decodes the book.v1 format:
//
//	{"type":"snapshot","bids":[["100.0","1"]],"asks":[["101.0","2"]]}
//	{"type":"delta","bids":[["99.5","0"]],"asks":[]}
//	{"type":"ping","payload":169}
//
// Delta levels with size zero delete that price. Frames with any other
// type field are ignored.
func BookV1(frame []byte) (Result, error) {
	var env bookV1Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Result{}, fmt.Errorf("parse frame: %w", err)
	}

	switch env.Type {
	case "snapshot", "delta":
		kind := model.EventSnapshot
		if env.Type == "delta" {
			kind = model.EventDelta
		}
		bids, err := toLevels(env.Bids)
		if err != nil {
			return Result{}, fmt.Errorf("parse bids: %w", err)
		}
		asks, err := toLevels(env.Asks)
		if err != nil {
			return Result{}, fmt.Errorf("parse asks: %w", err)
		}
		return Result{
			Kind:  KindEvent,
			Event: model.BookEvent{Kind: kind, Bids: bids, Asks: asks},
		}, nil

	case "ping":
		return Result{Kind: KindProbe, Probe: env.Payload}, nil

	case "":
		return Result{}, fmt.Errorf("frame missing type")

	default:
		return Result{Kind: KindIgnore}, nil
	}
}

func toLevels(raw [][]decimal.Decimal) ([]model.PriceLevel, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	levels := make([]model.PriceLevel, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("level %d: want [price, size], got %d elements", i, len(pair))
		}
		levels = append(levels, model.PriceLevel{Price: pair[0], Size: pair[1]})
	}
	return levels, nil
}
