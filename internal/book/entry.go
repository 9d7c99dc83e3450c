package book

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/bookfeed/internal/model"
)

// Entry is one source's book state. Exactly one worker mutates an
// entry; readers only ever touch the atomically published snapshot and
// stamps, so they never contend with the writer.
type Entry struct {
	source model.SourceID

	// mu guards the retained depth below. Writes happen under it;
	// reads go through the published snapshot instead.
	mu sync.Mutex

	// Levels learned since the last snapshot, unordered. Price equality
	// is by numeric value (99.5 == 99.50), so levels are matched by
	// Cmp, not by formatted keys.
	bids []model.PriceLevel
	asks []model.PriceLevel

	// Published state. top holds an immutable TopOfBook replaced
	// wholesale on every apply; updated carries a strictly increasing
	// publish stamp in µs, advanced last, so a reader that sees a new
	// stamp also sees the new snapshot.
	top     atomic.Pointer[model.TopOfBook]
	updated atomic.Int64
	live    atomic.Bool
}

func newEntry(source model.SourceID) *Entry {
	return &Entry{source: source}
}

// Apply folds one decoded event into the entry and publishes the new
// top-of-book. Snapshots replace the retained depth wholesale; deltas
// upsert levels by price and delete levels whose size is zero. A side
// left with no retained levels publishes as absent (a gap) until the
// next snapshot fills it. The update stamp is advanced as the last
// step inside the write scope.
func (e *Entry) Apply(ev model.BookEvent, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev.Kind {
	case model.EventSnapshot:
		e.bids = append(e.bids[:0], ev.Bids...)
		e.asks = append(e.asks[:0], ev.Asks...)
	case model.EventDelta:
		e.bids = applyChanges(e.bids, ev.Bids)
		e.asks = applyChanges(e.asks, ev.Asks)
	}

	e.publishLocked(at)
}

// SetLive flags the source as connected or not. The last known top
// stays published either way so consumers see stale data marked stale,
// never a disappearing source.
func (e *Entry) SetLive(v bool) {
	e.live.Store(v)
}

// Live reports whether the source is currently connected.
func (e *Entry) Live() bool {
	return e.live.Load()
}

// Top returns the most recently published top-of-book. The zero value
// is returned before the first update.
func (e *Entry) Top() model.TopOfBook {
	if t := e.top.Load(); t != nil {
		return *t
	}
	return model.TopOfBook{}
}

// LastUpdateMicros returns the publish stamp in µs since epoch, 0
// before the first update. Safe to poll without any lock; the stamp
// strictly increases with every publish, so an unchanged value means
// no new publish. Read data via Top or Quote.
func (e *Entry) LastUpdateMicros() int64 {
	return e.updated.Load()
}

// Quote builds the outward projection for this source from the
// published snapshot.
func (e *Entry) Quote() model.Quote {
	top := e.Top()
	return model.Quote{
		Source:    e.source,
		Bid:       top.Bid,
		Ask:       top.Ask,
		UpdatedAt: top.UpdatedAt,
		HasData:   top.HasData(),
		Live:      e.Live(),
	}
}

// publishLocked recomputes the top from retained depth and swaps in a
// fresh immutable snapshot (caller must hold mu).
func (e *Entry) publishLocked(at time.Time) {
	top := model.TopOfBook{
		Bid:       highest(e.bids),
		Ask:       lowest(e.asks),
		UpdatedAt: at,
	}
	e.top.Store(&top)

	// Two publishes within one microsecond still need distinct stamps,
	// or a poller comparing stamps would miss the later one.
	stamp := at.UnixMicro()
	if last := e.updated.Load(); stamp <= last {
		stamp = last + 1
	}
	e.updated.Store(stamp)
}

// applyChanges upserts each change by price; a zero size deletes the
// level. Depth here is small (top-of-book scope), so a linear match by
// Cmp beats maintaining canonical price keys.
func applyChanges(levels []model.PriceLevel, changes []model.PriceLevel) []model.PriceLevel {
	for _, change := range changes {
		idx := -1
		for i := range levels {
			if levels[i].Cmp(change) == 0 {
				idx = i
				break
			}
		}

		switch {
		case change.Size.IsZero():
			if idx >= 0 {
				levels[idx] = levels[len(levels)-1]
				levels = levels[:len(levels)-1]
			}
		case idx >= 0:
			levels[idx] = change
		default:
			levels = append(levels, change)
		}
	}
	return levels
}

// highest returns a copy of the best bid, nil when the side is empty.
func highest(levels []model.PriceLevel) *model.PriceLevel {
	best := -1
	for i := range levels {
		if best < 0 || levels[i].Cmp(levels[best]) > 0 {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	lvl := levels[best]
	return &lvl
}

// lowest returns a copy of the best ask, nil when the side is empty.
func lowest(levels []model.PriceLevel) *model.PriceLevel {
	best := -1
	for i := range levels {
		if best < 0 || levels[i].Cmp(levels[best]) < 0 {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	lvl := levels[best]
	return &lvl
}
