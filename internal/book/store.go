package book

import (
	"github.com/rickgao/bookfeed/internal/model"
)

// Store maps each configured source to its order-book entry. The key
// set is fixed at construction, so lookups never race with inserts or
// removals; only entry values change.
type Store struct {
	entries map[model.SourceID]*Entry

	// Configuration order, kept for stable iteration.
	order []model.SourceID
}

// NewStore creates a store with one empty entry per source. Duplicate
// ids collapse to a single entry.
func NewStore(sources []model.SourceID) *Store {
	s := &Store{
		entries: make(map[model.SourceID]*Entry, len(sources)),
		order:   make([]model.SourceID, 0, len(sources)),
	}
	for _, id := range sources {
		if _, ok := s.entries[id]; ok {
			continue
		}
		s.entries[id] = newEntry(id)
		s.order = append(s.order, id)
	}
	return s
}

// Entry returns the entry for a source.
func (s *Store) Entry(id model.SourceID) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Sources returns the source ids in configuration order.
func (s *Store) Sources() []model.SourceID {
	out := make([]model.SourceID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.order)
}

// Snapshot copies out the current quote for every source in
// configuration order. Each quote is read from that entry's published
// snapshot; no locks are taken and writers are never blocked.
func (s *Store) Snapshot() []model.Quote {
	quotes := make([]model.Quote, 0, len(s.order))
	for _, id := range s.order {
		quotes = append(quotes, s.entries[id].Quote())
	}
	return quotes
}
