package types

import (
	"sort"
	"time"
)

// Default compaction marks for the processed set
const (
	DefaultCompactHigh = 800
	DefaultCompactLow  = 500
)

// PersistedState is the durable unit of the poller: the watermark and the
// set of message ids already forwarded. Timestamps are epoch milliseconds.
type PersistedState struct {
	StartAfter *int64           `json:"startAfter"`
	Processed  map[string]int64 `json:"processed"`
}

// NewPersistedState returns a state with no watermark and nothing processed
func NewPersistedState() *PersistedState {
	return &PersistedState{Processed: make(map[string]int64)}
}

// Watermark returns the instant before which messages are ignored
func (s *PersistedState) Watermark() (time.Time, bool) {
	if s.StartAfter == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*s.StartAfter), true
}

// InitWatermark sets the watermark to now if it was never set. It never moves
// an existing watermark and reports whether it changed anything.
func (s *PersistedState) InitWatermark(now time.Time) bool {
	if s.StartAfter != nil {
		return false
	}
	ms := now.UnixMilli()
	s.StartAfter = &ms
	return true
}

// IsProcessed reports whether id was already forwarded
func (s *PersistedState) IsProcessed(id string) bool {
	_, ok := s.Processed[id]
	return ok
}

// MarkProcessed records id as forwarded at now
func (s *PersistedState) MarkProcessed(id string, now time.Time) {
	if s.Processed == nil {
		s.Processed = make(map[string]int64)
	}
	s.Processed[id] = now.UnixMilli()
}

// Compact evicts the oldest entries once the set grows past high, keeping the
// low most recent ones. Returns the number of evicted ids.
func (s *PersistedState) Compact(high, low int) int {
	if len(s.Processed) <= high {
		return 0
	}

	ids := make([]string, 0, len(s.Processed))
	for id := range s.Processed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ti, tj := s.Processed[ids[i]], s.Processed[ids[j]]
		if ti != tj {
			return ti < tj
		}
		return ids[i] < ids[j]
	})

	evict := len(ids) - low
	for _, id := range ids[:evict] {
		delete(s.Processed, id)
	}
	return evict
}

// Clone returns a deep copy
func (s *PersistedState) Clone() *PersistedState {
	out := NewPersistedState()
	if s.StartAfter != nil {
		v := *s.StartAfter
		out.StartAfter = &v
	}
	for id, ts := range s.Processed {
		out.Processed[id] = ts
	}
	return out
}
