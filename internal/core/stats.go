package core

import "math"

// Stats tracks lifetime counters for the store. Mutation happens only
// under the store lock so a counter change is never separated from the
// operation that caused it.
type Stats struct {
	Inserted uint64
	Deleted  uint64
	Pruned   uint64
}

// Get returns a copy of the counters.
func (s *Stats) Get() Stats {
	return *s
}

// Set replaces the counters wholesale.
func (s *Stats) Set(v Stats) {
	*s = v
}

// Add applies signed deltas to each counter, saturating at zero and at
// the uint64 ceiling instead of wrapping.
func (s *Stats) Add(inserted, deleted, pruned int64) {
	s.Inserted = saturatingAdd(s.Inserted, inserted)
	s.Deleted = saturatingAdd(s.Deleted, deleted)
	s.Pruned = saturatingAdd(s.Pruned, pruned)
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	*s = Stats{}
}

func saturatingAdd(v uint64, delta int64) uint64 {
	if delta >= 0 {
		d := uint64(delta)
		if v > math.MaxUint64-d {
			return math.MaxUint64
		}
		return v + d
	}
	d := uint64(-delta)
	if d > v {
		return 0
	}
	return v - d
}
