package proxy

import "sync/atomic"

// Slots is a counter of active connections bounded by a fixed limit.
type Slots struct {
	limit  int64
	active atomic.Int64
}

func NewSlots(limit int) *Slots {
	return &Slots{limit: int64(limit)}
}

// TryAcquire takes a slot if one is free and reports whether it did.
func (s *Slots) TryAcquire() bool {
	for {
		n := s.active.Load()
		if n >= s.limit {
			return false
		}
		if s.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Release returns a slot taken by TryAcquire.
func (s *Slots) Release() {
	if s.active.Add(-1) < 0 {
		panic("proxy: Slots.Release without TryAcquire")
	}
}

func (s *Slots) Active() int {
	return int(s.active.Load())
}

func (s *Slots) Limit() int {
	return int(s.limit)
}
