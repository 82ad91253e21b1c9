package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing numbers used to break ties between
// waitlist entries enqueued at the same instant.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued number.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset moves the sequencer forward to v. Used on boot with the highest
// sequence found in the store; it never moves backwards.
func (s *Sequencer) Reset(v uint64) {
	for {
		cur := s.next.Load()
		if v <= cur {
			return
		}
		if s.next.CompareAndSwap(cur, v) {
			return
		}
	}
}
