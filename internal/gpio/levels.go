package gpio

import "sync/atomic"

// lineLevels tracks the level of every watched line. Edges arrive on the
// event goroutine while the initial hardware read is still being merged in,
// so both sides update the mask with compare-and-swap.
type lineLevels struct {
	mask  atomic.Uint32
	edged atomic.Uint32 // lines that have reported at least one edge
}

// edge records a new level for the lines in bit and returns the full mask.
func (l *lineLevels) edge(bit uint32, high bool) uint32 {
	l.edged.Or(bit)
	for {
		cur := l.mask.Load()
		next := cur &^ bit
		if high {
			next |= bit
		}
		if l.mask.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// seed merges levels read from hardware. Lines that already reported an
// edge keep the level from that edge.
func (l *lineLevels) seed(initial uint32) {
	for {
		cur := l.mask.Load()
		seen := l.edged.Load()
		next := cur&seen | initial&^seen
		if l.mask.CompareAndSwap(cur, next) {
			return
		}
	}
}

func (l *lineLevels) load() uint32 {
	return l.mask.Load()
}
