package book

import "tickforge/internal/arena"

// Level is a single price level's FIFO queue of arena indices, in
// price-time priority (append on insert, consume from the head). TotalQty
// is a cached sum of the queued orders' QtyOpen, maintained incrementally;
// it must equal the sum over fifo, and must be > 0 for any level that is
// still tracked (spec.md §8 invariant).
type Level struct {
	PriceIdx int64
	fifo     []arena.Index
	TotalQty uint64
}

// Len returns the number of resting orders at this level.
func (l *Level) Len() int { return len(l.fifo) }

// Head returns the arena index of the FIFO head (oldest resting order) and
// whether the level has any orders at all.
func (l *Level) Head() (arena.Index, bool) {
	if len(l.fifo) == 0 {
		return 0, false
	}
	return l.fifo[0], true
}

// At returns the arena index at FIFO position i.
func (l *Level) At(i int) arena.Index { return l.fifo[i] }

// push appends idx to the tail of the FIFO (new resting order).
func (l *Level) push(idx arena.Index, qty uint64) {
	l.fifo = append(l.fifo, idx)
	l.TotalQty += qty
}

// removeAt deletes the order at FIFO position i (used for cancel and for
// self-match CancelResting), decrementing TotalQty by its last-known qty.
func (l *Level) removeAt(i int, qty uint64) {
	l.fifo = append(l.fifo[:i], l.fifo[i+1:]...)
	l.TotalQty -= qty
}

// popHead removes the FIFO head, decrementing TotalQty.
func (l *Level) popHead(qty uint64) {
	l.fifo = l.fifo[1:]
	l.TotalQty -= qty
}

// decrementHead reduces the head order's contribution to TotalQty by delta
// without removing it (a partial fill that leaves the head resting).
func (l *Level) decrementHead(delta uint64) {
	l.TotalQty -= delta
}

// Empty reports whether the level has no resting orders.
func (l *Level) Empty() bool { return len(l.fifo) == 0 }
