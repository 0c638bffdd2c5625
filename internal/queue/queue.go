// Package queue provides the bounded, non-blocking intake/outtake queues
// spec.md §5 requires: a per-symbol single-producer/single-consumer inbound
// queue and a single-producer/single-consumer-per-engine, single-consumer
// outbound queue fanning into the execution manager (an MPSC across many
// engines, SPSC from any one engine's point of view). Both are thin,
// fixed-capacity wrappers over a buffered channel: Go's channel already
// gives the bounded-FIFO, non-blocking (via select/default) semantics the
// spec asks for without reinventing atomics the runtime already provides
// correctly.
package queue

// SPSC is a bounded, non-blocking single-producer/single-consumer queue.
// The symbol coordinator's transport-facing producer goroutine is the sole
// writer; the symbol's pinned tick-executor goroutine is the sole reader.
type SPSC[T any] struct {
	ch chan T
}

// NewSPSC constructs an SPSC queue with the given fixed capacity.
func NewSPSC[T any](capacity int) *SPSC[T] {
	return &SPSC[T]{ch: make(chan T, capacity)}
}

// TryPush attempts to enqueue v without blocking. It reports false if the
// queue is full (admission check #9, QueueBackpressure, is driven by this).
func (q *SPSC[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop attempts to dequeue the oldest value without blocking.
func (q *SPSC[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len reports the number of values currently queued.
func (q *SPSC[T]) Len() int { return len(q.ch) }

// Cap reports the queue's fixed capacity.
func (q *SPSC[T]) Cap() int { return cap(q.ch) }

// MPSC is a bounded, non-blocking multi-producer/single-consumer queue.
// Every pinned engine worker is a producer of its own symbol's events; the
// execution manager (or, in this repo, the WAL/transport fan-out) is the
// sole consumer. The zero-value distinction from SPSC is cardinality of
// writers only — the underlying channel already serializes concurrent
// sends safely, so the implementation is identical.
type MPSC[T any] struct {
	ch chan T
}

// NewMPSC constructs an MPSC queue with the given fixed capacity.
func NewMPSC[T any](capacity int) *MPSC[T] {
	return &MPSC[T]{ch: make(chan T, capacity)}
}

// TryPush attempts to enqueue v without blocking.
func (q *MPSC[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// TryPop attempts to dequeue the oldest value without blocking.
func (q *MPSC[T]) TryPop() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len reports the number of values currently queued.
func (q *MPSC[T]) Len() int { return len(q.ch) }

// Cap reports the queue's fixed capacity.
func (q *MPSC[T]) Cap() int { return cap(q.ch) }
