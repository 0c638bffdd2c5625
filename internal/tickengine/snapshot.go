package tickengine

import (
	"tickforge/internal/arena"
	"tickforge/internal/events"
	"tickforge/internal/queue"
	"tickforge/internal/snapshot"

	"github.com/rs/zerolog"
)

// Capture returns a snapshot.State reflecting the engine's state as of the
// last completed tick (spec.md §6 Persisted-state layout). It must only be
// called between ticks, never from within Tick.
func (e *Engine) Capture() snapshot.State {
	orders := make([]arena.Order, 0, e.arena.Len())
	e.arena.ForEachLive(func(_ arena.Index, o *arena.Order) {
		orders = append(orders, *o)
	})
	var ref *int64
	if e.refPrice != nil {
		v := *e.refPrice
		ref = &v
	}
	return snapshot.State{
		Symbol:   e.Symbol,
		Domain:   e.admission.Domain,
		Tick:     e.tick,
		RefPrice: ref,
		Halted:   e.halted,
		Orders:   orders,
	}
}

// Restore rebuilds an Engine from a previously captured snapshot.State,
// ready to resume ticking at state.Tick+1 (spec.md §8's snapshot-restore-
// continue round-trip law). cfg must match the capturing engine's
// construction-time configuration (price domain, band, arena capacity,
// etc.); only the runtime state (orders, tick, ref price, halted flag)
// comes from state.
func Restore(state snapshot.State, cfg Config, outbound *queue.MPSC[events.Event], wal WALSink, log zerolog.Logger) (*Engine, error) {
	a, bk, err := snapshot.Restore(state, cfg.ArenaCapacity)
	if err != nil {
		return nil, err
	}
	e := New(cfg, outbound, wal, log)
	e.arena = a
	e.bk = bk
	e.tick = state.Tick
	e.halted = state.Halted
	if state.RefPrice != nil {
		v := *state.RefPrice
		e.refPrice = &v
	}
	return e, nil
}
