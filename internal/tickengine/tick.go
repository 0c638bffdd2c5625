package tickengine

import (
	"fmt"

	"tickforge/internal/admission"
	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/events"
	"tickforge/internal/priced"
)

// Tick is the engine's single entry point (spec.md §4.5). It drives
// admission -> matching -> coalescing -> emission for tick T and returns
// the canonical event slice produced. Between calls the engine is
// quiescent; Tick is never reentrant and never called concurrently with
// itself for the same symbol (the symbol coordinator's pinning guarantees
// this).
func (e *Engine) Tick(t uint64) ([]events.Event, error) {
	if e.faulted {
		return nil, fmt.Errorf("tickengine: symbol %s is faulted", e.Symbol)
	}

	e.tick = t
	e.enqSeqCounter = 0
	e.terminalThisTick = e.terminalThisTick[:0]
	e.staging.Begin(t)

	// 1. Snapshot ref_price_at_tick_start.
	var refAtStart *int64
	if e.refPrice != nil {
		v := *e.refPrice
		refAtStart = &v
	}

	// 2. Drain and order the inbound SPSC.
	control, ordered := e.drainSorted()

	for _, m := range control {
		switch m.Kind {
		case MsgHalt:
			e.halted = m.Halt
		case MsgSetRef:
			if refAtStart == nil {
				v := m.SetRef
				refAtStart = &v
				e.refPrice = &v
			}
		}
	}

	ctx := admission.Context{Halted: e.halted, RefPrice: refAtStart}

	for _, m := range ordered {
		switch m.Kind {
		case MsgSubmit:
			e.handleSubmit(ctx, m.Submit)
		case MsgCancel:
			e.handleCancel(m.Cancel)
		}
	}

	// Any trade printed this tick becomes the ref price snapshotted at the
	// start of the next tick (spec.md §4.5 step 1, §8: "subsequent trade
	// sets ref_price and unlocks Market/IOC on the next tick"). SetRef is
	// only ever a cold-start seed (spec.md §6); once a real trade prints it
	// is the sole source of truth for ref_price from then on.
	if trades := e.staging.Trades(); len(trades) > 0 {
		raw := e.admission.Domain.Price(priced.Index(trades[len(trades)-1].PriceIdx))
		e.refPrice = &raw
	}

	// 3. Finalize: invariant check, canonicalize, emit, reclaim.
	if err := e.checkInvariants(); err != nil {
		e.faulted = true
		e.log.Error().Err(err).Uint64("tick", t).Msg("invariant breach, engine faulted")
		return nil, err
	}

	out := events.Canonicalize(e.bk, e.staging, e.stamper, e.Symbol, t)
	for _, ev := range out {
		if err := e.emit(t, ev); err != nil {
			e.faulted = true
			e.log.Error().Err(err).Uint64("tick", t).Msg("WAL overflow, engine faulted")
			return nil, err
		}
	}

	for _, idx := range e.terminalThisTick {
		e.arena.Release(idx)
	}

	return out, nil
}

// emit durably records ev to the lossless WAL first, then attempts a
// best-effort, non-blocking send to the outbound MPSC (spec.md §5: the
// MPSC consumer falling behind is not fatal, a WAL write failing is).
func (e *Engine) emit(t uint64, ev events.Event) error {
	if e.wal != nil {
		if err := e.wal.Append(e.Symbol, t, ev); err != nil {
			return err
		}
	}
	if e.outbound != nil && !e.outbound.TryPush(ev) {
		e.log.Warn().Uint64("tick", t).Msg("outbound MPSC full, event recorded in WAL only")
	}
	return nil
}

// handleSubmit runs admission (spec.md §4.1) and, on success, either rests
// the order (via the matcher's own crossing check) or routes it through the
// matcher as an aggressor.
func (e *Engine) handleSubmit(ctx admission.Context, req admission.SubmitRequest) {
	reason := e.admission.Admit(req, e.arena, e.bk, ctx)
	if reason != common.RejectNone {
		e.staging.StageLifecycle(events.OrderLifecycle{
			OrderID: req.OrderID, AccountID: req.AccountID,
			Event: common.LifecycleRejected, Reason: reason,
			RemainingQty: req.Qty,
		})
		e.log.Debug().Str("orderID", req.OrderID).Str("reason", reason.String()).Msg("order rejected at admission")
		return
	}

	e.enqSeqCounter++
	ord := arena.Order{
		OrderID: req.OrderID, AccountID: req.AccountID,
		Side: req.Side, Type: req.Type, PriceIdx: req.PriceIdx, HasPrice: req.HasPrice,
		QtyOpen: req.Qty, QtyTotal: req.Qty, TsNorm: req.TsNorm, EnqSeq: e.enqSeqCounter,
		State: common.Resting,
	}
	idx, ok := e.arena.Alloc(ord)
	if !ok {
		// Admission already checked HasFreeSlot; a concurrent mutation
		// within the same single-threaded tick cannot happen, so this is
		// unreachable in practice. Treat defensively as ArenaFull.
		e.staging.StageLifecycle(events.OrderLifecycle{
			OrderID: req.OrderID, AccountID: req.AccountID,
			Event: common.LifecycleRejected, Reason: common.ArenaFull,
			RemainingQty: req.Qty,
		})
		return
	}

	e.staging.StageLifecycle(events.OrderLifecycle{
		OrderID: req.OrderID, AccountID: req.AccountID,
		Event: common.Accepted, RemainingQty: req.Qty,
	})

	if req.Type == common.PostOnly {
		// PostOnly never matches (admission already rejected any crossing
		// submission); rest it directly without entering the matcher.
		e.bk.Insert(toBookSide(req.Side), int64(req.PriceIdx), idx, req.Qty, req.OrderID)
		return
	}

	result := e.match.Execute(e.arena, e.bk, e.staging, idx, ctx.RefPrice)
	e.terminalThisTick = append(e.terminalThisTick, result.TerminatedMakers...)
}

// handleCancel resolves a Cancel message against the arena, ordered by the
// (ts_norm, arrival) key against any concurrent fill already applied earlier
// in this tick's processing order (spec.md §4.3, §8 scenario 3). A cancel
// naming an order that does not exist, or that is already terminal this
// tick, is reported UnknownOrder and does not fault (spec.md §7).
func (e *Engine) handleCancel(req CancelRequest) {
	idx, ok := e.arena.Lookup(req.OrderID)
	if !ok {
		e.staging.StageLifecycle(events.OrderLifecycle{
			OrderID: req.OrderID, Event: common.LifecycleRejected, Reason: common.UnknownOrder,
		})
		return
	}
	ord := e.arena.Get(idx)
	if ord.State.IsTerminal() {
		e.staging.StageLifecycle(events.OrderLifecycle{
			OrderID: req.OrderID, AccountID: ord.AccountID,
			Event: common.LifecycleRejected, Reason: common.UnknownOrder,
		})
		return
	}

	e.bk.RemoveOrder(ord.OrderID, idx, ord.QtyOpen)
	ord.State = common.Cancelled
	e.staging.StageLifecycle(events.OrderLifecycle{
		OrderID: ord.OrderID, AccountID: ord.AccountID,
		Event: common.LifecycleCancelled, RemainingQty: ord.QtyOpen,
	})
	e.terminalThisTick = append(e.terminalThisTick, idx)
}

// checkInvariants verifies the tick-boundary invariants of spec.md §8
// before any event is emitted. A failure here is fatal (spec.md §7).
func (e *Engine) checkInvariants() error {
	if e.bk.Crossed() {
		return fmt.Errorf("tickengine: crossed book at tick end")
	}
	return nil
}

func toBookSide(s common.Side) book.Side {
	if s == common.Buy {
		return book.Buy
	}
	return book.Sell
}
