// Package matcher implements price-time matching for a single symbol's
// tick, grounded on the teacher's OrderBook.Match / handleMarket /
// handleLimit (saiputravu-Exchange, internal/engine/orderbook.go),
// generalized from a single LimitOrder/MarketOrder split to the full tagged
// OrderType set (Limit, Market, IOC, FOK, PostOnly) and integer price_idx
// domain, with self-match policy and FOK dry-walk added per spec.md §4.3.
package matcher

import (
	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/events"
	"tickforge/internal/priced"
)

// Matcher executes one aggressor order per call against a symbol's book.
// It is stateless across calls; all state lives in the arena and book it is
// given.
type Matcher struct {
	SelfMatch common.SelfMatchPolicy

	// Domain and Band bound a Market order's sweep to the band around
	// ref_price_at_tick_start, per spec.md §4.3 ("Market: matches across
	// any prices up to band limits"): admission skips the band check for
	// Market (it carries no limit price to check), so the matcher is the
	// only place left to enforce it.
	Domain priced.Domain
	Band   priced.Band

	// scratch is reused across Execute calls (truncated, not reallocated)
	// to collect terminated arena indices without per-call allocation.
	scratch []arena.Index
}

// Result summarizes one order's execution outcome for the tick executor,
// which owns terminal-state arena release and tick-level counters.
type Result struct {
	Filled    uint64
	Remaining uint64
	Resting   bool
	Rejected  bool
	Reason    common.RejectReason

	// TerminatedMakers lists every arena index (maker or, in the FOK-reject
	// case, the taker itself) that reached a terminal state during this
	// call and therefore needs its arena slot reclaimed once the tick
	// finishes (spec.md §3 Lifecycles: reclaim happens after the tick, not
	// mid-tick). It does not include the taker when the taker rests or is
	// left untouched; the caller already knows the taker's own outcome.
	TerminatedMakers []arena.Index
}

// Execute runs the order already resident in the arena at takerIdx against
// bk, staging Trade and maker OrderLifecycle events into s as it goes, plus
// the taker's own outcome event if the tick leaves it in a state beyond
// plain, untouched resting (the tick executor stages that order's Accepted
// itself, immediately on admission, per spec.md §8's literal scenarios —
// Execute never repeats it). Execute only ever produces FokUnfillable as a
// late, liquidity-dependent rejection (spec.md §4.3 — every other
// RejectReason is decided at admission, before an arena slot is even
// allocated).
func (m *Matcher) Execute(a *arena.Arena, bk *book.Book, s *events.Staging, takerIdx arena.Index, refPrice *int64) Result {
	taker := a.Get(takerIdx)
	m.scratch = m.scratch[:0]

	if taker.Type == common.FOK && !m.fokFillable(bk, taker, refPrice) {
		taker.State = common.Rejected
		s.StageLifecycle(events.OrderLifecycle{
			OrderID: taker.OrderID, AccountID: taker.AccountID,
			Event: common.LifecycleRejected, Reason: common.FokUnfillable,
			RemainingQty: taker.QtyOpen,
		})
		m.scratch = append(m.scratch, takerIdx)
		return Result{Remaining: taker.QtyOpen, Rejected: true, Reason: common.FokUnfillable, TerminatedMakers: m.scratch}
	}

	oppSide := toBookSide(taker.Side.Opposite())
	filled, selfMatchBlocked := m.sweep(a, bk, s, taker, oppSide, refPrice)

	resting := false
	if taker.State != common.Cancelled && taker.QtyOpen > 0 && (taker.Type == common.Limit || taker.Type == common.PostOnly) {
		bk.Insert(toBookSide(taker.Side), int64(taker.PriceIdx), takerIdx, taker.QtyOpen, taker.OrderID)
		resting = true
	}

	switch {
	case taker.QtyOpen == 0:
		taker.State = common.Filled
		s.StageLifecycle(events.OrderLifecycle{
			OrderID: taker.OrderID, AccountID: taker.AccountID,
			Event: common.LifecycleFilled, RemainingQty: 0,
			HasFill: filled > 0, LastFillQty: filled,
		})
	case resting && filled > 0:
		// Partial fill before resting: the admission-time Accepted already
		// covers "order exists"; this adds the fill the same tick produced.
		taker.State = common.PartiallyFilled
		s.StageLifecycle(events.OrderLifecycle{
			OrderID: taker.OrderID, AccountID: taker.AccountID,
			Event: common.LifecyclePartiallyFilled, RemainingQty: taker.QtyOpen,
			HasFill: true, LastFillQty: filled,
		})
	case resting:
		// Untouched resting order: admission's Accepted is the only event
		// this order gets this tick (spec.md §8 scenario 1, order B).
		taker.State = common.Resting
	default:
		// Market/IOC/FOK remainder that cannot rest is cancelled, not
		// rejected: the order was admitted and may have partially filled.
		// A remainder left over because the only crossing counterparties
		// were stepped over under Skip carries SelfMatchBlocked; an
		// ordinary no-more-liquidity cancellation carries no reason.
		taker.State = common.Cancelled
		reason := common.RejectNone
		if selfMatchBlocked {
			reason = common.SelfMatchBlocked
		}
		s.StageLifecycle(events.OrderLifecycle{
			OrderID: taker.OrderID, AccountID: taker.AccountID,
			Event: common.LifecycleCancelled, Reason: reason, RemainingQty: taker.QtyOpen,
			HasFill: filled > 0, LastFillQty: filled,
		})
	}

	if !resting {
		m.scratch = append(m.scratch, takerIdx)
	}
	result := Result{Filled: filled, Remaining: taker.QtyOpen, Resting: resting, TerminatedMakers: m.scratch}
	if taker.State == common.Cancelled && selfMatchBlocked {
		result.Reason = common.SelfMatchBlocked
	}
	return result
}

// sweep walks the opposite side outward, level by level, while the taker
// still has quantity open and the current level crosses its limit. Within a
// level it scans the FIFO from the head: a same-account resting order is
// skipped in place under Skip (it stays resting, unconsumed, and the scan
// moves to the next FIFO position, bounded by that level's length per
// spec.md §4.3), cancelled under CancelResting (removed, scan continues at
// the same position), or ends the sweep under CancelAggressor. Once a level
// is scanned with no eligible counterparty left (either exhausted by fills
// or entirely self-matched), the walk moves to the next level outward. It
// returns the quantity filled and whether any quantity remained open solely
// because eligible counterparties were stepped over under Skip.
func (m *Matcher) sweep(a *arena.Arena, bk *book.Book, s *events.Staging, taker *arena.Order, oppSide book.Side, refPrice *int64) (uint64, bool) {
	var totalFilled uint64
	sawSkip := false

	lvl, ok := bk.PeekBest(oppSide)
	for ok && taker.QtyOpen > 0 && m.priceCrosses(taker, lvl.PriceIdx, refPrice) {
		pos := 0
		for pos < lvl.Len() && taker.QtyOpen > 0 {
			idx := lvl.At(pos)
			maker := a.Get(idx)

			if maker.AccountID == taker.AccountID {
				switch m.SelfMatch {
				case common.Skip:
					sawSkip = true
					pos++
					continue
				case common.CancelResting:
					m.cancelMaker(bk, s, maker, idx)
					continue // removeAt shifted the FIFO left; re-check pos
				case common.CancelAggressor:
					taker.State = common.Cancelled
					return totalFilled, false
				}
			}

			matchQty := taker.QtyOpen
			if maker.QtyOpen < matchQty {
				matchQty = maker.QtyOpen
			}

			taker.QtyOpen -= matchQty
			maker.QtyOpen -= matchQty
			totalFilled += matchQty

			s.StageTrade(events.Trade{
				MakerOrderID:  maker.OrderID,
				TakerOrderID:  taker.OrderID,
				MakerAcct:     maker.AccountID,
				TakerAcct:     taker.AccountID,
				PriceIdx:      lvl.PriceIdx,
				Qty:           matchQty,
				AggressorSide: taker.Side,
				TsNorm:        taker.TsNorm,
			})

			if maker.QtyOpen == 0 {
				bk.RemoveOrder(maker.OrderID, idx, matchQty)
				maker.State = common.Filled
				m.scratch = append(m.scratch, idx)
				s.StageLifecycle(events.OrderLifecycle{
					OrderID: maker.OrderID, AccountID: maker.AccountID,
					Event: common.LifecycleFilled, RemainingQty: 0,
					HasFill: true, LastFillPriceIdx: lvl.PriceIdx, LastFillQty: matchQty,
				})
				// removeAt shifted the FIFO left; stay at pos.
			} else {
				bk.DecrementHead(oppSide, lvl.PriceIdx, matchQty)
				maker.State = common.PartiallyFilled
				s.StageLifecycle(events.OrderLifecycle{
					OrderID: maker.OrderID, AccountID: maker.AccountID,
					Event: common.LifecyclePartiallyFilled, RemainingQty: maker.QtyOpen,
					HasFill: true, LastFillPriceIdx: lvl.PriceIdx, LastFillQty: matchQty,
				})
				pos++
			}
		}

		if taker.QtyOpen == 0 {
			break
		}
		lvl, ok = bk.NextLevel(oppSide, lvl.PriceIdx)
	}

	return totalFilled, sawSkip && taker.QtyOpen > 0
}

// cancelMaker removes a self-matching resting order under the
// CancelResting policy and stages its cancellation.
func (m *Matcher) cancelMaker(bk *book.Book, s *events.Staging, maker *arena.Order, idx arena.Index) {
	qty := maker.QtyOpen
	bk.RemoveOrder(maker.OrderID, idx, qty)
	maker.State = common.Cancelled
	maker.QtyOpen = 0
	m.scratch = append(m.scratch, idx)
	s.StageLifecycle(events.OrderLifecycle{OrderID: maker.OrderID, AccountID: maker.AccountID, Event: common.LifecycleCancelled, RemainingQty: 0})
}

// fokFillable reports whether the full remaining quantity of a FOK order
// could be matched right now without committing any of it, per spec.md
// §4.3: "first determine the total available quantity at the order's
// limit [or better]; if it is less than qty_total, reject the whole order."
func (m *Matcher) fokFillable(bk *book.Book, taker *arena.Order, refPrice *int64) bool {
	oppSide := toBookSide(taker.Side.Opposite())
	avail := bk.AvailableQty(oppSide, func(priceIdx int64) bool {
		return m.priceCrosses(taker, priceIdx, refPrice)
	})
	return avail >= taker.QtyOpen
}

// priceCrosses reports whether a resting level at bestOppIdx would match
// against the taker's limit. IOC and FOK both carry a limit price per
// spec.md §4.3 and are bounded by it like Limit. Market has no limit price
// but is still bounded by the band around refPrice ("matches across any
// prices up to band limits", spec.md §4.3); admission guarantees refPrice
// is set by the time a Market order reaches the matcher (cold-start rejects
// Market outright), so a nil refPrice here only arises in tests that drive
// the matcher directly, and is treated as unbounded.
func (m *Matcher) priceCrosses(taker *arena.Order, bestOppIdx int64, refPrice *int64) bool {
	if taker.Type == common.Market {
		if refPrice == nil {
			return true
		}
		raw := m.Domain.Price(priced.Index(bestOppIdx))
		return m.Band.InBand(raw, *refPrice)
	}
	if taker.Side == common.Buy {
		return int64(taker.PriceIdx) >= bestOppIdx
	}
	return int64(taker.PriceIdx) <= bestOppIdx
}

func toBookSide(s common.Side) book.Side {
	if s == common.Buy {
		return book.Buy
	}
	return book.Sell
}
