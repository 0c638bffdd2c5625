// Package admission implements the fixed-order, first-failure-wins
// validation pipeline of spec.md §4.1. Checks are numbered exactly as the
// spec table and must never be reordered or renumbered across versions.
package admission

import (
	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/priced"
)

// SubmitRequest is a routed order message already bound to one symbol,
// before admission (spec.md §6 Submit).
type SubmitRequest struct {
	OrderID   string
	AccountID string
	Side      common.Side
	Type      common.OrderType
	HasPrice  bool
	PriceIdx  priced.Index
	Qty       uint64
	TsNorm    int64

	// HadQueueRoom is stamped by the transport layer at arrival time: the
	// inbound SPSC had room when this message was enqueued (check #9).
	HadQueueRoom bool
}

// Context carries the per-tick state admission needs but does not own:
// whether the market is halted, and the reference price snapshotted at
// tick start (nil means undefined / cold start, spec.md §3).
type Context struct {
	Halted   bool
	RefPrice *int64
}

// Pipeline holds the per-symbol configuration the checks are evaluated
// against. It is stateless across ticks; enq_seq assignment and order
// admission into the arena/book happen in the caller (internal/tickengine)
// once Admit reports success, since those are tick-state concerns.
type Pipeline struct {
	Domain priced.Domain
	Band   priced.Band
	MaxQty uint64
	Risk   Checker
}

// Admit runs the admission pipeline against req and returns RejectNone on
// success, or the first failing check's RejectReason. The caller is
// expected to have already verified req.OrderID is non-empty and well
// formed (parse-level Malformed rejections happen at the transport
// boundary, before a SubmitRequest even exists).
func (p *Pipeline) Admit(req SubmitRequest, a *arena.Arena, bk *book.Book, ctx Context) common.RejectReason {
	// 1. Arena has a free slot.
	if !a.HasFreeSlot() {
		return common.ArenaFull
	}
	// 2. order_id not currently live.
	if a.IsLive(req.OrderID) {
		return common.DuplicateOrder
	}
	// 3. Market not halted for this symbol.
	if ctx.Halted {
		return common.MarketHalted
	}
	// 4. Price aligned to tick, in [floor, ceil] (limit/post-only; IOC/FOK
	// also carry a limit price per spec.md §4.3; only Market has none).
	if req.Type != common.Market {
		if !req.HasPrice {
			return common.Malformed
		}
		raw := p.Domain.Price(req.PriceIdx)
		if !p.Domain.Valid(raw) {
			return common.BadTick
		}
	}
	// 5. Price within band relative to ref_price_at_tick_start. Undefined
	// ref (cold start) has no reference to band against, so the check is
	// vacuous until the first trade prints (see DESIGN.md).
	if req.Type != common.Market && ctx.RefPrice != nil {
		raw := p.Domain.Price(req.PriceIdx)
		if !p.Band.InBand(raw, *ctx.RefPrice) {
			return common.OutOfBand
		}
	}
	// 6. Type/side constraints: cold-start gate on Market and IOC.
	if ctx.RefPrice == nil {
		switch req.Type {
		case common.Market:
			return common.MarketDisallowed
		case common.IOC:
			return common.IocDisallowed
		}
	}
	// 7. qty_total within configured max size/exposure.
	if p.MaxQty != 0 && req.Qty > p.MaxQty {
		return common.ExposureExceeded
	}
	// 8. Risk verdict present and positive.
	if p.Risk != nil {
		switch p.Risk.Check(req.AccountID, req.Qty) {
		case VerdictMiss:
			return common.RiskUnavailable
		case VerdictDenied:
			return common.InsufficientFunds
		}
	}
	// 9. Inbound SPSC had room at arrival.
	if !req.HadQueueRoom {
		return common.QueueBackpressure
	}

	// PostOnly cross pre-check (spec.md §4.1): no price improvement, no
	// slide — a crossing PostOnly is rejected outright.
	if req.Type == common.PostOnly && wouldCross(req, bk) {
		return common.PostOnlyCross
	}

	return common.RejectNone
}

// wouldCross reports whether an order at req.Side/req.PriceIdx would match
// immediately against the current opposing best price.
func wouldCross(req SubmitRequest, bk *book.Book) bool {
	opp := book.Sell
	if req.Side == common.Sell {
		opp = book.Buy
	}
	bestOpp, ok := bk.BestIdx(opp)
	if !ok {
		return false
	}
	if req.Side == common.Buy {
		return int64(req.PriceIdx) >= bestOpp
	}
	return int64(req.PriceIdx) <= bestOpp
}
