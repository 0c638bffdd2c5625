// Package book implements the two-sided, price-indexed FIFO order book
// (spec.md §3 Price level / Book, §4.2). Price levels are kept in a
// tidwall/btree.BTreeG per side — bids ordered highest-first, asks
// lowest-first — generalizing the teacher's (saiputravu-Exchange,
// internal/engine/orderbook.go) float-keyed *PriceLevel btree to the
// integer price_idx domain. The matcher mostly reads only the tree's Min
// (the current best level); callers needing a canonical multi-level
// ordering (event emission) sort dirty keys explicitly instead of relying
// on tree order (spec.md §9). The exceptions are two bounded Ascend walks:
// AvailableQty's, used by FOK's dry-walk, pivots on a live Min() result;
// NextLevel's pivots on a key built from a price index, which need not be
// a level still in the tree.
package book

import (
	"tickforge/internal/arena"

	"github.com/tidwall/btree"
)

// Key identifies a dirty (side, price_idx) pair touched during a tick, used
// by the canonicaliser to emit exactly one BookDelta per level per tick.
type Key struct {
	Side     Side
	PriceIdx int64
}

// Side mirrors common.Side but is declared locally to keep this package
// import-light; callers convert at the boundary.
type Side int

const (
	Buy Side = iota
	Sell
)

type sideLoc struct {
	side     Side
	priceIdx int64
}

// Book holds both sides of a single symbol's price-level skyline plus the
// order_id -> (side, price_idx) lookup used to find an order's level on
// cancellation.
type Book struct {
	bids *btree.BTreeG[*Level] // ordered highest price_idx first
	asks *btree.BTreeG[*Level] // ordered lowest price_idx first

	byOrderID map[string]sideLoc

	nBuyOrders, nSellOrders   uint64
	buyQuantity, sellQuantity uint64

	dirty map[Key]struct{}
}

// New constructs an empty Book.
func New() *Book {
	bids := btree.NewBTreeG(func(a, b *Level) bool {
		return a.PriceIdx > b.PriceIdx // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *Level) bool {
		return a.PriceIdx < b.PriceIdx // ascending: best ask first
	})
	return &Book{
		bids:      bids,
		asks:      asks,
		byOrderID: make(map[string]sideLoc),
		dirty:     make(map[Key]struct{}),
	}
}

func (b *Book) levels(side Side) *btree.BTreeG[*Level] {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) markDirty(side Side, priceIdx int64) {
	b.dirty[Key{Side: side, PriceIdx: priceIdx}] = struct{}{}
}

// DirtyKeys returns the set of (side, price_idx) pairs touched since the
// last ClearDirty, in no particular order — canonical ordering is imposed
// by the caller (internal/events) when it reads back final quantities.
func (b *Book) DirtyKeys() []Key {
	keys := make([]Key, 0, len(b.dirty))
	for k := range b.dirty {
		keys = append(keys, k)
	}
	return keys
}

// ClearDirty resets the dirty set at the end of a tick.
func (b *Book) ClearDirty() {
	b.dirty = make(map[Key]struct{})
}

// TotalQtyAt returns the current total_qty at (side, price_idx), 0 if the
// level no longer exists (used by the canonicaliser for BookDelta.new_total_qty).
func (b *Book) TotalQtyAt(side Side, priceIdx int64) uint64 {
	lvl, ok := b.levels(side).Get(&Level{PriceIdx: priceIdx})
	if !ok {
		return 0
	}
	return lvl.TotalQty
}

// PeekBest returns the best level on a side without removing anything.
func (b *Book) PeekBest(side Side) (*Level, bool) {
	return b.levels(side).Min()
}

// BestIdx returns the best price index on a side, if any level exists.
func (b *Book) BestIdx(side Side) (int64, bool) {
	lvl, ok := b.PeekBest(side)
	if !ok {
		return 0, false
	}
	return lvl.PriceIdx, true
}

// Crossed reports whether the book is crossed (best_bid >= best_ask).
func (b *Book) Crossed() bool {
	bestBid, bidOk := b.BestIdx(Buy)
	bestAsk, askOk := b.BestIdx(Sell)
	if !bidOk || !askOk {
		return false
	}
	return bestBid >= bestAsk
}

// Insert appends a resting order at its limit price on the given side,
// creating the level if necessary, and marks the level dirty.
func (b *Book) Insert(side Side, priceIdx int64, idx arena.Index, qty uint64, orderID string) {
	levels := b.levels(side)
	lvl, ok := levels.Get(&Level{PriceIdx: priceIdx})
	if !ok {
		lvl = &Level{PriceIdx: priceIdx}
		levels.Set(lvl)
	}
	lvl.push(idx, qty)
	b.byOrderID[orderID] = sideLoc{side: side, priceIdx: priceIdx}

	if side == Buy {
		b.nBuyOrders++
		b.buyQuantity += qty
	} else {
		b.nSellOrders++
		b.sellQuantity += qty
	}
	b.markDirty(side, priceIdx)
}

// Locate returns the (side, price_idx) of a resting order_id without
// mutating anything, for callers that need to know where an order sits.
func (b *Book) Locate(orderID string) (side Side, priceIdx int64, ok bool) {
	loc, found := b.byOrderID[orderID]
	if !found {
		return 0, 0, false
	}
	return loc.side, loc.priceIdx, true
}

// RemoveOrder removes a specific arena index from its resting level,
// identified by orderID (for the lookup) and the index itself (for FIFO
// removal), decrementing bookkeeping and deleting the level if it becomes
// empty. This is the book's sole cancellation primitive.
func (b *Book) RemoveOrder(orderID string, idx arena.Index, qty uint64) bool {
	loc, found := b.byOrderID[orderID]
	if !found {
		return false
	}
	levels := b.levels(loc.side)
	lvl, ok := levels.Get(&Level{PriceIdx: loc.priceIdx})
	if !ok {
		delete(b.byOrderID, orderID)
		return false
	}
	pos := -1
	for i := 0; i < lvl.Len(); i++ {
		if lvl.At(i) == idx {
			pos = i
			break
		}
	}
	if pos == -1 {
		delete(b.byOrderID, orderID)
		return false
	}
	lvl.removeAt(pos, qty)
	delete(b.byOrderID, orderID)

	if loc.side == Buy {
		b.nBuyOrders--
		b.buyQuantity -= qty
	} else {
		b.nSellOrders--
		b.sellQuantity -= qty
	}

	if lvl.Empty() {
		levels.Delete(lvl)
	}
	b.markDirty(loc.side, loc.priceIdx)
	return true
}

// DecrementHead reduces the resting head order's tracked quantity by delta
// (a fill that does not fully consume it), keeping TotalQty and the side
// aggregate in sync, without removing the order from the FIFO.
func (b *Book) DecrementHead(side Side, priceIdx int64, delta uint64) {
	levels := b.levels(side)
	lvl, ok := levels.Get(&Level{PriceIdx: priceIdx})
	if !ok {
		return
	}
	lvl.decrementHead(delta)
	if side == Buy {
		b.buyQuantity -= delta
	} else {
		b.sellQuantity -= delta
	}
	b.markDirty(side, priceIdx)
}

// PopHead fully consumes and removes the FIFO head at (side, priceIdx),
// deleting the order_id lookup entry and the level itself if now empty.
func (b *Book) PopHead(side Side, priceIdx int64, orderID string, qty uint64) {
	levels := b.levels(side)
	lvl, ok := levels.Get(&Level{PriceIdx: priceIdx})
	if !ok {
		return
	}
	lvl.popHead(qty)
	delete(b.byOrderID, orderID)

	if side == Buy {
		b.nBuyOrders--
		b.buyQuantity -= qty
	} else {
		b.nSellOrders--
		b.sellQuantity -= qty
	}

	if lvl.Empty() {
		levels.Delete(lvl)
	}
	b.markDirty(side, priceIdx)
}

// NextLevel returns the first level strictly after afterPriceIdx on side, in
// the side's natural walk order (ascending for asks, descending for bids).
// Used by the matcher to move outward once the current best level's FIFO is
// exhausted of eligible counterparties (e.g. every remaining entry is a
// self-match skipped in place, per spec.md §4.3's Skip policy).
func (b *Book) NextLevel(side Side, afterPriceIdx int64) (*Level, bool) {
	var next *Level
	b.levels(side).Ascend(&Level{PriceIdx: afterPriceIdx}, func(lvl *Level) bool {
		if lvl.PriceIdx == afterPriceIdx {
			return true
		}
		next = lvl
		return false
	})
	if next == nil {
		return nil, false
	}
	return next, true
}

// AvailableQty sums total_qty across levels on side starting from the best
// and moving outward, stopping at (and excluding) the first level for which
// reachable reports false. It does not mutate anything. This is FOK's
// dry-walk primitive (spec.md §4.3): determine whether a fill-or-kill order
// can be fully satisfied before committing any quantity to it.
func (b *Book) AvailableQty(side Side, reachable func(priceIdx int64) bool) uint64 {
	best, ok := b.PeekBest(side)
	if !ok {
		return 0
	}
	var total uint64
	b.levels(side).Ascend(best, func(lvl *Level) bool {
		if !reachable(lvl.PriceIdx) {
			return false
		}
		total += lvl.TotalQty
		return true
	})
	return total
}

// NBuyOrders, NSellOrders, BuyQuantity, SellQuantity expose the cached
// aggregate bookkeeping counters for diagnostics and snapshotting.
func (b *Book) NBuyOrders() uint64   { return b.nBuyOrders }
func (b *Book) NSellOrders() uint64  { return b.nSellOrders }
func (b *Book) BuyQuantity() uint64  { return b.buyQuantity }
func (b *Book) SellQuantity() uint64 { return b.sellQuantity }
