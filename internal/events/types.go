// Package events implements per-tick event staging and the canonical
// emission order mandated by spec.md §4.4: Trades, then BookDeltas, then
// OrderLifecycle events, then exactly one TickComplete. The outbound
// message schema mirrors spec.md §6 field-for-field.
package events

import (
	"tickforge/internal/book"
	"tickforge/internal/common"
)

// Trade is staged by the matcher for every pairing it executes.
type Trade struct {
	Symbol        string
	Tick          uint64
	MakerOrderID  string
	TakerOrderID  string
	MakerAcct     string
	TakerAcct     string
	PriceIdx      int64
	Qty           uint64
	AggressorSide common.Side
	TsNorm        int64
	SeqInTick     uint64
	ExecID        uint64
}

// BookDelta carries a level's final post-tick total_qty. Exactly one is
// emitted per dirty (side, price_idx) per tick; NewTotalQty is 0 if the
// level no longer exists.
type BookDelta struct {
	Symbol      string
	Tick        uint64
	Side        book.Side
	PriceIdx    int64
	NewTotalQty uint64
}

// OrderLifecycle reports an admission or matching-driven state transition.
type OrderLifecycle struct {
	Symbol    string
	Tick      uint64
	OrderID   string
	AccountID string
	Event     common.LifecycleEventKind
	Reason    common.RejectReason // RejectNone except LifecycleRejected (admission/FOK reasons) and a SelfMatchBlocked LifecycleCancelled

	HasFill         bool
	LastFillPriceIdx int64
	LastFillQty      uint64

	RemainingQty uint64
	SeqInTick    uint64
}

// TickComplete is the terminal event of a symbol's tick, emitted exactly
// once as the last event.
type TickComplete struct {
	Symbol string
	Tick   uint64
}

// Kind tags which variant of Event is populated. Order-type-style exhaustive
// dispatch, no dynamic interface dispatch on the hot path.
type Kind int

const (
	KindTrade Kind = iota
	KindBookDelta
	KindOrderLifecycle
	KindTickComplete
)

// Event is the tagged union placed on the outbound MPSC queue. Only the
// field matching Kind is populated.
type Event struct {
	Kind         Kind
	Trade        Trade
	BookDelta    BookDelta
	Lifecycle    OrderLifecycle
	TickComplete TickComplete
}
