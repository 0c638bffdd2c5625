package events

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
)

func TestCanonicalOrderTradesDeltasLifecycleThenComplete(t *testing.T) {
	b := book.New()
	b.Insert(book.Sell, 50, arena.Index(1), 2, "maker")
	b.RemoveOrder("maker", arena.Index(1), 2) // touch and clear the level: delta should read 0

	s := NewStaging("AAPL")
	s.Begin(7)
	s.StageTrade(Trade{MakerOrderID: "maker", TakerOrderID: "taker", PriceIdx: 50, Qty: 2, AggressorSide: common.Buy})
	s.StageLifecycle(OrderLifecycle{OrderID: "taker", Event: common.LifecycleFilled, RemainingQty: 0})

	stamper := ExecIDStamper{Mode: common.Sharded, ShiftBits: 20}
	out := Canonicalize(b, s, stamper, "AAPL", 7)

	assert.Len(t, out, 4)
	assert.Equal(t, KindTrade, out[0].Kind)
	assert.Equal(t, KindBookDelta, out[1].Kind)
	assert.Equal(t, KindOrderLifecycle, out[2].Kind)
	assert.Equal(t, KindTickComplete, out[3].Kind)

	assert.EqualValues(t, 0, out[1].BookDelta.NewTotalQty)
	assert.Equal(t, uint64(7), out[0].Trade.Tick)
	assert.Equal(t, uint64(0), out[0].Trade.SeqInTick)
	assert.Equal(t, uint64(1), out[2].Lifecycle.SeqInTick, "lifecycle shares the seq_in_tick counter with trades")
	assert.Equal(t, "AAPL", out[3].TickComplete.Symbol)
	assert.Equal(t, uint64(7), out[3].TickComplete.Tick)
}

func TestBookDeltasOrderedBidThenAskAscending(t *testing.T) {
	b := book.New()
	b.Insert(book.Sell, 102, arena.Index(1), 1, "a")
	b.Insert(book.Sell, 101, arena.Index(2), 1, "b")
	b.Insert(book.Buy, 99, arena.Index(3), 1, "c")
	b.Insert(book.Buy, 98, arena.Index(4), 1, "d")

	s := NewStaging("SYM")
	s.Begin(1)
	stamper := ExecIDStamper{Mode: common.External}
	out := Canonicalize(b, s, stamper, "SYM", 1)

	var deltas []BookDelta
	for _, e := range out {
		if e.Kind == KindBookDelta {
			deltas = append(deltas, e.BookDelta)
		}
	}

	assert.Len(t, deltas, 4)
	// Bid side first, ascending price_idx: 98 then 99.
	assert.Equal(t, book.Buy, deltas[0].Side)
	assert.EqualValues(t, 98, deltas[0].PriceIdx)
	assert.Equal(t, book.Buy, deltas[1].Side)
	assert.EqualValues(t, 99, deltas[1].PriceIdx)
	// Then ask side, ascending price_idx: 101 then 102.
	assert.Equal(t, book.Sell, deltas[2].Side)
	assert.EqualValues(t, 101, deltas[2].PriceIdx)
	assert.Equal(t, book.Sell, deltas[3].Side)
	assert.EqualValues(t, 102, deltas[3].PriceIdx)
}

func TestExternalExecIDModeLeavesZero(t *testing.T) {
	b := book.New()
	s := NewStaging("SYM")
	s.Begin(3)
	s.StageTrade(Trade{MakerOrderID: "m", TakerOrderID: "t"})
	out := Canonicalize(b, s, ExecIDStamper{Mode: common.External}, "SYM", 3)
	assert.EqualValues(t, 0, out[0].Trade.ExecID)
}

func TestShardedExecIDModeStampsFromTickAndSeq(t *testing.T) {
	b := book.New()
	s := NewStaging("SYM")
	s.Begin(3)
	s.StageTrade(Trade{MakerOrderID: "m1", TakerOrderID: "t1"})
	s.StageTrade(Trade{MakerOrderID: "m2", TakerOrderID: "t2"})
	out := Canonicalize(b, s, ExecIDStamper{Mode: common.Sharded, ShiftBits: 8}, "SYM", 3)
	assert.EqualValues(t, (3<<8)|0, out[0].Trade.ExecID)
	assert.EqualValues(t, (3<<8)|1, out[1].Trade.ExecID)
}
