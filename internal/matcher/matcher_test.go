package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/events"
	"tickforge/internal/priced"
)

// place allocates a resting order directly in the arena and books it,
// mimicking what the tick executor does for an admitted Limit order before
// handing control to the matcher.
func place(t *testing.T, a *arena.Arena, bk *book.Book, side common.Side, priceIdx int64, qty uint64, id, acct string) arena.Index {
	t.Helper()
	idx, ok := a.Alloc(arena.Order{
		OrderID: id, AccountID: acct, Side: side, Type: common.Limit,
		PriceIdx: priced.Index(priceIdx), HasPrice: true, QtyOpen: qty, QtyTotal: qty,
	})
	assert.True(t, ok)
	bk.Insert(toBookSide(side), priceIdx, idx, qty, id)
	return idx
}

func aggress(t *testing.T, a *arena.Arena, otype common.OrderType, side common.Side, priceIdx int64, qty uint64, id, acct string) arena.Index {
	t.Helper()
	idx, ok := a.Alloc(arena.Order{
		OrderID: id, AccountID: acct, Side: side, Type: otype,
		PriceIdx: priced.Index(priceIdx), HasPrice: otype != common.Market,
		QtyOpen: qty, QtyTotal: qty,
	})
	assert.True(t, ok)
	return idx
}

func TestPriceTimePriorityFillsEarlierRestingOrderFirst(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "maker-a")
	place(t, a, bk, common.Sell, 100, 5, "s2", "maker-b")

	takerIdx := aggress(t, a, common.Limit, common.Buy, 100, 7, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(7), res.Filled)
	assert.Equal(t, uint64(0), res.Remaining)

	trades := s.Trades()
	assert.Len(t, trades, 2)
	assert.Equal(t, "s1", trades[0].MakerOrderID)
	assert.Equal(t, uint64(5), trades[0].Qty)
	assert.Equal(t, "s2", trades[1].MakerOrderID)
	assert.Equal(t, uint64(2), trades[1].Qty)

	s2idx, _ := a.Lookup("s2")
	assert.Equal(t, uint64(3), a.Get(s2idx).QtyOpen)
}

func TestSelfMatchSkipStepsOverOwnOrderInPlace(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "same-acct")
	place(t, a, bk, common.Sell, 100, 5, "s2", "other-acct")

	takerIdx := aggress(t, a, common.Limit, common.Buy, 100, 8, "b1", "same-acct")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{SelfMatch: common.Skip}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(5), res.Filled, "Skip steps over s1 in place and matches against s2 instead")
	assert.Equal(t, uint64(3), res.Remaining)
	assert.True(t, res.Resting)

	trades := s.Trades()
	assert.Len(t, trades, 1)
	assert.Equal(t, "s2", trades[0].MakerOrderID)

	s1idx, _ := a.Lookup("s1")
	assert.Equal(t, common.Resting, a.Get(s1idx).State, "s1 must remain resting, untouched, after being skipped")
	assert.Equal(t, uint64(5), a.Get(s1idx).QtyOpen)
}

func TestSelfMatchCancelRestingRemovesMakerAndContinues(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "same-acct")
	place(t, a, bk, common.Sell, 100, 5, "s2", "other-acct")

	takerIdx := aggress(t, a, common.Limit, common.Buy, 100, 8, "b1", "same-acct")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{SelfMatch: common.CancelResting}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(5), res.Filled)
	s1idx, _ := a.Lookup("s1")
	assert.Equal(t, common.Cancelled, a.Get(s1idx).State)
}

func TestSelfMatchCancelAggressorStopsImmediately(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "same-acct")

	takerIdx := aggress(t, a, common.Limit, common.Buy, 100, 5, "b1", "same-acct")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{SelfMatch: common.CancelAggressor}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(0), res.Filled)
	assert.Equal(t, common.Cancelled, a.Get(takerIdx).State)
}

func TestPostOnlyNonCrossingRestsWithoutTrading(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 110, 5, "s1", "maker")

	takerIdx := aggress(t, a, common.PostOnly, common.Buy, 100, 5, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(0), res.Filled)
	assert.True(t, res.Resting)
	bestBid, ok := bk.BestIdx(book.Buy)
	assert.True(t, ok)
	assert.EqualValues(t, 100, bestBid)
	assert.Empty(t, s.Lifecycle(), "an untouched rest gets no event from Execute; admission already staged Accepted")
}

func TestFokUnfillableRejectsWithoutAnyPartialFill(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "maker")

	takerIdx := aggress(t, a, common.FOK, common.Buy, 100, 10, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.True(t, res.Rejected)
	assert.Equal(t, common.FokUnfillable, res.Reason)
	assert.Len(t, s.Trades(), 0, "FOK must not commit any quantity when unfillable")

	s1idx, _ := a.Lookup("s1")
	assert.Equal(t, uint64(5), a.Get(s1idx).QtyOpen, "resting maker must be untouched")
}

func TestFokFillableAcrossMultipleLevelsExecutesInFull(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "maker-a")
	place(t, a, bk, common.Sell, 101, 5, "s2", "maker-b")

	takerIdx := aggress(t, a, common.FOK, common.Buy, 101, 10, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.False(t, res.Rejected)
	assert.Equal(t, uint64(10), res.Filled)
	assert.Equal(t, uint64(0), res.Remaining)
}

func TestIOCCancelsUnfilledRemainderInsteadOfResting(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 3, "s1", "maker")

	takerIdx := aggress(t, a, common.IOC, common.Buy, 100, 10, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(3), res.Filled)
	assert.False(t, res.Resting)
	assert.Equal(t, common.Cancelled, a.Get(takerIdx).State)
	_, _, stillBooked := bk.Locate("b1")
	assert.False(t, stillBooked)
}

func TestSelfMatchSkipMovesToNextLevelWhenWholeLevelIsSelfMatched(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "same-acct")
	place(t, a, bk, common.Sell, 101, 5, "s2", "other-acct")

	takerIdx := aggress(t, a, common.Limit, common.Buy, 101, 5, "b1", "same-acct")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{SelfMatch: common.Skip}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(5), res.Filled, "the 100 level is entirely self-matched so the sweep must move to 101")
	trades := s.Trades()
	assert.Len(t, trades, 1)
	assert.Equal(t, "s2", trades[0].MakerOrderID)
	assert.EqualValues(t, 101, trades[0].PriceIdx)

	s1idx, _ := a.Lookup("s1")
	assert.Equal(t, common.Resting, a.Get(s1idx).State)
}

func TestSelfMatchSkipWithNoOtherLiquidityCancelsWithReason(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 150, 5, "s1", "A")

	takerIdx := aggress(t, a, common.Market, common.Buy, 0, 5, "b1", "A")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{SelfMatch: common.Skip}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(0), res.Filled)
	assert.Equal(t, common.SelfMatchBlocked, res.Reason)
	assert.Empty(t, s.Trades())
	assert.Equal(t, common.Cancelled, a.Get(takerIdx).State)

	s1idx, _ := a.Lookup("s1")
	assert.Equal(t, common.Resting, a.Get(s1idx).State, "the skipped resting order is untouched")
}

// A Market order's sweep must stay inside the band around ref_price, per
// spec.md §4.3 ("Market: matches across any prices up to band limits");
// admission never checks the band for Market (it carries no limit price),
// so the matcher is the only place this can be enforced.
func TestMarketOrderSweepStopsAtBandLimit(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 100, 5, "s1", "maker-a") // within band
	place(t, a, bk, common.Sell, 120, 5, "s2", "maker-b") // outside band

	takerIdx := aggress(t, a, common.Market, common.Buy, 0, 10, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{Domain: priced.Domain{Floor: 0, Ceil: 1000, Tick: 1}, Band: priced.NewAbsBand(10)}
	ref := int64(100)
	res := m.Execute(a, bk, s, takerIdx, &ref)

	assert.Equal(t, uint64(5), res.Filled, "only the in-band level may trade")
	assert.Equal(t, uint64(5), res.Remaining)
	assert.False(t, res.Resting, "a Market remainder stopped by the band is cancelled, not booked")
	assert.Equal(t, common.Cancelled, a.Get(takerIdx).State)

	trades := s.Trades()
	require.Len(t, trades, 1)
	assert.Equal(t, "s1", trades[0].MakerOrderID)

	s2idx, _ := a.Lookup("s2")
	assert.Equal(t, common.Resting, a.Get(s2idx).State, "the out-of-band level must be left untouched")
}

func TestMarketOrderIgnoresLimitPriceBound(t *testing.T) {
	a := arena.New(8)
	bk := book.New()
	place(t, a, bk, common.Sell, 500, 5, "s1", "maker")

	takerIdx := aggress(t, a, common.Market, common.Buy, 0, 5, "b1", "taker")
	s := events.NewStaging("SYM")
	s.Begin(1)
	m := &Matcher{}
	res := m.Execute(a, bk, s, takerIdx, nil)

	assert.Equal(t, uint64(5), res.Filled)
	assert.Equal(t, common.Filled, a.Get(takerIdx).State)
}
