package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/priced"
)

func testDomain(t *testing.T) priced.Domain {
	t.Helper()
	d, err := priced.NewDomain(100, 200, 1)
	assert.NoError(t, err)
	return d
}

func basePipeline(t *testing.T) (*Pipeline, *arena.Arena, *book.Book) {
	return &Pipeline{
		Domain: testDomain(t),
		Band:   priced.NewAbsBand(50),
		MaxQty: 1000,
		Risk:   AlwaysApprove{},
	}, arena.New(4), book.New()
}

func limitReq(id string, priceIdx int64) SubmitRequest {
	return SubmitRequest{
		OrderID:      id,
		AccountID:    "acct-1",
		Side:         common.Buy,
		Type:         common.Limit,
		HasPrice:     true,
		PriceIdx:     priced.Index(priceIdx),
		Qty:          10,
		HadQueueRoom: true,
	}
}

func refPrice(p int64) Context {
	return Context{RefPrice: &p}
}

func TestAdmitAcceptsWellFormedLimit(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50) // raw price 150, ref 150
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.RejectNone, got)
}

func TestAdmitArenaFullTakesPriorityOverEverythingElse(t *testing.T) {
	p, a, bk := basePipeline(t)
	a = arena.New(1)
	_, ok := a.Alloc(arena.Order{OrderID: "filler"})
	assert.True(t, ok)

	req := limitReq("dup-irrelevant", 50)
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.ArenaFull, got)
}

func TestAdmitDuplicateOrderRejected(t *testing.T) {
	p, a, bk := basePipeline(t)
	_, ok := a.Alloc(arena.Order{OrderID: "o1"})
	assert.True(t, ok)

	req := limitReq("o1", 50)
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.DuplicateOrder, got)
}

func TestAdmitMarketHalted(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	ctx := refPrice(150)
	ctx.Halted = true
	got := p.Admit(req, a, bk, ctx)
	assert.Equal(t, common.MarketHalted, got)
}

func TestAdmitBadTickOutOfRange(t *testing.T) {
	p, a, bk := basePipeline(t)
	p.Domain, _ = priced.NewDomain(100, 200, 5)
	// Domain.Price always returns a tick-aligned raw price by construction,
	// so an out-of-range index is the only way to trigger Valid()'s failure
	// path from this seam.
	req := limitReq("o1", 1000)
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.BadTick, got)
}

func TestAdmitMarketOrderSkipsPriceChecks(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 0)
	req.Type = common.Market
	req.HasPrice = false
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.RejectNone, got)
}

func TestAdmitOutOfBandRejected(t *testing.T) {
	p, a, bk := basePipeline(t)
	// band is +-50 around ref; ref 150, band [100,200]; price_idx 0 -> raw 100 is in band,
	// push price far out by using a wider domain.
	p.Domain, _ = priced.NewDomain(0, 1000, 1)
	req := limitReq("o1", 0) // raw 0
	got := p.Admit(req, a, bk, refPrice(500))
	assert.Equal(t, common.OutOfBand, got)
}

func TestAdmitOutOfBandSkippedAtColdStart(t *testing.T) {
	p, a, bk := basePipeline(t)
	p.Domain, _ = priced.NewDomain(0, 1000, 1)
	req := limitReq("o1", 0) // would be OutOfBand against any ref, but ref is nil
	got := p.Admit(req, a, bk, Context{RefPrice: nil})
	assert.Equal(t, common.RejectNone, got)
}

func TestAdmitColdStartRejectsMarket(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	req.Type = common.Market
	req.HasPrice = false
	got := p.Admit(req, a, bk, Context{RefPrice: nil})
	assert.Equal(t, common.MarketDisallowed, got)
}

func TestAdmitColdStartRejectsIOC(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	req.Type = common.IOC
	got := p.Admit(req, a, bk, Context{RefPrice: nil})
	assert.Equal(t, common.IocDisallowed, got)
}

func TestAdmitColdStartAcceptsLimitAndPostOnly(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	got := p.Admit(req, a, bk, Context{RefPrice: nil})
	assert.Equal(t, common.RejectNone, got)

	a2 := arena.New(4)
	bk2 := book.New()
	req2 := limitReq("o2", 50)
	req2.Type = common.PostOnly
	got2 := p.Admit(req2, a2, bk2, Context{RefPrice: nil})
	assert.Equal(t, common.RejectNone, got2)
}

func TestAdmitColdStartAcceptsFOKWithoutSpecialCase(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	req.Type = common.FOK
	got := p.Admit(req, a, bk, Context{RefPrice: nil})
	assert.Equal(t, common.RejectNone, got)
}

func TestAdmitExposureExceeded(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	req.Qty = 10_000
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.ExposureExceeded, got)
}

type denyingRisk struct{}

func (denyingRisk) Check(accountID string, qty uint64) Verdict { return VerdictDenied }

type missingRisk struct{}

func (missingRisk) Check(accountID string, qty uint64) Verdict { return VerdictMiss }

func TestAdmitRiskDenied(t *testing.T) {
	p, a, bk := basePipeline(t)
	p.Risk = denyingRisk{}
	req := limitReq("o1", 50)
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.InsufficientFunds, got)
}

func TestAdmitRiskUnavailableOnCacheMiss(t *testing.T) {
	p, a, bk := basePipeline(t)
	p.Risk = missingRisk{}
	req := limitReq("o1", 50)
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.RiskUnavailable, got)
}

func TestAdmitQueueBackpressure(t *testing.T) {
	p, a, bk := basePipeline(t)
	req := limitReq("o1", 50)
	req.HadQueueRoom = false
	got := p.Admit(req, a, bk, refPrice(150))
	assert.Equal(t, common.QueueBackpressure, got)
}

func TestAdmitPostOnlyCrossRejected(t *testing.T) {
	p, a, bk := basePipeline(t)
	bk.Insert(book.Sell, 60, arena.Index(0), 10, "resting-ask")

	req := limitReq("o1", 60) // buy at the same index as the resting ask: crosses
	req.Type = common.PostOnly
	got := p.Admit(req, a, bk, refPrice(160))
	assert.Equal(t, common.PostOnlyCross, got)
}

func TestAdmitPostOnlyNonCrossingAccepted(t *testing.T) {
	p, a, bk := basePipeline(t)
	bk.Insert(book.Sell, 60, arena.Index(0), 10, "resting-ask")

	req := limitReq("o1", 40) // buy below the resting ask: does not cross
	req.Type = common.PostOnly
	got := p.Admit(req, a, bk, refPrice(140))
	assert.Equal(t, common.RejectNone, got)
}

func TestAdmitPostOnlySellCrossRejected(t *testing.T) {
	p, a, bk := basePipeline(t)
	bk.Insert(book.Buy, 60, arena.Index(0), 10, "resting-bid")

	req := limitReq("o1", 60)
	req.Side = common.Sell
	req.Type = common.PostOnly
	got := p.Admit(req, a, bk, refPrice(160))
	assert.Equal(t, common.PostOnlyCross, got)
}
