package events

import (
	"sort"

	"tickforge/internal/book"
)

// Canonicalize builds the final, ordered event slice for a completed tick:
// Trades (production order) -> BookDeltas (Bid then Ask, ascending
// price_idx) -> OrderLifecycle (production order) -> exactly one
// TickComplete. It reads the book's dirty set and final quantities, then
// clears it. This is the sole place emission order is decided; nothing
// upstream may reorder events (spec.md §4.4, §9).
func Canonicalize(b *book.Book, s *Staging, stamper ExecIDStamper, symbol string, tick uint64) []Event {
	dirty := b.DirtyKeys()
	sort.Slice(dirty, func(i, j int) bool {
		if dirty[i].Side != dirty[j].Side {
			return dirty[i].Side < dirty[j].Side // Buy(0) before Sell(1)
		}
		return dirty[i].PriceIdx < dirty[j].PriceIdx
	})

	trades := s.Trades()
	lifecycle := s.Lifecycle()

	out := make([]Event, 0, len(trades)+len(dirty)+len(lifecycle)+1)

	for _, t := range trades {
		t.ExecID = stamper.Stamp(t.Tick, t.SeqInTick)
		out = append(out, Event{Kind: KindTrade, Trade: t})
	}

	for _, k := range dirty {
		out = append(out, Event{
			Kind: KindBookDelta,
			BookDelta: BookDelta{
				Symbol:      symbol,
				Tick:        tick,
				Side:        k.Side,
				PriceIdx:    k.PriceIdx,
				NewTotalQty: b.TotalQtyAt(k.Side, k.PriceIdx),
			},
		})
	}
	b.ClearDirty()

	for _, l := range lifecycle {
		out = append(out, Event{Kind: KindOrderLifecycle, Lifecycle: l})
	}

	out = append(out, Event{
		Kind:         KindTickComplete,
		TickComplete: TickComplete{Symbol: symbol, Tick: tick},
	})

	return out
}
