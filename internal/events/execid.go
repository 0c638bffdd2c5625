package events

import "tickforge/internal/common"

// ExecIDStamper assigns Trade.ExecID according to the configured mode
// (spec.md §4.4). In Sharded mode the engine stamps deterministically from
// (tick, seq_in_tick); in External mode the engine leaves ExecID at 0 for
// the downstream execution manager to stamp. seq_in_tick itself is always
// assigned by the engine regardless of mode (spec.md §9 Open Questions).
type ExecIDStamper struct {
	Mode      common.ExecIDMode
	ShiftBits uint
}

// Stamp computes the exec_id for a trade at the given tick/seq_in_tick.
func (s ExecIDStamper) Stamp(tick, seqInTick uint64) uint64 {
	if s.Mode == common.External {
		return 0
	}
	return (tick << s.ShiftBits) | seqInTick
}
