// Package tickengine implements the per-symbol Engine: the arena, book and
// tick state of spec.md §3, wired through the admission pipeline and
// matcher, driven by the single tick(T) entry point of spec.md §4.5.
// Grounded on the teacher's (saiputravu-Exchange) internal/engine/engine.go
// as the "one engine owns one symbol's whole state" shape, generalized from
// its empty PlaceOrder stub into the full admission -> match -> canonicalize
// pipeline spec.md actually requires.
package tickengine

import (
	"tickforge/internal/admission"
	"tickforge/internal/common"
)

// MessageKind tags the inbound SPSC message variant (spec.md §6).
type MessageKind int

const (
	MsgSubmit MessageKind = iota
	MsgCancel
	MsgHalt
	MsgSetRef
)

// CancelRequest is a Cancel message (spec.md §6).
type CancelRequest struct {
	OrderID string
	TsNorm  int64
}

// InboundMessage is the tagged union read off a symbol's inbound SPSC.
// Only the field matching Kind is populated, mirroring events.Event's
// exhaustive-dispatch style.
type InboundMessage struct {
	Kind   MessageKind
	Submit admission.SubmitRequest
	Cancel CancelRequest
	Halt   bool
	SetRef int64

	// arrivalSeq is stamped internally when the message is drained from the
	// SPSC; it exists purely to break (ts_norm) ties between Submit/Cancel
	// messages in FIFO arrival order, never observed outside this package.
	arrivalSeq uint64
}

// orderedKind reports whether a message participates in the (ts_norm,
// arrival) race-resolution ordering of spec.md §4.1/§4.3 (Submit and
// Cancel do; Halt and SetRef are control-plane messages with no ts_norm in
// spec.md §6's schema and are applied in raw arrival order ahead of any
// order-flow message in the same drain — see DESIGN.md).
func (m InboundMessage) orderedKind() bool {
	return m.Kind == MsgSubmit || m.Kind == MsgCancel
}

func (m InboundMessage) tsNorm() int64 {
	if m.Kind == MsgSubmit {
		return m.Submit.TsNorm
	}
	return m.Cancel.TsNorm
}

// RejectObserver receives a symbol, order id and reject reason. Engine
// neither holds nor calls one; rejections reach observers only as Rejected
// lifecycle events on the outbound stream.
type RejectObserver interface {
	OnReject(symbol string, orderID string, reason common.RejectReason)
}
