// Package transport implements the wire protocol of spec.md §6: one TCP
// connection per inbound producer (Submit/Cancel/Halt/SetRef) and one per
// outbound consumer (Trade/BookDelta/OrderLifecycle/TickComplete),
// length-prefixed big-endian binary frames. Grounded on the teacher's
// (saiputravu-Exchange) internal/net/messages.go framing style
// (encoding/binary.BigEndian, a leading 2-byte type tag, fixed-width
// fields followed by variable-length strings), generalized from its
// single-asset order/report schema to the admission/cancel/halt/setref and
// trade/delta/lifecycle/tickcomplete schema spec.md §6 actually defines.
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tickforge/internal/admission"
	"tickforge/internal/common"
	"tickforge/internal/events"
	"tickforge/internal/priced"
	"tickforge/internal/tickengine"
)

var (
	ErrShortMessage = errors.New("transport: message too short")
	ErrBadType      = errors.New("transport: unknown message type")
)

// MessageType tags an inbound frame's variant (spec.md §6).
type MessageType uint16

const (
	TypeSubmit MessageType = iota
	TypeCancel
	TypeHalt
	TypeSetRef
)

// InboundFrame is a fully decoded inbound wire message, still addressed to
// a symbol (the symbol travels on the wire since one connection may carry
// orders for more than one symbol, spec.md §6).
type InboundFrame struct {
	Type   MessageType
	Symbol string
	Submit admission.SubmitRequest
	Cancel tickengine.CancelRequest
	Halt   bool
	SetRef int64
}

// submitFixedLen is the byte count of a Submit body's fixed-width fields:
// the two id-length bytes, side, type, has_price and three 8-byte integers.
const submitFixedLen = 1 /*order id len*/ + 1 /*account id len*/ + 1 /*side*/ + 1 /*type*/ + 1 /*has_price*/ + 8 /*price_idx*/ + 8 /*qty*/ + 8 /*ts_norm*/

// DecodeInbound parses one framed inbound message (the length prefix has
// already been stripped by the caller's framed reader, see server.go).
func DecodeInbound(buf []byte) (InboundFrame, error) {
	if len(buf) < 3 {
		return InboundFrame{}, ErrShortMessage
	}
	typ := MessageType(binary.BigEndian.Uint16(buf[0:2]))
	symLen := int(buf[2])
	off := 3
	if len(buf) < off+symLen {
		return InboundFrame{}, ErrShortMessage
	}
	symbol := string(buf[off : off+symLen])
	off += symLen
	rest := buf[off:]

	switch typ {
	case TypeSubmit:
		req, err := decodeSubmit(rest)
		if err != nil {
			return InboundFrame{}, err
		}
		return InboundFrame{Type: typ, Symbol: symbol, Submit: req}, nil
	case TypeCancel:
		req, err := decodeCancel(rest)
		if err != nil {
			return InboundFrame{}, err
		}
		return InboundFrame{Type: typ, Symbol: symbol, Cancel: req}, nil
	case TypeHalt:
		if len(rest) < 1 {
			return InboundFrame{}, ErrShortMessage
		}
		return InboundFrame{Type: typ, Symbol: symbol, Halt: rest[0] != 0}, nil
	case TypeSetRef:
		if len(rest) < 8 {
			return InboundFrame{}, ErrShortMessage
		}
		return InboundFrame{Type: typ, Symbol: symbol, SetRef: int64(binary.BigEndian.Uint64(rest[0:8]))}, nil
	default:
		return InboundFrame{}, ErrBadType
	}
}

func decodeSubmit(b []byte) (admission.SubmitRequest, error) {
	if len(b) < submitFixedLen {
		return admission.SubmitRequest{}, ErrShortMessage
	}
	orderIDLen := int(b[0])
	acctIDLen := int(b[1])
	side := common.Side(b[2])
	otype := common.OrderType(b[3])
	hasPrice := b[4] != 0
	priceIdx := int64(binary.BigEndian.Uint64(b[5:13]))
	qty := binary.BigEndian.Uint64(b[13:21])
	tsNorm := int64(binary.BigEndian.Uint64(b[21:29]))

	off := 29
	if len(b) < off+orderIDLen+acctIDLen {
		return admission.SubmitRequest{}, ErrShortMessage
	}
	orderID := string(b[off : off+orderIDLen])
	off += orderIDLen
	acctID := string(b[off : off+acctIDLen])

	return admission.SubmitRequest{
		OrderID:   orderID,
		AccountID: acctID,
		Side:      side,
		Type:      otype,
		HasPrice:  hasPrice,
		PriceIdx:  priced.Index(priceIdx),
		Qty:       qty,
		TsNorm:    tsNorm,
	}, nil
}

func decodeCancel(b []byte) (tickengine.CancelRequest, error) {
	if len(b) < 9 {
		return tickengine.CancelRequest{}, ErrShortMessage
	}
	orderIDLen := int(b[0])
	tsNorm := int64(binary.BigEndian.Uint64(b[1:9]))
	if len(b) < 9+orderIDLen {
		return tickengine.CancelRequest{}, ErrShortMessage
	}
	return tickengine.CancelRequest{OrderID: string(b[9 : 9+orderIDLen]), TsNorm: tsNorm}, nil
}

// EncodeOutbound serializes one canonical event for the wire, mirroring
// spec.md §6's outbound schema. Used by the consumer-facing connection
// handler (server.go) to drain the coordinator's shared outbound MPSC.
func EncodeOutbound(ev events.Event) ([]byte, error) {
	switch ev.Kind {
	case events.KindTrade:
		return encodeTrade(ev.Trade), nil
	case events.KindBookDelta:
		return encodeBookDelta(ev.BookDelta), nil
	case events.KindOrderLifecycle:
		return encodeLifecycle(ev.Lifecycle), nil
	case events.KindTickComplete:
		return encodeTickComplete(ev.TickComplete), nil
	default:
		return nil, fmt.Errorf("transport: unknown event kind %d", ev.Kind)
	}
}

func putHeader(buf []byte, typ uint16, symbol string) int {
	binary.BigEndian.PutUint16(buf[0:2], typ)
	buf[2] = byte(len(symbol))
	copy(buf[3:], symbol)
	return 3 + len(symbol)
}

func encodeTrade(t events.Trade) []byte {
	buf := make([]byte, 3+len(t.Symbol)+8+1+len(t.MakerOrderID)+1+len(t.TakerOrderID)+1+len(t.MakerAcct)+1+len(t.TakerAcct)+8+8+1+8+8+8)
	off := putHeader(buf, 0, t.Symbol)
	binary.BigEndian.PutUint64(buf[off:], t.Tick)
	off += 8
	off = putLenString(buf, off, t.MakerOrderID)
	off = putLenString(buf, off, t.TakerOrderID)
	off = putLenString(buf, off, t.MakerAcct)
	off = putLenString(buf, off, t.TakerAcct)
	binary.BigEndian.PutUint64(buf[off:], uint64(t.PriceIdx))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.Qty)
	off += 8
	buf[off] = byte(t.AggressorSide)
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(t.TsNorm))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.SeqInTick)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], t.ExecID)
	return buf
}

func encodeBookDelta(d events.BookDelta) []byte {
	buf := make([]byte, 3+len(d.Symbol)+8+1+8+8)
	off := putHeader(buf, 1, d.Symbol)
	binary.BigEndian.PutUint64(buf[off:], d.Tick)
	off += 8
	buf[off] = byte(d.Side)
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(d.PriceIdx))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], d.NewTotalQty)
	return buf
}

func encodeLifecycle(l events.OrderLifecycle) []byte {
	buf := make([]byte, 3+len(l.Symbol)+8+1+len(l.OrderID)+1+len(l.AccountID)+1+1+1+8+8+8+8)
	off := putHeader(buf, 2, l.Symbol)
	binary.BigEndian.PutUint64(buf[off:], l.Tick)
	off += 8
	off = putLenString(buf, off, l.OrderID)
	off = putLenString(buf, off, l.AccountID)
	buf[off] = byte(l.Event)
	off++
	buf[off] = byte(l.Reason)
	off++
	hasFill := byte(0)
	if l.HasFill {
		hasFill = 1
	}
	buf[off] = hasFill
	off++
	binary.BigEndian.PutUint64(buf[off:], uint64(l.LastFillPriceIdx))
	off += 8
	binary.BigEndian.PutUint64(buf[off:], l.LastFillQty)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], l.RemainingQty)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], l.SeqInTick)
	return buf
}

func encodeTickComplete(tc events.TickComplete) []byte {
	buf := make([]byte, 3+len(tc.Symbol)+8)
	off := putHeader(buf, 3, tc.Symbol)
	binary.BigEndian.PutUint64(buf[off:], tc.Tick)
	return buf
}

func putLenString(buf []byte, off int, s string) int {
	buf[off] = byte(len(s))
	off++
	copy(buf[off:], s)
	return off + len(s)
}
