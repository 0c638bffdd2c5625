// Package snapshot implements the optional arena+book+counters serializer
// of spec.md §6's Persisted-state layout: a tagged, versioned binary record
// whose field order matches spec.md §3 exactly and which round-trips
// bit-exactly. No teacher or pack repo ships a matching-engine snapshot
// format; the tagged-version-prefix + fixed-width-field idiom below is
// grounded on the teacher's own net/messages.go wire encoding
// (encoding/binary, BigEndian, explicit header-length constants) applied to
// a new record shape, per SPEC_FULL.md's persisted-state requirement.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/priced"
)

// FormatVersion is bumped whenever the on-disk layout changes in a
// non-backward-compatible way.
const FormatVersion uint32 = 1

const magic uint32 = 0x54464b31 // "TFK1"

// State is the full, symbol-scoped state a Snapshot captures: every field
// needed to resume ticking exactly where the snapshot was taken, in
// spec.md §3's canonical field order (price domain, arena, book, counters).
type State struct {
	Symbol   string
	Domain   priced.Domain
	Tick     uint64
	RefPrice *int64
	Halted   bool

	Orders []arena.Order // live orders only, in ascending Index order
}

// Write serializes state to w as a tagged, versioned record.
func Write(w io.Writer, state State) error {
	bw := bufio.NewWriter(w)
	if err := writeU32(bw, magic); err != nil {
		return err
	}
	if err := writeU32(bw, FormatVersion); err != nil {
		return err
	}
	if err := writeString(bw, state.Symbol); err != nil {
		return err
	}
	if err := writeI64(bw, state.Domain.Floor); err != nil {
		return err
	}
	if err := writeI64(bw, state.Domain.Ceil); err != nil {
		return err
	}
	if err := writeI64(bw, state.Domain.Tick); err != nil {
		return err
	}
	if err := writeU64(bw, state.Tick); err != nil {
		return err
	}
	hasRef := state.RefPrice != nil
	if err := writeBool(bw, hasRef); err != nil {
		return err
	}
	if hasRef {
		if err := writeI64(bw, *state.RefPrice); err != nil {
			return err
		}
	}
	if err := writeBool(bw, state.Halted); err != nil {
		return err
	}
	if err := writeU32(bw, uint32(len(state.Orders))); err != nil {
		return err
	}
	for _, o := range state.Orders {
		if err := writeOrder(bw, o); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read deserializes a State previously written by Write, verifying the
// magic and format version.
func Read(r io.Reader) (State, error) {
	br := bufio.NewReader(r)
	var s State

	m, err := readU32(br)
	if err != nil {
		return s, err
	}
	if m != magic {
		return s, fmt.Errorf("snapshot: bad magic %#x", m)
	}
	version, err := readU32(br)
	if err != nil {
		return s, err
	}
	if version != FormatVersion {
		return s, fmt.Errorf("snapshot: unsupported format version %d", version)
	}
	if s.Symbol, err = readString(br); err != nil {
		return s, err
	}
	if s.Domain.Floor, err = readI64(br); err != nil {
		return s, err
	}
	if s.Domain.Ceil, err = readI64(br); err != nil {
		return s, err
	}
	if s.Domain.Tick, err = readI64(br); err != nil {
		return s, err
	}
	if s.Tick, err = readU64(br); err != nil {
		return s, err
	}
	hasRef, err := readBool(br)
	if err != nil {
		return s, err
	}
	if hasRef {
		v, err := readI64(br)
		if err != nil {
			return s, err
		}
		s.RefPrice = &v
	}
	if s.Halted, err = readBool(br); err != nil {
		return s, err
	}
	n, err := readU32(br)
	if err != nil {
		return s, err
	}
	s.Orders = make([]arena.Order, n)
	for i := range s.Orders {
		if s.Orders[i], err = readOrder(br); err != nil {
			return s, err
		}
	}
	return s, nil
}

// WriteFile atomically writes a snapshot to path (write to a temp file,
// fsync, rename) so a crash mid-write never leaves a truncated snapshot on
// disk.
func WriteFile(path string, state State) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", tmp, err)
	}
	if err := Write(f, state); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("snapshot: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFile reads a snapshot previously written by WriteFile.
func ReadFile(path string) (State, error) {
	f, err := os.Open(path)
	if err != nil {
		return State{}, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Restore rebuilds an arena and book from a snapshot's order list, resting
// every order that was not terminal at capture time. It is the
// counterpart to tickengine's Engine.Capture; tickengine.Restore composes
// this with tickengine.Config to resume an evicted or restarted symbol.
func Restore(state State, capacity int) (*arena.Arena, *book.Book, error) {
	a := arena.New(capacity)
	bk := book.New()
	for _, o := range state.Orders {
		idx, ok := a.Alloc(o)
		if !ok {
			return nil, nil, fmt.Errorf("snapshot: arena capacity %d too small to restore %d orders", capacity, len(state.Orders))
		}
		if o.State == common.Resting || o.State == common.PartiallyFilled {
			side := book.Buy
			if o.Side == common.Sell {
				side = book.Sell
			}
			bk.Insert(side, int64(o.PriceIdx), idx, o.QtyOpen, o.OrderID)
		}
	}
	return a, bk, nil
}

func writeOrder(w io.Writer, o arena.Order) error {
	if err := writeString(w, o.OrderID); err != nil {
		return err
	}
	if err := writeString(w, o.AccountID); err != nil {
		return err
	}
	if err := writeU32(w, uint32(o.Side)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(o.Type)); err != nil {
		return err
	}
	if err := writeI64(w, int64(o.PriceIdx)); err != nil {
		return err
	}
	if err := writeBool(w, o.HasPrice); err != nil {
		return err
	}
	if err := writeU64(w, o.QtyOpen); err != nil {
		return err
	}
	if err := writeU64(w, o.QtyTotal); err != nil {
		return err
	}
	if err := writeI64(w, o.TsNorm); err != nil {
		return err
	}
	if err := writeU64(w, o.EnqSeq); err != nil {
		return err
	}
	return writeU32(w, uint32(o.State))
}

func readOrder(r io.Reader) (arena.Order, error) {
	var o arena.Order
	var err error
	if o.OrderID, err = readString(r); err != nil {
		return o, err
	}
	if o.AccountID, err = readString(r); err != nil {
		return o, err
	}
	side, err := readU32(r)
	if err != nil {
		return o, err
	}
	o.Side = common.Side(side)
	typ, err := readU32(r)
	if err != nil {
		return o, err
	}
	o.Type = common.OrderType(typ)
	priceIdx, err := readI64(r)
	if err != nil {
		return o, err
	}
	o.PriceIdx = priced.Index(priceIdx)
	if o.HasPrice, err = readBool(r); err != nil {
		return o, err
	}
	if o.QtyOpen, err = readU64(r); err != nil {
		return o, err
	}
	if o.QtyTotal, err = readU64(r); err != nil {
		return o, err
	}
	if o.TsNorm, err = readI64(r); err != nil {
		return o, err
	}
	if o.EnqSeq, err = readU64(r); err != nil {
		return o, err
	}
	state, err := readU32(r)
	if err != nil {
		return o, err
	}
	o.State = common.OrderState(state)
	return o, nil
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readU64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func writeI64(w io.Writer, v int64) error { return writeU64(w, uint64(v)) }

func readI64(r io.Reader) (int64, error) {
	v, err := readU64(r)
	return int64(v), err
}

func writeBool(w io.Writer, v bool) error {
	var b [1]byte
	if v {
		b[0] = 1
	}
	_, err := w.Write(b[:])
	return err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	n, err := readU32(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
