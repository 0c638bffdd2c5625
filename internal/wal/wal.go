// Package wal implements the lossless write-ahead-log sink downstream of a
// symbol's outbound event stream (spec.md §5 Suspension points, §7
// Downstream WAL overflow). It is append-only, local-file-backed, with an
// explicit fsync boundary and a bounded in-memory batch: once the batch
// hits its configured bound without a successful flush, Append returns an
// error, which the tick executor (internal/tickengine) treats as fatal per
// spec.md §7's lossless requirement. Enriched from the wider retrieval
// pack's event-log idiom (other_examples' rishavpaul order-matching-engine
// Server.eventLog, an append-only recovery log with an explicit
// O_SYNC/fsync durability knob) since the teacher has no WAL of its own;
// see DESIGN.md.
package wal

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"tickforge/internal/events"

	"github.com/rs/zerolog"
)

// Record is the durable, tagged unit appended for every emitted event, one
// per (symbol, tick, event).
type Record struct {
	Symbol string
	Tick   uint64
	Event  events.Event
}

// Writer is an append-only, buffered, fsync-on-flush WAL sink for one
// process's worth of symbols (all engines share one underlying file; ticks
// across symbols interleave in append order, which is fine since
// spec.md §5 defines no cross-symbol ordering requirement).
type Writer struct {
	mu          sync.Mutex
	f           *os.File
	enc         *gob.Encoder
	bw          *bufio.Writer
	buffered    int
	maxBuffered int
	log         zerolog.Logger
}

// Open creates (or appends to) the WAL file at dir/tickforge.wal.
func Open(dir string, maxBuffered int, log zerolog.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "tickforge.wal")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	return &Writer{
		f:           f,
		bw:          bw,
		enc:         gob.NewEncoder(bw),
		maxBuffered: maxBuffered,
		log:         log.With().Str("component", "wal").Logger(),
	}, nil
}

// Append durably records one event. It buffers up to maxBuffered records
// between flushes; when the buffer is full it flushes and fsyncs
// immediately. A flush/fsync failure is the WAL overflow condition spec.md
// §7 marks fatal: the caller (the engine) must fault, not retry silently.
func (w *Writer) Append(symbol string, tick uint64, e events.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(Record{Symbol: symbol, Tick: tick, Event: e}); err != nil {
		return fmt.Errorf("wal: encode: %w", err)
	}
	w.buffered++
	if w.buffered < w.maxBuffered {
		return nil
	}
	return w.flushLocked()
}

// Flush forces a buffered-but-unflushed batch to disk, e.g. at the end of a
// tick before TickComplete is considered durable.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	w.buffered = 0
	return nil
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.f.Close()
}

// Reader replays a WAL file, e.g. for crash-recovery tooling or the replay
// test harness (spec.md §8's replay-equality law).
type Reader struct {
	f   *os.File
	dec *gob.Decoder
}

// OpenReader opens an existing WAL file for sequential replay.
func OpenReader(dir string) (*Reader, error) {
	path := filepath.Join(dir, "tickforge.wal")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open reader %s: %w", path, err)
	}
	return &Reader{f: f, dec: gob.NewDecoder(bufio.NewReader(f))}, nil
}

// Next decodes the next record, returning (Record{}, false, nil) at EOF.
func (r *Reader) Next() (Record, bool, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("wal: decode: %w", err)
	}
	return rec, true, nil
}

// Close releases the reader's file handle.
func (r *Reader) Close() error { return r.f.Close() }
