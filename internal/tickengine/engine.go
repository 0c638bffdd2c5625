package tickengine

import (
	"sort"

	"tickforge/internal/admission"
	"tickforge/internal/arena"
	"tickforge/internal/book"
	"tickforge/internal/common"
	"tickforge/internal/events"
	"tickforge/internal/matcher"
	"tickforge/internal/priced"
	"tickforge/internal/queue"

	"github.com/rs/zerolog"
)

// Config is the per-symbol construction-time configuration (spec.md §6).
type Config struct {
	Symbol          string
	Domain          priced.Domain
	Band            priced.Band
	SelfMatch       common.SelfMatchPolicy
	ExecIDMode      common.ExecIDMode
	ExecIDShiftBits uint
	ArenaCapacity   int
	InboundCapacity int
	MaxOrderQty     uint64
	Risk            admission.Checker
}

// WALSink is the lossless downstream write-ahead-log the engine must
// durably record every emitted event to before attempting the best-effort
// outbound send (spec.md §5, §7: WAL overflow is fatal, the MPSC consumer
// is not). internal/wal.Writer implements this.
type WALSink interface {
	Append(symbol string, tick uint64, e events.Event) error
}

// Engine owns one symbol's arena, book and tick state for its entire
// lifetime (spec.md §3 Ownership). It is single-threaded and non-reentrant:
// all mutation happens inside Tick.
type Engine struct {
	Symbol string

	arena     *arena.Arena
	bk        *book.Book
	admission *admission.Pipeline
	match     *matcher.Matcher
	staging   *events.Staging
	stamper   events.ExecIDStamper

	inbound *queue.SPSC[InboundMessage]
	outbound *queue.MPSC[events.Event]
	wal      WALSink

	log zerolog.Logger

	tick          uint64
	enqSeqCounter uint64
	nextArrival   uint64
	halted        bool
	refPrice      *int64

	faulted bool

	// scratch buffers, reused across ticks (no per-tick allocation once
	// warm, per spec.md §1's hot-path non-goal).
	drained        []InboundMessage
	terminalThisTick []arena.Index
}

// New constructs a quiescent Engine for one symbol. outbound and wal may be
// nil in tests that only inspect Tick's returned event slice.
func New(cfg Config, outbound *queue.MPSC[events.Event], wal WALSink, log zerolog.Logger) *Engine {
	return &Engine{
		Symbol: cfg.Symbol,
		arena:  arena.New(cfg.ArenaCapacity),
		bk:     book.New(),
		admission: &admission.Pipeline{
			Domain: cfg.Domain,
			Band:   cfg.Band,
			MaxQty: cfg.MaxOrderQty,
			Risk:   cfg.Risk,
		},
		match:   &matcher.Matcher{SelfMatch: cfg.SelfMatch, Domain: cfg.Domain, Band: cfg.Band},
		staging: events.NewStaging(cfg.Symbol),
		stamper: events.ExecIDStamper{Mode: cfg.ExecIDMode, ShiftBits: cfg.ExecIDShiftBits},
		inbound: queue.NewSPSC[InboundMessage](cfg.InboundCapacity),
		outbound: outbound,
		wal:      wal,
		log:      log.With().Str("symbol", cfg.Symbol).Logger(),
	}
}

// Inbound exposes the engine's SPSC for the coordinator's transport-facing
// producer to push onto. The Engine itself is the sole consumer.
func (e *Engine) Inbound() *queue.SPSC[InboundMessage] { return e.inbound }

// Faulted reports whether an invariant breach has halted this engine
// (spec.md §7). Once true, Tick returns an error without processing.
func (e *Engine) Faulted() bool { return e.faulted }

// Idle reports whether this engine currently holds no live orders, the
// condition the coordinator waits for before completing a Draining ->
// Stopped transition (spec.md §4.6 "until all orders are terminal or
// cancelled").
func (e *Engine) Idle() bool { return e.arena.Len() == 0 }

// Submit enqueues a Submit message, stamping HadQueueRoom per admission
// check #9. Returns false if the inbound SPSC was full (backpressure
// applied at the transport boundary, before the message even reaches a
// tick).
func (e *Engine) Submit(req admission.SubmitRequest) bool {
	req.HadQueueRoom = true
	return e.inbound.TryPush(InboundMessage{Kind: MsgSubmit, Submit: req})
}

// Cancel enqueues a Cancel message.
func (e *Engine) Cancel(req CancelRequest) bool {
	return e.inbound.TryPush(InboundMessage{Kind: MsgCancel, Cancel: req})
}

// HaltMarket enqueues a Halt message.
func (e *Engine) HaltMarket(halted bool) bool {
	return e.inbound.TryPush(InboundMessage{Kind: MsgHalt, Halt: halted})
}

// SetRefPrice enqueues a SetRef message.
func (e *Engine) SetRefPrice(refPrice int64) bool {
	return e.inbound.TryPush(InboundMessage{Kind: MsgSetRef, SetRef: refPrice})
}

// drainSorted drains every currently queued inbound message, stamping
// arrival order, then returns control-plane (Halt/SetRef) and order-flow
// (Submit/Cancel) messages separately: control-plane messages apply in raw
// arrival order ahead of the tick's order-flow processing; order-flow
// messages are sorted by (ts_norm, arrival) to resolve the cancel-vs-fill
// race of spec.md §4.3 deterministically regardless of which one the SPSC
// happened to carry first (spec.md §8 scenario 3). See DESIGN.md.
func (e *Engine) drainSorted() (control, ordered []InboundMessage) {
	e.drained = e.drained[:0]
	for {
		msg, ok := e.inbound.TryPop()
		if !ok {
			break
		}
		msg.arrivalSeq = e.nextArrival
		e.nextArrival++
		e.drained = append(e.drained, msg)
	}
	for _, m := range e.drained {
		if m.orderedKind() {
			ordered = append(ordered, m)
		} else {
			control = append(control, m)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].tsNorm(), ordered[j].tsNorm()
		if ti != tj {
			return ti < tj
		}
		return ordered[i].arrivalSeq < ordered[j].arrivalSeq
	})
	return control, ordered
}
