package coordinator

import (
	"fmt"
	"sync"
	"time"

	"tickforge/internal/admission"
	"tickforge/internal/common"
	"tickforge/internal/config"
	"tickforge/internal/events"
	"tickforge/internal/priced"
	"tickforge/internal/queue"
	"tickforge/internal/tickengine"

	"github.com/rs/zerolog"
	tomb "gopkg.in/tomb.v2"
)

// entry is the coordinator's bookkeeping for one symbol's engine: its
// lifecycle state, placement, and activity timestamp for eviction.
type entry struct {
	mu           sync.Mutex
	symbol       string
	engine       *tickengine.Engine
	state        LifecycleState
	cpu          int
	hot          bool
	lastActivity time.Time
	tickNum      uint64
}

func (en *entry) setState(to LifecycleState) error {
	en.mu.Lock()
	defer en.mu.Unlock()
	if err := transition(en.state, to); err != nil {
		return err
	}
	en.state = to
	return nil
}

func (en *entry) getState() LifecycleState {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.state
}

// coldGroup is a shared core serving several cold/bursty symbols: exactly
// one goroutine drives every member's ticks, round-robin, so a given
// member's tick always runs to completion before the next member on the
// same core starts (spec.md §4.6).
type coldGroup struct {
	cpu     int
	mu      sync.Mutex
	members []*entry
}

// Coordinator is the per-process singleton owning symbol -> engine
// (spec.md §4.6). One Coordinator per process; construct with New.
type Coordinator struct {
	cfg      *config.Config
	outbound *queue.MPSC[events.Event]
	wal      tickengine.WALSink
	log      zerolog.Logger

	tickInterval time.Duration

	mu         sync.Mutex
	entries    map[string]*entry
	coldGroups map[int]*coldGroup
	placer     *placer

	t *tomb.Tomb
}

// New constructs a Coordinator. tickInterval drives the logical clock each
// engine advances on; a real deployment ties this to an external tick
// source (spec.md §4.6 "register with the tick source"), approximated here
// by a periodic timer per worker goroutine.
func New(cfg *config.Config, outbound *queue.MPSC[events.Event], wal tickengine.WALSink, tickInterval time.Duration, log zerolog.Logger) *Coordinator {
	classify := StaticHotSet(cfg.Placement.HotSymbols)
	return &Coordinator{
		cfg:          cfg,
		outbound:     outbound,
		wal:          wal,
		log:          log.With().Str("component", "coordinator").Logger(),
		tickInterval: tickInterval,
		entries:      make(map[string]*entry),
		coldGroups:   make(map[int]*coldGroup),
		placer:       newPlacer(cfg.Placement.HotPoolCPUs, cfg.Placement.ColdPoolCPUs, classify),
	}
}

// Run starts the coordinator's supervision tree. It blocks until ctx's
// tomb is killed (cooperative shutdown, spec.md §5).
func (c *Coordinator) Run(t *tomb.Tomb) error {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
	<-t.Dying()
	return c.shutdownAll()
}

// Engine returns the live engine for symbol, if one has been spawned.
func (c *Coordinator) Engine(symbol string) (*tickengine.Engine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	en, ok := c.entries[symbol]
	if !ok {
		return nil, false
	}
	return en.engine, true
}

// SubmitOrder routes a Submit message to symbol's engine, spawning it on
// first touch (spec.md §4.6 Spawn). Returns common.QueueBackpressure if
// the symbol's inbound SPSC is full; in that case the message never
// entered the system and the caller must treat it as the terminal
// rejection itself (spec.md §7: no silent drop).
func (c *Coordinator) SubmitOrder(symbol string, req admission.SubmitRequest) common.RejectReason {
	en, err := c.getOrSpawn(symbol)
	if err != nil {
		return common.MarketHalted
	}
	if st := en.getState(); st == Draining || st == StopRequested || st == Stopped || st == Faulted || st == Quarantine {
		return common.MarketHalted
	}
	if !en.engine.Submit(req) {
		return common.QueueBackpressure
	}
	en.mu.Lock()
	en.lastActivity = time.Now()
	en.mu.Unlock()
	return common.RejectNone
}

// CancelOrder routes a Cancel message to symbol's engine.
func (c *Coordinator) CancelOrder(symbol string, req tickengine.CancelRequest) common.RejectReason {
	en, ok := c.lookup(symbol)
	if !ok {
		return common.UnknownOrder
	}
	if !en.engine.Cancel(req) {
		return common.QueueBackpressure
	}
	return common.RejectNone
}

// Halt routes a Halt message to symbol's engine.
func (c *Coordinator) Halt(symbol string, halted bool) error {
	en, ok := c.lookup(symbol)
	if !ok {
		return fmt.Errorf("coordinator: unknown symbol %s", symbol)
	}
	en.engine.HaltMarket(halted)
	return nil
}

// SetRef routes a SetRef message to symbol's engine.
func (c *Coordinator) SetRef(symbol string, refPrice int64) error {
	en, ok := c.lookup(symbol)
	if !ok {
		return fmt.Errorf("coordinator: unknown symbol %s", symbol)
	}
	en.engine.SetRefPrice(refPrice)
	return nil
}

func (c *Coordinator) lookup(symbol string) (*entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	en, ok := c.entries[symbol]
	return en, ok
}

// getOrSpawn implements spec.md §4.6 Spawn: on first routed order for an
// unknown symbol, allocate arena/book/inbound SPSC, pin the engine's
// worker to a CPU, register with the tick source, and transition
// Booting->Running, all before the next tick.
func (c *Coordinator) getOrSpawn(symbol string) (*entry, error) {
	c.mu.Lock()
	if en, ok := c.entries[symbol]; ok {
		c.mu.Unlock()
		return en, nil
	}

	cpu, hot := c.placer.assign(symbol)
	en := &entry{symbol: symbol, state: Idle, cpu: cpu, hot: hot, lastActivity: time.Now()}
	c.entries[symbol] = en
	c.mu.Unlock()

	if err := en.setState(Booting); err != nil {
		return nil, err
	}

	cfg, err := c.symbolEngineConfig(symbol)
	if err != nil {
		return nil, err
	}
	en.engine = tickengine.New(cfg, c.outbound, c.wal, c.log)

	if err := en.setState(Running); err != nil {
		return nil, err
	}
	c.log.Info().Str("symbol", symbol).Int("cpu", cpu).Bool("hot", hot).Msg("engine spawned")

	if hot {
		c.t.Go(func() error { return c.runHotWorker(en) })
	} else {
		c.joinColdGroup(en)
	}
	return en, nil
}

func (c *Coordinator) joinColdGroup(en *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.coldGroups[en.cpu]
	if !ok {
		g = &coldGroup{cpu: en.cpu}
		c.coldGroups[en.cpu] = g
		c.t.Go(func() error { return c.runColdWorker(g) })
	}
	g.mu.Lock()
	g.members = append(g.members, en)
	g.mu.Unlock()
}

// symbolEngineConfig builds a tickengine.Config for symbol, layering its
// config.SymbolOverride (if any) over the process-wide defaults.
func (c *Coordinator) symbolEngineConfig(symbol string) (tickengine.Config, error) {
	domain, err := priced.NewDomain(c.cfg.PriceDomain.Floor, c.cfg.PriceDomain.Ceil, c.cfg.PriceDomain.Tick)
	if err != nil {
		return tickengine.Config{}, err
	}
	band := bandFromConfig(c.cfg.Band)
	maxQty := c.cfg.Matching.MaxOrderQty

	if ov, ok := c.cfg.Symbols[symbol]; ok {
		if ov.PriceDomain != nil {
			domain, err = priced.NewDomain(ov.PriceDomain.Floor, ov.PriceDomain.Ceil, ov.PriceDomain.Tick)
			if err != nil {
				return tickengine.Config{}, err
			}
		}
		if ov.Band != nil {
			band = bandFromConfig(*ov.Band)
		}
		if ov.MaxOrderQty != nil {
			maxQty = *ov.MaxOrderQty
		}
	}

	selfMatch, err := c.cfg.SelfMatchPolicy()
	if err != nil {
		return tickengine.Config{}, err
	}
	execMode, err := c.cfg.ExecIDMode()
	if err != nil {
		return tickengine.Config{}, err
	}

	return tickengine.Config{
		Symbol:          symbol,
		Domain:          domain,
		Band:            band,
		SelfMatch:       selfMatch,
		ExecIDMode:      execMode,
		ExecIDShiftBits: c.cfg.Matching.ExecIDShiftBits,
		ArenaCapacity:   c.cfg.Arena.Capacity,
		InboundCapacity: c.cfg.Queues.InboundCapacity,
		MaxOrderQty:     maxQty,
		Risk:            admission.AlwaysApprove{},
	}, nil
}

func bandFromConfig(b config.BandConfig) priced.Band {
	if b.Kind == "percent" {
		return priced.NewPercentBand(b.Bps)
	}
	return priced.NewAbsBand(b.Delta)
}

func (c *Coordinator) shutdownAll() error {
	c.mu.Lock()
	entries := make([]*entry, 0, len(c.entries))
	for _, en := range c.entries {
		entries = append(entries, en)
	}
	c.mu.Unlock()
	for _, en := range entries {
		_ = en.setState(StopRequested)
	}
	return nil
}
