package coordinator

// HotSymbolClassifier decides whether a symbol should get a dedicated,
// optionally isolated core (spec.md §4.6: "Hot symbols (by configurable
// classification) occupy dedicated ... cores; cold/bursty symbols share a
// cooperative pool"). It is a pluggable func rather than an interface,
// matching the rest of the engine's preference for tagged values and plain
// funcs over dynamic dispatch where a closure suffices (spec.md §9).
type HotSymbolClassifier func(symbol string) bool

// StaticHotSet builds a HotSymbolClassifier backed by a fixed set, the
// default driven by placement.hot_symbols in config.
func StaticHotSet(symbols []string) HotSymbolClassifier {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return func(symbol string) bool {
		_, ok := set[symbol]
		return ok
	}
}

// placer assigns a CPU to each newly spawned engine: hot symbols get the
// next free core from a dedicated pool (one engine per core, never
// shared); cold symbols round-robin across a shared cooperative pool,
// where several engines may share a core but each engine's tick still
// runs to completion before another is scheduled on it (spec.md §4.6 —
// enforced here by that core's engines sharing one goroutine's worth of
// serialized tick invocations, see worker.go).
type placer struct {
	hotCPUs      []int
	hotNext      int
	coldCPUs     []int
	coldNext     int
	classify     HotSymbolClassifier
}

func newPlacer(hotCPUs, coldCPUs []int, classify HotSymbolClassifier) *placer {
	if classify == nil {
		classify = func(string) bool { return false }
	}
	return &placer{hotCPUs: hotCPUs, coldCPUs: coldCPUs, classify: classify}
}

// assign returns the CPU index a symbol's engine should pin to, and
// whether it landed on a dedicated (hot) core vs a shared (cold) one.
func (p *placer) assign(symbol string) (cpu int, hot bool) {
	if p.classify(symbol) && len(p.hotCPUs) > 0 {
		cpu = p.hotCPUs[p.hotNext%len(p.hotCPUs)]
		p.hotNext++
		return cpu, true
	}
	if len(p.coldCPUs) > 0 {
		cpu = p.coldCPUs[p.coldNext%len(p.coldCPUs)]
		p.coldNext++
		return cpu, false
	}
	return -1, false
}
