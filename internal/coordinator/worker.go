package coordinator

import (
	"time"
)

// runHotWorker is the dedicated, pinned goroutine for one hot symbol's
// engine: it owns the OS thread and the core for the engine's entire
// lifetime (spec.md §4.6 "No migration"). Grounded on the teacher's
// internal/worker.go worker loop, generalized from "pull a task off a
// shared channel" to "tick exactly one engine forever."
func (c *Coordinator) runHotWorker(en *entry) error {
	if err := pinCurrentThread(en.cpu); err != nil {
		c.log.Warn().Err(err).Str("symbol", en.symbol).Int("cpu", en.cpu).Msg("cpu pin failed, continuing unpinned")
	}
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.t.Dying():
			return nil
		case <-ticker.C:
			if done := c.driveOne(en); done {
				return nil
			}
		}
	}
}

// runColdWorker drives every engine sharing cpu from a single goroutine, in
// round-robin order, so one member's tick always completes before the next
// member on the same core starts (spec.md §4.6).
func (c *Coordinator) runColdWorker(g *coldGroup) error {
	if err := pinCurrentThread(g.cpu); err != nil {
		c.log.Warn().Err(err).Int("cpu", g.cpu).Msg("cpu pin failed, continuing unpinned")
	}
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	next := 0
	for {
		select {
		case <-c.t.Dying():
			return nil
		case <-ticker.C:
			g.mu.Lock()
			members := g.members
			g.mu.Unlock()
			if len(members) == 0 {
				continue
			}
			next %= len(members)
			en := members[next]
			next++
			if c.driveOne(en) {
				c.removeColdMember(g, en)
			}
		}
	}
}

func (c *Coordinator) removeColdMember(g *coldGroup, en *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, m := range g.members {
		if m == en {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

// driveOne advances en's engine by one tick, applying the eviction and
// draining policy of spec.md §4.6. Returns true once the entry is Stopped
// and should no longer be scheduled.
func (c *Coordinator) driveOne(en *entry) bool {
	st := en.getState()
	if st == Stopped {
		return true
	}
	if st == Faulted || st == Quarantine {
		return false
	}

	en.mu.Lock()
	en.tickNum++
	tickNum := en.tickNum
	en.mu.Unlock()

	evs, err := en.engine.Tick(tickNum)
	if err != nil {
		_ = en.setState(Faulted)
		c.log.Error().Err(err).Str("symbol", en.symbol).Msg("engine faulted, quarantining")
		_ = en.setState(Quarantine)
		return true
	}

	if len(evs) > 1 {
		en.mu.Lock()
		en.lastActivity = time.Now()
		en.mu.Unlock()
	}

	switch st {
	case Running:
		c.maybeEvict(en)
	case StopRequested:
		_ = en.setState(Draining)
	case Draining:
		if en.engine.Idle() {
			_ = en.setState(Stopped)
			c.forget(en.symbol)
			return true
		}
	}
	return false
}

// maybeEvict moves a Running-but-quiet engine toward shutdown once it has
// been idle past eviction.evict_after_ms (spec.md §4.6 "Idle symbols are
// evicted after a configurable TTL").
func (c *Coordinator) maybeEvict(en *entry) {
	ttl := time.Duration(c.cfg.Eviction.EvictAfterMS) * time.Millisecond
	if ttl <= 0 {
		return
	}
	en.mu.Lock()
	idle := time.Since(en.lastActivity)
	en.mu.Unlock()
	if idle < ttl {
		return
	}
	if err := en.setState(StopRequested); err == nil {
		c.log.Info().Str("symbol", en.symbol).Msg("engine idle past TTL, stop requested")
	}
}

func (c *Coordinator) forget(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}
