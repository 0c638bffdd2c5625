// Package coordinator implements the per-process symbol -> engine registry
// of spec.md §4.6: lifecycle state machine, placement/pinning, eviction,
// and non-blocking inbound backpressure. Grounded on the teacher's
// (saiputravu-Exchange) internal/worker.go WorkerPool (tomb-supervised
// goroutines, one per unit of concurrency) and internal/net/server.go's
// tomb.WithContext/t.Go pattern, generalized from "an elastic pool of
// connection handlers" to "exactly one pinned, never-migrating goroutine
// per symbol" (spec.md §4.6's "No migration" requirement rules out
// borrowing from a shared elastic pool for a Running engine).
package coordinator

import "fmt"

// LifecycleState is a symbol engine's position in spec.md §4.6's state
// machine. The Idle->Booting->Running->StopRequested->Draining->Stopped
// path and the orthogonal Faulted->Quarantine path are the only two
// transition graphs; Faulted can be entered from Booting, Running or
// Draining.
type LifecycleState int

const (
	Idle LifecycleState = iota
	Booting
	Running
	StopRequested
	Draining
	Stopped
	Faulted
	Quarantine
)

func (s LifecycleState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Booting:
		return "Booting"
	case Running:
		return "Running"
	case StopRequested:
		return "StopRequested"
	case Draining:
		return "Draining"
	case Stopped:
		return "Stopped"
	case Faulted:
		return "Faulted"
	case Quarantine:
		return "Quarantine"
	default:
		return "Unknown"
	}
}

// validTransitions is the closed set of edges in spec.md §4.6's two
// graphs. Any transition not listed here is rejected.
var validTransitions = map[LifecycleState][]LifecycleState{
	Idle:          {Booting},
	Booting:       {Running, Faulted},
	Running:       {StopRequested, Faulted},
	StopRequested: {Draining},
	Draining:      {Stopped, Faulted},
	Faulted:       {Quarantine},
}

// transition validates and applies a state change, returning an error if
// the edge is not in validTransitions.
func transition(from, to LifecycleState) error {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("coordinator: invalid lifecycle transition %s -> %s", from, to)
}
