//go:build linux

package coordinator

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinCurrentThread locks the calling goroutine to its current OS thread and
// pins that thread to cpu, per spec.md §4.6 "pin the engine's worker to
// that CPU". Must be called from the goroutine that will run the engine's
// tick loop for its entire lifetime (spec.md's "No migration" guarantee).
func pinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("coordinator: sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}
