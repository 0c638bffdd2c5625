//go:build !linux

package coordinator

import "runtime"

// pinCurrentThread is best-effort off Linux: it still pins the goroutine to
// its OS thread (so the scheduler won't migrate it across threads) but has
// no syscall to pin that thread to a specific CPU. spec.md §6 lists
// placement.numa_binding as configuration, not a hard requirement on every
// target platform.
func pinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	return nil
}
