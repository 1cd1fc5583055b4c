//go:build !tinygo

package core

import "i2console/internal/syncutil"

// State is a placeholder for interrupt state on regular Go.
type State uintptr

// critical stands in for the interrupt mask on regular Go: the engine runs on
// its own goroutine there, so "interrupts disabled" means holding this lock.
// Sections must not nest.
var critical syncutil.Mutex

// DisableInterrupts enters a critical section and returns the previous state.
func DisableInterrupts() State {
	critical.Lock()
	return 0
}

// RestoreInterrupts leaves the critical section entered by DisableInterrupts.
func RestoreInterrupts(state State) {
	critical.Unlock()
}
