//go:build deadlock

// Package syncutil provides the mutex used for hosted critical sections.
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex so a critical section that never releases is
// reported instead of silently hanging the emulator.
type Mutex struct {
	deadlock.Mutex
}
