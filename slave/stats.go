package slave

import "sync/atomic"

// Stats are the engine's traffic counters. They only grow and are reset by a
// reboot. Both contexts update them, so every field is atomic.
type Stats struct {
	txBytes    atomic.Uint32
	rxBytes    atomic.Uint32
	txOverflow atomic.Uint32
	rxOverflow atomic.Uint32
	busErrors  atomic.Uint32
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TxBytes    uint32 // bytes the master wrote to the data window
	RxBytes    uint32 // bytes the master read from the data window
	TxOverflow uint32 // tx ring evictions
	RxOverflow uint32 // rx ring evictions
	BusErrors  uint32 // aborted transactions
}

// Errors sums every error counter, as shown on the status screen.
func (s StatsSnapshot) Errors() uint32 {
	return s.TxOverflow + s.RxOverflow + s.BusErrors
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		TxBytes:    s.txBytes.Load(),
		RxBytes:    s.rxBytes.Load(),
		TxOverflow: s.txOverflow.Load(),
		RxOverflow: s.rxOverflow.Load(),
		BusErrors:  s.busErrors.Load(),
	}
}
