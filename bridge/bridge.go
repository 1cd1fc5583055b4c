// Package bridge is the foreground side of I2Console: it moves bytes between
// the rings and the console transport, performs deferred configuration writes
// and publishes telemetry.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"i2console/config"
	"i2console/core"
	"i2console/slave"
)

// Transport is the console byte pipe (USB CDC on the device). Read and Write
// must not block; returning 0 bytes is fine.
type Transport interface {
	Connected() bool
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// DefaultInterval is the telemetry cadence.
const DefaultInterval = 100 * time.Millisecond

// chunkSize matches a full-speed USB CDC bulk packet.
const chunkSize = 64

// Bridge runs the cooperative foreground loop. It is the only consumer of the
// tx ring and the only producer of the rx ring.
type Bridge struct {
	engine    *slave.Engine
	store     *config.Store
	tx        *core.Ring
	rx        *core.Ring
	transport Transport
	display   StatusDisplay

	interval   time.Duration
	now        func() time.Time
	lastStatus time.Time
	lastErrors uint32

	readBuf [chunkSize]byte
	outBuf  [chunkSize]byte
	pending []byte // popped from tx but not yet accepted by the transport
	held    atomic.Int32
}

// New creates a Bridge. tx and rx must be the rings the engine was built with.
func New(engine *slave.Engine, store *config.Store, tx, rx *core.Ring, transport Transport) *Bridge {
	return &Bridge{
		engine:    engine,
		store:     store,
		tx:        tx,
		rx:        rx,
		transport: transport,
		interval:  DefaultInterval,
		now:       time.Now,
	}
}

// SetDisplay sets where telemetry goes; nil disables it.
func (b *Bridge) SetDisplay(d StatusDisplay) {
	b.display = d
}

// SetInterval changes the telemetry cadence.
func (b *Bridge) SetInterval(d time.Duration) {
	b.interval = d
}

// SetClock replaces time.Now, for tests.
func (b *Bridge) SetClock(now func() time.Time) {
	b.now = now
}

// Poll runs one pass of the foreground loop. Errors are reported but leave
// the bridge usable; the next Poll carries on.
func (b *Bridge) Poll() error {
	var errs []error
	if err := b.drain(); err != nil {
		errs = append(errs, err)
	}
	if err := b.fill(); err != nil {
		errs = append(errs, err)
	}
	if err := b.store.Flush(); err != nil {
		core.Warnf("Flash config not persisted: %v", err)
		errs = append(errs, fmt.Errorf("persist config: %w", err))
	}
	b.refresh()
	return errors.Join(errs...)
}

// Run polls until ctx is cancelled, sleeping idle between passes.
func (b *Bridge) Run(ctx context.Context, idle time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := b.Poll(); err != nil {
			core.Debugf("bridge: %v", err)
		}
		time.Sleep(idle)
	}
}

// drain sends tx bytes to the transport. While the transport is disconnected
// the bytes stay in the ring. At most one ring's worth is sent per pass so a
// busy bus cannot starve the rest of the loop.
func (b *Bridge) drain() error {
	if !b.transport.Connected() {
		return nil
	}
	for sent := 0; sent < b.tx.Cap(); {
		if len(b.pending) == 0 {
			n := b.tx.Read(b.outBuf[:])
			if n == 0 {
				return nil
			}
			b.pending = b.outBuf[:n]
		}
		n, err := b.transport.Write(b.pending)
		b.pending = b.pending[n:]
		b.held.Store(int32(len(b.pending)))
		sent += n
		if err != nil {
			return fmt.Errorf("console write: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// fill moves console input into the rx ring, evicting the oldest unread
// bytes when the master is not keeping up.
func (b *Bridge) fill() error {
	n, err := b.transport.Read(b.readBuf[:])
	if n > 0 {
		if _, evicted := b.rx.Write(b.readBuf[:n]); evicted > 0 {
			b.engine.NoteRxOverflow(evicted)
		}
	}
	if err != nil {
		return fmt.Errorf("console read: %w", err)
	}
	return nil
}

func (b *Bridge) refresh() {
	now := b.now()
	if !b.lastStatus.IsZero() && now.Sub(b.lastStatus) < b.interval {
		return
	}
	b.lastStatus = now

	t := b.Telemetry()
	if errs := t.Errors(); errs > b.lastErrors {
		core.Warnf("error count %d -> %d (tx overflow %d, rx overflow %d, bus %d, flash %d)",
			b.lastErrors, errs, t.TxOverflow, t.RxOverflow, t.BusErrors, t.PersistErrors)
		b.lastErrors = errs
	}
	if b.display != nil {
		b.display.Update(t)
	}
}

// Telemetry returns the current status readout. TxAvailable includes the
// bytes the bridge has taken from the tx ring but the transport has not yet
// accepted; the bus register only sees the ring.
func (b *Bridge) Telemetry() Telemetry {
	stats := b.engine.Stats()
	return Telemetry{
		At:            b.now(),
		Address:       b.engine.Address(),
		ClockStretch:  b.engine.ClockStretch(),
		TxAvailable:   uint16(b.tx.Available() + int(b.held.Load())),
		RxAvailable:   uint16(b.rx.Available()),
		TxBytes:       stats.TxBytes,
		RxBytes:       stats.RxBytes,
		TxOverflow:    stats.TxOverflow,
		RxOverflow:    stats.RxOverflow,
		BusErrors:     stats.BusErrors,
		PersistErrors: b.store.Failures(),
		Connected:     b.transport.Connected(),
		ConfigPending: b.store.Pending(),
	}
}
