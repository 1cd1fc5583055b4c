// Package sim puts a slave.Engine behind a periph.io I2C bus, so host tools
// and tests can drive the register protocol without hardware.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"i2console/core"
	"i2console/slave"
)

var (
	// ErrNack is returned when no device answers at the requested address.
	ErrNack = errors.New("sim: address not acknowledged")

	errBusClosed = errors.New("sim: bus is closed")
)

// Bus implements i2c.BusCloser on top of an Engine. Each Tx is one
// transaction: the write phase, a repeated start, the read phase, then STOP.
type Bus struct {
	mu     sync.Mutex
	engine *slave.Engine
	name   string
	speed  physic.Frequency
	closed bool

	// abortAfter, when non-zero, aborts the next transaction after that many
	// written bytes, as a master that loses arbitration would.
	abortAfter int

	// OnAddressChange is called with the new address after a transaction
	// moved the slave, like the firmware reprogramming its address register.
	OnAddressChange func(addr uint8)
}

// New returns a Bus serving engine.
func New(engine *slave.Engine) *Bus {
	return &Bus{
		engine: engine,
		name:   "sim://i2console",
		speed:  100 * physic.KiloHertz,
	}
}

// String implements conn.Resource.
func (b *Bus) String() string {
	return b.name
}

// Tx implements i2c.Bus.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errBusClosed
	}
	if addr != uint16(b.engine.Address()) {
		return fmt.Errorf("tx 0x%02X: %w", addr, ErrNack)
	}

	for i, c := range w {
		if b.abortAfter > 0 && i == b.abortAfter {
			b.abortAfter = 0
			b.engine.OnAbort()
			return fmt.Errorf("tx 0x%02X: arbitration lost after %d bytes", addr, i)
		}
		b.engine.OnByteReceived(c)
	}
	for i := range r {
		r[i] = b.engine.OnReadRequest()
	}
	b.engine.OnStop()

	if newAddr, ok := b.engine.TakeAddressChange(); ok {
		core.Debugf("sim: slave moved 0x%02X -> 0x%02X", addr, newAddr)
		if b.OnAddressChange != nil {
			b.OnAddressChange(newAddr)
		}
	}
	return nil
}

// SetSpeed implements i2c.Bus. The simulated bus accepts standard and fast
// mode clocks.
func (b *Bus) SetSpeed(f physic.Frequency) error {
	if f <= 0 || f > 1*physic.MegaHertz {
		return fmt.Errorf("sim: unsupported bus speed %s", f)
	}
	b.mu.Lock()
	b.speed = f
	b.mu.Unlock()
	return nil
}

// Speed returns the last accepted bus clock.
func (b *Bus) Speed() physic.Frequency {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speed
}

// AbortNext makes the next transaction fail after n written bytes.
func (b *Bus) AbortNext(n int) {
	b.mu.Lock()
	b.abortAfter = n
	b.mu.Unlock()
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

var _ i2c.BusCloser = (*Bus)(nil)
