// Package slave implements the I2Console register engine: the state machine
// the I2C peripheral's interrupt handler feeds with bus events.
//
// Every Engine method except Stats and NoteRxOverflow belongs to interrupt
// context. None of them block or allocate.
package slave

import (
	"i2console/core"
	"i2console/protocol"
)

// Settings is the slice of the configuration store the engine needs.
// config.Store satisfies it; with deferred writes its setters are interrupt safe.
type Settings interface {
	I2CAddress() uint8
	SetI2CAddress(addr uint8) error
	ClockStretch() bool
	SetClockStretch(enabled bool) error
}

// State is the per-transaction protocol state.
type State uint8

const (
	// AwaitingRegister: no register selected yet in this transaction.
	AwaitingRegister State = iota
	// RegisterSet: the first write byte latched a register.
	RegisterSet
)

func (s State) String() string {
	switch s {
	case AwaitingRegister:
		return "awaiting-register"
	case RegisterSet:
		return "register-set"
	default:
		return "unknown"
	}
}

// Engine decodes register-addressed transactions.
//
// Bytes the master writes to the data window are pushed to tx, which the
// foreground drains to the console. Reads from the data window pop rx, which
// the foreground fills from the console.
type Engine struct {
	tx       *core.Ring
	rx       *core.Ring
	settings Settings
	version  protocol.Version

	state State
	reg   uint8

	// reading is set once the master has clocked a byte out in this
	// transaction. A write after that means a repeated start the protocol
	// does not define.
	reading bool

	// addrChanged is set when register 0x02 took a new address; the
	// peripheral driver applies it once the transaction is over.
	addrChanged bool

	stats Stats
}

// New wires an engine to its rings and configuration.
func New(tx, rx *core.Ring, settings Settings, version protocol.Version) *Engine {
	return &Engine{
		tx:       tx,
		rx:       rx,
		settings: settings,
		version:  version,
	}
}

// OnByteReceived handles a byte written by the master. The first byte of a
// transaction selects the register; later bytes are data for it. A write
// following a read in the same transaction is a bus error: the byte is
// dropped and the transaction reset.
func (e *Engine) OnByteReceived(b byte) {
	if e.reading {
		e.OnAbort()
		return
	}
	if e.state == AwaitingRegister {
		e.reg = b
		e.state = RegisterSet
		return
	}

	switch {
	case e.reg == protocol.RegI2CAddress:
		// Reserved addresses are ignored like any other bad write.
		if protocol.ValidAddress(b) && b != e.settings.I2CAddress() {
			// A durability failure is recorded by the store itself.
			_ = e.settings.SetI2CAddress(b)
			e.addrChanged = true
		}
	case e.reg == protocol.RegClockStretch:
		_ = e.settings.SetClockStretch(b&protocol.ClockStretchBit != 0)
	case protocol.IsDataRegister(e.reg):
		if !e.tx.Push(b) {
			e.stats.txOverflow.Add(1)
		}
		e.stats.txBytes.Add(1)
	}
}

// OnReadRequest returns the next byte for the master. It always answers, so
// the bus never stalls: unknown registers, an empty rx ring, or a read with
// no register selected all yield 0x00.
//
// Below the data window the register pointer advances after each read, which
// lets a master fetch the device ID or version string in one transaction. It
// stops short of the data window; the data window itself does not advance.
func (e *Engine) OnReadRequest() byte {
	if e.state == AwaitingRegister {
		return 0x00
	}
	e.reading = true
	b := e.readRegister(e.reg)
	if e.reg < protocol.RegLastBeforeData {
		e.reg++
	}
	return b
}

func (e *Engine) readRegister(reg uint8) byte {
	switch {
	case reg == protocol.RegDeviceIDHigh:
		return byte(protocol.DeviceID >> 8)
	case reg == protocol.RegDeviceIDLow:
		return byte(protocol.DeviceID & 0xFF)
	case reg == protocol.RegI2CAddress:
		return e.settings.I2CAddress()
	case reg == protocol.RegClockStretch:
		if e.settings.ClockStretch() {
			return protocol.ClockStretchBit
		}
		return 0x00
	case reg == protocol.RegTxAvailLow:
		return byte(e.tx.Available())
	case reg == protocol.RegTxAvailHigh:
		return byte(e.tx.Available() >> 8)
	case reg == protocol.RegRxAvail:
		return byte(e.rx.Available())
	case reg >= protocol.RegVersion && int(reg) < protocol.RegVersion+protocol.VersionFieldLen:
		return e.version.ByteAt(int(reg) - protocol.RegVersion)
	case protocol.IsDataRegister(reg):
		b, ok := e.rx.Pop()
		if !ok {
			return 0x00
		}
		e.stats.rxBytes.Add(1)
		return b
	default:
		return 0x00
	}
}

// OnStop ends the transaction, whatever state it was left in.
func (e *Engine) OnStop() {
	e.reset()
}

// OnAbort handles a malformed transaction (arbitration loss, unexpected
// repeated start, peripheral abort). It is counted and the transaction is
// dropped; the master is expected to retry the whole transaction.
func (e *Engine) OnAbort() {
	e.stats.busErrors.Add(1)
	e.reset()
}

func (e *Engine) reset() {
	e.state = AwaitingRegister
	e.reg = 0
	e.reading = false
}

// State returns the current protocol state.
func (e *Engine) State() State {
	return e.state
}

// Register returns the selected register and whether one is selected.
func (e *Engine) Register() (reg uint8, ok bool) {
	return e.reg, e.state == RegisterSet
}

// TakeAddressChange reports a pending self-reassignment once, returning the
// address the peripheral must answer to from now on. Call it after OnStop.
func (e *Engine) TakeAddressChange() (uint8, bool) {
	if !e.addrChanged {
		return 0, false
	}
	e.addrChanged = false
	return e.settings.I2CAddress(), true
}

// Address returns the slave address the engine currently answers to.
func (e *Engine) Address() uint8 {
	return e.settings.I2CAddress()
}

// ClockStretch reports whether the peripheral should hold SCL low while the
// receive FIFO is full.
func (e *Engine) ClockStretch() bool {
	return e.settings.ClockStretch()
}

// NoteRxOverflow counts a console byte that evicted an unread one from the rx
// ring. The foreground calls it; it is safe from any context.
func (e *Engine) NoteRxOverflow(n int) {
	e.stats.rxOverflow.Add(uint32(n))
}

// Stats returns a copy of the traffic counters.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.snapshot()
}
