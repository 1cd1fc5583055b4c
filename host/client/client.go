// Package client drives an I2Console from the bus master side over any
// periph.io I2C bus.
package client

import (
	"bytes"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"

	"i2console/protocol"
)

// ErrNotDetected is returned when the device at the address does not report
// the I2Console device ID.
var ErrNotDetected = errors.New("i2console: device not detected")

// MaxChunk is the largest console payload sent in one bus transaction.
const MaxChunk = 64

// versionReadable is how much of the version field can be read before the
// counter registers take over the address space.
const versionReadable = protocol.RegTxAvailLow - protocol.RegVersion

// Device is an I2Console at a fixed address.
type Device struct {
	dev *i2c.Dev
}

// New returns a Device on bus at addr. It does not touch the bus; call Detect.
func New(bus i2c.Bus, addr uint8) *Device {
	return &Device{dev: &i2c.Dev{Addr: uint16(addr), Bus: bus}}
}

// String implements fmt.Stringer.
func (d *Device) String() string {
	return fmt.Sprintf("i2console@0x%02X on %s", d.dev.Addr, d.dev.Bus)
}

func (d *Device) readReg(reg uint8, buf []byte) error {
	if err := d.dev.Tx([]byte{reg}, buf); err != nil {
		return fmt.Errorf("read register 0x%02X: %w", reg, err)
	}
	return nil
}

func (d *Device) writeReg(reg uint8, data ...byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := d.dev.Tx(w, nil); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", reg, err)
	}
	return nil
}

// Detect checks the device ID.
func (d *Device) Detect() error {
	var id [2]byte
	if err := d.readReg(protocol.RegDeviceIDHigh, id[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDetected, err)
	}
	if got := uint16(id[0])<<8 | uint16(id[1]); got != protocol.DeviceID {
		return fmt.Errorf("%w: id 0x%04X at 0x%02X", ErrNotDetected, got, d.dev.Addr)
	}
	return nil
}

// Version returns the firmware version string.
func (d *Device) Version() (string, error) {
	buf := make([]byte, versionReadable)
	if err := d.readReg(protocol.RegVersion, buf); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

// Address reads the address the device is configured for.
func (d *Device) Address() (uint8, error) {
	var b [1]byte
	if err := d.readReg(protocol.RegI2CAddress, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// SetAddress moves the device to addr and keeps talking to it there. The
// device persists the new address, so it survives a power cycle.
func (d *Device) SetAddress(addr uint8) error {
	if !protocol.ValidAddress(addr) {
		return fmt.Errorf("set address 0x%02X: reserved or out of range", addr)
	}
	if err := d.writeReg(protocol.RegI2CAddress, addr); err != nil {
		return err
	}
	d.dev.Addr = uint16(addr)
	return nil
}

// ClockStretch reports whether the device stretches SCL when its FIFO fills.
func (d *Device) ClockStretch() (bool, error) {
	var b [1]byte
	if err := d.readReg(protocol.RegClockStretch, b[:]); err != nil {
		return false, err
	}
	return b[0]&protocol.ClockStretchBit != 0, nil
}

// SetClockStretch enables or disables clock stretching.
func (d *Device) SetClockStretch(enabled bool) error {
	var v byte
	if enabled {
		v = protocol.ClockStretchBit
	}
	return d.writeReg(protocol.RegClockStretch, v)
}

// Pending is the fill level of the device's rings.
type Pending struct {
	// Console output not yet sent to the USB host.
	Tx uint16
	// Console input waiting for the master, modulo 256.
	Rx uint8
}

// Pending reads both ring counters in one transaction.
func (d *Device) Pending() (Pending, error) {
	var b [3]byte
	if err := d.readReg(protocol.RegTxAvailLow, b[:]); err != nil {
		return Pending{}, err
	}
	return Pending{Tx: uint16(b[0]) | uint16(b[1])<<8, Rx: b[2]}, nil
}

// Write sends p to the console, MaxChunk bytes per transaction. It implements
// io.Writer, so a Device can back a logger.
func (d *Device) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), MaxChunk)
		if err := d.writeReg(protocol.RegData, p[:n]...); err != nil {
			return written, err
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

// Read fetches console input, at most len(p) bytes. It returns 0 and no error
// when nothing is waiting.
func (d *Device) Read(p []byte) (int, error) {
	pending, err := d.Pending()
	if err != nil {
		return 0, err
	}
	n := min(len(p), int(pending.Rx))
	if n == 0 {
		return 0, nil
	}
	if err := d.readReg(protocol.RegData, p[:n]); err != nil {
		return 0, err
	}
	return n, nil
}
