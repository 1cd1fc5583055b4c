// Package emulator runs a complete I2Console on the host: the register engine
// behind a simulated I2C bus, file-backed flash for the configuration record,
// and the bridge loop moving console bytes to a local transport.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"i2console/bridge"
	"i2console/config"
	"i2console/core"
	"i2console/host/client"
	"i2console/host/sim"
	"i2console/protocol"
	"i2console/slave"
)

// Ring capacities match the RP2040 firmware.
const (
	TxCapacity = 256
	RxCapacity = 1024
)

// DefaultFlashSize is the size of a new flash image.
const DefaultFlashSize = 16 * config.DefaultEraseBlockSize

// Options configures an Emulator.
type Options struct {
	FlashImage   string
	FlashSize    int64 // 0 uses DefaultFlashSize
	Interval     time.Duration
	TelemetryLog string // empty disables the CBOR log
	Version      string // empty uses protocol.FirmwareVersion
	Display      bridge.StatusDisplay
}

// Emulator is one emulated device plus a master attached to its bus.
type Emulator struct {
	flash  *config.FileFlash
	store  *config.Store
	tx, rx *core.Ring
	engine *slave.Engine
	bus    *sim.Bus
	bridge *bridge.Bridge
	master *client.Device
	tlog   *bridge.TelemetryLog
}

// New boots an emulated device whose console side is transport.
func New(opts Options, transport bridge.Transport) (*Emulator, error) {
	size := opts.FlashSize
	if size == 0 {
		size = DefaultFlashSize
	}
	flash, err := config.OpenFileFlash(opts.FlashImage, size)
	if err != nil {
		return nil, err
	}

	store := config.New(flash, config.WithDeferredWrites())
	cfg, err := store.Load()
	if err != nil {
		core.Warnf("Using session config: %v", err)
	}

	version := opts.Version
	if version == "" {
		version = protocol.FirmwareVersion
	}

	e := &Emulator{
		flash: flash,
		store: store,
		tx:    core.NewRing(TxCapacity),
		rx:    core.NewRing(RxCapacity),
	}
	e.engine = slave.New(e.tx, e.rx, store, protocol.ParseVersion(version))
	e.bus = sim.New(e.engine)
	e.bridge = bridge.New(e.engine, store, e.tx, e.rx, transport)
	if opts.Interval > 0 {
		e.bridge.SetInterval(opts.Interval)
	}
	e.master = client.New(e.bus, cfg.I2CAddress)

	display := opts.Display
	if opts.TelemetryLog != "" {
		e.tlog, err = bridge.OpenTelemetryLog(opts.TelemetryLog)
		if err != nil {
			_ = flash.Close()
			return nil, err
		}
		display = bridge.Displays(display, e.tlog)
	}
	e.bridge.SetDisplay(display)

	core.Infof("I2Console emulator at 0x%02X, version %s, flash %s",
		cfg.I2CAddress, protocol.ParseVersion(version), opts.FlashImage)
	return e, nil
}

// Run drives the bridge loop until ctx ends.
func (e *Emulator) Run(ctx context.Context) error {
	err := e.bridge.Run(ctx, time.Millisecond)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Poll runs a single bridge pass.
func (e *Emulator) Poll() error {
	return e.bridge.Poll()
}

// Master returns the client attached to the simulated bus.
func (e *Emulator) Master() *client.Device { return e.master }

// Bus returns the simulated bus.
func (e *Emulator) Bus() *sim.Bus { return e.bus }

// Telemetry returns the current status readout.
func (e *Emulator) Telemetry() bridge.Telemetry { return e.bridge.Telemetry() }

// Close flushes pending configuration and releases the flash image and
// telemetry log.
func (e *Emulator) Close() error {
	var errs []error
	if err := e.store.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush config: %w", err))
	}
	if e.tlog != nil {
		errs = append(errs, e.tlog.Close())
	}
	errs = append(errs, e.bus.Close(), e.flash.Close())
	return errors.Join(errs...)
}
