// Package config keeps the device configuration (slave address and
// clock-stretch flag) in a magic-validated record in the last erase block of
// flash.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"

	"i2console/core"
	"i2console/protocol"
)

var (
	// ErrVerify means the record read back after programming differs from
	// what was written.
	ErrVerify = errors.New("config: flash verify mismatch")

	// ErrInvalidAddress is returned for reserved or out-of-range 7-bit addresses.
	ErrInvalidAddress = errors.New("config: invalid I2C address")
)

// DeviceConfig is the in-memory form of the persisted record.
type DeviceConfig struct {
	Magic        uint32
	I2CAddress   uint8
	ClockStretch bool
}

// Defaults returns the configuration used for uninitialized flash.
func Defaults() DeviceConfig {
	return DeviceConfig{
		Magic:      protocol.ConfigMagic,
		I2CAddress: protocol.DefaultAddress,
	}
}

func (c DeviceConfig) record() protocol.Record {
	rec := protocol.Record{Magic: c.Magic, I2CAddress: c.I2CAddress}
	if c.ClockStretch {
		rec.ClockStretch = 1
	}
	return rec
}

func fromRecord(rec protocol.Record) DeviceConfig {
	return DeviceConfig{
		Magic:        rec.Magic,
		I2CAddress:   rec.I2CAddress,
		ClockStretch: rec.ClockStretch != 0,
	}
}

// Store owns the cached DeviceConfig and its durable copy.
//
// The cache may be read and changed from interrupt context; every access runs
// inside a core critical section. Durable writes are slow (an erase block
// erase plus a program) and must only be started where that stall is
// acceptable: never from the I2C interrupt handler. In deferred mode the
// setters only stage the change and the foreground calls Flush.
type Store struct {
	flash    Flash
	offset   int64
	deferred bool

	cur   DeviceConfig
	dirty bool

	durable  atomic.Bool
	failures atomic.Uint32
}

// Option configures a Store.
type Option func(*Store)

// WithDeferredWrites makes SetI2CAddress and SetClockStretch update the cache
// only; the durable write happens on the next Flush.
func WithDeferredWrites() Option {
	return func(s *Store) { s.deferred = true }
}

// New creates a Store whose record lives at the start of the last erase block
// of flash. Call Load before using the accessors.
func New(flash Flash, opts ...Option) *Store {
	s := &Store{
		flash:  flash,
		offset: flash.Size() - flash.EraseBlockSize(),
		cur:    Defaults(),
	}
	s.durable.Store(true)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the durable record into the cache and returns it. Storage that
// does not carry the magic is treated as never initialized: defaults are
// returned and persisted right away.
func (s *Store) Load() (DeviceConfig, error) {
	buf := make([]byte, protocol.RecordSize)
	if _, err := s.flash.ReadAt(buf, s.offset); err != nil {
		s.setCache(Defaults())
		return Defaults(), fmt.Errorf("read config record: %w", err)
	}

	var rec protocol.Record
	if err := rec.UnmarshalBinary(buf); err != nil {
		return Defaults(), err
	}
	if !rec.Valid() {
		cfg := Defaults()
		err := s.Save(cfg)
		if err != nil {
			core.Errorf("Flash config defaults not persisted: %v", err)
			return cfg, err
		}
		core.Infof("Flash config initialized with defaults")
		return cfg, nil
	}

	cfg := fromRecord(rec)
	s.setCache(cfg)
	core.Debugf("Flash config loaded: addr=0x%02X", cfg.I2CAddress)
	return cfg, nil
}

// Save updates the cache and writes cfg to flash (erase, program, verify).
// The cache keeps the new value even when the durable write fails, so the
// running session stays consistent.
func (s *Store) Save(cfg DeviceConfig) error {
	cfg.Magic = protocol.ConfigMagic
	s.setCache(cfg)
	return s.persist(cfg)
}

func (s *Store) persist(cfg DeviceConfig) error {
	page := bytes.Repeat([]byte{0xFF}, int(s.flash.WriteBlockSize()))
	cfg.record().Put(page)

	state := core.DisableInterrupts()
	err := s.program(page)
	core.RestoreInterrupts(state)

	if err == nil {
		err = s.verify(page[:protocol.RecordSize])
	}
	if err != nil {
		s.durable.Store(false)
		s.failures.Add(1)
		return err
	}
	s.durable.Store(true)
	return nil
}

func (s *Store) program(page []byte) error {
	block := s.offset / s.flash.EraseBlockSize()
	if err := s.flash.EraseBlocks(block, 1); err != nil {
		return fmt.Errorf("erase config block: %w", err)
	}
	if _, err := s.flash.WriteAt(page, s.offset); err != nil {
		return fmt.Errorf("program config page: %w", err)
	}
	return nil
}

func (s *Store) verify(want []byte) error {
	got := make([]byte, len(want))
	if _, err := s.flash.ReadAt(got, s.offset); err != nil {
		return fmt.Errorf("read back config record: %w", err)
	}
	if !bytes.Equal(got, want) {
		return ErrVerify
	}
	return nil
}

// Flush performs the durable write for a change staged in deferred mode.
// A failed write leaves the change pending so the next Flush retries it.
func (s *Store) Flush() error {
	state := core.DisableInterrupts()
	if !s.dirty {
		core.RestoreInterrupts(state)
		return nil
	}
	cfg := s.cur
	s.dirty = false
	core.RestoreInterrupts(state)

	if err := s.persist(cfg); err != nil {
		state = core.DisableInterrupts()
		s.dirty = true
		core.RestoreInterrupts(state)
		return err
	}
	core.Infof("Flash config saved: addr=0x%02X stretch=%t", cfg.I2CAddress, cfg.ClockStretch)
	return nil
}

// Pending reports whether a staged change still waits for Flush.
func (s *Store) Pending() bool {
	state := core.DisableInterrupts()
	dirty := s.dirty
	core.RestoreInterrupts(state)
	return dirty
}

// Durable reports whether the last durable write succeeded.
func (s *Store) Durable() bool {
	return s.durable.Load()
}

// Failures returns the number of failed durable writes since boot.
func (s *Store) Failures() uint32 {
	return s.failures.Load()
}

// Config returns a copy of the cached configuration.
func (s *Store) Config() DeviceConfig {
	state := core.DisableInterrupts()
	cfg := s.cur
	core.RestoreInterrupts(state)
	return cfg
}

func (s *Store) setCache(cfg DeviceConfig) {
	state := core.DisableInterrupts()
	s.cur = cfg
	core.RestoreInterrupts(state)
}

// commit persists cfg, or only marks it dirty in deferred mode. Callers hold
// no critical section.
func (s *Store) commit(cfg DeviceConfig) error {
	if s.deferred {
		return nil
	}
	return s.persist(cfg)
}

// I2CAddress returns the configured 7-bit slave address.
func (s *Store) I2CAddress() uint8 {
	return s.Config().I2CAddress
}

// SetI2CAddress changes the slave address. In deferred mode it neither
// allocates nor blocks, so the I2C interrupt handler may call it.
func (s *Store) SetI2CAddress(addr uint8) error {
	if !protocol.ValidAddress(addr) {
		return ErrInvalidAddress
	}
	state := core.DisableInterrupts()
	old := s.cur.I2CAddress
	s.cur.I2CAddress = addr
	s.dirty = s.dirty || s.deferred
	cfg := s.cur
	core.RestoreInterrupts(state)

	if !s.deferred {
		core.Infof("I2C address changed: 0x%02X -> 0x%02X", old, addr)
	}
	return s.commit(cfg)
}

// ClockStretch reports whether clock stretching is enabled.
func (s *Store) ClockStretch() bool {
	return s.Config().ClockStretch
}

// SetClockStretch enables or disables clock stretching. Like SetI2CAddress it
// is interrupt safe in deferred mode.
func (s *Store) SetClockStretch(enabled bool) error {
	state := core.DisableInterrupts()
	s.cur.ClockStretch = enabled
	s.dirty = s.dirty || s.deferred
	cfg := s.cur
	core.RestoreInterrupts(state)

	return s.commit(cfg)
}
