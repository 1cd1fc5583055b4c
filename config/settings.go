//go:build !tinygo

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"i2console/protocol"
)

// Settings configures the hosted tools (i2console CLI and emulator). It is
// unrelated to DeviceConfig, which lives in the device's own flash.
type Settings struct {
	LogLevel string           `yaml:"log_level"`
	Bus      BusSettings      `yaml:"bus"`
	Serial   SerialSettings   `yaml:"serial"`
	Emulator EmulatorSettings `yaml:"emulator"`
}

// BusSettings selects the I2C bus the host talks to the device over.
type BusSettings struct {
	Name     string `yaml:"name"`      // periph bus name, e.g. "/dev/i2c-1" or "1"; empty picks the first bus
	Address  uint8  `yaml:"address"`   // 7-bit device address
	SpeedKHz int    `yaml:"speed_khz"` // bus clock
}

// SerialSettings selects the device's USB-CDC console port.
type SerialSettings struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"` // ignored by USB CDC but required by the port API
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

// EmulatorSettings configures `i2console emulate`.
type EmulatorSettings struct {
	FlashImage          string `yaml:"flash_image"`
	TelemetryIntervalMs int    `yaml:"telemetry_interval_ms"`
	TelemetryLog        string `yaml:"telemetry_log"` // CBOR snapshot log; empty disables
	Console             string `yaml:"console"`       // serial device for the console side; empty uses stdout
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// LoadSettings reads a YAML settings file and fills in defaults.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Settings) applyDefaults() {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Bus.Address == 0 {
		s.Bus.Address = protocol.DefaultAddress
	}
	if s.Bus.SpeedKHz == 0 {
		s.Bus.SpeedKHz = 100
	}
	if s.Serial.Device == "" {
		s.Serial.Device = "/dev/ttyACM0"
	}
	if s.Serial.Baud == 0 {
		s.Serial.Baud = 115200
	}
	if s.Serial.ReadTimeoutMs == 0 {
		s.Serial.ReadTimeoutMs = 100
	}
	if s.Emulator.FlashImage == "" {
		s.Emulator.FlashImage = "i2console-flash.img"
	}
	if s.Emulator.TelemetryIntervalMs == 0 {
		s.Emulator.TelemetryIntervalMs = 100
	}
}

// Validate checks the settings for values the tools cannot work with.
func (s *Settings) Validate() error {
	var errs []error
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", s.LogLevel))
	}
	if !protocol.ValidAddress(s.Bus.Address) {
		errs = append(errs, fmt.Errorf("bus.address: 0x%02X: %w", s.Bus.Address, ErrInvalidAddress))
	}
	if s.Bus.SpeedKHz < 10 || s.Bus.SpeedKHz > 1000 {
		errs = append(errs, fmt.Errorf("bus.speed_khz: %d out of range 10-1000", s.Bus.SpeedKHz))
	}
	if s.Serial.ReadTimeoutMs < 0 {
		errs = append(errs, errors.New("serial.read_timeout_ms: must not be negative"))
	}
	if s.Emulator.TelemetryIntervalMs < 10 {
		errs = append(errs, fmt.Errorf("emulator.telemetry_interval_ms: %d below 10", s.Emulator.TelemetryIntervalMs))
	}
	return errors.Join(errs...)
}

// ReadTimeout returns the serial read timeout as a duration.
func (s SerialSettings) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMs) * time.Millisecond
}

// TelemetryInterval returns the telemetry poll cadence as a duration.
func (s EmulatorSettings) TelemetryInterval() time.Duration {
	return time.Duration(s.TelemetryIntervalMs) * time.Millisecond
}
