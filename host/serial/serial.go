// Package serial opens the USB CDC console port of an I2Console on the host
// side and adapts byte streams to the bridge's non-blocking transport.
package serial

import (
	"io"
	"time"
)

// Port is an open serial port.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate; USB CDC ignores it but real UART adapters do not.
	Baud int

	// ReadTimeout bounds each Read; 0 blocks.
	ReadTimeout time.Duration
}

// DefaultConfig returns the configuration the console port normally uses.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
