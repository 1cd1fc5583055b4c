//go:build rp2040

package main

import (
	"machine"
)

// usbConsole is the bridge transport over the USB CDC port. TinyGo sets up
// the CDC-ACM interface; machine.Serial is that port on the RP2040.
type usbConsole struct{}

// InitUSB configures the CDC port.
func InitUSB() usbConsole {
	_ = machine.Serial.Configure(machine.UARTConfig{})
	return usbConsole{}
}

// Connected reports whether a terminal has the port open (DTR asserted).
func (usbConsole) Connected() bool {
	return machine.Serial.DTR()
}

// Read returns what the host has sent so far without waiting.
func (usbConsole) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (usbConsole) Write(p []byte) (int, error) {
	return machine.Serial.Write(p)
}
