//go:build rp2040

package main

import (
	"machine"

	"i2console/core"
)

var debugUART *machine.UART

// InitDebugUART brings up UART0 on GPIO0 (TX) and GPIO1 (RX) at 115200 baud
// for log output; the USB port carries only console traffic.
func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return
	}
	debugUART = uart
}

func debugLogWriter(level core.Level, msg string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(core.FormatLine(level, msg)))
	debugUART.Write([]byte("\r\n"))
}
