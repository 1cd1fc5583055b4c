// Package protocol defines the I2Console wire contract: the register map a bus
// master sees and the layout of the configuration record kept in flash.
package protocol

// FirmwareVersion is the raw build version, normally a `git describe` string.
// Release builds override it with -ldflags "-X i2console/protocol.FirmwareVersion=...".
var FirmwareVersion = "v0.1.0"

// DeviceID is returned big-endian from registers 0x00-0x01.
const DeviceID uint16 = 0x12C0

// DefaultAddress is the 7-bit slave address used until one is configured.
const DefaultAddress uint8 = 0x37

// Register addresses
const (
	RegDeviceIDHigh   = 0x00
	RegDeviceIDLow    = 0x01
	RegI2CAddress     = 0x02
	RegClockStretch   = 0x03
	RegVersion        = 0x04 // first byte of the version field
	RegTxAvailLow     = 0x10
	RegTxAvailHigh    = 0x11
	RegRxAvail        = 0x12
	RegData           = 0x20 // this and every higher address alias the data window
	RegLastBeforeData = RegData - 1
)

// ClockStretchBit is the only meaningful bit of RegClockStretch.
const ClockStretchBit = 0x01

// IsDataRegister reports whether reg addresses the console data window.
func IsDataRegister(reg uint8) bool {
	return reg >= RegData
}

// ValidAddress reports whether addr is a usable 7-bit slave address, i.e. not
// in the reserved blocks 0x00-0x07 and 0x78-0x7F.
func ValidAddress(addr uint8) bool {
	return addr >= 0x08 && addr <= 0x77
}
