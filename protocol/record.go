package protocol

import (
	"encoding/binary"
	"errors"
)

// ConfigMagic marks an initialized configuration record.
const ConfigMagic uint32 = 0x12C0CAFE

// RecordSize is the encoded size of Record.
const RecordSize = 8

// ErrShortRecord is returned when fewer than RecordSize bytes are decoded.
var ErrShortRecord = errors.New("protocol: config record too short")

// Record is the persisted configuration layout, little-endian:
//
//	offset 0  magic          u32
//	offset 4  i2c_address    u8
//	offset 5  clock_stretch  u8 (0 or 1)
//	offset 6  reserved       [2]u8
type Record struct {
	Magic        uint32
	I2CAddress   uint8
	ClockStretch uint8
	Reserved     [2]uint8
}

// Valid reports whether the record carries ConfigMagic.
func (r Record) Valid() bool {
	return r.Magic == ConfigMagic
}

// MarshalBinary encodes the record.
func (r Record) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	r.Put(buf)
	return buf, nil
}

// Put encodes the record into the first RecordSize bytes of buf.
func (r Record) Put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], r.Magic)
	buf[4] = r.I2CAddress
	buf[5] = r.ClockStretch
	buf[6] = r.Reserved[0]
	buf[7] = r.Reserved[1]
}

// UnmarshalBinary decodes the record.
func (r *Record) UnmarshalBinary(data []byte) error {
	if len(data) < RecordSize {
		return ErrShortRecord
	}
	r.Magic = binary.LittleEndian.Uint32(data[0:4])
	r.I2CAddress = data[4]
	r.ClockStretch = data[5]
	r.Reserved = [2]uint8{data[6], data[7]}
	return nil
}
