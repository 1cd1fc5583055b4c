package config

import (
	"errors"
	"fmt"
)

// Flash is the durable medium behind a Store. It matches the method set of
// TinyGo's machine.BlockDevice, so machine.Flash can be passed in directly.
type Flash interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
	Size() int64
	WriteBlockSize() int64
	EraseBlockSize() int64
	// EraseBlocks erases len erase blocks starting at block start.
	EraseBlocks(start, len int64) error
}

// Geometry of the RP2040's QSPI flash, used as the default for emulated media.
const (
	DefaultEraseBlockSize = 4096
	DefaultWriteBlockSize = 256
)

var errOutOfRange = errors.New("config: flash access out of range")

// MemFlash is an in-memory NOR flash: erased bytes read 0xFF and programming
// can only clear bits, so a missing erase shows up as a verify failure.
type MemFlash struct {
	data       []byte
	eraseBlock int64
	writeBlock int64
}

// NewMemFlash returns an erased MemFlash of size bytes using the default
// geometry. size must be a multiple of DefaultEraseBlockSize.
func NewMemFlash(size int64) *MemFlash {
	f := &MemFlash{
		data:       make([]byte, size),
		eraseBlock: DefaultEraseBlockSize,
		writeBlock: DefaultWriteBlockSize,
	}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f
}

func (f *MemFlash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, fmt.Errorf("read %d bytes at %d: %w", len(p), off, errOutOfRange)
	}
	return copy(p, f.data[off:]), nil
}

func (f *MemFlash) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(f.data)) {
		return 0, fmt.Errorf("write %d bytes at %d: %w", len(p), off, errOutOfRange)
	}
	for i, b := range p {
		f.data[off+int64(i)] &= b
	}
	return len(p), nil
}

func (f *MemFlash) Size() int64           { return int64(len(f.data)) }
func (f *MemFlash) WriteBlockSize() int64 { return f.writeBlock }
func (f *MemFlash) EraseBlockSize() int64 { return f.eraseBlock }

func (f *MemFlash) EraseBlocks(start, n int64) error {
	lo, hi := start*f.eraseBlock, (start+n)*f.eraseBlock
	if start < 0 || n < 0 || hi > int64(len(f.data)) {
		return fmt.Errorf("erase blocks %d+%d: %w", start, n, errOutOfRange)
	}
	for i := lo; i < hi; i++ {
		f.data[i] = 0xFF
	}
	return nil
}
