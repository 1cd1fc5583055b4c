//go:build !tinygo

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// FileFlash keeps an emulated flash image in a file so the hosted emulator's
// configuration survives restarts the way the device's does across power cycles.
type FileFlash struct {
	f    *os.File
	size int64
}

// OpenFileFlash opens the image at path, creating an erased image of size
// bytes if it does not exist. An existing image keeps its own size.
func OpenFileFlash(path string, size int64) (*FileFlash, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open flash image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat flash image %s: %w", path, err)
	}
	ff := &FileFlash{f: f, size: info.Size()}
	if ff.size == 0 {
		ff.size = size
		if err := ff.fill(0, size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("initialize flash image %s: %w", path, err)
		}
	}
	if ff.size%DefaultEraseBlockSize != 0 {
		_ = f.Close()
		return nil, fmt.Errorf("flash image %s: size %d is not a multiple of %d", path, ff.size, DefaultEraseBlockSize)
	}
	return ff, nil
}

func (ff *FileFlash) fill(off, n int64) error {
	_, err := ff.f.WriteAt(bytes.Repeat([]byte{0xFF}, int(n)), off)
	return err
}

func (ff *FileFlash) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > ff.size {
		return 0, fmt.Errorf("read %d bytes at %d: %w", len(p), off, errOutOfRange)
	}
	n, err := ff.f.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		err = nil
	}
	return n, err
}

// WriteAt programs p at off with NOR semantics (bits can only be cleared).
func (ff *FileFlash) WriteAt(p []byte, off int64) (int, error) {
	cur := make([]byte, len(p))
	if _, err := ff.ReadAt(cur, off); err != nil {
		return 0, err
	}
	for i := range cur {
		cur[i] &= p[i]
	}
	return ff.f.WriteAt(cur, off)
}

func (ff *FileFlash) Size() int64           { return ff.size }
func (ff *FileFlash) WriteBlockSize() int64 { return DefaultWriteBlockSize }
func (ff *FileFlash) EraseBlockSize() int64 { return DefaultEraseBlockSize }

func (ff *FileFlash) EraseBlocks(start, n int64) error {
	lo, hi := start*DefaultEraseBlockSize, (start+n)*DefaultEraseBlockSize
	if start < 0 || n < 0 || hi > ff.size {
		return fmt.Errorf("erase blocks %d+%d: %w", start, n, errOutOfRange)
	}
	return ff.fill(lo, hi-lo)
}

// Sync flushes the image to disk.
func (ff *FileFlash) Sync() error {
	return ff.f.Sync()
}

// Close closes the image file.
func (ff *FileFlash) Close() error {
	return ff.f.Close()
}
