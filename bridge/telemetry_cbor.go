//go:build !tinygo

package bridge

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	telemetryEncMode cbor.EncMode
	telemetryDecMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	telemetryEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create telemetry CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	telemetryDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create telemetry CBOR decoder mode: %v", err))
	}
}

// EncodeTelemetry encodes a snapshot as CBOR with integer keys.
func EncodeTelemetry(t Telemetry) ([]byte, error) {
	return telemetryEncMode.Marshal(t)
}

// DecodeTelemetry decodes a snapshot encoded by EncodeTelemetry.
func DecodeTelemetry(data []byte) (Telemetry, error) {
	var t Telemetry
	if err := telemetryDecMode.Unmarshal(data, &t); err != nil {
		return Telemetry{}, err
	}
	return t, nil
}

// TelemetryLog appends every snapshot it receives to a file as a CBOR
// sequence. It is a StatusDisplay, so it can sit next to the real display.
type TelemetryLog struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// OpenTelemetryLog opens path for appending, creating it if needed.
func OpenTelemetryLog(path string) (*TelemetryLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open telemetry log %s: %w", path, err)
	}
	return &TelemetryLog{file: f, encoder: telemetryEncMode.NewEncoder(f)}, nil
}

// Update writes t. Encoding errors are dropped; telemetry must never disturb
// the foreground loop.
func (l *TelemetryLog) Update(t Telemetry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	_ = l.encoder.Encode(t)
}

// Close closes the file. Later updates are ignored.
func (l *TelemetryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// ReadTelemetry decodes a CBOR sequence of snapshots from r and calls fn for
// each one, stopping at the first error fn returns.
func ReadTelemetry(r io.Reader, fn func(Telemetry) error) error {
	dec := telemetryDecMode.NewDecoder(r)
	for {
		var t Telemetry
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode telemetry: %w", err)
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}
