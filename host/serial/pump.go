//go:build !tinygo

package serial

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"i2console/core"
	"i2console/internal/syncutil"
)

// ErrClosed is the stream error after Close.
var ErrClosed = errors.New("serial: pump closed")

// Pump turns a blocking byte stream into the non-blocking transport the
// bridge polls. A goroutine reads the stream ahead; Read hands out what has
// arrived and never waits.
type Pump struct {
	rw io.ReadWriteCloser
	in chan []byte

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	mu      syncutil.Mutex
	pending []byte
	err     error

	connected atomic.Bool
}

// NewPump starts reading rw in the background. Close releases rw.
func NewPump(rw io.ReadWriteCloser) *Pump {
	p := &Pump{
		rw:      rw,
		in:      make(chan []byte, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	p.connected.Store(true)
	go p.readLoop()
	return p
}

func (p *Pump) readLoop() {
	defer close(p.stopped)
	defer close(p.in)
	buf := make([]byte, 256)
	for {
		n, err := p.rw.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.in <- chunk:
			case <-p.done:
				return
			}
		}
		if err != nil {
			p.fail(err)
			return
		}
	}
}

func (p *Pump) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
		if !errors.Is(err, io.EOF) && !errors.Is(err, ErrClosed) {
			core.Warnf("console stream closed: %v", err)
		}
	}
	p.mu.Unlock()
	p.connected.Store(false)
}

// Connected reports whether the stream is still usable.
func (p *Pump) Connected() bool {
	return p.connected.Load()
}

// Err returns the error that ended the stream, if any.
func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Read copies already received bytes into b.
func (p *Pump) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for n < len(b) {
		if len(p.pending) == 0 {
			select {
			case chunk, ok := <-p.in:
				if !ok {
					return n, nil
				}
				p.pending = chunk
			default:
				return n, nil
			}
		}
		c := copy(b[n:], p.pending)
		p.pending = p.pending[c:]
		n += c
	}
	return n, nil
}

// Write writes b to the stream. A failed write marks the pump disconnected.
func (p *Pump) Write(b []byte) (int, error) {
	n, err := p.rw.Write(b)
	if err != nil {
		p.fail(err)
	}
	return n, err
}

// Close stops the read-ahead goroutine and closes the stream. Bytes already
// queued stay readable.
func (p *Pump) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.fail(ErrClosed)
		close(p.done)
		err = p.rw.Close()
	})
	return err
}
