package slave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i2console/config"
	"i2console/core"
	"i2console/protocol"
)

type fixture struct {
	engine *Engine
	store  *config.Store
	flash  *config.MemFlash
	tx     *core.Ring
	rx     *core.Ring
}

func newFixture(t *testing.T, opts ...config.Option) *fixture {
	t.Helper()
	flash := config.NewMemFlash(4 * config.DefaultEraseBlockSize)
	store := config.New(flash, opts...)
	_, err := store.Load()
	require.NoError(t, err)

	tx := core.NewRing(256)
	rx := core.NewRing(1024)
	return &fixture{
		engine: New(tx, rx, store, protocol.ParseVersion("v1.4.2-3-gabc1234")),
		store:  store,
		flash:  flash,
		tx:     tx,
		rx:     rx,
	}
}

// write runs a write transaction: register byte, data bytes, STOP.
func (f *fixture) write(reg byte, data ...byte) {
	f.engine.OnByteReceived(reg)
	for _, b := range data {
		f.engine.OnByteReceived(b)
	}
	f.engine.OnStop()
}

// read runs a register read: register byte, repeated start, n reads, STOP.
func (f *fixture) read(reg byte, n int) []byte {
	f.engine.OnByteReceived(reg)
	out := make([]byte, n)
	for i := range out {
		out[i] = f.engine.OnReadRequest()
	}
	f.engine.OnStop()
	return out
}

func drain(r *core.Ring) []byte {
	buf := make([]byte, r.Cap())
	return buf[:r.Read(buf)]
}

func TestWriteAddressRegister(t *testing.T) {
	f := newFixture(t)

	f.write(protocol.RegI2CAddress, 0x50)
	assert.Equal(t, uint8(0x50), f.store.I2CAddress())
	assert.Equal(t, []byte{0x50}, f.read(protocol.RegI2CAddress, 1))

	addr, ok := f.engine.TakeAddressChange()
	require.True(t, ok)
	assert.Equal(t, uint8(0x50), addr)

	_, ok = f.engine.TakeAddressChange()
	assert.False(t, ok, "change is reported once")

	// Synchronous store: the new address already survives a reboot.
	cfg, err := config.New(f.flash).Load()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x50), cfg.I2CAddress)
}

func TestWriteAddressRegisterIgnoresReservedAndUnchanged(t *testing.T) {
	f := newFixture(t)

	f.write(protocol.RegI2CAddress, 0x02)
	f.write(protocol.RegI2CAddress, 0x7C)
	f.write(protocol.RegI2CAddress, protocol.DefaultAddress)

	assert.Equal(t, protocol.DefaultAddress, f.store.I2CAddress())
	_, ok := f.engine.TakeAddressChange()
	assert.False(t, ok)
}

func TestWriteClockStretchUsesBitZero(t *testing.T) {
	f := newFixture(t)

	f.write(protocol.RegClockStretch, 0xFF)
	assert.True(t, f.store.ClockStretch())
	assert.True(t, f.engine.ClockStretch())
	assert.Equal(t, []byte{0x01}, f.read(protocol.RegClockStretch, 1))

	f.write(protocol.RegClockStretch, 0x02)
	assert.False(t, f.store.ClockStretch())
	assert.Equal(t, []byte{0x00}, f.read(protocol.RegClockStretch, 1))
}

func TestDataWritesReachConsoleRing(t *testing.T) {
	f := newFixture(t)

	f.write(protocol.RegData, 'h', 'i')
	assert.Equal(t, 2, f.tx.Available())
	assert.Equal(t, []byte("hi"), drain(f.tx))
	assert.Equal(t, uint32(2), f.engine.Stats().TxBytes)
}

func TestDataWindowAliases(t *testing.T) {
	f := newFixture(t)

	f.write(0x20, 'a')
	f.write(0x7F, 'b')
	f.write(0xFF, 'c')
	assert.Equal(t, []byte("abc"), drain(f.tx))
}

func TestTxAvailableSaturatesAtCapacity(t *testing.T) {
	f := newFixture(t)

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	f.write(protocol.RegData, data...)

	assert.Equal(t, 256, f.tx.Available())
	assert.Equal(t, []byte{256 & 0xFF}, f.read(protocol.RegTxAvailLow, 1))
	assert.Equal(t, []byte{256 >> 8}, f.read(protocol.RegTxAvailHigh, 1))

	stats := f.engine.Stats()
	assert.Equal(t, uint32(300), stats.TxBytes)
	assert.Equal(t, uint32(44), stats.TxOverflow)
	assert.Equal(t, uint32(44), stats.Errors())
}

func TestTxAvailableSequentialRead(t *testing.T) {
	f := newFixture(t)
	f.write(protocol.RegData, make([]byte, 0x123&0xFF)...)

	// Low then high byte of the TX count in one transaction.
	assert.Equal(t, []byte{0x23, 0x00}, f.read(protocol.RegTxAvailLow, 2))
}

func TestRxAvailableTruncatesToOneByte(t *testing.T) {
	f := newFixture(t)
	f.rx.Write(make([]byte, 300))

	assert.Equal(t, []byte{300 & 0xFF}, f.read(protocol.RegRxAvail, 1))
}

func TestDataReadsPopConsoleInput(t *testing.T) {
	f := newFixture(t)
	f.rx.Write([]byte("ok"))

	got := f.read(protocol.RegData, 4)
	assert.Equal(t, []byte{'o', 'k', 0x00, 0x00}, got)
	assert.Equal(t, 0, f.rx.Available())
	assert.Equal(t, uint32(2), f.engine.Stats().RxBytes)
}

func TestDeviceIDSequentialRead(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []byte{0x12, 0xC0}, f.read(protocol.RegDeviceIDHigh, 2))
	assert.Equal(t, []byte{0xC0}, f.read(protocol.RegDeviceIDLow, 1))
}

func TestVersionSequentialRead(t *testing.T) {
	f := newFixture(t)

	got := f.read(protocol.RegVersion, 8)
	assert.Equal(t, []byte{'1', '.', '4', '.', '2', '-', '3', 0x00}, got)
}

func TestVersionFieldShadowedByCounters(t *testing.T) {
	f := newFixture(t)
	f.engine = New(f.tx, f.rx, f.store, protocol.ParseVersion("0123456789abcdef"))
	f.write(protocol.RegData, 'x')

	// 0x04..0x0F carry the string, 0x10..0x12 the counters, and 0x13 the
	// terminating zero of the 15-character field.
	got := f.read(protocol.RegVersion, 16)
	assert.Equal(t, []byte("0123456789ab"), got[:12])
	assert.Equal(t, []byte{0x01, 0x00, 0x00}, got[12:15])
	assert.Zero(t, got[15])
}

func TestPointerStopsBeforeDataWindow(t *testing.T) {
	f := newFixture(t)
	f.rx.Write([]byte("keep"))

	f.engine.OnByteReceived(0x1E)
	for i := 0; i < 5; i++ {
		assert.Zero(t, f.engine.OnReadRequest())
	}
	reg, ok := f.engine.Register()
	require.True(t, ok)
	assert.Equal(t, uint8(protocol.RegLastBeforeData), reg)
	f.engine.OnStop()

	assert.Equal(t, 4, f.rx.Available(), "console input must not be consumed")
}

func TestUndefinedRegisters(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []byte{0x00}, f.read(0x15, 1))
	f.write(0x15, 0xAA, 0xBB)
	f.write(protocol.RegDeviceIDHigh, 0x99)
	f.write(protocol.RegTxAvailLow, 0x99)

	assert.Equal(t, []byte{0x12}, f.read(protocol.RegDeviceIDHigh, 1))
	assert.Equal(t, 0, f.tx.Available())
	assert.Equal(t, uint32(0), f.engine.Stats().Errors())
}

func TestReadWithoutRegisterReturnsFiller(t *testing.T) {
	f := newFixture(t)
	f.rx.Write([]byte("z"))

	assert.Zero(t, f.engine.OnReadRequest())
	f.engine.OnStop()
	assert.Equal(t, 1, f.rx.Available())
}

func TestStopResetsState(t *testing.T) {
	f := newFixture(t)

	f.engine.OnByteReceived(protocol.RegData)
	assert.Equal(t, RegisterSet, f.engine.State())
	f.engine.OnStop()
	assert.Equal(t, AwaitingRegister, f.engine.State())

	// The next first byte selects a register instead of being data.
	f.engine.OnByteReceived(protocol.RegI2CAddress)
	f.engine.OnStop()
	assert.Equal(t, 0, f.tx.Available())
}

func TestAbortCountsAndResets(t *testing.T) {
	f := newFixture(t)

	f.engine.OnByteReceived(protocol.RegData)
	f.engine.OnByteReceived('x')
	f.engine.OnAbort()

	assert.Equal(t, AwaitingRegister, f.engine.State())
	assert.Equal(t, uint32(1), f.engine.Stats().BusErrors)

	// The host retries the whole transaction.
	f.write(protocol.RegData, 'x')
	assert.Equal(t, []byte("xx"), drain(f.tx))
}

func TestWriteAfterReadIsBusError(t *testing.T) {
	f := newFixture(t)
	before := f.store.Config()

	// Register 0x02 selected and read, then a repeated start turns the
	// transaction back into a write.
	f.engine.OnByteReceived(protocol.RegI2CAddress)
	assert.Equal(t, protocol.DefaultAddress, f.engine.OnReadRequest())
	f.engine.OnByteReceived(0x51)

	assert.Equal(t, uint32(1), f.engine.Stats().BusErrors)
	assert.Equal(t, AwaitingRegister, f.engine.State())

	// Anything else the master sends before STOP starts over at register
	// selection and must not reach the stretch register.
	f.engine.OnByteReceived(0x15)
	f.engine.OnStop()

	assert.Equal(t, before, f.store.Config())
	_, moved := f.engine.TakeAddressChange()
	assert.False(t, moved)

	// The next well-formed transaction is unaffected.
	assert.Equal(t, []byte{0x12, 0xC0}, f.read(protocol.RegDeviceIDHigh, 2))
	assert.Equal(t, uint32(1), f.engine.Stats().BusErrors)
}

func TestDataReadThenWriteDropsByte(t *testing.T) {
	f := newFixture(t)
	f.rx.Write([]byte("a"))

	f.engine.OnByteReceived(protocol.RegData)
	assert.Equal(t, byte('a'), f.engine.OnReadRequest())
	f.engine.OnByteReceived('x')
	f.engine.OnStop()

	assert.Equal(t, 0, f.tx.Available())
	assert.Equal(t, uint32(0), f.engine.Stats().TxBytes)
	assert.Equal(t, uint32(1), f.engine.Stats().BusErrors)
}

func TestNoteRxOverflow(t *testing.T) {
	f := newFixture(t)
	f.engine.NoteRxOverflow(3)
	assert.Equal(t, uint32(3), f.engine.Stats().RxOverflow)
	assert.Equal(t, uint32(3), f.engine.Stats().Errors())
}

func TestDeferredStoreStagesConfigWrites(t *testing.T) {
	f := newFixture(t, config.WithDeferredWrites())

	f.write(protocol.RegI2CAddress, 0x50)
	f.write(protocol.RegClockStretch, 0x01)

	// The bus sees the new values at once.
	assert.Equal(t, []byte{0x50, 0x01}, f.read(protocol.RegI2CAddress, 2))
	assert.True(t, f.store.Pending())

	// Flash still holds the old record until the foreground flushes.
	cfg, err := config.New(f.flash).Load()
	require.NoError(t, err)
	assert.Equal(t, protocol.DefaultAddress, cfg.I2CAddress)

	require.NoError(t, f.store.Flush())
	cfg, err = config.New(f.flash).Load()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x50), cfg.I2CAddress)
	assert.True(t, cfg.ClockStretch)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting-register", AwaitingRegister.String())
	assert.Equal(t, "register-set", RegisterSet.String())
	assert.Equal(t, "unknown", State(9).String())
}
