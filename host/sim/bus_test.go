package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"

	"i2console/config"
	"i2console/core"
	"i2console/protocol"
	"i2console/slave"
)

func newBus(t *testing.T) (*Bus, *slave.Engine, *core.Ring, *core.Ring) {
	t.Helper()
	store := config.New(config.NewMemFlash(2 * config.DefaultEraseBlockSize))
	_, err := store.Load()
	require.NoError(t, err)
	tx, rx := core.NewRing(256), core.NewRing(1024)
	engine := slave.New(tx, rx, store, protocol.ParseVersion("v0.1.0"))
	return New(engine), engine, tx, rx
}

func TestTxWriteThenRead(t *testing.T) {
	bus, _, tx, _ := newBus(t)
	dev := &i2c.Dev{Addr: uint16(protocol.DefaultAddress), Bus: bus}

	require.NoError(t, dev.Tx([]byte{protocol.RegData, 'h', 'i'}, nil))
	assert.Equal(t, 2, tx.Available())

	id := make([]byte, 2)
	require.NoError(t, dev.Tx([]byte{protocol.RegDeviceIDHigh}, id))
	assert.Equal(t, []byte{0x12, 0xC0}, id)
}

func TestTxWrongAddressNacks(t *testing.T) {
	bus, _, _, _ := newBus(t)
	err := bus.Tx(0x50, []byte{protocol.RegDeviceIDHigh}, make([]byte, 1))
	assert.ErrorIs(t, err, ErrNack)
}

func TestAddressChangeMovesDevice(t *testing.T) {
	bus, engine, _, _ := newBus(t)
	var moved []uint8
	bus.OnAddressChange = func(addr uint8) { moved = append(moved, addr) }

	require.NoError(t, bus.Tx(uint16(protocol.DefaultAddress), []byte{protocol.RegI2CAddress, 0x42}, nil))
	assert.Equal(t, []uint8{0x42}, moved)
	assert.Equal(t, uint8(0x42), engine.Address())

	assert.ErrorIs(t, bus.Tx(uint16(protocol.DefaultAddress), []byte{0}, make([]byte, 1)), ErrNack)
	require.NoError(t, bus.Tx(0x42, []byte{protocol.RegI2CAddress}, make([]byte, 1)))
}

func TestAbortNext(t *testing.T) {
	bus, engine, tx, _ := newBus(t)
	bus.AbortNext(2)

	err := bus.Tx(uint16(protocol.DefaultAddress), []byte{protocol.RegData, 'a', 'b'}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, tx.Available())
	assert.Equal(t, uint32(1), engine.Stats().BusErrors)
	assert.Equal(t, slave.AwaitingRegister, engine.State())

	require.NoError(t, bus.Tx(uint16(protocol.DefaultAddress), []byte{protocol.RegData, 'c'}, nil))
	assert.Equal(t, 2, tx.Available())
}

func TestSetSpeedAndClose(t *testing.T) {
	bus, _, _, _ := newBus(t)
	require.NoError(t, bus.SetSpeed(400*physic.KiloHertz))
	assert.Equal(t, 400*physic.KiloHertz, bus.Speed())
	assert.Error(t, bus.SetSpeed(0))
	assert.Equal(t, "sim://i2console", bus.String())

	require.NoError(t, bus.Close())
	assert.Error(t, bus.Tx(uint16(protocol.DefaultAddress), []byte{0}, nil))
}
