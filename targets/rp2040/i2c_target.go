//go:build rp2040

package main

import (
	"device/rp"
	"machine"
	"runtime/interrupt"

	"i2console/slave"
)

// I2C0 target pins and the bus speed its timing is configured for.
const (
	i2cSDA       = machine.GPIO28
	i2cSCL       = machine.GPIO29
	i2cFrequency = 100 * machine.KHz
)

const targetInterrupts = rp.I2C0_IC_INTR_MASK_M_RX_FULL |
	rp.I2C0_IC_INTR_MASK_M_RD_REQ |
	rp.I2C0_IC_INTR_MASK_M_STOP_DET |
	rp.I2C0_IC_INTR_MASK_M_TX_ABRT

var (
	targetEngine  *slave.Engine
	targetStretch bool
)

// InitI2CTarget puts I2C0 in target mode at the engine's address and routes
// its interrupt into the engine.
func InitI2CTarget(engine *slave.Engine) error {
	// Configure brings the block out of reset and muxes the pins; the
	// controller setup it leaves behind is replaced below.
	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: i2cFrequency,
		SDA:       i2cSDA,
		SCL:       i2cSCL,
	})
	if err != nil {
		return err
	}
	targetEngine = engine
	targetStretch = engine.ClockStretch()

	bus := machine.I2C0.Bus
	disableTarget(bus)
	bus.IC_CON.Set(targetCon(targetStretch))
	bus.IC_SAR.Set(uint32(engine.Address()))
	bus.IC_RX_TL.Set(0)
	bus.IC_INTR_MASK.Set(targetInterrupts)
	bus.IC_ENABLE.Set(rp.I2C0_IC_ENABLE_ENABLE)

	intr := interrupt.New(rp.IRQ_I2C0_IRQ, handleI2C0)
	intr.SetPriority(0x40)
	intr.Enable()
	return nil
}

// targetCon is the IC_CON value for target mode. With stretch set the block
// holds SCL instead of NACKing when its receive FIFO is full.
func targetCon(stretch bool) uint32 {
	con := uint32(rp.I2C0_IC_CON_SPEED_FAST<<rp.I2C0_IC_CON_SPEED_Pos |
		rp.I2C0_IC_CON_IC_RESTART_EN |
		rp.I2C0_IC_CON_STOP_DET_IFADDRESSED)
	if stretch {
		con |= rp.I2C0_IC_CON_RX_FIFO_FULL_HLD_CTRL
	}
	return con
}

func disableTarget(bus *rp.I2C0_Type) {
	bus.IC_ENABLE.Set(0)
	for bus.IC_ENABLE_STATUS.HasBits(rp.I2C0_IC_ENABLE_STATUS_IC_EN) {
	}
}

func handleI2C0(interrupt.Interrupt) {
	bus := machine.I2C0.Bus
	stat := bus.IC_INTR_STAT.Get()

	if stat&rp.I2C0_IC_INTR_STAT_R_TX_ABRT != 0 {
		bus.IC_CLR_TX_ABRT.Get()
		targetEngine.OnAbort()
	}
	// Written bytes first: in a combined write-read the register byte must
	// be latched before the read request is answered. A write after a read
	// (repeated start) also lands here and the engine counts it.
	if stat&rp.I2C0_IC_INTR_STAT_R_RX_FULL != 0 {
		for bus.IC_RXFLR.Get() > 0 {
			targetEngine.OnByteReceived(byte(bus.IC_DATA_CMD.Get() & rp.I2C0_IC_DATA_CMD_DAT_Msk))
		}
	}
	if stat&rp.I2C0_IC_INTR_STAT_R_RD_REQ != 0 {
		bus.IC_CLR_RD_REQ.Get()
		bus.IC_DATA_CMD.Set(uint32(targetEngine.OnReadRequest()))
	}
	if stat&rp.I2C0_IC_INTR_STAT_R_STOP_DET != 0 {
		bus.IC_CLR_STOP_DET.Get()
		targetEngine.OnStop()
		applyTargetConfig(bus)
	}
}

// applyTargetConfig reprograms the address and stretch mode after a
// transaction changed them. Both registers are only writable while the block
// is disabled, which is safe between transactions.
func applyTargetConfig(bus *rp.I2C0_Type) {
	addr, moved := targetEngine.TakeAddressChange()
	stretch := targetEngine.ClockStretch()
	if !moved && stretch == targetStretch {
		return
	}
	disableTarget(bus)
	if moved {
		bus.IC_SAR.Set(uint32(addr))
	}
	targetStretch = stretch
	bus.IC_CON.Set(targetCon(stretch))
	bus.IC_ENABLE.Set(rp.I2C0_IC_ENABLE_ENABLE)
}
