//go:build rp2040

package main

import (
	"machine"
	"time"

	"i2console/bridge"
	"i2console/config"
	"i2console/core"
	"i2console/protocol"
	"i2console/slave"
)

const (
	txCapacity        = 256
	rxCapacity        = 1024
	watchdogTimeoutMs = 8000
)

func main() {
	// A stuck main loop (USB stack, flash) resets the chip.
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMs})
	if err == nil {
		err = machine.Watchdog.Start()
	}

	InitDebugUART()
	core.SetLogWriter(debugLogWriter)
	core.InitAsyncLog(16)
	if err != nil {
		core.Warnf("watchdog not started: %v", err)
	}

	store := config.New(machine.Flash, config.WithDeferredWrites())
	cfg, err := store.Load()
	if err != nil {
		core.Errorf("Flash config: %v", err)
	}

	tx := core.NewRing(txCapacity)
	rx := core.NewRing(rxCapacity)
	version := protocol.ParseVersion(protocol.FirmwareVersion)
	engine := slave.New(tx, rx, store, version)

	usb := InitUSB()
	br := bridge.New(engine, store, tx, rx, usb)
	if status, err := InitDisplay(); err != nil {
		core.Warnf("status display: %v", err)
	} else {
		br.SetDisplay(status)
	}

	if err := InitI2CTarget(engine); err != nil {
		core.Errorf("I2C target: %v", err)
	}
	core.Infof("I2Console %s at 0x%02X, clock stretch %t", version, cfg.I2CAddress, cfg.ClockStretch)

	for {
		machine.Watchdog.Update()
		if err := br.Poll(); err != nil {
			core.Debugf("poll: %v", err)
		}
		time.Sleep(100 * time.Microsecond)
	}
}
