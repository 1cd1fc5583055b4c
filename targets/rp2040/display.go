//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/st7789"

	"i2console/display"
)

// 1.14" 240x135 ST7789 panel on SPI1.
const (
	lcdDC   = machine.GPIO8
	lcdCS   = machine.GPIO9
	lcdCLK  = machine.GPIO10
	lcdMOSI = machine.GPIO11
	lcdRST  = machine.GPIO12
	lcdBL   = machine.GPIO13
)

// InitDisplay brings up the panel and draws the static part of the status
// screen.
func InitDisplay() (*display.Status, error) {
	err := machine.SPI1.Configure(machine.SPIConfig{
		Frequency: 32 * machine.MHz,
		SCK:       lcdCLK,
		SDO:       lcdMOSI,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}

	lcd := st7789.New(machine.SPI1, lcdRST, lcdDC, lcdCS, lcdBL)
	lcd.Configure(st7789.Config{
		Width:        135,
		Height:       240,
		Rotation:     drivers.Rotation90,
		RowOffset:    40,
		ColumnOffset: 53,
	})

	status := display.NewStatus(&lcd)
	if err := status.Init(); err != nil {
		return nil, err
	}
	return status, nil
}
