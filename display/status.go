// Package display draws the I2Console status screen: slave address, ring
// fill levels, USB state and the error count.
package display

import (
	"image/color"
	"strconv"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"i2console/bridge"
)

// Screen is the panel the status is drawn on. st7789.Device satisfies it.
type Screen interface {
	drivers.Displayer
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// Fill levels above these turn the counter red.
const (
	TxWarnLevel = 200
	RxWarnLevel = 900
)

var (
	Black = color.RGBA{0, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
	Red   = color.RGBA{255, 0, 0, 255}
	Green = color.RGBA{0, 255, 0, 255}
	Cyan  = color.RGBA{0, 255, 255, 255}
)

// field is one value slot on the screen. y is the text baseline.
type field struct {
	x, y  int16
	width int16
}

var (
	titleField = field{x: 60, y: 18}
	addrField  = field{x: 80, y: 43, width: 80}
	txField    = field{x: 50, y: 63, width: 60}
	rxField    = field{x: 50, y: 83, width: 60}
	usbField   = field{x: 70, y: 103, width: 60}
	errField   = field{x: 70, y: 123, width: 110}
)

const lineHeight = 18

// Cell is the rendered text of one value slot.
type Cell struct {
	Text  string
	Color color.RGBA
}

// Status renders telemetry. Only values that changed since the last update
// are redrawn, which keeps the SPI traffic small enough for the main loop.
type Status struct {
	screen Screen
	font   *tinyfont.Font
	drawn  bool
	cells  [5]Cell
}

// NewStatus returns a Status drawing on screen.
func NewStatus(screen Screen) *Status {
	return &Status{screen: screen, font: &freemono.Regular9pt7b}
}

// Init clears the screen and draws the title and labels.
func (s *Status) Init() error {
	w, h := s.screen.Size()
	if err := s.screen.FillRectangle(0, 0, w, h, Black); err != nil {
		return err
	}
	tinyfont.WriteLine(s.screen, s.font, titleField.x, titleField.y, "I2Console", Cyan)
	labels := [...]struct {
		f    field
		text string
	}{
		{addrField, "Addr:"},
		{txField, "TX:"},
		{rxField, "RX:"},
		{usbField, "USB:"},
		{errField, "Err:"},
	}
	for _, l := range labels {
		tinyfont.WriteLine(s.screen, s.font, 5, l.f.y, l.text, White)
	}
	s.drawn = true
	s.cells = [5]Cell{}
	return s.screen.Display()
}

// Update implements bridge.StatusDisplay.
func (s *Status) Update(t bridge.Telemetry) {
	if !s.drawn {
		if err := s.Init(); err != nil {
			return
		}
	}
	next := Render(t)
	fields := [...]field{addrField, txField, rxField, usbField, errField}
	changed := false
	for i, f := range fields {
		if next[i] == s.cells[i] {
			continue
		}
		s.cells[i] = next[i]
		_ = s.screen.FillRectangle(f.x, f.y-lineHeight+4, f.width, lineHeight, Black)
		tinyfont.WriteLine(s.screen, s.font, f.x, f.y, next[i].Text, next[i].Color)
		changed = true
	}
	if changed {
		_ = s.screen.Display()
	}
}

// Render returns the text and color of each value slot: address, tx fill,
// rx fill, USB state and error count.
func Render(t bridge.Telemetry) [5]Cell {
	var out [5]Cell
	out[0] = Cell{"0x" + hex2(t.Address), Green}
	out[1] = Cell{strconv.Itoa(int(t.TxAvailable)), levelColor(int(t.TxAvailable) > TxWarnLevel)}
	out[2] = Cell{strconv.Itoa(int(t.RxAvailable)), levelColor(int(t.RxAvailable) > RxWarnLevel)}
	if t.Connected {
		out[3] = Cell{"CONN", Green}
	} else {
		out[3] = Cell{"DISC", Red}
	}
	errs := t.Errors()
	out[4] = Cell{strconv.FormatUint(uint64(errs), 10), levelColor(errs > 0)}
	return out
}

func levelColor(warn bool) color.RGBA {
	if warn {
		return Red
	}
	return Green
}

func hex2(b uint8) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0x0F]})
}
