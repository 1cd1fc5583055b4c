package display

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i2console/bridge"
)

// fakeScreen counts what was drawn.
type fakeScreen struct {
	w, h     int16
	pixels   map[color.RGBA]int
	fills    int
	displays int
}

func newFakeScreen() *fakeScreen {
	return &fakeScreen{w: 240, h: 135, pixels: map[color.RGBA]int{}}
}

func (f *fakeScreen) Size() (int16, int16) { return f.w, f.h }

func (f *fakeScreen) SetPixel(x, y int16, c color.RGBA) {
	if x >= 0 && y >= 0 && x < f.w && y < f.h {
		f.pixels[c]++
	}
}

func (f *fakeScreen) Display() error {
	f.displays++
	return nil
}

func (f *fakeScreen) FillRectangle(_, _, _, _ int16, _ color.RGBA) error {
	f.fills++
	return nil
}

func TestRender(t *testing.T) {
	cells := Render(bridge.Telemetry{
		Address:     0x37,
		TxAvailable: 201,
		RxAvailable: 900,
		Connected:   true,
	})
	assert.Equal(t, Cell{"0x37", Green}, cells[0])
	assert.Equal(t, Cell{"201", Red}, cells[1])
	assert.Equal(t, Cell{"900", Green}, cells[2])
	assert.Equal(t, Cell{"CONN", Green}, cells[3])
	assert.Equal(t, Cell{"0", Green}, cells[4])

	cells = Render(bridge.Telemetry{Address: 0x0A, RxAvailable: 901, BusErrors: 2, PersistErrors: 1})
	assert.Equal(t, "0x0A", cells[0].Text)
	assert.Equal(t, Red, cells[2].Color)
	assert.Equal(t, Cell{"DISC", Red}, cells[3])
	assert.Equal(t, Cell{"3", Red}, cells[4])
}

func TestUpdateDrawsOnlyChanges(t *testing.T) {
	screen := newFakeScreen()
	s := NewStatus(screen)

	tel := bridge.Telemetry{Address: 0x37, Connected: true}
	s.Update(tel)
	require.True(t, s.drawn)
	assert.Equal(t, 2, screen.displays, "init plus first values")
	assert.Positive(t, screen.pixels[Cyan], "title drawn")
	assert.Positive(t, screen.pixels[Green])
	fills := screen.fills

	s.Update(tel)
	assert.Equal(t, 2, screen.displays, "nothing changed")
	assert.Equal(t, fills, screen.fills)

	tel.TxAvailable = 250
	s.Update(tel)
	assert.Equal(t, 3, screen.displays)
	assert.Equal(t, fills+1, screen.fills, "one slot redrawn")
	assert.Positive(t, screen.pixels[Red])
}

func TestInitResetsCache(t *testing.T) {
	screen := newFakeScreen()
	s := NewStatus(screen)
	s.Update(bridge.Telemetry{})
	require.NoError(t, s.Init())

	before := screen.fills
	s.Update(bridge.Telemetry{})
	assert.Equal(t, before+5, screen.fills, "every slot redrawn after Init")
}
