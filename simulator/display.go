package simulator

import (
	"github.com/hajimehoshi/ebiten/v2"
)

// Display adapts a Simulator to the ebiten game loop so the simulated
// device output shows up in a window. Tick runs once per frame on
// ebiten's schedule and is where the application submits its draw
// calls.
type Display struct {
	sim  *Simulator
	tick func() error
}

// NewDisplay wraps sim. tick may be nil for a passive viewer.
func NewDisplay(sim *Simulator, tick func() error) *Display {
	return &Display{sim: sim, tick: tick}
}

// Layout returns the constant device resolution, forcing ebiten to
// scale when the window is resized.
func (d *Display) Layout(w, h int) (int, int) {
	r := d.sim.Image().Rect
	return r.Dx(), r.Dy()
}

// Update advances the application by one frame.
func (d *Display) Update() error {
	if d.tick == nil {
		return nil
	}
	return d.tick()
}

// Draw copies the simulated scan out into the window.
func (d *Display) Draw(screen *ebiten.Image) {
	screen.WritePixels(d.sim.Image().Pix)
}
