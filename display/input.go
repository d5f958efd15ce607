package display

import (
	"time"

	"tinygo.org/x/drivers/touch"

	"ftpdisplay-go/services/render"
	"ftpdisplay-go/x/timex"
)

const (
	DefaultPressure = 1
	DefaultDebounce = 150 * time.Millisecond
)

// Input turns touch presses into render input events. It reports a gesture on
// the press edge only, and ignores presses within the debounce window.
type Input struct {
	p        touch.Pointer
	s        *Surface
	clock    timex.Clock
	pressure int
	debounce time.Duration

	down bool
	last time.Time
}

func NewInput(p touch.Pointer, s *Surface, clock timex.Clock) *Input {
	return &Input{p: p, s: s, clock: clock.Or(), pressure: DefaultPressure, debounce: DefaultDebounce}
}

// Poll is called on the render goroutine with the render lock held.
func (in *Input) Poll() (render.InputEvent, bool) {
	pt := in.p.ReadTouchPoint()
	pressed := pt.Z >= in.pressure
	edge := pressed && !in.down
	in.down = pressed
	if !edge {
		return render.InputEvent{}, false
	}
	now := in.clock()
	if !in.last.IsZero() && now.Sub(in.last) < in.debounce {
		return render.InputEvent{}, false
	}
	in.last = now

	x, y := int16(pt.X), int16(pt.Y)
	l := in.s.Layout()
	switch {
	case l.Switch.Contains(x, y):
		return render.InputEvent{Kind: render.InputToggle, On: !in.s.Checked()}, true
	case l.Clear.Contains(x, y):
		return render.InputEvent{Kind: render.InputClear}, true
	}
	return render.InputEvent{}, false
}
