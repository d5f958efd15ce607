// Package display renders the status screen onto a tinygo Displayer and turns
// touch input into user requests.
package display

import (
	"image/color"
	"strings"
	"unicode/utf8"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	ColorBackground = color.RGBA{R: 0x10, G: 0x10, B: 0x18, A: 0xff}
	ColorText       = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	ColorDim        = color.RGBA{R: 0x70, G: 0x70, B: 0x80, A: 0xff}
	ColorAccent     = color.RGBA{R: 0x00, G: 0xaa, B: 0xff, A: 0xff}
	ColorOff        = color.RGBA{R: 0x40, G: 0x40, B: 0x48, A: 0xff}
)

// Rect is a screen region, Max exclusive.
type Rect struct{ X0, Y0, X1, Y1 int16 }

func (r Rect) Contains(x, y int16) bool { return x >= r.X0 && x < r.X1 && y >= r.Y0 && y < r.Y1 }

// Layout places the widgets. The header holds status, busy indicator and
// clock; the second row holds the address, the switch and the clear button;
// the log fills the rest.
type Layout struct {
	Status, Spinner, Clock Rect
	Address, Switch, Clear Rect
	Log                    Rect
}

const (
	rowHeight = 20
	margin    = 4
)

// DefaultLayout fits the widgets to a w x h panel.
func DefaultLayout(w, h int16) Layout {
	return Layout{
		Status:  Rect{margin, 0, w / 2, rowHeight},
		Spinner: Rect{w / 2, 4, w/2 + 12, rowHeight - 4},
		Clock:   Rect{w - 70, 0, w - margin, rowHeight},
		Address: Rect{margin, rowHeight, w / 2, 2 * rowHeight},
		Switch:  Rect{w - 130, rowHeight + 2, w - 86, 2*rowHeight - 2},
		Clear:   Rect{w - 76, rowHeight + 2, w - margin, 2*rowHeight - 2},
		Log:     Rect{margin, 2*rowHeight + margin, w - margin, h - margin},
	}
}

// Surface draws the status screen. All methods require the render lock.
type Surface struct {
	d      drivers.Displayer
	font   tinyfont.Fonter
	lineH  int16
	layout Layout

	status  string
	spinner bool
	addr    string
	clock   string
	log     []string
	checked bool
	offset  int // lines scrolled up from the bottom
}

func NewSurface(d drivers.Displayer) *Surface {
	w, h := d.Size()
	s := &Surface{
		d:      d,
		font:   &proggy.TinySZ8pt7b,
		lineH:  int16(proggy.TinySZ8pt7b.YAdvance),
		layout: DefaultLayout(w, h),
	}
	if s.lineH <= 0 {
		s.lineH = 12
	}
	fill(d, Rect{0, 0, w, h}, ColorBackground)
	s.drawClearButton()
	s.drawSwitch()
	_ = d.Display()
	return s
}

// Layout returns the widget geometry.
func (s *Surface) Layout() Layout { return s.layout }

// Checked reports the switch position.
func (s *Surface) Checked() bool { return s.checked }

func (s *Surface) SetStatusText(text string) {
	s.status = text
	s.drawText(s.layout.Status, text, ColorText)
	s.flush()
}

func (s *Surface) SetSpinner(visible bool) {
	s.spinner = visible
	c := ColorBackground
	if visible {
		c = ColorAccent
	}
	fill(s.d, s.layout.Spinner, c)
	s.flush()
}

func (s *Surface) SetAddressText(text string) {
	s.addr = text
	s.drawText(s.layout.Address, text, ColorDim)
	s.flush()
}

func (s *Surface) SetClockText(text string) {
	s.clock = text
	s.drawText(s.layout.Clock, text, ColorDim)
	s.flush()
}

func (s *Surface) SetLogText(text string) {
	s.log = strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		s.log = nil
	}
	if s.offset > len(s.log) {
		s.offset = len(s.log)
	}
	s.drawLog()
	s.flush()
}

func (s *Surface) ScrollToBottom() {
	if s.offset == 0 {
		return
	}
	s.offset = 0
	s.drawLog()
	s.flush()
}

// Scroll moves the log view up (positive) or down by n lines.
func (s *Surface) Scroll(n int) {
	s.offset += n
	if s.offset < 0 {
		s.offset = 0
	}
	if s.offset > len(s.log) {
		s.offset = len(s.log)
	}
	s.drawLog()
	s.flush()
}

func (s *Surface) SetSwitchChecked(on bool) {
	s.checked = on
	s.drawSwitch()
	s.flush()
}

// VisibleLog returns the plain text of the log lines currently on screen.
func (s *Surface) VisibleLog() []string {
	lines := s.visible()
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = plain(l)
	}
	return out
}

func (s *Surface) rows() int {
	return int((s.layout.Log.Y1 - s.layout.Log.Y0) / s.lineH)
}

func (s *Surface) visible() []string {
	end := len(s.log) - s.offset
	start := end - s.rows()
	if start < 0 {
		start = 0
	}
	return s.log[start:end]
}

func (s *Surface) drawLog() {
	r := s.layout.Log
	fill(s.d, r, ColorBackground)
	y := r.Y0 + s.lineH
	for _, line := range s.visible() {
		x := r.X0
		for _, sp := range parseMarkup(line, ColorText) {
			text := s.clip(sp.text, r.X1-x)
			if text == "" {
				break
			}
			tinyfont.WriteLine(s.d, s.font, x, y, text, sp.c)
			_, w := tinyfont.LineWidth(s.font, text)
			x += int16(w)
		}
		y += s.lineH
	}
}

func (s *Surface) drawText(r Rect, text string, c color.RGBA) {
	fill(s.d, r, ColorBackground)
	text = s.clip(text, r.X1-r.X0)
	tinyfont.WriteLine(s.d, s.font, r.X0, r.Y1-5, text, c)
}

func (s *Surface) drawSwitch() {
	r := s.layout.Switch
	bg, knobX := ColorOff, r.X0+2
	if s.checked {
		bg, knobX = ColorAccent, r.X1-2-(r.Y1-r.Y0-4)
	}
	fill(s.d, r, bg)
	k := r.Y1 - r.Y0 - 4
	fill(s.d, Rect{knobX, r.Y0 + 2, knobX + k, r.Y0 + 2 + k}, ColorText)
}

func (s *Surface) drawClearButton() {
	r := s.layout.Clear
	fill(s.d, r, ColorOff)
	tinyfont.WriteLine(s.d, s.font, r.X0+6, r.Y1-5, "Clear", ColorText)
}

// clip drops trailing characters until text fits width pixels.
func (s *Surface) clip(text string, width int16) string {
	if width <= 0 {
		return ""
	}
	for text != "" {
		_, w := tinyfont.LineWidth(s.font, text)
		if int16(w) <= width {
			return text
		}
		_, n := utf8.DecodeLastRuneInString(text)
		text = text[:len(text)-n]
	}
	return text
}

func (s *Surface) flush() { _ = s.d.Display() }

func fill(d drivers.Displayer, r Rect, c color.RGBA) {
	for y := r.Y0; y < r.Y1; y++ {
		for x := r.X0; x < r.X1; x++ {
			d.SetPixel(x, y, c)
		}
	}
}
