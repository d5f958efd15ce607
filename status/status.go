// Package status bridges producer goroutines to the single-threaded render surface.
//
// Two locks are involved. The log ring's own mutex (the buffer lock) guards the
// text history; the render lock guards every surface mutation. AppendLog and
// ClearLog take them in sequence and never nest them. The setters (SetStatus,
// SetConnectedAddress, SetToggleChecked, SetClock) touch only the surface and
// require the caller to hold the render lock; use Render or the Direct sink.
package status

import (
	"log/slog"
	"sync"
	"time"

	"ftpdisplay-go/logfields"
	"ftpdisplay-go/logring"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

// Surface is the render collaborator. Every method requires the render lock.
type Surface interface {
	SetStatusText(text string)
	SetSpinner(visible bool)
	SetAddressText(text string)
	SetClockText(text string)
	SetLogText(text string)
	ScrollToBottom()
	SetSwitchChecked(on bool)
}

// Initial widget texts before any producer has reported.
const (
	AddressPending = "IP: Connecting..."
	ClockPending   = "--:--:--"
)

type Options struct {
	Budget   logring.Budget
	Clock    timex.Clock
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

type Bridge struct {
	render sync.Locker
	ring   *logring.Ring
	clock  timex.Clock
	rec    metrics.Recorder
	log    *slog.Logger

	surface Surface // guarded by render

	mu       sync.Mutex
	onToggle func(on bool)
}

// New returns a bridge guarding its surface with render.
func New(render sync.Locker, opts Options) *Bridge {
	return &Bridge{
		render: render,
		ring:   logring.New(opts.Budget),
		clock:  opts.Clock.Or(),
		rec:    metrics.Or(opts.Recorder),
		log:    logfields.Or(opts.Logger),
	}
}

// Attach binds the constructed UI and paints initial state, including any log
// lines buffered before the surface existed.
func (b *Bridge) Attach(s Surface) {
	text := b.ring.Text()
	b.render.Lock()
	defer b.render.Unlock()
	b.surface = s
	s.SetStatusText(StatusDisabled)
	s.SetSpinner(false)
	s.SetAddressText(AddressPending)
	s.SetClockText(ClockPending)
	s.SetSwitchChecked(false)
	s.SetLogText(text)
	s.ScrollToBottom()
}

// Ready reports whether a surface is attached.
func (b *Bridge) Ready() bool {
	b.render.Lock()
	defer b.render.Unlock()
	return b.surface != nil
}

// Render runs fn while holding the render lock.
func (b *Bridge) Render(fn func()) {
	b.render.Lock()
	defer b.render.Unlock()
	fn()
}

// AppendLog timestamps msg into the ring and repaints the log view.
// Safe from any goroutine; the caller must not hold the render lock.
func (b *Bridge) AppendLog(msg string) {
	res, text := b.ring.Append(logring.Entry{Stamp: timex.Stamp(b.clock()), Text: msg})

	b.rec.IncLogAppend()
	if res.Evicted > 0 {
		b.rec.AddLogEvicted(res.Evicted)
	}
	if res.Truncated {
		b.rec.IncLogTruncated()
		b.log.Warn("log line truncated (too long)")
	}

	b.render.Lock()
	defer b.render.Unlock()
	if b.surface == nil {
		return
	}
	b.surface.SetLogText(text)
	b.surface.ScrollToBottom()
}

// ClearLog empties the ring and the rendered log. The caller must not hold the render lock.
func (b *Bridge) ClearLog() {
	b.ring.Clear()

	b.render.Lock()
	defer b.render.Unlock()
	if b.surface != nil {
		b.surface.SetLogText("")
	}
}

// LogText returns the current serialised ring.
func (b *Bridge) LogText() string { return b.ring.Text() }

// LogLines returns the number of lines held in the ring.
func (b *Bridge) LogLines() int { return b.ring.Lines() }

// SetStatus updates the status label and busy indicator. Caller holds the render lock.
func (b *Bridge) SetStatus(text string, act types.Activity) {
	if b.surface == nil {
		return
	}
	b.surface.SetStatusText(text)
	b.surface.SetSpinner(act == types.ActivityBusy)
}

// SetConnectedAddress shows the station address. Caller holds the render lock.
func (b *Bridge) SetConnectedAddress(addr string) {
	if b.surface == nil {
		return
	}
	b.surface.SetAddressText("IP: " + addr)
}

// SetToggleChecked moves the switch without raising a user toggle. Caller holds the render lock.
func (b *Bridge) SetToggleChecked(on bool) {
	if b.surface == nil {
		return
	}
	b.surface.SetSwitchChecked(on)
}

// SetClock repaints the clock label. Caller holds the render lock.
func (b *Bridge) SetClock(t time.Time) {
	if b.surface == nil {
		return
	}
	b.surface.SetClockText(timex.Stamp(t))
}

// RegisterToggleHandler installs the user start/stop handler.
func (b *Bridge) RegisterToggleHandler(fn func(on bool)) {
	b.mu.Lock()
	b.onToggle = fn
	b.mu.Unlock()
}

// OnUserToggle is the surface's input entry point. The caller must not hold the
// render lock: the handler publishes status updates of its own.
func (b *Bridge) OnUserToggle(on bool) {
	b.mu.Lock()
	fn := b.onToggle
	b.mu.Unlock()
	if fn == nil {
		b.log.Warn("toggle ignored, no handler registered", logfields.Action(actionName(on)))
		return
	}
	fn(on)
}

func actionName(on bool) string {
	if on {
		return "start"
	}
	return "stop"
}
