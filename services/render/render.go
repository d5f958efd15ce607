// Package render owns the render goroutine. Producers post typed events on
// "ui/..." topics through a Poster; Loop applies them to the status bridge,
// refreshes the clock label and polls touch input.
//
// Log lines and clears share one ordered queue that drops the oldest line when
// full. Status, address and switch each keep only their latest value, so a
// burst of log lines can never displace a state change.
package render

import (
	"context"
	"log/slog"
	"time"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

var (
	TopicLog     = bus.T("ui", "log", "line")
	TopicClear   = bus.T("ui", "log", "clear")
	TopicStatus  = bus.T("ui", "status")
	TopicAddress = bus.T("ui", "address")
	TopicSwitch  = bus.T("ui", "switch")
	topicLogAll  = bus.T("ui", "log", "#")
)

// DefaultQueue bounds queued log events. The bus drops the oldest when full.
const DefaultQueue = 128

// Poster is a status.Sink that hands every update to the render goroutine.
type Poster struct {
	conn *bus.Connection
}

func NewPoster(conn *bus.Connection) *Poster { return &Poster{conn: conn} }

func (p *Poster) post(t bus.Topic, v any) {
	p.conn.Publish(p.conn.NewMessage(t, v, false))
}

func (p *Poster) Log(msg string) { p.post(TopicLog, types.LogEvent{Text: msg}) }
func (p *Poster) ClearLog()      { p.post(TopicClear, types.ClearLogEvent{}) }
func (p *Poster) Status(text string, act types.Activity) {
	p.post(TopicStatus, types.StatusEvent{Text: text, Activity: act})
}
func (p *Poster) Address(addr string) { p.post(TopicAddress, types.AddressEvent{Addr: addr}) }
func (p *Poster) Switch(on bool)      { p.post(TopicSwitch, types.SwitchEvent{On: on}) }

var _ status.Sink = (*Poster)(nil)

// InputKind classifies a touch gesture.
type InputKind uint8

const (
	InputToggle InputKind = iota + 1
	InputClear
)

type InputEvent struct {
	Kind InputKind
	On   bool // InputToggle: requested switch position
}

// Input is polled on the render goroutine with the render lock held.
type Input interface {
	Poll() (InputEvent, bool)
}

type Options struct {
	Queue     int
	ClockTick time.Duration
	InputPoll time.Duration
	Clock     timex.Clock
	Input     Input
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

type Loop struct {
	bridge    *status.Bridge
	logs      *bus.Subscription
	states    [3]*bus.Subscription // status, address, switch; latest value only
	conn      *bus.Connection
	rec       metrics.Recorder
	reported  uint64
	clock     timex.Clock
	clockTick time.Duration
	inputPoll time.Duration
	input     Input
	log       *slog.Logger
	done      chan struct{}
}

// NewLoop subscribes immediately so no event posted after it returns is missed.
func NewLoop(conn *bus.Connection, bridge *status.Bridge, opts Options) *Loop {
	q := opts.Queue
	if q <= 0 {
		q = DefaultQueue
	}
	l := &Loop{
		bridge: bridge,
		conn:   conn,
		logs:   conn.SubscribeN(topicLogAll, q),
		states: [3]*bus.Subscription{
			conn.SubscribeN(TopicStatus, 1),
			conn.SubscribeN(TopicAddress, 1),
			conn.SubscribeN(TopicSwitch, 1),
		},
		rec:       metrics.Or(opts.Recorder),
		clock:     opts.Clock.Or(),
		clockTick: opts.ClockTick,
		inputPoll: opts.InputPoll,
		input:     opts.Input,
		log:       logfields.Or(opts.Logger).With("component", "render"),
		done:      make(chan struct{}),
	}
	if l.clockTick <= 0 {
		l.clockTick = time.Second
	}
	if l.inputPoll <= 0 {
		l.inputPoll = 20 * time.Millisecond
	}
	return l
}

// Run drains events until ctx ends.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	defer l.conn.Unsubscribe(l.logs)
	for _, s := range l.states {
		defer l.conn.Unsubscribe(s)
	}

	clk := time.NewTicker(l.clockTick)
	defer clk.Stop()

	var poll <-chan time.Time
	if l.input != nil {
		pt := time.NewTicker(l.inputPoll)
		defer pt.Stop()
		poll = pt.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-l.logs.Channel():
			if !ok {
				return
			}
			l.Apply(msg.Payload)
			l.reportDropped()
		case msg, ok := <-l.states[0].Channel():
			if !ok {
				return
			}
			l.Apply(msg.Payload)
		case msg, ok := <-l.states[1].Channel():
			if !ok {
				return
			}
			l.Apply(msg.Payload)
		case msg, ok := <-l.states[2].Channel():
			if !ok {
				return
			}
			l.Apply(msg.Payload)
		case <-clk.C:
			now := l.clock()
			l.bridge.Render(func() { l.bridge.SetClock(now) })
		case <-poll:
			l.pollInput()
		}
	}
}

// reportDropped accounts for log lines the queue discarded since the last call.
func (l *Loop) reportDropped() {
	d := l.logs.Dropped()
	if d == l.reported {
		return
	}
	n := d - l.reported
	l.reported = d
	l.rec.AddUIEventsDropped(int(n))
	l.log.Warn("log lines dropped, render queue full", slog.Uint64("count", n))
}

// Done closes after Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Apply performs one event on the render goroutine.
func (l *Loop) Apply(ev any) {
	switch e := ev.(type) {
	case types.LogEvent:
		l.bridge.AppendLog(e.Text)
	case types.ClearLogEvent:
		l.bridge.ClearLog()
	case types.StatusEvent:
		l.bridge.Render(func() { l.bridge.SetStatus(e.Text, e.Activity) })
	case types.AddressEvent:
		l.bridge.Render(func() { l.bridge.SetConnectedAddress(e.Addr) })
	case types.SwitchEvent:
		l.bridge.Render(func() { l.bridge.SetToggleChecked(e.On) })
	default:
		l.log.Warn("unknown ui event", slog.Any("payload", ev))
	}
}

func (l *Loop) pollInput() {
	var (
		ev InputEvent
		ok bool
	)
	l.bridge.Render(func() {
		ev, ok = l.input.Poll()
		if ok && ev.Kind == InputToggle {
			l.bridge.SetToggleChecked(ev.On)
		}
	})
	if !ok {
		return
	}
	switch ev.Kind {
	case InputToggle:
		l.bridge.OnUserToggle(ev.On)
	case InputClear:
		l.bridge.ClearLog()
		l.bridge.AppendLog(status.OK("Log cleared"))
	}
}
