// Package connectivity brings the WiFi station up, retries dropped associations
// within a fixed budget, and reports a single terminal outcome to boot.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/errcode"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

const (
	DefaultMaxRetries = 10
	DefaultTimeout    = 30 * time.Second
)

// TopicState carries the retained types.NetState.
var TopicState = bus.T("net", "state")

// Station is the radio driver. Start powers the interface up and must be followed
// by an asynchronous EventStart; Connect issues one association attempt whose
// result arrives as EventGotIP or EventDisconnected.
type Station interface {
	Start() error
	Connect() error
}

type EventKind uint8

const (
	EventStart EventKind = iota + 1
	EventDisconnected
	EventGotIP
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventDisconnected:
		return "disconnected"
	case EventGotIP:
		return "got_ip"
	}
	return "unknown"
}

// Event is delivered by the station's callback goroutine.
type Event struct {
	Kind EventKind
	Addr string // EventGotIP only
}

type Options struct {
	Station    Station
	Sink       status.Sink
	Conn       *bus.Connection // optional; publishes TopicState
	MaxRetries int
	Clock      timex.Clock
	Recorder   metrics.Recorder
	Logger     *slog.Logger
}

// Manager tracks one connection attempt. The retry counter and outcome are
// guarded by mu; done closes when a terminal bit (connected, failed or timed
// out) is set. Failed and TimedOut are final: later events are ignored.
type Manager struct {
	st      Station
	sink    status.Sink
	conn    *bus.Connection
	max     int
	clock   timex.Clock
	rec     metrics.Recorder
	log     *slog.Logger
	mu      sync.Mutex
	retries int
	outcome types.NetOutcome
	addr    string
	done    chan struct{}
	closed  bool
}

func New(opts Options) *Manager {
	max := opts.MaxRetries
	if max <= 0 {
		max = DefaultMaxRetries
	}
	sink := opts.Sink
	if sink == nil {
		sink = status.Discard{}
	}
	return &Manager{
		st:      opts.Station,
		sink:    sink,
		conn:    opts.Conn,
		max:     max,
		clock:   opts.Clock.Or(),
		rec:     metrics.Or(opts.Recorder),
		log:     logfields.Or(opts.Logger).With("component", "connectivity"),
		outcome: types.NetPending,
		done:    make(chan struct{}),
	}
}

// Start powers the station up. Association begins on EventStart.
func (m *Manager) Start() error {
	if m.st == nil {
		return &errcode.E{C: errcode.Unsupported, Op: "connectivity.Start", Msg: "no station"}
	}
	m.log.Info("starting station")
	m.publish()
	if err := m.st.Start(); err != nil {
		return errcode.Wrap(errcode.WiFiFailed, "connectivity.Start", err)
	}
	return nil
}

// HandleEvent applies one station event. Called from the driver's callback goroutine.
func (m *Manager) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventStart:
		m.mu.Lock()
		done := m.latched()
		m.mu.Unlock()
		if done {
			return
		}
		m.log.Info("station started, connecting")
		m.connect()

	case EventDisconnected:
		m.mu.Lock()
		if m.latched() {
			m.mu.Unlock()
			return
		}
		if m.retries < m.max {
			m.retries++
			n := m.retries
			m.outcome = types.NetPending
			m.mu.Unlock()
			m.rec.IncWiFiRetry()
			m.log.Info("retrying association", logfields.Retry(n), slog.Int("max", m.max))
			m.publish()
			m.connect()
			return
		}
		m.outcome = types.NetFailed
		m.mu.Unlock()
		m.log.Error("association failed, retries exhausted", logfields.Retry(m.max))
		m.sink.Log("WiFi connection failed")
		m.publish()
		m.signal()

	case EventGotIP:
		m.mu.Lock()
		if m.latched() {
			o := m.outcome
			m.mu.Unlock()
			m.log.Warn("address after attempt ended, ignored", logfields.Addr(ev.Addr), logfields.Outcome(string(o)))
			return
		}
		m.retries = 0
		m.addr = ev.Addr
		m.outcome = types.NetConnected
		m.mu.Unlock()
		m.log.Info("got address", logfields.Addr(ev.Addr))
		m.sink.Log("IP: " + ev.Addr)
		m.sink.Address(ev.Addr)
		m.publish()
		m.signal()
	}
}

// signal sets the terminal bit. Screen output for the event is emitted first so
// that a waiter never observes the outcome ahead of its log line.
func (m *Manager) signal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

// latched reports a final outcome. Caller holds mu.
func (m *Manager) latched() bool {
	return m.outcome == types.NetFailed || m.outcome == types.NetTimedOut
}

// expire records TimedOut if nothing terminal happened first, and returns the
// outcome that stands.
func (m *Manager) expire() types.NetOutcome {
	m.mu.Lock()
	if m.closed {
		o := m.outcome
		m.mu.Unlock()
		return o
	}
	m.outcome = types.NetTimedOut
	m.closed = true
	close(m.done)
	m.mu.Unlock()
	m.publish()
	return types.NetTimedOut
}

func (m *Manager) connect() {
	if err := m.st.Connect(); err != nil {
		// The driver reports the failed attempt as a disconnect on its own; log only.
		m.log.Warn("connect request failed", logfields.Error(err))
	}
}

// Wait blocks until the attempt is terminal, the timeout elapses or ctx ends,
// and returns exactly one of Connected, Failed or TimedOut. A timeout is
// recorded on the attempt and published like any other outcome.
func (m *Manager) Wait(ctx context.Context, timeout time.Duration) types.NetOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-m.done:
		m.mu.Lock()
		o := m.outcome
		m.mu.Unlock()
		return o
	case <-t.C:
	case <-ctx.Done():
	}
	return m.expire()
}

// Connect runs the full attempt: announce, start, wait, and report the outcome.
func (m *Manager) Connect(ctx context.Context, timeout time.Duration) (types.NetOutcome, error) {
	m.sink.Log("Connecting to WiFi...")
	if err := m.Start(); err != nil {
		m.log.Error("station start failed", logfields.Error(err))
		m.sink.Log(status.Fail("WiFi failed"))
		m.rec.IncWiFiOutcome(string(types.NetFailed))
		return types.NetFailed, err
	}

	o := m.Wait(ctx, timeout)
	m.rec.IncWiFiOutcome(string(o))
	switch o {
	case types.NetConnected:
		m.log.Info("wifi connected", logfields.Addr(m.State().Addr))
		m.sink.Log(status.OK("WiFi connected"))
		return o, nil
	case types.NetFailed:
		m.log.Error("wifi failed")
		m.sink.Log(status.Fail("WiFi failed"))
		return o, &errcode.E{C: errcode.WiFiFailed, Op: "connectivity.Connect", Msg: "retries exhausted"}
	default:
		m.log.Error("wifi connection timeout", slog.Duration("timeout", timeout))
		m.sink.Log(status.Fail("WiFi timeout"))
		return types.NetTimedOut, &errcode.E{C: errcode.WiFiTimeout, Op: "connectivity.Connect", Msg: "no outcome within " + timeout.String()}
	}
}

// State returns a snapshot of the attempt.
func (m *Manager) State() types.NetState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.NetState{Outcome: m.outcome, Addr: m.addr, Retries: m.retries, TS: m.clock().UnixMilli()}
}

func (m *Manager) publish() {
	if m.conn == nil {
		return
	}
	st := m.State()
	m.conn.Publish(m.conn.NewMessage(TopicState, st, true))
}
