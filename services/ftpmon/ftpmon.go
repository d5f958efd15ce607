// Package ftpmon turns polled file-service states into one status and log
// update per observed change.
package ftpmon

import (
	"log/slog"
	"sync"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

// TopicState carries the retained types.ServiceSnapshot.
var TopicState = bus.T("ftp", "state")

type transition struct {
	status string
	line   string
}

var transitions = map[types.ServiceState]transition{
	types.ServiceDisabled:         {status.StatusDisabled, status.Notice("FTP: Disabled")},
	types.ServiceReady:            {status.StatusReady, status.OK("FTP: Ready")},
	types.ServiceClientConnected:  {status.StatusClientConnected, status.Tagged(status.ColorOK, "[**]", "FTP Client Connected")},
	types.ServiceSendingFile:      {status.StatusSendingFile, status.Tagged(status.ColorTransfer, "[>>]", "Sending file...")},
	types.ServiceReceivingFile:    {status.StatusReceivingFile, status.Tagged(status.ColorTransfer, "[<<]", "Receiving file...")},
	types.ServiceTransferComplete: {status.StatusReady, status.OK("Transfer complete")},
}

type Options struct {
	Sink     status.Sink
	Conn     *bus.Connection
	Clock    timex.Clock
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Monitor remembers only the last observed state.
type Monitor struct {
	sink  status.Sink
	conn  *bus.Connection
	clock timex.Clock
	rec   metrics.Recorder
	log   *slog.Logger

	mu   sync.Mutex
	svc  types.FileService
	last types.ServiceState
}

func New(svc types.FileService, opts Options) *Monitor {
	sink := opts.Sink
	if sink == nil {
		sink = status.Discard{}
	}
	return &Monitor{
		sink:  sink,
		conn:  opts.Conn,
		clock: opts.Clock.Or(),
		rec:   metrics.Or(opts.Recorder),
		log:   logfields.Or(opts.Logger).With("component", "ftpmon"),
		svc:   svc,
		last:  types.ServiceStateNone,
	}
}

// Poll samples the service once. It reports whether the state changed.
func (m *Monitor) Poll() bool {
	m.mu.Lock()
	svc := m.svc
	m.mu.Unlock()
	if svc == nil {
		return false
	}
	cur := svc.State()

	m.mu.Lock()
	if cur == m.last {
		m.mu.Unlock()
		return false
	}
	prev := m.last
	m.last = cur
	m.mu.Unlock()

	m.rec.IncServiceTransition(cur.String())
	m.log.Info("service state changed", slog.String("from", prev.String()), logfields.State(cur.String()))
	if m.conn != nil {
		snap := types.ServiceSnapshot{State: cur, Enabled: svc.IsEnabled(), TS: m.clock().UnixMilli()}
		m.conn.Publish(m.conn.NewMessage(TopicState, snap, true))
	}

	tr, ok := transitions[cur]
	if !ok {
		m.log.Warn("unmapped service state", logfields.State(cur.String()))
		return true
	}
	m.sink.Status(tr.status, status.ActivityFor(tr.status))
	m.sink.Log(tr.line)
	return true
}

// Last returns the most recently observed state.
func (m *Monitor) Last() types.ServiceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
