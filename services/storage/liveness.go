package storage

import (
	"log/slog"
	"sync"

	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/status"
)

// Liveness tracks presence of the removable medium and reports transitions.
// It starts out "absent" so the first successful probe is announced.
type Liveness struct {
	probe Prober
	sink  status.Sink
	rec   metrics.Recorder
	log   *slog.Logger

	mu      sync.Mutex
	present bool
}

// NewLiveness returns nil when b cannot be probed; a nil *Liveness is inert.
func NewLiveness(b Backend, sink status.Sink, rec metrics.Recorder, logger *slog.Logger) *Liveness {
	p, ok := b.(Prober)
	if !ok {
		return nil
	}
	if sink == nil {
		sink = status.Discard{}
	}
	return &Liveness{
		probe: p,
		sink:  sink,
		rec:   metrics.Or(rec),
		log:   logfields.Or(logger).With("component", "storage", logfields.Backend(b.Name())),
	}
}

// Check probes once and reports the current presence.
func (l *Liveness) Check() bool {
	if l == nil {
		return false
	}
	err := l.probe.Probe()

	l.mu.Lock()
	was := l.present
	l.present = err == nil
	l.mu.Unlock()

	switch {
	case err != nil && was:
		l.log.Warn("removable medium removed or inaccessible", logfields.Error(err))
		l.sink.Log(status.Alert("SD Card removed!"))
		l.rec.SetRemovablePresent(false)
	case err == nil && !was:
		l.log.Info("removable medium accessible")
		l.sink.Log(status.OK("SD Card accessible"))
		l.rec.SetRemovablePresent(true)
	}
	return err == nil
}

// Present returns the last observed presence.
func (l *Liveness) Present() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.present
}
