// Package storage mounts the internal and removable filesystems at boot and
// watches the removable medium afterwards.
package storage

import (
	"errors"
	"log/slog"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/errcode"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

// TopicState carries the retained types.StorageStatus.
var TopicState = bus.T("storage", "state")

// Backend is one mountable filesystem.
type Backend interface {
	Name() string
	MountPoint() string
	Mount() error
}

// Prober is implemented by backends whose medium can disappear.
type Prober interface {
	Probe() error
}

// Usager is implemented by backends that can report capacity.
type Usager interface {
	Usage() (types.StorageUsage, error)
}

type Options struct {
	Conn     *bus.Connection
	Clock    timex.Clock
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

type Mounter struct {
	internal  Backend
	removable Backend
	conn      *bus.Connection
	clock     timex.Clock
	rec       metrics.Recorder
	log       *slog.Logger
}

// NewMounter takes either backend as nil when the board lacks it.
func NewMounter(internal, removable Backend, opts Options) *Mounter {
	return &Mounter{
		internal:  internal,
		removable: removable,
		conn:      opts.Conn,
		clock:     opts.Clock.Or(),
		rec:       metrics.Or(opts.Recorder),
		log:       logfields.Or(opts.Logger).With("component", "storage"),
	}
}

// MountAll mounts internal then removable storage. Storage is available when
// either succeeds; with neither it returns errcode.StorageUnavailable.
func (m *Mounter) MountAll() (types.StorageStatus, error) {
	var st types.StorageStatus
	ierr := m.mount(m.internal)
	st.Internal = m.internal != nil && ierr == nil
	rerr := m.mount(m.removable)
	st.Removable = m.removable != nil && rerr == nil
	st.TS = m.clock().UnixMilli()

	if m.conn != nil {
		m.conn.Publish(m.conn.NewMessage(TopicState, st, true))
	}
	if !st.Available() {
		m.log.Error("no storage available")
		return st, &errcode.E{C: errcode.StorageUnavailable, Op: "storage.MountAll", Err: errors.Join(ierr, rerr)}
	}
	m.logUsage()
	return st, nil
}

func (m *Mounter) mount(b Backend) error {
	if b == nil {
		return errcode.MediumAbsent
	}
	log := m.log.With(logfields.Backend(b.Name()), logfields.Mount(b.MountPoint()))
	if err := b.Mount(); err != nil {
		log.Error("mount failed", logfields.Error(err))
		m.rec.IncStorageMount(b.Name(), false)
		return errcode.Wrap(errcode.MountFailed, "storage.mount "+b.Name(), err)
	}
	log.Info("mounted")
	m.rec.IncStorageMount(b.Name(), true)
	return nil
}

const mib = 1 << 20

func (m *Mounter) logUsage() {
	for _, b := range []Backend{m.internal, m.removable} {
		u, ok := b.(Usager)
		if !ok {
			continue
		}
		usage, err := u.Usage()
		if err != nil {
			m.log.Warn("storage info unavailable", logfields.Backend(b.Name()), logfields.Error(err))
			continue
		}
		m.log.Info("storage info",
			logfields.Backend(b.Name()),
			slog.Float64("total_mb", float64(usage.Total)/mib),
			slog.Float64("free_mb", float64(usage.Free)/mib),
		)
	}
}

// Removable returns the removable backend, or nil.
func (m *Mounter) Removable() Backend { return m.removable }
