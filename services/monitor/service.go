// Package monitor runs the steady-state loop after boot: it polls the file
// service every tick and probes the removable medium every few ticks.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/services/ftpmon"
	"ftpdisplay-go/services/storage"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/mathx"
)

var topicConfigMonitor = bus.T("config", "monitor")

const (
	DefaultTick              = time.Second
	DefaultStorageCheckEvery = 10
)

type Options struct {
	Tick              time.Duration
	StorageCheckEvery int
	// Storage is the boot-time mount result, republished with liveness changes.
	Storage types.StorageStatus
	Logger  *slog.Logger
}

type Service struct {
	ftp     *ftpmon.Monitor
	live    *storage.Liveness
	tick    time.Duration
	every   int
	storage types.StorageStatus
	log     *slog.Logger
	done    chan struct{}
}

// New builds the loop. live may be nil when no removable medium was mounted.
func New(ftp *ftpmon.Monitor, live *storage.Liveness, opts Options) *Service {
	return &Service{
		ftp:     ftp,
		live:    live,
		tick:    mathx.OrDefault(opts.Tick, DefaultTick),
		every:   mathx.OrDefault(opts.StorageCheckEvery, DefaultStorageCheckEvery),
		storage: opts.Storage,
		log:     logfields.Or(opts.Logger).With("component", "monitor"),
		done:    make(chan struct{}),
	}
}

// Step runs iteration n of the loop.
func (s *Service) Step(conn *bus.Connection, n uint32) {
	if s.ftp != nil {
		s.ftp.Poll()
	}
	if s.live == nil || n%uint32(s.every) != 0 {
		return
	}
	was := s.storage.RemovablePresent
	s.storage.RemovablePresent = s.live.Check()
	if conn != nil && (n == 0 || was != s.storage.RemovablePresent) {
		conn.Publish(conn.NewMessage(storage.TopicState, s.storage, true))
	}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	defer close(s.done)
	cfgSub := conn.Subscribe(topicConfigMonitor)
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.tick)
	defer tick.Stop()

	var n uint32
	s.Step(conn, n)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("monitor stopping")
			return
		case <-tick.C:
			n++
			s.Step(conn, n)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			mc, isCfg := msg.Payload.(types.MonitorConfig)
			if !isCfg {
				continue
			}
			if mc.StorageCheckEvery > 0 {
				s.every = mc.StorageCheckEvery
			}
			if mc.TickMs > 0 {
				d := time.Duration(mc.TickMs) * time.Millisecond
				if d != s.tick {
					s.tick = d
					tick.Reset(d)
					s.log.Info("monitor interval set", slog.Duration("tick", d))
				}
			}
		}
	}
}

// Start launches the loop on its own goroutine.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}

// Done closes when the loop has exited.
func (s *Service) Done() <-chan struct{} { return s.done }
