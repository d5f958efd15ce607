// Package boot brings the device up in a fixed phase order and hands back the
// assembled Runtime.
package boot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ftpdisplay-go/bus"
	"ftpdisplay-go/errcode"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/logring"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/services/config"
	"ftpdisplay-go/services/connectivity"
	"ftpdisplay-go/services/ftpmon"
	"ftpdisplay-go/services/monitor"
	"ftpdisplay-go/services/render"
	"ftpdisplay-go/services/storage"
	"ftpdisplay-go/services/timesync"
	"ftpdisplay-go/services/toggle"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

type Phase string

const (
	PhaseCore         Phase = "core"
	PhaseDisplay      Phase = "display"
	PhaseUI           Phase = "ui"
	PhaseStorage      Phase = "storage"
	PhaseConnectivity Phase = "connectivity"
	PhaseTimeSync     Phase = "timesync"
	PhaseService      Phase = "service"
	PhaseMonitor      Phase = "monitor"
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseCore, PhaseDisplay, PhaseUI, PhaseStorage, PhaseConnectivity, PhaseTimeSync, PhaseService, PhaseMonitor}

// StationFactory builds the radio driver; events must be delivered to emit.
type StationFactory func(emit func(connectivity.Event)) connectivity.Station

// ServiceFactory allocates the file-transfer engine.
type ServiceFactory func(cfg config.FTP, st types.StorageStatus) (types.FileService, error)

// Deps are the board-specific collaborators.
type Deps struct {
	Config     config.Config
	Display    func() (status.Surface, error)
	Input      render.Input
	Internal   storage.Backend
	Removable  storage.Backend
	Station    StationFactory
	NewService ServiceFactory
	Query      timesync.Querier
	Recorder   metrics.Recorder
	Logger     *slog.Logger
	Clock      timex.Clock
	Sleep      timex.Sleeper
	// OnPhase, if set, is called as each phase begins.
	OnPhase func(Phase)
}

// Runtime carries everything boot created. Nothing lives in package globals.
type Runtime struct {
	BootID  string
	Config  config.Config
	Bus     *bus.Bus
	Bridge  *status.Bridge
	Sink    status.Sink
	Render  *render.Loop
	Storage types.StorageStatus
	Net     types.NetOutcome
	Station connectivity.Station // closed by Close when it is an io.Closer
	WiFi    *connectivity.Manager
	Time    *timesync.Service
	Service types.FileService
	Toggle  *toggle.Controller
	FTPMon  *ftpmon.Monitor
	Monitor *monitor.Service
	Logger  *slog.Logger
	Phase   Phase // last phase entered
}

// Run executes the phases. On a fatal phase error it returns the partial
// Runtime, whose render loop keeps the failure on screen until ctx ends.
func Run(ctx context.Context, d Deps) (*Runtime, error) {
	rec := metrics.Or(d.Recorder)
	rt := &Runtime{Config: d.Config, Net: types.NetPending}

	b := &booter{ctx: ctx, d: d, rt: rt, rec: rec}
	steps := []struct {
		phase Phase
		fn    func() error
	}{
		{PhaseCore, b.phaseCore},
		{PhaseDisplay, b.phaseDisplay},
		{PhaseUI, b.phaseUI},
		{PhaseStorage, b.phaseStorage},
		{PhaseConnectivity, b.phaseConnectivity},
		{PhaseTimeSync, b.phaseTimeSync},
		{PhaseService, b.phaseService},
		{PhaseMonitor, b.phaseMonitor},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return rt, err
		}
		rt.Phase = s.phase
		if d.OnPhase != nil {
			d.OnPhase(s.phase)
		}
		b.log().Info("phase start", logfields.Phase(string(s.phase)))
		if err := s.fn(); err != nil {
			rec.IncBootPhase(string(s.phase), "failed")
			b.log().Error("phase failed", logfields.Phase(string(s.phase)), logfields.Error(err))
			return rt, err
		}
		rec.IncBootPhase(string(s.phase), "ok")
		checkpoint(b.log(), s.phase)
	}
	return rt, nil
}

type booter struct {
	ctx     context.Context
	d       Deps
	rt      *Runtime
	rec     metrics.Recorder
	conn    *bus.Connection
	surface status.Surface
}

func (b *booter) log() *slog.Logger {
	if b.rt.Logger != nil {
		return b.rt.Logger
	}
	return logfields.Or(b.d.Logger)
}

func (b *booter) phaseCore() error {
	b.rt.BootID = uuid.NewString()
	b.rt.Logger = logfields.Or(b.d.Logger).With(logfields.BootID(b.rt.BootID))
	b.rt.Bus = bus.NewBus(8)
	b.conn = b.rt.Bus.NewConnection("boot")
	config.NewConfigService().Publish(b.conn, b.rt.Config)
	return nil
}

var errNoDisplay = &errcode.E{C: errcode.UINotReady, Op: "boot.display", Msg: "no display"}

func (b *booter) phaseDisplay() error {
	if b.d.Display == nil {
		return errNoDisplay
	}
	s, err := b.d.Display()
	if err != nil {
		return errcode.Wrap(errcode.UINotReady, "boot.display", err)
	}
	b.rt.Bridge = status.New(&sync.Mutex{}, status.Options{
		Budget:   logring.Budget{Lines: b.rt.Config.Log.Lines, LineBytes: b.rt.Config.Log.LineBytes},
		Clock:    b.logClock(),
		Recorder: b.rec,
		Logger:   b.rt.Logger,
	})
	b.surface = s
	return nil
}

// logClock stamps log lines with synchronised local time once the time
// service exists. rt.Time is set on the boot goroutine before any other
// goroutine appends.
func (b *booter) logClock() timex.Clock {
	base := b.d.Clock.Or()
	return func() time.Time {
		if b.rt.Time != nil {
			return b.rt.Time.Now()
		}
		return base()
	}
}

func (b *booter) phaseUI() error {
	rt, cfg := b.rt, b.rt.Config
	rt.Bridge.Attach(b.surface)

	poster := render.NewPoster(rt.Bus.NewConnection("producers"))
	rt.Sink = poster

	rt.Time = timesync.New(timesync.Options{
		Servers:  cfg.Time.Servers,
		Timezone: cfg.Time.Timezone,
		Timeout:  cfg.Time.QueryTimeout,
		Resync:   cfg.Time.Resync,
		Query:    b.d.Query,
		Sink:     poster,
		Clock:    b.d.Clock,
		Logger:   rt.Logger,
	})
	rt.Render = render.NewLoop(rt.Bus.NewConnection("render"), rt.Bridge, render.Options{
		Clock:    rt.Time.Clock(),
		Input:    b.d.Input,
		Recorder: b.rec,
		Logger:   rt.Logger,
	})
	go rt.Render.Run(b.ctx)

	rt.Toggle = toggle.New(toggle.Options{
		Sink:     poster,
		User:     cfg.FTP.User,
		Port:     cfg.FTP.Port,
		Settle:   cfg.FTP.SettleDelay,
		Sleep:    b.d.Sleep,
		Recorder: b.rec,
		Logger:   rt.Logger,
	})
	rt.Bridge.RegisterToggleHandler(func(on bool) { rt.Toggle.Toggle(on) })

	rt.Sink.Log("=== System Starting ===")
	return nil
}

func (b *booter) phaseStorage() error {
	rt := b.rt
	rt.Sink.Log("Initializing storage...")
	m := storage.NewMounter(b.d.Internal, b.d.Removable, storage.Options{
		Conn:     b.conn,
		Clock:    b.d.Clock,
		Recorder: b.rec,
		Logger:   rt.Logger,
	})
	st, err := m.MountAll()
	rt.Storage = st
	if err != nil {
		rt.Sink.Log(status.Fail("No storage - cannot start FTP"))
		rt.Sink.Status(status.StatusNoStorage, types.ActivityIdle)
		return err
	}
	return nil
}

func (b *booter) phaseConnectivity() error {
	rt, cfg := b.rt, b.rt.Config
	var st connectivity.Station
	if b.d.Station != nil {
		st = b.d.Station(func(ev connectivity.Event) { rt.WiFi.HandleEvent(ev) })
		rt.Station = st
	}
	rt.WiFi = connectivity.New(connectivity.Options{
		Station:    st,
		Sink:       rt.Sink,
		Conn:       b.conn,
		MaxRetries: cfg.WiFi.MaxRetries,
		Clock:      b.d.Clock,
		Recorder:   b.rec,
		Logger:     rt.Logger,
	})
	o, err := rt.WiFi.Connect(b.ctx, cfg.WiFi.ConnectTimeout)
	rt.Net = o
	if err != nil {
		// degraded: later phases still run
		rt.Logger.Warn("continuing without network", logfields.Outcome(string(o)), logfields.Error(err))
	}
	return nil
}

func (b *booter) phaseTimeSync() error {
	rt := b.rt
	if rt.Net != types.NetConnected {
		rt.Logger.Info("skipping time sync", logfields.Outcome(string(rt.Net)))
		return nil
	}
	rt.Sink.Log("Syncing time...")
	if err := rt.Time.Start(b.ctx); err != nil {
		rt.Logger.Warn("time sync not scheduled", logfields.Error(err))
	}
	return nil
}

func (b *booter) phaseService() error {
	rt := b.rt
	var (
		svc types.FileService
		err error
	)
	if b.d.NewService != nil {
		svc, err = b.d.NewService(rt.Config.FTP, rt.Storage)
	}
	if svc == nil || err != nil {
		rt.Sink.Log(status.Fail("ERROR: FTP alloc failed"))
		return &errcode.E{C: errcode.NoService, Op: "boot.service", Err: err}
	}
	svc.RegisterLogCallback(rt.Sink.Log)
	rt.Service = svc
	rt.Toggle.SetService(svc)

	rt.Logger.Info("file service ready (stopped)")
	rt.Sink.Log(status.OK("FTP server ready"))
	rt.Sink.Status(status.StatusStopped, types.ActivityIdle)
	return nil
}

func (b *booter) phaseMonitor() error {
	rt, cfg := b.rt, b.rt.Config
	rt.FTPMon = ftpmon.New(rt.Service, ftpmon.Options{
		Sink:     rt.Sink,
		Conn:     b.conn,
		Clock:    b.d.Clock,
		Recorder: b.rec,
		Logger:   rt.Logger,
	})
	var live *storage.Liveness
	if rt.Storage.Removable {
		live = storage.NewLiveness(b.d.Removable, rt.Sink, b.rec, rt.Logger)
	}
	rt.Monitor = monitor.New(rt.FTPMon, live, monitor.Options{
		Tick:              cfg.Monitor.Tick,
		StorageCheckEvery: cfg.Monitor.StorageCheckEvery,
		Storage:           rt.Storage,
		Logger:            rt.Logger,
	})

	rt.Logger.Info("system ready, entering main loop")
	rt.Sink.Log(status.OK("=== System Ready ==="))
	return rt.Monitor.Start(b.ctx, rt.Bus.NewConnection("monitor"))
}

// checkpoint logs heap use after each phase.
func checkpoint(log *slog.Logger, p Phase) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	log.Debug("checkpoint", logfields.Phase(string(p)), logfields.HeapUsed(ms.HeapInuse))
}

// ApplySettings runs the settings editor rule against the FTP section and
// republishes it. The next successful start reports the new credentials. Call
// it only after Run has returned.
func (rt *Runtime) ApplySettings(user, password, portText string) config.FTP {
	ftp := config.ApplySettings(rt.Config.FTP, user, password, portText)
	rt.Config.FTP = ftp
	if rt.Toggle != nil {
		rt.Toggle.SetCredentials(ftp.User, ftp.Port)
	}
	if rt.Bus != nil {
		config.NewConfigService().Publish(rt.Bus.NewConnection("settings"), rt.Config)
	}
	if rt.Sink != nil {
		if p, err := strconv.Atoi(strings.TrimSpace(portText)); err != nil || p != ftp.Port {
			rt.Sink.Log(status.Notice("Invalid port, keeping " + strconv.Itoa(ftp.Port)))
		}
		rt.Sink.Log(status.OK("Settings saved"))
	}
	logfields.Or(rt.Logger).Info("settings applied", "user", ftp.User, "port", ftp.Port)
	return ftp
}

// Close stops background work started by boot. The caller cancels the boot
// context first.
func (rt *Runtime) Close() error {
	if rt.Toggle != nil {
		rt.Toggle.Wait()
	}
	var errs []error
	if c, ok := rt.Station.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if rt.Time != nil {
		errs = append(errs, rt.Time.Stop())
	}
	if rt.Monitor != nil {
		<-rt.Monitor.Done()
	}
	if rt.Render != nil {
		<-rt.Render.Done()
	}
	return errors.Join(errs...)
}
