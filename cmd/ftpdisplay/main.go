// Command ftpdisplay runs the FTP status display on a host, with simulated
// radio, panel, touch and file service, for bring-up and demos.
package main

import (
	"context"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"ftpdisplay-go/display"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/platform"
	"ftpdisplay-go/services/boot"
	"ftpdisplay-go/services/config"
	"ftpdisplay-go/services/connectivity"
	"ftpdisplay-go/services/render"
	"ftpdisplay-go/services/storage"
	"ftpdisplay-go/services/timesync"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
)

type CLI struct {
	Config      string        `short:"c" help:"YAML overlay applied on top of the device defaults" type:"path"`
	Device      string        `short:"d" help:"Embedded device profile" default:"host" enum:"host,sunton-esp32s3,pico"`
	EnvFile     string        `help:"File with FTPD_* credentials" default:".env" type:"path"`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address (empty disables)"`
	DataDir     string        `help:"Root for storage; overrides the profile's mount points" type:"path"`
	Verbose     bool          `short:"v" help:"Enable debug logging"`
	Duration    time.Duration `help:"Stop after this long (0 runs until interrupted)"`
	Snapshot    string        `help:"Write a PNG of the screen on exit" type:"path"`
	Width       int           `help:"Panel width" default:"480"`
	Height      int           `help:"Panel height" default:"320"`

	SimWiFi        string        `help:"Simulated WiFi behaviour" enum:"ok,fail,silent" default:"ok"`
	SimFlakes      int           `help:"Connect attempts that fail before the link comes up" default:"2"`
	SimCard        bool          `help:"Simulate an inserted SD card" default:"true" negatable:""`
	SimServiceFail bool          `help:"Make the file service refuse to start"`
	SimToggleAfter time.Duration `help:"Tap the server switch after this long (0 disables)" default:"3s"`
	SimClients     bool          `help:"Drive simulated client sessions while the server runs"`
	NoNTP          bool          `help:"Skip SNTP and treat the local clock as synchronised"`
	Settings       string        `help:"Apply user:password:port through the settings editor once booted"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("ftpdisplay"),
		kong.Description("FTP server status display (host simulation)."),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := platform.NewLogger(level)
	slog.SetDefault(logger)

	if err := run(&cli, logger); err != nil {
		logger.Error("ftpdisplay failed", "error", err)
		os.Exit(1)
	}
}

func run(cli *CLI, logger *slog.Logger) error {
	if err := config.LoadEnvFile(cli.EnvFile); err != nil {
		return err
	}
	cfg, err := config.Load(cli.Device, cli.Config)
	if err != nil {
		return err
	}
	if cli.DataDir != "" {
		cfg.Storage.Internal = filepath.Join(cli.DataDir, "data")
		cfg.Storage.Removable = filepath.Join(cli.DataDir, "sdcard")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	if cli.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, cli.Duration)
		defer stop()
	}

	var rec metrics.Recorder = metrics.NoopRecorder{}
	if cli.MetricsAddr != "" {
		pr := metrics.NewPrometheusRecorder(prom.NewRegistry())
		rec = pr
		srv := &http.Server{Addr: cli.MetricsAddr, Handler: pr.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutCtx)
		}()
		logger.Info("serving metrics", "addr", cli.MetricsAddr)
	}

	internal, removable := backends(cfg, cli)
	fb := display.NewFramebuffer(cli.Width, cli.Height)
	input := &deferredInput{}

	deps := boot.Deps{
		Config: cfg,
		Display: func() (status.Surface, error) {
			s := display.NewSurface(fb)
			input.in = display.NewInput(newTapper(s.Layout().Switch, cli.SimToggleAfter), s, nil)
			return s, nil
		},
		Input:     input,
		Internal:  internal,
		Removable: removable,
		Station: func(emit func(connectivity.Event)) connectivity.Station {
			link := newSimLink(cli.SimWiFi, cli.SimFlakes)
			st := connectivity.NewNetlinkStation(link, cfg.WiFi.SSID, cfg.WiFi.Password, link.Addr, logger)
			st.Bind(emit)
			return st
		},
		NewService: func(ftp config.FTP, st types.StorageStatus) (types.FileService, error) {
			root := cfg.Storage.Internal
			if !st.Internal {
				root = cfg.Storage.Removable
			}
			return newSimService(ftp, root, cli.SimServiceFail, cli.SimClients, logger), nil
		},
		Recorder: rec,
		Logger:   logger,
	}
	if cli.NoNTP {
		deps.Query = func(string, time.Duration) (time.Duration, error) { return 0, nil }
	} else {
		deps.Query = timesync.NTPQuery
	}

	rt, bootErr := boot.Run(ctx, deps)
	if errors.Is(bootErr, context.Canceled) || errors.Is(bootErr, context.DeadlineExceeded) {
		bootErr = nil
	}
	if bootErr != nil {
		logger.Error("boot stopped", "phase", string(rt.Phase), "error", bootErr)
	}

	if bootErr == nil && cli.Settings != "" {
		user, pass, port := splitSettings(cli.Settings)
		rt.ApplySettings(user, pass, port)
	}

	<-ctx.Done()
	cancel()
	closeErr := rt.Close()
	if rt.Service != nil {
		rt.Service.Stop()
	}

	if cli.Snapshot != "" && rt.Bridge != nil {
		if err := snapshot(rt, fb, cli.Snapshot); err != nil {
			logger.Warn("snapshot failed", "error", err)
		} else {
			logger.Info("screen written", "path", cli.Snapshot)
		}
	}
	return errors.Join(bootErr, closeErr)
}

// splitSettings reads "user:password:port"; missing fields are empty.
func splitSettings(v string) (user, pass, port string) {
	f := strings.SplitN(v, ":", 3)
	for len(f) < 3 {
		f = append(f, "")
	}
	return f[0], f[1], f[2]
}

func backends(cfg config.Config, cli *CLI) (storage.Backend, storage.Backend) {
	var internal, removable storage.Backend
	if cfg.Storage.Internal != "" {
		internal = &storage.DirBackend{Label: "data", Path: cfg.Storage.Internal, Create: cfg.Storage.FormatInternal}
	}
	if cfg.Storage.Removable != "" {
		if cli.SimCard {
			_ = os.MkdirAll(cfg.Storage.Removable, 0o755)
		}
		removable = &storage.DirBackend{Label: "sdcard", Path: cfg.Storage.Removable}
	}
	return internal, removable
}

func snapshot(rt *boot.Runtime, fb *display.Framebuffer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var encErr error
	rt.Bridge.Render(func() { encErr = png.Encode(f, fb.Image()) })
	return encErr
}

// deferredInput forwards to the touch input once the panel exists.
type deferredInput struct{ in *display.Input }

func (d *deferredInput) Poll() (render.InputEvent, bool) {
	if d.in == nil {
		return render.InputEvent{}, false
	}
	return d.in.Poll()
}
