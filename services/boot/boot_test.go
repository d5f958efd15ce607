package boot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpdisplay-go/errcode"
	"ftpdisplay-go/services/config"
	"ftpdisplay-go/services/connectivity"
	"ftpdisplay-go/status"
	"ftpdisplay-go/status/statustest"
	"ftpdisplay-go/types"
)

type backend struct {
	name string
	err  error
}

func (b backend) Name() string       { return b.name }
func (b backend) MountPoint() string { return "/" + b.name }
func (b backend) Mount() error       { return b.err }
func (b backend) Probe() error       { return b.err }

// station answers Connect with GotIP, or with a disconnect when failing.
type station struct {
	emit func(connectivity.Event)
	fail bool
}

func (s *station) Start() error {
	go s.emit(connectivity.Event{Kind: connectivity.EventStart})
	return nil
}

func (s *station) Connect() error {
	ev := connectivity.Event{Kind: connectivity.EventGotIP, Addr: "10.0.0.2"}
	if s.fail {
		ev = connectivity.Event{Kind: connectivity.EventDisconnected}
	}
	go s.emit(ev)
	return nil
}

type service struct {
	mu      sync.Mutex
	enabled bool
	starts  int
	logf    func(string)
}

func (s *service) Start() {
	s.mu.Lock()
	s.starts++
	s.enabled = true
	logf := s.logf
	s.mu.Unlock()
	if logf != nil {
		logf("FTP worker up")
	}
}
func (s *service) Stop() { s.mu.Lock(); s.enabled = false; s.mu.Unlock() }
func (s *service) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}
func (s *service) State() types.ServiceState {
	if s.IsEnabled() {
		return types.ServiceReady
	}
	return types.ServiceDisabled
}
func (s *service) RegisterLogCallback(fn func(string)) { s.mu.Lock(); s.logf = fn; s.mu.Unlock() }

type harness struct {
	deps    Deps
	surface *statustest.Surface
	svc     *service
	queries int
	mu      sync.Mutex
	phases  []Phase
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg, err := config.Default("sunton-esp32s3")
	require.NoError(t, err)
	cfg.WiFi.ConnectTimeout = 2 * time.Second

	h := &harness{surface: &statustest.Surface{}, svc: &service{}}
	h.deps = Deps{
		Config:    cfg,
		Display:   func() (status.Surface, error) { return h.surface, nil },
		Internal:  backend{name: "data"},
		Removable: backend{name: "sdcard"},
		Station: func(emit func(connectivity.Event)) connectivity.Station {
			return &station{emit: emit}
		},
		NewService: func(config.FTP, types.StorageStatus) (types.FileService, error) { return h.svc, nil },
		Query: func(string, time.Duration) (time.Duration, error) {
			h.mu.Lock()
			h.queries++
			h.mu.Unlock()
			return 0, nil
		},
		Sleep: func(time.Duration) {},
		OnPhase: func(p Phase) {
			h.mu.Lock()
			h.phases = append(h.phases, p)
			h.mu.Unlock()
		},
	}
	return h
}

func (h *harness) run(t *testing.T) (*Runtime, error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rt, err := Run(ctx, h.deps)
	t.Cleanup(func() {
		cancel()
		_ = rt.Close()
	})
	return rt, err
}

// screen copies the surface under the render lock.
func (h *harness) screen(rt *Runtime) statustest.Surface {
	var s statustest.Surface
	rt.Bridge.Render(func() { s = *h.surface })
	return s
}

func waitLog(t *testing.T, rt *Runtime, sub string) {
	t.Helper()
	require.Eventually(t, func() bool { return strings.Contains(rt.Bridge.LogText(), sub) }, 2*time.Second, 5*time.Millisecond, "log never contained %q:\n%s", sub, rt.Bridge.LogText())
}

// assertOrder checks that each line appears after the previous one.
func assertOrder(t *testing.T, text string, lines ...string) {
	t.Helper()
	pos := 0
	for _, l := range lines {
		i := strings.Index(text[pos:], l)
		if !assert.GreaterOrEqual(t, i, 0, "%q missing or out of order in:\n%s", l, text) {
			return
		}
		pos += i + len(l)
	}
}

func TestRun_HappyPath(t *testing.T) {
	h := newHarness(t)
	rt, err := h.run(t)
	require.NoError(t, err)

	assert.NotEmpty(t, rt.BootID)
	assert.Equal(t, Phases, h.phases)
	assert.Equal(t, types.NetConnected, rt.Net)
	assert.True(t, rt.Storage.Internal)
	assert.True(t, rt.Storage.Removable)
	assert.Same(t, h.svc, rt.Service)

	waitLog(t, rt, "FTP: Disabled")
	waitLog(t, rt, "SD Card accessible")
	waitLog(t, rt, "Time synchronized")
	assertOrder(t, rt.Bridge.LogText(),
		"=== System Starting ===",
		"Initializing storage...",
		"Connecting to WiFi...",
		"IP: 10.0.0.2",
		"#00ff00 [OK] WiFi connected#",
		"Syncing time...",
		"#00ff00 [OK] FTP server ready#",
		"#00ff00 [OK] === System Ready ===#",
	)
	assert.Equal(t, "IP: 10.0.0.2", h.screen(rt).AddressText)
}

func TestRun_UserToggleStartsService(t *testing.T) {
	h := newHarness(t)
	rt, err := h.run(t)
	require.NoError(t, err)

	rt.Bridge.OnUserToggle(true)
	rt.Toggle.Wait()

	waitLog(t, rt, "User: esp32 | Port: 21")
	waitLog(t, rt, "FTP worker up")
	require.Eventually(t, func() bool { return h.screen(rt).StatusText == status.StatusReady }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.svc.starts)
}

func TestRun_NoStorageAbortsBeforeConnectivity(t *testing.T) {
	h := newHarness(t)
	h.deps.Internal = backend{name: "data", err: errors.New("no partition")}
	h.deps.Removable = backend{name: "sdcard", err: errors.New("no card")}
	allocated := false
	h.deps.NewService = func(config.FTP, types.StorageStatus) (types.FileService, error) {
		allocated = true
		return h.svc, nil
	}

	rt, err := h.run(t)
	assert.Equal(t, errcode.StorageUnavailable, errcode.Of(err))
	assert.Equal(t, PhaseStorage, rt.Phase)
	assert.Nil(t, rt.WiFi)
	assert.False(t, allocated)
	waitLog(t, rt, "#ff0000 [!!] No storage - cannot start FTP#")
}

func TestRun_OneStorageBackendIsEnough(t *testing.T) {
	h := newHarness(t)
	h.deps.Internal = backend{name: "data", err: errors.New("corrupt")}
	rt, err := h.run(t)
	require.NoError(t, err)
	assert.False(t, rt.Storage.Internal)
	assert.True(t, rt.Storage.Removable)
}

func TestRun_WiFiFailureIsDegraded(t *testing.T) {
	h := newHarness(t)
	h.deps.Station = func(emit func(connectivity.Event)) connectivity.Station {
		return &station{emit: emit, fail: true}
	}
	rt, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, types.NetFailed, rt.Net)
	assert.Equal(t, PhaseMonitor, rt.Phase)

	waitLog(t, rt, "=== System Ready ===")
	assert.Contains(t, rt.Bridge.LogText(), "#ff0000 [!!] WiFi failed#")
	assert.NotContains(t, rt.Bridge.LogText(), "Syncing time...")
	h.mu.Lock()
	assert.Zero(t, h.queries)
	h.mu.Unlock()
}

func TestRun_NoStationTimesOutGracefully(t *testing.T) {
	h := newHarness(t)
	h.deps.Station = nil
	rt, err := h.run(t)
	require.NoError(t, err)
	assert.Equal(t, types.NetFailed, rt.Net)
}

func TestRun_ServiceAllocFailure(t *testing.T) {
	h := newHarness(t)
	h.deps.NewService = func(config.FTP, types.StorageStatus) (types.FileService, error) {
		return nil, errors.New("out of memory")
	}
	rt, err := h.run(t)
	assert.Equal(t, errcode.NoService, errcode.Of(err))
	assert.Equal(t, PhaseService, rt.Phase)
	assert.Nil(t, rt.Monitor)
	waitLog(t, rt, "#ff0000 [!!] ERROR: FTP alloc failed#")
}

func TestRun_NoDisplay(t *testing.T) {
	h := newHarness(t)
	h.deps.Display = func() (status.Surface, error) { return nil, errors.New("panel not found") }
	rt, err := h.run(t)
	assert.Equal(t, errcode.UINotReady, errcode.Of(err))
	assert.Nil(t, rt.Bridge)
}

func TestRuntime_ApplySettings(t *testing.T) {
	h := newHarness(t)
	rt, err := h.run(t)
	require.NoError(t, err)

	ftp := rt.ApplySettings("bob", "secret", "70000")
	assert.Equal(t, "bob", ftp.User)
	assert.Equal(t, 21, ftp.Port)
	waitLog(t, rt, "Invalid port, keeping 21")
	waitLog(t, rt, "[OK] Settings saved")

	ftp = rt.ApplySettings("bob", "secret", "2121")
	assert.Equal(t, 2121, ftp.Port)
	assert.Equal(t, ftp, rt.Config.FTP)

	rt.Bridge.OnUserToggle(true)
	rt.Toggle.Wait()
	waitLog(t, rt, "User: bob | Port: 2121")
}

// closingStation records Close so shutdown can be checked.
type closingStation struct {
	station
	closes atomic.Int32
}

func (s *closingStation) Close() error {
	s.closes.Add(1)
	return nil
}

func TestRuntime_CloseReleasesStation(t *testing.T) {
	var st *closingStation
	t.Cleanup(func() {
		// runs after the harness has cancelled and closed the runtime
		require.NotNil(t, st)
		assert.Equal(t, int32(1), st.closes.Load())
	})

	h := newHarness(t)
	h.deps.Station = func(emit func(connectivity.Event)) connectivity.Station {
		st = &closingStation{station: station{emit: emit}}
		return st
	}
	rt, err := h.run(t)
	require.NoError(t, err)
	assert.Same(t, st, rt.Station)
	assert.Zero(t, st.closes.Load())
}
