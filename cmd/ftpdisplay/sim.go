package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tinygo.org/x/drivers/netlink"
	"tinygo.org/x/drivers/touch"

	"ftpdisplay-go/display"
	"ftpdisplay-go/services/config"
	"ftpdisplay-go/types"
)

// ---- WiFi ----

// simLink is a netlink device whose first attempts fail.
type simLink struct {
	mode   string
	flakes int

	mu       sync.Mutex
	attempts int
	notify   func(netlink.Event)
	quit     chan struct{}
	once     sync.Once
}

var _ netlink.Netlinker = (*simLink)(nil)

func newSimLink(mode string, flakes int) *simLink {
	return &simLink{mode: mode, flakes: flakes, quit: make(chan struct{})}
}

func (l *simLink) NetConnect(p *netlink.ConnectParams) error {
	l.mu.Lock()
	l.attempts++
	n := l.attempts
	l.mu.Unlock()

	switch l.mode {
	case "fail":
		time.Sleep(20 * time.Millisecond)
		return netlink.ErrAuthFailure
	case "silent":
		<-l.quit // the radio never answers
		return netlink.ErrConnectTimeout
	}
	if p.Ssid == "" {
		p.Ssid = "sim"
	}
	time.Sleep(100 * time.Millisecond)
	if n <= l.flakes {
		return netlink.ErrConnectFailed
	}
	return nil
}

func (l *simLink) NetDisconnect() {
	l.once.Do(func() { close(l.quit) })
	l.mu.Lock()
	cb := l.notify
	l.mu.Unlock()
	if cb != nil {
		cb(netlink.EventNetDown)
	}
}

func (l *simLink) NetNotify(cb func(netlink.Event)) {
	l.mu.Lock()
	l.notify = cb
	l.mu.Unlock()
}

func (l *simLink) GetHardwareAddr() (net.HardwareAddr, error) {
	return net.HardwareAddr{0x02, 0x00, 0x5e, 0x10, 0x00, 0x01}, nil
}

func (l *simLink) Addr() (string, error) { return "192.168.4.17", nil }

// ---- touch ----

// tapper presses the centre of r once, after the delay.
type tapper struct {
	at   time.Time
	x, y int
	done bool
	held int
}

func newTapper(r display.Rect, after time.Duration) touch.Pointer {
	if after <= 0 {
		return &tapper{done: true}
	}
	return &tapper{at: time.Now().Add(after), x: int(r.X0+r.X1) / 2, y: int(r.Y0+r.Y1) / 2}
}

func (t *tapper) ReadTouchPoint() touch.Point {
	if t.done || time.Now().Before(t.at) {
		return touch.Point{}
	}
	t.held++
	if t.held > 3 {
		t.done = true
		return touch.Point{}
	}
	return touch.Point{X: t.x, Y: t.y, Z: 100}
}

// ---- file service ----

type simService struct {
	cfg     config.FTP
	root    string
	refuse  bool
	clients bool
	log     *slog.Logger

	mu      sync.Mutex
	enabled bool
	state   types.ServiceState
	logf    func(string)
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newSimService(cfg config.FTP, root string, refuse, clients bool, log *slog.Logger) *simService {
	return &simService{cfg: cfg, root: root, refuse: refuse, clients: clients, log: log.With("component", "simftp")}
}

func (s *simService) Start() {
	s.mu.Lock()
	if s.enabled || s.refuse {
		s.mu.Unlock()
		return
	}
	s.enabled = true
	s.state = types.ServiceReady
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.emit(fmt.Sprintf("Listening on port %d", s.cfg.Port))
	if s.clients {
		s.wg.Add(1)
		go s.sessions(ctx)
	}
}

func (s *simService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.enabled = false
	s.state = types.ServiceDisabled
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *simService) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *simService) State() types.ServiceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *simService) RegisterLogCallback(fn func(string)) {
	s.mu.Lock()
	s.logf = fn
	s.mu.Unlock()
}

func (s *simService) emit(msg string) {
	s.mu.Lock()
	fn := s.logf
	s.mu.Unlock()
	s.log.Info(msg)
	if fn != nil {
		fn(msg)
	}
}

func (s *simService) set(st types.ServiceState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// sessions cycles through a client upload until cancelled.
func (s *simService) sessions(ctx context.Context) {
	defer s.wg.Done()
	steps := []types.ServiceState{types.ServiceClientConnected, types.ServiceReceivingFile, types.ServiceTransferComplete, types.ServiceReady}
	for n := 1; ; n++ {
		for _, st := range steps {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			s.set(st)
			if st == types.ServiceReceivingFile {
				name := filepath.Join(s.root, fmt.Sprintf("upload-%03d.txt", n))
				if err := os.WriteFile(name, []byte(time.Now().Format(time.RFC3339)+"\n"), 0o644); err != nil {
					s.emit("write failed: " + err.Error())
				} else {
					s.emit(s.cfg.User + " stored " + filepath.Base(name))
				}
			}
		}
	}
}
