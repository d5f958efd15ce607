package connectivity

import (
	"errors"
	"log/slog"
	"sync"

	"tinygo.org/x/drivers/netlink"

	"ftpdisplay-go/logfields"
)

// Linker is the part of netlink.Netlinker a station needs.
type Linker interface {
	NetConnect(params *netlink.ConnectParams) error
	NetDisconnect()
	NetNotify(cb func(netlink.Event))
}

// AddrFunc resolves the station's address once the link is up.
type AddrFunc func() (string, error)

// NetlinkStation drives a netlink device and translates its results into
// Manager events. A successful NetConnect is reported as EventGotIP; a failed
// one, or a later EventNetDown, as EventDisconnected.
type NetlinkStation struct {
	link   Linker
	params netlink.ConnectParams
	addr   AddrFunc
	log    *slog.Logger

	mu      sync.Mutex
	handler func(Event)
	closed  bool
	wg      sync.WaitGroup
}

func NewNetlinkStation(link Linker, ssid, passphrase string, addr AddrFunc, logger *slog.Logger) *NetlinkStation {
	return &NetlinkStation{
		link:   link,
		params: netlink.ConnectParams{Ssid: ssid, Passphrase: passphrase},
		addr:   addr,
		log:    logfields.Or(logger).With("component", "netlink"),
	}
}

// Bind routes events to fn and subscribes to link notifications.
func (s *NetlinkStation) Bind(fn func(Event)) {
	s.mu.Lock()
	s.handler = fn
	s.mu.Unlock()
	s.link.NetNotify(func(e netlink.Event) {
		switch e {
		case netlink.EventNetDown:
			s.emit(Event{Kind: EventDisconnected})
		case netlink.EventNetUp:
			s.log.Debug("link up")
		}
	})
}

func (s *NetlinkStation) emit(ev Event) {
	s.mu.Lock()
	fn := s.handler
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// spawn runs fn on a tracked goroutine unless the station is closed.
func (s *NetlinkStation) spawn(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStationClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
	return nil
}

var errStationClosed = errors.New("station closed")

// Start has no radio work of its own; it reports EventStart asynchronously.
func (s *NetlinkStation) Start() error {
	return s.spawn(func() { s.emit(Event{Kind: EventStart}) })
}

// Connect issues NetConnect off the caller's goroutine.
func (s *NetlinkStation) Connect() error {
	p := s.params
	return s.spawn(func() {
		err := s.link.NetConnect(&p)
		if err != nil && !errors.Is(err, netlink.ErrConnected) {
			s.log.Warn("connect failed", logfields.Error(err))
			s.emit(Event{Kind: EventDisconnected})
			return
		}
		addr, aerr := s.resolve()
		if aerr != nil {
			s.log.Warn("address lookup failed", logfields.Error(aerr))
		}
		s.emit(Event{Kind: EventGotIP, Addr: addr})
	})
}

func (s *NetlinkStation) resolve() (string, error) {
	if s.addr == nil {
		return "0.0.0.0", nil
	}
	return s.addr()
}

// Close unbinds the manager, drops the link and waits for in-flight
// attempts. Events raised while closing are discarded.
func (s *NetlinkStation) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.handler = nil
	s.mu.Unlock()
	s.link.NetDisconnect()
	s.wg.Wait()
	return nil
}
