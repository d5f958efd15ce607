// Package timesync keeps a wall-clock offset from SNTP servers and renders
// local time in the configured zone.
package timesync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/go-co-op/gocron/v2"

	"ftpdisplay-go/errcode"
	"ftpdisplay-go/logfields"
	"ftpdisplay-go/status"
	"ftpdisplay-go/x/timex"
)

const (
	DefaultServer  = "pool.ntp.org"
	DefaultTimeout = 5 * time.Second
)

// Querier asks one server for the local clock's offset.
type Querier func(server string, timeout time.Duration) (time.Duration, error)

// NTPQuery is the production Querier.
func NTPQuery(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

type Options struct {
	Servers  []string
	Timezone string
	Timeout  time.Duration
	// Resync is the period of background re-synchronisation; zero disables it.
	Resync time.Duration
	Query  Querier
	Sink   status.Sink
	Clock  timex.Clock
	Logger *slog.Logger
}

type Service struct {
	servers []string
	timeout time.Duration
	resync  time.Duration
	query   Querier
	sink    status.Sink
	base    timex.Clock
	log     *slog.Logger

	mu     sync.Mutex
	loc    *time.Location
	offset time.Duration
	synced bool
	sched  gocron.Scheduler
	wg     sync.WaitGroup
}

// New resolves the zone; an unknown zone falls back to UTC with a warning.
func New(opts Options) *Service {
	s := &Service{
		servers: opts.Servers,
		timeout: opts.Timeout,
		resync:  opts.Resync,
		query:   opts.Query,
		sink:    opts.Sink,
		base:    opts.Clock.Or(),
		log:     logfields.Or(opts.Logger).With("component", "timesync"),
		loc:     time.UTC,
	}
	if len(s.servers) == 0 {
		s.servers = []string{DefaultServer}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.query == nil {
		s.query = NTPQuery
	}
	if s.sink == nil {
		s.sink = status.Discard{}
	}
	if opts.Timezone != "" {
		loc, err := time.LoadLocation(opts.Timezone)
		if err != nil {
			s.log.Warn("unknown timezone, using UTC", slog.String("tz", opts.Timezone), logfields.Error(err))
		} else {
			s.loc = loc
		}
	}
	return s
}

// Sync queries servers in order until one answers.
func (s *Service) Sync(ctx context.Context) error {
	var errs []error
	for _, srv := range s.servers {
		if err := ctx.Err(); err != nil {
			return err
		}
		off, err := s.query(srv, s.timeout)
		if err != nil {
			s.log.Warn("sntp query failed", logfields.Server(srv), logfields.Error(err))
			errs = append(errs, err)
			continue
		}
		s.mu.Lock()
		s.offset = off
		s.synced = true
		s.mu.Unlock()
		s.log.Info("time synchronized", logfields.Server(srv), slog.Duration("offset", off))
		s.sink.Log("Time synchronized")
		return nil
	}
	return &errcode.E{C: errcode.TimeSync, Op: "timesync.Sync", Err: errors.Join(errs...)}
}

// Start runs the first sync in the background and schedules resyncs.
// It returns without waiting for the network.
func (s *Service) Start(ctx context.Context) error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Sync(ctx)
	}()

	if s.resync <= 0 {
		return nil
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(s.loc))
	if err != nil {
		return errcode.Wrap(errcode.Error, "timesync.Start", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(s.resync),
		gocron.NewTask(func() { _ = s.Sync(ctx) }),
		gocron.WithName("sntp-resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return errcode.Wrap(errcode.Error, "timesync.Start", err)
	}
	sched.Start()

	s.mu.Lock()
	s.sched = sched
	s.mu.Unlock()
	return nil
}

// Stop cancels scheduled resyncs and waits for the initial sync.
func (s *Service) Stop() error {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	var err error
	if sched != nil {
		err = sched.Shutdown()
	}
	s.wg.Wait()
	return err
}

// Now returns corrected local time.
func (s *Service) Now() time.Time {
	s.mu.Lock()
	off, loc := s.offset, s.loc
	s.mu.Unlock()
	return s.base().Add(off).In(loc)
}

// Clock exposes Now as a timex.Clock.
func (s *Service) Clock() timex.Clock { return s.Now }

// Synced reports whether any server has answered.
func (s *Service) Synced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced
}

// Location returns the display zone.
func (s *Service) Location() *time.Location { return s.loc }
