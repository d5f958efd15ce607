// Package toggle runs user start/stop requests for the file service off the
// render goroutine, admitting at most one request at a time.
package toggle

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ftpdisplay-go/logfields"
	"ftpdisplay-go/metrics"
	"ftpdisplay-go/status"
	"ftpdisplay-go/types"
	"ftpdisplay-go/x/timex"
)

const (
	DefaultSettle = 500 * time.Millisecond
	DefaultPort   = 21
)

type Options struct {
	Service  types.FileService
	Sink     status.Sink
	User     string
	Port     int
	Settle   time.Duration
	Sleep    timex.Sleeper
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

type Controller struct {
	sink   status.Sink
	settle time.Duration
	sleep  timex.Sleeper
	rec    metrics.Recorder
	log    *slog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu   sync.Mutex
	svc  types.FileService
	user string
	port int
}

func New(opts Options) *Controller {
	c := &Controller{
		sink:   opts.Sink,
		settle: opts.Settle,
		sleep:  opts.Sleep,
		rec:    metrics.Or(opts.Recorder),
		log:    logfields.Or(opts.Logger).With("component", "toggle"),
		svc:    opts.Service,
		user:   opts.User,
		port:   opts.Port,
	}
	if c.sink == nil {
		c.sink = status.Discard{}
	}
	if c.settle <= 0 {
		c.settle = DefaultSettle
	}
	if c.sleep == nil {
		c.sleep = timex.Sleep
	}
	if c.port == 0 {
		c.port = DefaultPort
	}
	return c
}

// SetService installs the service once it has been allocated.
func (c *Controller) SetService(svc types.FileService) {
	c.mu.Lock()
	c.svc = svc
	c.mu.Unlock()
}

// SetCredentials updates what the start banner reports.
func (c *Controller) SetCredentials(user string, port int) {
	c.mu.Lock()
	c.user, c.port = user, port
	c.mu.Unlock()
}

// InFlight reports whether a start or stop is still running.
func (c *Controller) InFlight() bool { return c.inFlight.Load() }

// Wait blocks until every accepted request has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// Toggle handles one user request. It never blocks: the service call runs on
// its own goroutine. A request arriving while another is in flight is
// rejected and the switch is put back where it was.
func (c *Controller) Toggle(on bool) bool {
	action := actionName(on)
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug("operation in progress, ignoring toggle", logfields.Action(action))
		c.rec.IncToggle(action, "rejected")
		c.sink.Switch(!on)
		return false
	}

	if on {
		c.sink.Status(status.StatusStarting, types.ActivityBusy)
	} else {
		c.sink.Status(status.StatusStopping, types.ActivityBusy)
	}

	c.wg.Add(1)
	go c.run(on)
	return true
}

func (c *Controller) run(on bool) {
	defer c.wg.Done()
	defer c.inFlight.Store(false)

	action := actionName(on)
	c.mu.Lock()
	svc, user, port := c.svc, c.user, c.port
	c.mu.Unlock()

	if svc == nil {
		c.log.Warn("no service instance", logfields.Action(action))
		c.rec.IncToggle(action, "no_service")
		c.sink.Switch(false)
		c.sink.Status(status.StatusError, types.ActivityIdle)
		return
	}

	if !on {
		c.log.Info("user requested stop")
		svc.Stop()
		c.sink.Log(status.OK("FTP server stopped"))
		c.sink.Status(status.StatusStopped, types.ActivityIdle)
		c.rec.IncToggle(action, "ok")
		return
	}

	c.log.Info("user requested start")
	svc.Start()
	c.sleep(c.settle)

	if !svc.IsEnabled() {
		c.log.Error("service did not start")
		c.sink.Log(status.Fail("FTP failed to start"))
		c.sink.Status(status.StatusError, types.ActivityIdle)
		c.sink.Switch(false)
		c.rec.IncToggle(action, "failed")
		return
	}
	c.sink.Log(status.OK("FTP server started"))
	c.sink.Status(status.StatusReady, types.ActivityBusy)
	c.sink.Log("User: " + user + " | Port: " + strconv.Itoa(port))
	c.rec.IncToggle(action, "ok")
}

func actionName(on bool) string {
	if on {
		return "start"
	}
	return "stop"
}
