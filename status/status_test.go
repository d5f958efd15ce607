package status

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ftpdisplay-go/logring"
	"ftpdisplay-go/status/statustest"
	"ftpdisplay-go/types"
)

// trackingLock records whether it is held so tests can assert lock discipline.
type trackingLock struct {
	mu   sync.Mutex
	held bool
}

func (l *trackingLock) Lock()   { l.mu.Lock(); l.held = true }
func (l *trackingLock) Unlock() { l.held = false; l.mu.Unlock() }

func fixedClock() time.Time { return time.Date(2024, 1, 2, 12, 34, 56, 0, time.UTC) }

func newBridge(t *testing.T) (*Bridge, *trackingLock, *statustest.Surface) {
	t.Helper()
	lk := &trackingLock{}
	b := New(lk, Options{Budget: logring.DefaultBudget(), Clock: fixedClock})
	s := &statustest.Surface{}
	b.Attach(s)
	return b, lk, s
}

func TestAttach_PaintsInitialState(t *testing.T) {
	_, _, s := newBridge(t)
	assert.Equal(t, StatusDisabled, s.StatusText)
	assert.Equal(t, AddressPending, s.AddressText)
	assert.Equal(t, ClockPending, s.ClockText)
	assert.False(t, s.Checked)
	assert.False(t, s.Spinner)
}

func TestAttach_FlushesBufferedLines(t *testing.T) {
	b := New(&sync.Mutex{}, Options{Clock: fixedClock})
	b.AppendLog("early")
	assert.False(t, b.Ready())

	s := &statustest.Surface{}
	b.Attach(s)
	assert.True(t, b.Ready())
	assert.Equal(t, "[12:34:56] early\n", s.LogText)
}

func TestAppendLog_RepaintsAndScrolls(t *testing.T) {
	b, lk, s := newBridge(t)
	s.OnSet = func() { assert.True(t, lk.held, "surface touched without render lock") }

	b.AppendLog("hello")
	b.AppendLog("world")

	assert.Equal(t, "[12:34:56] hello\n[12:34:56] world\n", s.LogText)
	assert.Equal(t, 3, s.Scrolls) // one from Attach
	assert.Equal(t, 2, b.LogLines())
	assert.False(t, lk.held)
}

func TestClearLog(t *testing.T) {
	b, _, s := newBridge(t)
	b.AppendLog("a")
	b.ClearLog()
	assert.Empty(t, s.LogText)
	assert.Empty(t, b.LogText())
	assert.Equal(t, 0, b.LogLines())
}

func TestSetters_RequireSurface(t *testing.T) {
	b := New(&sync.Mutex{}, Options{})
	require.NotPanics(t, func() {
		b.Render(func() {
			b.SetStatus("x", types.ActivityBusy)
			b.SetConnectedAddress("1.2.3.4")
			b.SetToggleChecked(true)
			b.SetClock(time.Now())
		})
	})
}

func TestDirectSink(t *testing.T) {
	b, lk, s := newBridge(t)
	s.OnSet = func() { assert.True(t, lk.held) }
	d := Direct{B: b}

	d.Status(StatusReady, types.ActivityBusy)
	assert.Equal(t, StatusReady, s.StatusText)
	assert.True(t, s.Spinner)

	d.Status(StatusStopped, types.ActivityIdle)
	assert.False(t, s.Spinner)

	d.Address("192.168.1.20")
	assert.Equal(t, "IP: 192.168.1.20", s.AddressText)

	d.Switch(true)
	assert.True(t, s.Checked)

	d.Log("line")
	assert.Contains(t, s.LogText, "line")
	d.ClearLog()
	assert.Empty(t, s.LogText)
}

func TestSetClock(t *testing.T) {
	b, _, s := newBridge(t)
	b.Render(func() { b.SetClock(fixedClock()) })
	assert.Equal(t, "12:34:56", s.ClockText)
}

func TestOnUserToggle_DispatchesWithoutRenderLock(t *testing.T) {
	b, lk, _ := newBridge(t)
	var got []bool
	b.RegisterToggleHandler(func(on bool) {
		assert.False(t, lk.held)
		got = append(got, on)
	})
	b.OnUserToggle(true)
	b.OnUserToggle(false)
	assert.Equal(t, []bool{true, false}, got)
}

func TestOnUserToggle_NoHandler(t *testing.T) {
	b, _, _ := newBridge(t)
	assert.NotPanics(t, func() { b.OnUserToggle(true) })
}

func TestConcurrentAppendAndRender(t *testing.T) {
	b, _, s := newBridge(t)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.AppendLog(strings.Repeat("x", g+i%20))
				b.Render(func() { b.SetStatus(StatusReady, types.ActivityBusy) })
			}
		}(g)
	}
	wg.Wait()

	var text string
	b.Render(func() { text = s.LogText })
	assert.LessOrEqual(t, len(text), logring.DefaultBudget().Bytes())
	assert.LessOrEqual(t, b.LogLines(), 50)
	assert.Equal(t, b.LogText(), text)
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "#00ff00 [OK] FTP server started#", OK("FTP server started"))
	assert.Equal(t, "#ff0000 [!!] FTP failed to start#", Fail("FTP failed to start"))
	assert.Equal(t, "#ffaa00 [--] FTP: Disabled#", Notice("FTP: Disabled"))
	assert.Equal(t, "#ff8800 [!!] SD Card removed!#", Alert("SD Card removed!"))
	assert.Equal(t, "#00ffff [>>] Sending file...#", Tagged(ColorTransfer, "[>>]", "Sending file..."))
}

func TestActivityFor(t *testing.T) {
	for _, busy := range []string{StatusStarting, StatusStopping, StatusReady, StatusSendingFile, StatusReceivingFile} {
		assert.Equal(t, types.ActivityBusy, ActivityFor(busy), busy)
	}
	for _, idle := range []string{StatusStopped, StatusError, StatusDisabled, StatusClientConnected} {
		assert.Equal(t, types.ActivityIdle, ActivityFor(idle), idle)
	}
}
