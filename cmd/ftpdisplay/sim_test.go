package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/netlink"

	"ftpdisplay-go/display"
	"ftpdisplay-go/services/config"
	"ftpdisplay-go/types"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSimLink_FlakesThenConnects(t *testing.T) {
	l := newSimLink("ok", 2)
	p := &netlink.ConnectParams{Ssid: "lab"}
	assert.ErrorIs(t, l.NetConnect(p), netlink.ErrConnectFailed)
	assert.ErrorIs(t, l.NetConnect(p), netlink.ErrConnectFailed)
	assert.NoError(t, l.NetConnect(p))
}

func TestSimLink_FailMode(t *testing.T) {
	l := newSimLink("fail", 0)
	assert.ErrorIs(t, l.NetConnect(&netlink.ConnectParams{}), netlink.ErrAuthFailure)
}

func TestSimLink_SilentUnblocksOnDisconnect(t *testing.T) {
	l := newSimLink("silent", 0)
	var events []netlink.Event
	l.NetNotify(func(e netlink.Event) { events = append(events, e) })

	errc := make(chan error, 1)
	go func() { errc <- l.NetConnect(&netlink.ConnectParams{}) }()
	l.NetDisconnect()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, netlink.ErrConnectTimeout)
	case <-time.After(time.Second):
		t.Fatal("connect did not return")
	}
	assert.Equal(t, []netlink.Event{netlink.EventNetDown}, events)
}

func TestTapper_PressesOnceAfterDelay(t *testing.T) {
	tp := newTapper(display.Rect{X0: 10, Y0: 20, X1: 30, Y1: 40}, time.Millisecond)
	assert.Zero(t, tp.ReadTouchPoint().Z)

	time.Sleep(5 * time.Millisecond)
	pt := tp.ReadTouchPoint()
	assert.Equal(t, 20, pt.X)
	assert.Equal(t, 30, pt.Y)
	assert.NotZero(t, pt.Z)

	for range 5 {
		tp.ReadTouchPoint()
	}
	assert.Zero(t, tp.ReadTouchPoint().Z)
}

func TestTapper_Disabled(t *testing.T) {
	assert.Zero(t, newTapper(display.Rect{X1: 5, Y1: 5}, 0).ReadTouchPoint().Z)
}

func TestSimService_Lifecycle(t *testing.T) {
	s := newSimService(config.FTP{User: "esp32", Port: 21}, t.TempDir(), false, false, quiet())
	var lines []string
	s.RegisterLogCallback(func(m string) { lines = append(lines, m) })

	s.Start()
	assert.True(t, s.IsEnabled())
	assert.Equal(t, types.ServiceReady, s.State())
	assert.Equal(t, []string{"Listening on port 21"}, lines)

	s.Stop()
	assert.False(t, s.IsEnabled())
	assert.Equal(t, types.ServiceDisabled, s.State())
}

func TestSimService_Refuses(t *testing.T) {
	s := newSimService(config.FTP{Port: 21}, t.TempDir(), true, false, quiet())
	s.Start()
	assert.False(t, s.IsEnabled())
}

func TestBackends_CreatesCard(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Storage.Internal = filepath.Join(dir, "data")
	cfg.Storage.Removable = filepath.Join(dir, "sdcard")

	in, rm := backends(cfg, &CLI{SimCard: true})
	require.NotNil(t, in)
	require.NotNil(t, rm)
	_, err := os.Stat(cfg.Storage.Removable)
	assert.NoError(t, err)
}

func TestSplitSettings(t *testing.T) {
	u, p, port := splitSettings("bob:pa:ss:2121")
	assert.Equal(t, "bob", u)
	assert.Equal(t, "pa", p)
	assert.Equal(t, "ss:2121", port)

	u, p, port = splitSettings("alice")
	assert.Equal(t, "alice", u)
	assert.Empty(t, p)
	assert.Empty(t, port)
}
