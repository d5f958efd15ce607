package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBootID   = "boot_id"
	KeyPhase    = "phase"
	KeyBackend  = "backend"
	KeyMount    = "mount_point"
	KeyState    = "state"
	KeyRetry    = "retry"
	KeyOutcome  = "outcome"
	KeyAddr     = "addr"
	KeyStatus   = "status"
	KeyAction   = "action"
	KeyHeapUsed = "heap_in_use"
	KeyServer   = "server"
	KeyError    = "error"
)

func BootID(id string) slog.Attr    { return slog.String(KeyBootID, id) }
func Phase(name string) slog.Attr   { return slog.String(KeyPhase, name) }
func Backend(name string) slog.Attr { return slog.String(KeyBackend, name) }
func Mount(path string) slog.Attr   { return slog.String(KeyMount, path) }
func State(s string) slog.Attr      { return slog.String(KeyState, s) }
func Retry(n int) slog.Attr         { return slog.Int(KeyRetry, n) }
func Outcome(o string) slog.Attr    { return slog.String(KeyOutcome, o) }
func Addr(a string) slog.Attr       { return slog.String(KeyAddr, a) }
func Status(s string) slog.Attr     { return slog.String(KeyStatus, s) }
func Action(a string) slog.Attr     { return slog.String(KeyAction, a) }
func HeapUsed(b uint64) slog.Attr   { return slog.Uint64(KeyHeapUsed, b) }
func Server(s string) slog.Attr     { return slog.String(KeyServer, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// Or returns l, or slog.Default() when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
