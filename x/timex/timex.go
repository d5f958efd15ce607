package timex

import "time"

// StampLayout is the fixed-width wall-clock layout used on screen and in log lines.
const StampLayout = "15:04:05"

// Clock returns the current time. Components take a Clock so tests can pin it.
type Clock func() time.Time

// Now is the default Clock.
func Now() time.Time { return time.Now() }

// Stamp formats t as HH:MM:SS in t's location.
func Stamp(t time.Time) string { return t.Format(StampLayout) }

// Or returns c, or Now when c is nil.
func (c Clock) Or() Clock {
	if c == nil {
		return Now
	}
	return c
}

// Sleeper blocks for d. Injected where a fixed settle delay is part of the contract.
type Sleeper func(d time.Duration)

// Sleep is the default Sleeper.
func Sleep(d time.Duration) { time.Sleep(d) }

// ResetTimer safely stops, drains, and resets a timer.
func ResetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		DrainTimer(t)
	}
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}
