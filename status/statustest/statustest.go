// Package statustest provides in-memory status collaborators for tests.
package statustest

import (
	"strings"
	"sync"

	"ftpdisplay-go/types"
)

// Surface records the last value of every widget.
type Surface struct {
	StatusText  string
	Spinner     bool
	AddressText string
	ClockText   string
	LogText     string
	Scrolls     int
	Checked     bool
	// OnSet, if non-nil, runs inside every setter (the render lock is held).
	OnSet func()
}

func (s *Surface) hook() {
	if s.OnSet != nil {
		s.OnSet()
	}
}

func (s *Surface) SetStatusText(t string)  { s.hook(); s.StatusText = t }
func (s *Surface) SetSpinner(v bool)       { s.hook(); s.Spinner = v }
func (s *Surface) SetAddressText(t string) { s.hook(); s.AddressText = t }
func (s *Surface) SetClockText(t string)   { s.hook(); s.ClockText = t }
func (s *Surface) SetLogText(t string)     { s.hook(); s.LogText = t }
func (s *Surface) ScrollToBottom()         { s.hook(); s.Scrolls++ }
func (s *Surface) SetSwitchChecked(v bool) { s.hook(); s.Checked = v }

// Status is one recorded status update.
type Status struct {
	Text     string
	Activity types.Activity
}

// Sink records every call in order. Safe for concurrent use.
type Sink struct {
	mu        sync.Mutex
	logs      []string
	statuses  []Status
	addresses []string
	switches  []bool
	clears    int
}

func (s *Sink) Log(msg string) {
	s.mu.Lock()
	s.logs = append(s.logs, msg)
	s.mu.Unlock()
}

func (s *Sink) ClearLog() {
	s.mu.Lock()
	s.clears++
	s.logs = nil
	s.mu.Unlock()
}

func (s *Sink) Status(text string, act types.Activity) {
	s.mu.Lock()
	s.statuses = append(s.statuses, Status{Text: text, Activity: act})
	s.mu.Unlock()
}

func (s *Sink) Address(addr string) {
	s.mu.Lock()
	s.addresses = append(s.addresses, addr)
	s.mu.Unlock()
}

func (s *Sink) Switch(on bool) {
	s.mu.Lock()
	s.switches = append(s.switches, on)
	s.mu.Unlock()
}

func (s *Sink) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.logs...)
}

func (s *Sink) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.statuses...)
}

// StatusTexts returns only the label texts, in order.
func (s *Sink) StatusTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st.Text)
	}
	return out
}

func (s *Sink) Addresses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.addresses...)
}

func (s *Sink) Switches() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.switches...)
}

func (s *Sink) Clears() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clears
}

// LastStatus returns the most recent status, or the zero value.
func (s *Sink) LastStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.statuses) == 0 {
		return Status{}
	}
	return s.statuses[len(s.statuses)-1]
}

// Contains reports whether any logged message contains sub.
func (s *Sink) Contains(sub string) bool {
	for _, l := range s.Logs() {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}
