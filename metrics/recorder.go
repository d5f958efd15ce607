package metrics

// Recorder defines observability hooks for the status pipeline and boot orchestration.
// Implementations may forward to Prometheus; NoopRecorder is the default when metrics
// are not configured (and the only option on MCU builds).
type Recorder interface {
	IncLogAppend()
	AddLogEvicted(n int)
	IncLogTruncated()
	IncWiFiRetry()
	IncWiFiOutcome(outcome string) // connected|failed|timed_out
	IncServiceTransition(state string)
	IncToggle(action string, result string) // action: start|stop; result: ok|failed|rejected|no_service
	IncStorageMount(backend string, ok bool)
	SetRemovablePresent(present bool)
	IncBootPhase(phase string, result string) // result: ok|degraded|fatal
	AddUIEventsDropped(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncLogAppend()                {}
func (NoopRecorder) AddLogEvicted(int)            {}
func (NoopRecorder) IncLogTruncated()             {}
func (NoopRecorder) IncWiFiRetry()                {}
func (NoopRecorder) IncWiFiOutcome(string)        {}
func (NoopRecorder) IncServiceTransition(string)  {}
func (NoopRecorder) IncToggle(string, string)     {}
func (NoopRecorder) IncStorageMount(string, bool) {}
func (NoopRecorder) SetRemovablePresent(bool)     {}
func (NoopRecorder) IncBootPhase(string, string)  {}
func (NoopRecorder) AddUIEventsDropped(int)       {}

// Or returns r, or a NoopRecorder when r is nil.
func Or(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
