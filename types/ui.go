package types

// ---- Render-thread events (published on "ui/...") ----

// Activity drives the busy indicator next to the status label.
type Activity uint8

const (
	ActivityIdle Activity = iota
	ActivityBusy
)

func (a Activity) String() string {
	if a == ActivityBusy {
		return "busy"
	}
	return "idle"
}

type LogEvent struct {
	Text string `json:"text"`
}

type ClearLogEvent struct{}

type StatusEvent struct {
	Text     string   `json:"text"`
	Activity Activity `json:"activity"`
}

type AddressEvent struct {
	Addr string `json:"addr"`
}

type SwitchEvent struct {
	On bool `json:"on"`
}

// MonitorConfig is the retained payload on "config/monitor".
type MonitorConfig struct {
	TickMs            int `json:"tick_ms" yaml:"tick_ms"`
	StorageCheckEvery int `json:"storage_check_every" yaml:"storage_check_every"`
}
