package types

// ---- Connectivity ----

// NetOutcome is the result of one connectivity phase.
type NetOutcome string

const (
	NetPending   NetOutcome = "pending"
	NetConnected NetOutcome = "connected"
	NetFailed    NetOutcome = "failed"
	NetTimedOut  NetOutcome = "timed_out"
)

// NetState is the retained value on "net/state".
type NetState struct {
	Outcome NetOutcome `json:"outcome"`
	Addr    string     `json:"addr,omitempty"`
	Retries int        `json:"retries"`
	TS      int64      `json:"ts_ms"`
}
