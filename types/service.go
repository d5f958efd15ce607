package types

// ---- File-transfer service (external collaborator) ----

// ServiceState is the coarse lifecycle state reported by the file-transfer engine.
type ServiceState int

const (
	ServiceDisabled ServiceState = iota
	ServiceReady
	ServiceClientConnected
	ServiceSendingFile
	ServiceReceivingFile
	ServiceTransferComplete
)

// ServiceStateNone marks "nothing observed yet"; it never matches a reported state.
const ServiceStateNone ServiceState = -1

func (s ServiceState) String() string {
	switch s {
	case ServiceDisabled:
		return "disabled"
	case ServiceReady:
		return "ready"
	case ServiceClientConnected:
		return "client_connected"
	case ServiceSendingFile:
		return "sending_file"
	case ServiceReceivingFile:
		return "receiving_file"
	case ServiceTransferComplete:
		return "transfer_complete"
	case ServiceStateNone:
		return "none"
	}
	return "unknown"
}

// FileService is the black-box file-transfer engine. Its methods are safe to call
// from any goroutine; Start and Stop may block.
type FileService interface {
	Start()
	Stop()
	IsEnabled() bool
	State() ServiceState
	// RegisterLogCallback installs fn; the service calls it from its own worker.
	RegisterLogCallback(fn func(msg string))
}

// ServiceSnapshot is the retained value on "ftp/state".
type ServiceSnapshot struct {
	State   ServiceState `json:"state"`
	Enabled bool         `json:"enabled"`
	TS      int64        `json:"ts_ms"`
}
