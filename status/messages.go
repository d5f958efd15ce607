package status

import (
	"ftpdisplay-go/logring"
	"ftpdisplay-go/types"
)

// Recolour tags used in log lines.
const (
	ColorOK       = "00ff00"
	ColorFail     = "ff0000"
	ColorNotice   = "ffaa00"
	ColorAlert    = "ff8800"
	ColorTransfer = "00ffff"
)

// Status label texts.
const (
	StatusDisabled        = "Disabled"
	StatusReady           = "Ready"
	StatusClientConnected = "Client Connected"
	StatusSendingFile     = "Sending File"
	StatusReceivingFile   = "Receiving File"
	StatusStarting        = "Starting..."
	StatusStopping        = "Stopping..."
	StatusStopped         = "Stopped"
	StatusError           = "Error"
	StatusOffline         = "Offline"
	StatusNoStorage       = "No Storage"
)

// ActivityFor returns the busy-indicator state for a status label.
// The indicator shows while the service is starting, stopping, serving, or moving a file.
func ActivityFor(text string) types.Activity {
	switch text {
	case StatusStarting, StatusStopping, StatusReady, StatusSendingFile, StatusReceivingFile:
		return types.ActivityBusy
	}
	return types.ActivityIdle
}

func OK(text string) string     { return logring.Colorize(ColorOK, "[OK] "+text) }
func Fail(text string) string   { return logring.Colorize(ColorFail, "[!!] "+text) }
func Notice(text string) string { return logring.Colorize(ColorNotice, "[--] "+text) }
func Alert(text string) string  { return logring.Colorize(ColorAlert, "[!!] "+text) }

// Tagged builds a coloured line with an arbitrary marker, e.g. "[>>]".
func Tagged(color, marker, text string) string {
	return logring.Colorize(color, marker+" "+text)
}
