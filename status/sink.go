package status

import "ftpdisplay-go/types"

// Sink is how producers report user-visible progress. Implementations must be safe
// from any goroutine and must not be called with the render lock held.
type Sink interface {
	Log(msg string)
	ClearLog()
	Status(text string, act types.Activity)
	Address(addr string)
	Switch(on bool)
}

// Direct applies updates to a Bridge on the calling goroutine, taking the render
// lock around each setter.
type Direct struct{ B *Bridge }

func (d Direct) Log(msg string) { d.B.AppendLog(msg) }
func (d Direct) ClearLog()      { d.B.ClearLog() }
func (d Direct) Status(text string, act types.Activity) {
	d.B.Render(func() { d.B.SetStatus(text, act) })
}
func (d Direct) Address(addr string) {
	d.B.Render(func() { d.B.SetConnectedAddress(addr) })
}
func (d Direct) Switch(on bool) {
	d.B.Render(func() { d.B.SetToggleChecked(on) })
}

// Discard drops everything. Used before the UI exists.
type Discard struct{}

func (Discard) Log(string)                    {}
func (Discard) ClearLog()                     {}
func (Discard) Status(string, types.Activity) {}
func (Discard) Address(string)                {}
func (Discard) Switch(bool)                   {}
