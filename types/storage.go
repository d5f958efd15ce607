package types

// ---- Storage ----

// StorageStatus is written by the boot storage phase (mount flags) and by the
// periodic health check (RemovablePresent). Retained on "storage/state".
type StorageStatus struct {
	Internal         bool  `json:"internal"`
	Removable        bool  `json:"removable"`
	RemovablePresent bool  `json:"removable_present"`
	TS               int64 `json:"ts_ms"`
}

// Available reports whether at least one backend is mounted.
func (s StorageStatus) Available() bool { return s.Internal || s.Removable }

// StorageUsage is the optional capacity report for a mounted backend.
type StorageUsage struct {
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"`
}
