// Package journal records host lifecycle activity as line-delimited JSON
// entries. The file-backed journaler takes a file lock so that only one
// host instance writes to a given journal path at a time.
package journal

import (
	"encoding/json"
	"time"
)

// Entry kinds, one per observable host surface.
const (
	KindSignal             = "signal"
	KindWarning            = "warning"
	KindBeforeExit         = "before_exit"
	KindExit               = "exit"
	KindFailure            = "failure"
	KindRejectionUnhandled = "rejection_unhandled"
	KindRejectionHandled   = "rejection_handled"
	KindMessage            = "message"
	KindDisconnect         = "disconnect"
	KindGuestStart         = "guest_start"
	KindGuestExit          = "guest_exit"
	KindPolicyReload       = "policy_reload"
)

// Entry is one journaled occurrence.
type Entry struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`
	Data any       `json:"data,omitempty"`
}

// NewEntry stamps an entry with the current time.
func NewEntry(kind string, data any) Entry {
	return Entry{Time: time.Now().UTC(), Kind: kind, Data: data}
}

// Writer describes an entry sink.
type Writer interface {
	Write(Entry) error
}

// SignalData records a delivered signal.
type SignalData struct {
	Name string `json:"name"`
}

// WarningData records an emitted warning.
type WarningData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Traced  bool   `json:"traced,omitempty"`
}

// ExitData records an exit or pre-exit dispatch and its code.
type ExitData struct {
	Code int `json:"code"`
}

// FailureData records an uncaught failure.
type FailureData struct {
	Error string `json:"error"`
}

// RejectionData records an unhandled or late-handled rejection.
type RejectionData struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// MessageData records an inbound IPC message.
type MessageData struct {
	Size    int             `json:"size"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// GuestStartData records a launched guest.
type GuestStartData struct {
	PID     int      `json:"pid"`
	Command []string `json:"command"`
}

// GuestExitData records a finished guest.
type GuestExitData struct {
	PID    int    `json:"pid"`
	Code   int    `json:"code"`
	Signal string `json:"signal,omitempty"`
}

// PolicyReloadData records a warning-policy change.
type PolicyReloadData struct {
	NoWarnings  bool   `json:"noWarnings"`
	Deprecation string `json:"deprecation"`
}
