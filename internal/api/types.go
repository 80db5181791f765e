package api

import (
	stdcontext "context"
	"errors"
	"time"

	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/journal"
)

var (
	// ErrJournalDisabled is returned by event queries when the host runs
	// without an attached journal ring.
	ErrJournalDisabled = errors.New("journal disabled")
	// ErrHostStopped is returned once the host loop has exited.
	ErrHostStopped = errors.New("host stopped")
	// ErrInvalidArgument marks malformed request parameters.
	ErrInvalidArgument = errors.New("invalid argument")
)

// GuestReport describes the supervised child process, when one exists.
type GuestReport struct {
	PID       int       `json:"pid"`
	Command   []string  `json:"command"`
	StartedAt time.Time `json:"startedAt"`
	Restarts  int       `json:"restarts"`
}

// StatusReport aggregates host-wide status information.
type StatusReport struct {
	Host        host.Status  `json:"host"`
	Guest       *GuestReport `json:"guest,omitempty"`
	Version     string       `json:"version"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// EventsReport carries a journal tail.
type EventsReport struct {
	Count  int             `json:"count"`
	Events []journal.Entry `json:"events"`
}

// Controller exposes host observations required by control servers.
type Controller interface {
	Status(stdcontext.Context) (*StatusReport, error)
	Events(ctx stdcontext.Context, n int) (*EventsReport, error)
}
