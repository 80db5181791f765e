package cli

import (
	stdcontext "context"
	"fmt"
	"time"

	"github.com/Paintersrp/proclet/internal/api"
)

// ControlAPI exposes host observation for the HTTP control plane.
type ControlAPI struct {
	ctx *context
}

// NewControlAPI constructs a ControlAPI wrapper around the shared CLI context.
func NewControlAPI(ctx *context) *ControlAPI {
	if ctx == nil {
		return nil
	}
	return &ControlAPI{ctx: ctx}
}

// Status returns the current host lifecycle snapshot.
func (apiCtrl *ControlAPI) Status(ctx stdcontext.Context) (*api.StatusReport, error) {
	if apiCtrl == nil || apiCtrl.ctx == nil {
		return nil, fmt.Errorf("%w", api.ErrHostStopped)
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	proc := apiCtrl.ctx.currentProc()
	if proc == nil {
		return nil, fmt.Errorf("%w for status", api.ErrHostStopped)
	}

	var version string
	if m, _, err := apiCtrl.ctx.loadManifest(); err == nil && m != nil {
		version = m.Version
	}

	return &api.StatusReport{
		Host:        proc.Status(),
		Guest:       apiCtrl.ctx.currentGuest(),
		Version:     version,
		GeneratedAt: time.Now(),
	}, nil
}

// Events returns the newest journal entries, oldest first.
func (apiCtrl *ControlAPI) Events(ctx stdcontext.Context, n int) (*api.EventsReport, error) {
	if apiCtrl == nil || apiCtrl.ctx == nil {
		return nil, fmt.Errorf("%w", api.ErrHostStopped)
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	ring := apiCtrl.ctx.journalRing()
	if ring == nil {
		return nil, fmt.Errorf("%w for events", api.ErrJournalDisabled)
	}
	events := ring.Tail(n)
	return &api.EventsReport{Count: len(events), Events: events}, nil
}

// Ensure interface compliance at compile time.
var _ api.Controller = (*ControlAPI)(nil)
