package journal

import (
	"encoding/json"

	"github.com/Paintersrp/proclet/internal/host"
)

// Recorder bridges a host's observable surfaces into a journal Writer.
// Write failures are reported through the error callback and never
// interrupt dispatch.
type Recorder struct {
	w       Writer
	onError func(error)
	closers []func()
}

// NewRecorder creates a recorder that writes to w. onError may be nil.
func NewRecorder(w Writer, onError func(error)) *Recorder {
	if onError == nil {
		onError = func(error) {}
	}
	return &Recorder{w: w, onError: onError}
}

// Attach wires the recorder to the host. Warning, failure, and
// unhandled-rejection records come through the observer taps so the
// recorder never counts as a subscriber and never displaces a default
// action. Signal deliveries are deliberately absent: registering a
// signal listener suppresses the default signal action, so the owner
// of each listener reports deliveries through Signal instead.
func (r *Recorder) Attach(p *host.Proc) {
	warnings := p.ObserveWarnings(func(rec host.WarningRecord) {
		r.record(KindWarning, WarningData{Name: rec.Name, Message: rec.Message, Traced: rec.Traced})
	})
	beforeExit := p.OnBeforeExit(func(ev host.BeforeExitEvent) {
		r.record(KindBeforeExit, ExitData{Code: int(ev.Code)})
	})
	exit := p.OnExit(func(ev host.ExitEvent) {
		r.record(KindExit, ExitData{Code: int(ev.Code)})
	})
	failures := p.ObserveFailures(func(f host.Failure) {
		r.record(KindFailure, FailureData{Error: f.Err.Error()})
	})
	unhandled := p.ObserveUnhandledRejections(func(rej host.Rejection) {
		r.record(KindRejectionUnhandled, rejectionData(rej))
	})
	handled := p.OnRejectionHandled(func(rej host.Rejection) {
		r.record(KindRejectionHandled, rejectionData(rej))
	})
	messages := p.OnMessage(func(m json.RawMessage) {
		r.record(KindMessage, MessageData{Size: len(m), Payload: m})
	})
	disconnects := p.OnDisconnect(func() {
		r.record(KindDisconnect, nil)
	})

	r.closers = append(r.closers,
		warnings.Close,
		beforeExit.Close,
		exit.Close,
		failures.Close,
		unhandled.Close,
		handled.Close,
		messages.Close,
		disconnects.Close,
	)
}

// Detach removes every subscription installed by Attach.
func (r *Recorder) Detach() {
	for _, close := range r.closers {
		close()
	}
	r.closers = nil
}

// Signal journals a signal delivery observed by a caller-owned listener.
func (r *Recorder) Signal(name string) {
	r.record(KindSignal, SignalData{Name: name})
}

// GuestStart journals a launched guest.
func (r *Recorder) GuestStart(pid int, command []string) {
	r.record(KindGuestStart, GuestStartData{PID: pid, Command: command})
}

// GuestExit journals a finished guest.
func (r *Recorder) GuestExit(pid, code int, signal string) {
	r.record(KindGuestExit, GuestExitData{PID: pid, Code: code, Signal: signal})
}

// PolicyReload journals a warning-policy change.
func (r *Recorder) PolicyReload(noWarnings bool, deprecation string) {
	r.record(KindPolicyReload, PolicyReloadData{NoWarnings: noWarnings, Deprecation: deprecation})
}

func (r *Recorder) record(kind string, data any) {
	if err := r.w.Write(NewEntry(kind, data)); err != nil {
		r.onError(err)
	}
}

func rejectionData(rej host.Rejection) RejectionData {
	data := RejectionData{ID: rej.ID.String()}
	if rej.Reason != nil {
		data.Reason = rej.Reason.Error()
	}
	return data
}
