package metrics

import (
	"encoding/json"

	"github.com/Paintersrp/proclet/internal/host"
)

// Attach wires the registry's instruments to the host and returns a
// detach function. Warning, failure, and rejection counts come through
// the observer taps so instrumentation never displaces a default
// action. Signal deliveries are deliberately absent: registering a
// signal listener suppresses the default signal action, so relay owners
// report deliveries through AddSignalRelayed.
func Attach(p *host.Proc) func() {
	SetPhase(p.Phase().String())

	warningSub := p.ObserveWarnings(func(rec host.WarningRecord) {
		AddWarning(rec.Name)
	})
	exitSub := p.OnExit(func(host.ExitEvent) {
		SetPhase("exited")
	})
	failureSub := p.ObserveFailures(func(host.Failure) {
		IncrementFailure()
	})
	unhandledSub := p.ObserveUnhandledRejections(func(host.Rejection) {
		IncrementUnhandledRejection()
	})
	handledSub := p.OnRejectionHandled(func(host.Rejection) {
		IncrementRejectionHandled()
	})
	messageSub := p.OnMessage(func(json.RawMessage) {
		IncrementMessageReceived()
	})

	return func() {
		warningSub.Close()
		exitSub.Close()
		failureSub.Close()
		unhandledSub.Close()
		handledSub.Close()
		messageSub.Close()
	}
}
