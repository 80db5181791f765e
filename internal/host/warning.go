package host

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// DeprecationWarningName tags warnings subject to the deprecation
// policy flags.
const DeprecationWarningName = "DeprecationWarning"

// ErrNilWarning reports an attempt to emit a nil structured warning.
var ErrNilWarning = errors.New("nil warning payload")

// DeprecationMode selects how deprecation warnings are treated.
type DeprecationMode int

const (
	// DeprecationWarn dispatches deprecations like any other warning.
	DeprecationWarn DeprecationMode = iota
	// DeprecationSuppress drops deprecations before dispatch.
	DeprecationSuppress
	// DeprecationThrow converts deprecations into returned errors
	// instead of dispatching them.
	DeprecationThrow
	// DeprecationTrace dispatches deprecations with their origin
	// frames included in the default rendering.
	DeprecationTrace
)

func (m DeprecationMode) String() string {
	switch m {
	case DeprecationWarn:
		return "warn"
	case DeprecationSuppress:
		return "suppress"
	case DeprecationThrow:
		return "throw"
	case DeprecationTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// ParseDeprecationMode resolves the textual policy used by the config
// file and CLI flags.
func ParseDeprecationMode(s string) (DeprecationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return DeprecationWarn, nil
	case "suppress", "off":
		return DeprecationSuppress, nil
	case "throw":
		return DeprecationThrow, nil
	case "trace":
		return DeprecationTrace, nil
	default:
		return DeprecationWarn, fmt.Errorf("unknown deprecation mode %q", s)
	}
}

// WarningPolicy controls default rendering and deprecation handling.
// The zero value renders warnings and treats deprecations normally.
type WarningPolicy struct {
	// NoWarnings disables the default stderr rendering. Listeners
	// still observe every dispatched warning.
	NoWarnings bool
	// Deprecation applies to warnings named DeprecationWarning.
	Deprecation DeprecationMode
}

// WarningRecord is one dispatched warning.
type WarningRecord struct {
	// Name classifies the warning; empty input defaults to "Warning".
	Name string
	// Message is the human-readable text.
	Message string
	// Err holds the originally supplied error for structured
	// warnings, unmodified, so listeners can compare identity.
	Err error
	// Origin lists the capture-site call frames, innermost first.
	Origin []string
	// Traced marks records whose default rendering includes Origin.
	Traced bool
	// Time is the emission time.
	Time time.Time
}

// NamedError lets a structured warning carry its own class name.
type NamedError interface {
	error
	WarningName() string
}

// ThrownWarning is returned by the emitter when the policy converts a
// deprecation into an error.
type ThrownWarning struct {
	Record WarningRecord
}

func (t *ThrownWarning) Error() string {
	return t.Record.Name + ": " + t.Record.Message
}

// EmitWarning dispatches a textual warning to listeners and, unless
// disabled by policy, renders it to stderr. An empty name defaults to
// "Warning". Deprecation policy applies when the name resolves to
// DeprecationWarning.
func (p *Proc) EmitWarning(name, message string) error {
	if name == "" {
		name = "Warning"
	}
	return p.emitWarning(WarningRecord{Name: name, Message: message})
}

// EmitWarningError dispatches err as a structured warning. The record
// carries err itself; listeners observe the same value that was
// passed in. The warning name comes from err when it implements
// NamedError and defaults to "Warning" otherwise.
func (p *Proc) EmitWarningError(err error) error {
	if err == nil {
		return ErrNilWarning
	}
	name := "Warning"
	if named, ok := err.(NamedError); ok && named.WarningName() != "" {
		name = named.WarningName()
	}
	return p.emitWarning(WarningRecord{Name: name, Message: err.Error(), Err: err})
}

// EmitDeprecation dispatches message as a DeprecationWarning.
func (p *Proc) EmitDeprecation(message string) error {
	return p.emitWarning(WarningRecord{Name: DeprecationWarningName, Message: message})
}

// WarnOnce emits the warning only the first time key is seen, and
// reports whether this call dispatched it.
func (p *Proc) WarnOnce(key, name, message string) (bool, error) {
	p.mu.Lock()
	if _, dup := p.warned[key]; dup {
		p.mu.Unlock()
		return false, nil
	}
	p.warned[key] = struct{}{}
	p.mu.Unlock()

	if err := p.EmitWarning(name, message); err != nil {
		return false, err
	}
	return true, nil
}

// SetWarningPolicy replaces the active policy. Safe from any
// goroutine; the config watcher calls this on reload.
func (p *Proc) SetWarningPolicy(policy WarningPolicy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policy = policy
}

// WarningPolicy returns the active policy.
func (p *Proc) WarningPolicy() WarningPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.policy
}

func (p *Proc) emitWarning(rec WarningRecord) error {
	rec.Origin = captureOrigin()
	rec.Time = time.Now()

	policy := p.WarningPolicy()
	if rec.Name == DeprecationWarningName {
		switch policy.Deprecation {
		case DeprecationSuppress:
			return nil
		case DeprecationThrow:
			return &ThrownWarning{Record: rec}
		case DeprecationTrace:
			rec.Traced = true
		}
	}

	p.warningObs.Emit(rec)

	// The default rendering is the no-subscriber action: any OnWarning
	// subscriber takes its place. Count before dispatch so a once-
	// subscription consumed by this very record still counts.
	subscribed := p.warnings.Len() > 0
	p.warnings.Emit(rec)
	if !subscribed && !policy.NoWarnings {
		p.renderWarning(rec)
	}
	return nil
}

func (p *Proc) renderWarning(rec WarningRecord) {
	fmt.Fprintf(p.stdio.err, "(proclet:%d) %s: %s\n", p.pid, rec.Name, rec.Message)
	if rec.Traced {
		for _, frame := range rec.Origin {
			fmt.Fprintf(p.stdio.err, "    at %s\n", frame)
		}
	}
}

// captureOrigin records the emission call site, skipping the emitter's
// own frames.
func captureOrigin() []string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var origin []string
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.Contains(frame.Function, "/internal/host.") {
			origin = append(origin, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		}
		if !more || len(origin) >= 8 {
			break
		}
	}
	return origin
}
