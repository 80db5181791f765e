package journal

import (
	"context"
	"io"
	"testing"

	"github.com/Paintersrp/proclet/internal/host"
)

func newQuietProc(t *testing.T) *host.Proc {
	t.Helper()
	return host.New(
		host.WithEnv(host.NewEnvFrom(nil)),
		host.WithStdout(io.Discard),
		host.WithStderr(io.Discard),
		host.WithExitFunc(func(code int) { t.Errorf("unexpected hard exit with code %d", code) }),
	)
}

func TestRecorderJournalsLifecycle(t *testing.T) {
	p := newQuietProc(t)
	ring := NewRing(16)
	rec := NewRecorder(ring, func(err error) { t.Errorf("journal write: %v", err) })
	rec.Attach(p)

	p.Loop().Post(func() {
		if err := p.EmitWarning("TestWarning", "journaled"); err != nil {
			t.Errorf("emit warning: %v", err)
		}
	})

	if code := p.Run(context.Background()); code != 0 {
		t.Fatalf("run exit code = %d, want 0", code)
	}

	rec.Signal("SIGTERM")
	rec.GuestExit(42, 137, "SIGKILL")

	var kinds []string
	for _, e := range ring.Tail(0) {
		kinds = append(kinds, e.Kind)
	}
	want := []string{KindWarning, KindBeforeExit, KindExit, KindSignal, KindGuestExit}
	if len(kinds) != len(want) {
		t.Fatalf("journaled kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kind %d = %q, want %q", i, kinds[i], want[i])
		}
	}
}

func TestRecorderDetachStopsJournaling(t *testing.T) {
	p := newQuietProc(t)
	ring := NewRing(16)
	rec := NewRecorder(ring, nil)
	rec.Attach(p)
	rec.Detach()

	p.Loop().Post(func() {
		p.EmitWarning("TestWarning", "dropped")
	})
	p.Run(context.Background())

	if got := ring.Len(); got != 0 {
		t.Fatalf("journaled %d entries after detach, want 0", got)
	}
}
