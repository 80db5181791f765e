package spawn

import (
	"context"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"sort"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/proclet/internal/exitcode"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("spawn tests rely on /bin/sh and unix signal semantics")
	}
}

func TestStartRequiresCommand(t *testing.T) {
	if _, err := Start(context.Background(), Spec{}); err == nil {
		t.Fatal("expected an error for an empty command")
	}
}

func TestWaitReportsExitCode(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := Start(ctx, Spec{Command: []string{"/bin/sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	status, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("wait guest: %v", err)
	}
	if status.Code != exitcode.Code(3) {
		t.Fatalf("exit code = %d, want 3", status.Code)
	}
	if status.Signal != "" {
		t.Fatalf("signal = %q, want empty", status.Signal)
	}
	if status.Err != nil {
		t.Fatalf("unexpected wait error: %v", status.Err)
	}
}

func TestCaptureStreamsBothSources(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := Start(ctx, Spec{
		Command: []string{"/bin/sh", "-c", "echo from-stdout; echo from-stderr 1>&2"},
		Capture: true,
	})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	var lines []string
	for entry := range g.Logs() {
		lines = append(lines, entry.Source+": "+entry.Message)
	}
	sort.Strings(lines)

	want := []string{"stderr: from-stderr", "stdout: from-stdout"}
	if len(lines) != len(want) {
		t.Fatalf("captured %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i, line := range want {
		if lines[i] != line {
			t.Fatalf("line %d = %q, want %q", i, lines[i], line)
		}
	}

	status, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("wait guest: %v", err)
	}
	if status.Code != exitcode.OK {
		t.Fatalf("exit code = %d, want 0", status.Code)
	}
}

func TestWaitDecodesTerminatingSignal(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := Start(ctx, Spec{Command: []string{"/bin/sh", "-c", "sleep 30"}})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	if err := g.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("signal guest: %v", err)
	}

	status, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("wait guest: %v", err)
	}
	if status.Code != exitcode.FromSignal(int(syscall.SIGKILL)) {
		t.Fatalf("exit code = %d, want %d", status.Code, exitcode.FromSignal(9))
	}
	if status.Signal != "SIGKILL" {
		t.Fatalf("signal = %q, want SIGKILL", status.Signal)
	}
}

func TestStopDeliversPoliteTermination(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := Start(ctx, Spec{
		Command: []string{"/bin/sh", "-c", "sleep 30"},
		Grace:   5 * time.Second,
	})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	status, err := g.Stop(ctx)
	if err != nil {
		t.Fatalf("stop guest: %v", err)
	}
	if status.Signal != "SIGTERM" {
		t.Fatalf("signal = %q, want SIGTERM", status.Signal)
	}
	if status.Code != exitcode.FromSignal(int(syscall.SIGTERM)) {
		t.Fatalf("exit code = %d, want %d", status.Code, exitcode.FromSignal(15))
	}
}

func TestStopEscalatesWhenGuestIgnoresTermination(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	g, err := Start(ctx, Spec{
		Command: []string{"/bin/sh", "-c", `trap '' TERM; while :; do sleep 0.05; done`},
		Grace:   200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	status, err := g.Stop(ctx)
	if err != nil {
		t.Fatalf("stop guest: %v", err)
	}
	if status.Signal != "SIGKILL" {
		t.Fatalf("signal = %q, want SIGKILL after escalation", status.Signal)
	}
}

func TestEnvReachesGuest(t *testing.T) {
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := filepath.Join(t.TempDir(), "sentinel")
	env := append(os.Environ(), "SPAWN_TEST_SENTINEL=carried", "SPAWN_TEST_OUT="+out)

	g, err := Start(ctx, Spec{
		Command: []string{"/bin/sh", "-c", `printf '%s' "$SPAWN_TEST_SENTINEL" > "$SPAWN_TEST_OUT"`},
		Env:     env,
	})
	if err != nil {
		t.Fatalf("start guest: %v", err)
	}

	status, err := g.Wait(ctx)
	if err != nil {
		t.Fatalf("wait guest: %v", err)
	}
	if status.Code != exitcode.OK {
		t.Fatalf("exit code = %d, want 0", status.Code)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read sentinel: %v", err)
	}
	if string(data) != "carried" {
		t.Fatalf("sentinel = %q, want %q", data, "carried")
	}
}
