package cli

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/Paintersrp/proclet/internal/signals"
)

func TestKillProbeReportsLiveProcess(t *testing.T) {
	out, _, err := runCommand(t, "kill", "-s", "0", strconv.Itoa(os.Getpid()))
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !strings.Contains(out, "exists") {
		t.Fatalf("unexpected probe output: %q", out)
	}
}

func TestKillProbeMissingProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix pid reuse behavior")
	}
	// A just-reaped child pid is about as dead as a pid can be.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	pid := cmd.Process.Pid

	_, _, err := runCommand(t, "kill", "-s", "0", strconv.Itoa(pid))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("expected a missing-process error, got %v", err)
	}
}

func TestKillRejectsInvalidPid(t *testing.T) {
	_, _, err := runCommand(t, "kill", "not-a-pid")
	var usage *usageError
	if !errors.As(err, &usage) {
		t.Fatalf("expected a usage error, got %v", err)
	}
}

func TestKillRejectsUnknownSignal(t *testing.T) {
	_, _, err := runCommand(t, "kill", "-s", "SIGNOPE", "1")
	if !errors.Is(err, signals.ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestKillSendsNamedSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("arbitrary signal delivery is unix only")
	}
	// SIGURG is ignored by default, so aiming it at ourselves is safe.
	out, _, err := runCommand(t, "kill", "-s", "URG", strconv.Itoa(os.Getpid()))
	if err != nil {
		t.Fatalf("kill failed: %v", err)
	}
	if !strings.Contains(out, "sent SIGURG to process") {
		t.Fatalf("unexpected output: %q", out)
	}
}
