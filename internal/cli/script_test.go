package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestScriptExitCodePropagates(t *testing.T) {
	t.Chdir(t.TempDir())
	codes := swapExit(t)
	path := writeScript(t, "exit.lua", `proc.exit(4)`)

	_, _, err := runCommand(t, "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(*codes) != 1 || (*codes)[0] != 4 {
		t.Fatalf("exit codes = %v, want [4]", *codes)
	}
}

func TestScriptCleanRunExitsZero(t *testing.T) {
	t.Chdir(t.TempDir())
	codes := swapExit(t)
	path := writeScript(t, "noop.lua", `local _ = proc.pid()`)

	_, _, err := runCommand(t, "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(*codes) != 0 {
		t.Fatalf("clean run must not call the exit seam, got %v", *codes)
	}
}

func TestScriptWarningsRenderToStderr(t *testing.T) {
	t.Chdir(t.TempDir())
	swapExit(t)
	path := writeScript(t, "warn.lua", `proc.warn("the old flag is going away", "FlagWarning")`)

	_, stderrOut, err := runCommand(t, "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if !strings.Contains(stderrOut, "FlagWarning: the old flag is going away") {
		t.Fatalf("expected the warning on stderr:\n%s", stderrOut)
	}
}

func TestScriptNoWarningsFlagSilencesOutput(t *testing.T) {
	t.Chdir(t.TempDir())
	swapExit(t)
	path := writeScript(t, "warn.lua", `proc.warn("quiet please", "FlagWarning")`)

	_, stderrOut, err := runCommand(t, "--no-warnings", "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if strings.Contains(stderrOut, "quiet please") {
		t.Fatalf("warning rendered despite --no-warnings:\n%s", stderrOut)
	}
}

func TestScriptSeesEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RUN_MODE", "")
	codes := swapExit(t)
	path := writeScript(t, "env.lua", `
if proc.env.get("RUN_MODE") == "canary" then
  proc.exit(0)
end
proc.exit(1)
`)

	_, _, err := runCommand(t, "script", "-e", "RUN_MODE=canary", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(*codes) != 0 {
		t.Fatalf("expected a clean exit, got %v", *codes)
	}

	_, _, err = runCommand(t, "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(*codes) != 1 || (*codes)[0] != 1 {
		t.Fatalf("exit codes = %v, want [1] without the override", *codes)
	}
}

func TestScriptThrowDeprecationFails(t *testing.T) {
	t.Chdir(t.TempDir())
	codes := swapExit(t)
	path := writeScript(t, "deprecate.lua", `proc.deprecate("ancient api")`)

	_, stderrOut, err := runCommand(t, "--throw-deprecation", "script", path)
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if len(*codes) != 1 || (*codes)[0] != 1 {
		t.Fatalf("exit codes = %v, want [1] for a thrown deprecation", *codes)
	}
	if !strings.Contains(stderrOut, "ancient api") {
		t.Fatalf("expected the failure report on stderr:\n%s", stderrOut)
	}
}
