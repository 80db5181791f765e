package metrics_test

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/proclet/internal/host"
	"github.com/Paintersrp/proclet/internal/metrics"
)

func scrape(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}
	return rec.Body.String()
}

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo()
	metrics.AddWarning("MetricsTestWarning")
	metrics.AddSignalRelayed("SIGUSR2")
	metrics.ObserveGuestExit(0, "")
	metrics.ObserveGuestExit(137, "SIGKILL")

	body := scrape(t)

	warningLine := `proclet_warnings_total{name="MetricsTestWarning"} 1`
	if !strings.Contains(body, warningLine) {
		t.Fatalf("expected warning metric line %q in body:\n%s", warningLine, body)
	}

	signalLine := `proclet_signals_relayed_total{signal="SIGUSR2"} 1`
	if !strings.Contains(body, signalLine) {
		t.Fatalf("expected signal metric line %q in body:\n%s", signalLine, body)
	}

	for _, class := range []string{"ok", "signal"} {
		exitLine := fmt.Sprintf(`proclet_guest_exits_total{class="%s"} 1`, class)
		if !strings.Contains(body, exitLine) {
			t.Fatalf("expected guest exit metric line %q in body:\n%s", exitLine, body)
		}
	}

	if !strings.Contains(body, "proclet_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}

func TestPhaseGaugeIsOneHot(t *testing.T) {
	metrics.SetPhase("draining")

	body := scrape(t)
	if !strings.Contains(body, `proclet_phase{phase="draining"} 1`) {
		t.Fatalf("expected draining phase set in body:\n%s", body)
	}
	if !strings.Contains(body, `proclet_phase{phase="running"} 0`) {
		t.Fatalf("expected running phase cleared in body:\n%s", body)
	}
}

func TestAttachCountsHostActivity(t *testing.T) {
	p := host.New(
		host.WithEnv(host.NewEnvFrom(nil)),
		host.WithStdout(io.Discard),
		host.WithStderr(io.Discard),
		host.WithExitFunc(func(code int) { t.Errorf("unexpected hard exit with code %d", code) }),
	)
	detach := metrics.Attach(p)
	defer detach()

	p.Loop().Post(func() {
		if err := p.EmitWarning("AttachTestWarning", "counted"); err != nil {
			t.Errorf("emit warning: %v", err)
		}
	})
	if code := p.Run(context.Background()); code != 0 {
		t.Fatalf("run exit code = %d, want 0", code)
	}

	body := scrape(t)
	if !strings.Contains(body, `proclet_warnings_total{name="AttachTestWarning"} 1`) {
		t.Fatalf("expected attached warning counter in body:\n%s", body)
	}
	if !strings.Contains(body, `proclet_phase{phase="exited"} 1`) {
		t.Fatalf("expected exited phase after run in body:\n%s", body)
	}
}
