package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Paintersrp/proclet/internal/spawn"
)

func TestEncodeLogEventInfersLevel(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{name: "errorToken", message: "[ERROR] failed to start", expected: "error"},
		{name: "warnToken", message: "WARN guest requires attention", expected: "warn"},
		{name: "infoToken", message: "info: guest ready", expected: "info"},
		{name: "noTokenDefaults", message: "guest started", expected: "info"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			var errBuf bytes.Buffer

			EncodeLogEvent(json.NewEncoder(&out), &errBuf, 100, spawn.Log{Message: tc.message})

			if errBuf.Len() != 0 {
				t.Fatalf("unexpected stderr output: %s", errBuf.String())
			}

			var record LogRecord
			if err := json.Unmarshal(out.Bytes(), &record); err != nil {
				t.Fatalf("failed to unmarshal log record: %v", err)
			}

			if record.Level != tc.expected {
				t.Fatalf("expected level %q, got %q", tc.expected, record.Level)
			}
			if record.PID != 100 {
				t.Fatalf("expected pid 100, got %d", record.PID)
			}
			if record.Timestamp.IsZero() {
				t.Fatalf("expected backfilled timestamp")
			}
		})
	}
}

func TestNewLogRecordDefaultsSource(t *testing.T) {
	record := NewLogRecord(1, spawn.Log{Message: "plain"})
	if record.Source != spawn.LogSourceStdout {
		t.Fatalf("expected stdout source default, got %q", record.Source)
	}

	record = NewLogRecord(1, spawn.Log{Source: spawn.LogSourceStderr, Message: "plain"})
	if record.Source != spawn.LogSourceStderr {
		t.Fatalf("expected stderr source preserved, got %q", record.Source)
	}
}

func TestNewLogRecordRedactsSecrets(t *testing.T) {
	log := spawn.Log{
		Message: `sending ${API_TOKEN} AWS_SECRET_ACCESS_KEY="super-secret"`,
	}

	record := NewLogRecord(1, log)

	if strings.Contains(record.Message, "${API_TOKEN}") {
		t.Fatalf("expected template placeholder to be redacted, got %q", record.Message)
	}
	if !strings.Contains(record.Message, "${[redacted]}") {
		t.Fatalf("expected template placeholder marker, got %q", record.Message)
	}
	if strings.Contains(record.Message, "super-secret") {
		t.Fatalf("expected secret value to be redacted, got %q", record.Message)
	}
	if !strings.Contains(record.Message, `AWS_SECRET_ACCESS_KEY="[redacted]"`) {
		t.Fatalf("expected known secret key redacted, got %q", record.Message)
	}
}

func TestSecretKeyMatchesSensitiveNames(t *testing.T) {
	sensitive := []string{"DB_PASSWORD", "api_token", "AWS_ACCESS_KEY_ID", "ClientSecret", "SSH_PRIVATE_KEY"}
	for _, name := range sensitive {
		if !SecretKey(name) {
			t.Fatalf("expected %q to be treated as sensitive", name)
		}
	}

	plain := []string{"PATH", "HOME", "LANG", "EDITOR"}
	for _, name := range plain {
		if SecretKey(name) {
			t.Fatalf("expected %q to be treated as plain", name)
		}
	}
}

func TestRedactValueMasksOnlySensitiveKeys(t *testing.T) {
	if got := RedactValue("DB_PASSWORD", "hunter2"); got != "[redacted]" {
		t.Fatalf("expected masked value, got %q", got)
	}
	if got := RedactValue("PATH", "/usr/bin"); got != "/usr/bin" {
		t.Fatalf("expected value passed through, got %q", got)
	}
}
