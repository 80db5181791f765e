package tui

import (
	"testing"

	"github.com/Paintersrp/proclet/internal/journal"
)

func TestFormatEntryMessage(t *testing.T) {
	tests := []struct {
		name  string
		entry journal.Entry
		want  string
	}{
		{
			name:  "empty payload",
			entry: journal.Entry{Kind: journal.KindDisconnect},
			want:  "",
		},
		{
			name:  "signal",
			entry: journal.Entry{Kind: journal.KindSignal, Data: journal.SignalData{Name: "SIGHUP"}},
			want:  "SIGHUP",
		},
		{
			name:  "warning",
			entry: journal.Entry{Kind: journal.KindWarning, Data: journal.WarningData{Name: "DeprecationWarning", Message: "old API"}},
			want:  "DeprecationWarning: old API",
		},
		{
			name:  "traced warning",
			entry: journal.Entry{Kind: journal.KindWarning, Data: journal.WarningData{Name: "Warning", Message: "careful", Traced: true}},
			want:  "Warning: careful (traced)",
		},
		{
			name:  "exit",
			entry: journal.Entry{Kind: journal.KindExit, Data: journal.ExitData{Code: 5}},
			want:  "code 5",
		},
		{
			name:  "failure",
			entry: journal.Entry{Kind: journal.KindFailure, Data: journal.FailureData{Error: "kaboom"}},
			want:  "kaboom",
		},
		{
			name:  "rejection with reason",
			entry: journal.Entry{Kind: journal.KindRejectionUnhandled, Data: journal.RejectionData{ID: "abc", Reason: "refused"}},
			want:  "refused (abc)",
		},
		{
			name:  "rejection without reason",
			entry: journal.Entry{Kind: journal.KindRejectionHandled, Data: journal.RejectionData{ID: "abc"}},
			want:  "abc",
		},
		{
			name:  "message",
			entry: journal.Entry{Kind: journal.KindMessage, Data: journal.MessageData{Size: 42}},
			want:  "42 bytes",
		},
		{
			name:  "guest start",
			entry: journal.Entry{Kind: journal.KindGuestStart, Data: journal.GuestStartData{PID: 7, Command: []string{"sleep", "1"}}},
			want:  "pid 7: sleep 1",
		},
		{
			name:  "guest exit by code",
			entry: journal.Entry{Kind: journal.KindGuestExit, Data: journal.GuestExitData{PID: 7, Code: 3}},
			want:  "pid 7 exited with code 3",
		},
		{
			name:  "guest exit by signal",
			entry: journal.Entry{Kind: journal.KindGuestExit, Data: journal.GuestExitData{PID: 7, Code: 137, Signal: "SIGKILL"}},
			want:  "pid 7 killed by SIGKILL",
		},
		{
			name:  "policy reload",
			entry: journal.Entry{Kind: journal.KindPolicyReload, Data: journal.PolicyReloadData{NoWarnings: true, Deprecation: "trace"}},
			want:  "deprecation=trace noWarnings=true",
		},
		{
			name:  "decoded map falls back to json",
			entry: journal.Entry{Kind: journal.KindSignal, Data: map[string]any{"name": "SIGUSR1"}},
			want:  `{"name":"SIGUSR1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatEntryMessage(tt.entry); got != tt.want {
				t.Fatalf("formatEntryMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
