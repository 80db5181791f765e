package tui

import (
	"testing"
	"time"

	"github.com/Paintersrp/proclet/internal/journal"
)

func TestUIApplyEntryAggregatesKinds(t *testing.T) {
	ui := newTestUI(t)

	base := time.Now()
	ui.applyEntryLocked(journal.Entry{Time: base, Kind: journal.KindSignal, Data: journal.SignalData{Name: "SIGHUP"}})
	ui.applyEntryLocked(journal.Entry{Time: base.Add(5 * time.Millisecond), Kind: journal.KindSignal, Data: journal.SignalData{Name: "SIGUSR1"}})
	ui.applyEntryLocked(journal.Entry{Time: base.Add(10 * time.Millisecond), Kind: journal.KindWarning, Data: journal.WarningData{Name: "Warning", Message: "careful"}})

	state := ui.kinds[journal.KindSignal]
	if state == nil {
		t.Fatalf("expected signal state to be created")
	}
	if state.count != 2 {
		t.Fatalf("expected signal count 2, got %d", state.count)
	}
	if !state.firstSeen.Equal(base) {
		t.Fatalf("expected first seen preserved, got %v", state.firstSeen)
	}
	if !state.lastSeen.Equal(base.Add(5 * time.Millisecond)) {
		t.Fatalf("expected last seen updated, got %v", state.lastSeen)
	}
	if state.message != "SIGUSR1" {
		t.Fatalf("expected latest message, got %q", state.message)
	}
	if len(state.entries) != 2 {
		t.Fatalf("expected 2 retained entries, got %d", len(state.entries))
	}

	if got := ui.kinds[journal.KindWarning].count; got != 1 {
		t.Fatalf("expected warning count 1, got %d", got)
	}
}

func TestUIApplyEntryTrimsRetention(t *testing.T) {
	ui := newTestUI(t)
	ui.maxLogs = 3

	for i := 0; i < 5; i++ {
		ui.applyEntryLocked(journal.Entry{Kind: journal.KindMessage, Data: journal.MessageData{Size: i}})
	}

	state := ui.kinds[journal.KindMessage]
	if state.count != 5 {
		t.Fatalf("expected count 5, got %d", state.count)
	}
	if len(state.entries) != 3 {
		t.Fatalf("expected retention of 3 entries, got %d", len(state.entries))
	}
	first, ok := state.entries[0].Data.(journal.MessageData)
	if !ok {
		t.Fatalf("unexpected payload type %T", state.entries[0].Data)
	}
	if first.Size != 2 {
		t.Fatalf("expected oldest retained entry to be size 2, got %d", first.Size)
	}
}

func TestUIApplyEntryStampsMissingTime(t *testing.T) {
	ui := newTestUI(t)

	ui.applyEntryLocked(journal.Entry{Kind: journal.KindExit, Data: journal.ExitData{Code: 0}})

	state := ui.kinds[journal.KindExit]
	if state.firstSeen.IsZero() || state.lastSeen.IsZero() {
		t.Fatalf("expected zero entry time to be backfilled")
	}
}
