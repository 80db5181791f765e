package signals

import (
	"errors"
	"syscall"
	"testing"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		in        string
		wantSig   syscall.Signal
		wantName  string
		wantError error
	}{
		{in: "SIGTERM", wantSig: syscall.SIGTERM, wantName: "SIGTERM"},
		{in: "TERM", wantSig: syscall.SIGTERM, wantName: "SIGTERM"},
		{in: "sigint", wantSig: syscall.SIGINT, wantName: "SIGINT"},
		{in: "15", wantSig: syscall.SIGTERM, wantName: "SIGTERM"},
		{in: "0", wantSig: 0, wantName: "0"},
		{in: "SIGNOPE", wantError: ErrUnknown},
		{in: "-3", wantError: ErrUnknown},
		{in: "", wantError: ErrUnknown},
	}
	for _, tc := range cases {
		sig, name, err := Lookup(tc.in)
		if tc.wantError != nil {
			if !errors.Is(err, tc.wantError) {
				t.Fatalf("Lookup(%q) error = %v, want %v", tc.in, err, tc.wantError)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Lookup(%q) unexpected error: %v", tc.in, err)
		}
		if sig != tc.wantSig || name != tc.wantName {
			t.Fatalf("Lookup(%q) = %d, %q; want %d, %q", tc.in, sig, name, tc.wantSig, tc.wantName)
		}
	}
}

func TestName(t *testing.T) {
	if got := Name(syscall.SIGTERM); got != "SIGTERM" {
		t.Fatalf("Name(SIGTERM) = %q", got)
	}
}

func TestRelayRejectsBadRegistrations(t *testing.T) {
	relay := NewRelay(func(fn func()) { fn() })
	defer relay.Close()

	if _, err := relay.Listen("SIGKILL", func(Delivery) {}); !errors.Is(err, ErrUnblockable) {
		t.Fatalf("Listen(SIGKILL) error = %v, want ErrUnblockable", err)
	}
	if _, err := relay.Listen("SIGNOPE", func(Delivery) {}); !errors.Is(err, ErrUnknown) {
		t.Fatalf("Listen(SIGNOPE) error = %v, want ErrUnknown", err)
	}
	if _, err := relay.Listen("0", func(Delivery) {}); !errors.Is(err, ErrNotDeliverable) {
		t.Fatalf("Listen(0) error = %v, want ErrNotDeliverable", err)
	}
}
