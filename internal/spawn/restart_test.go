package spawn

import (
	"context"
	"testing"
	"time"
)

func TestPolicyNormalizeDefaults(t *testing.T) {
	p := Policy{}.Normalize()
	if p.Min != defaultBackoffMin {
		t.Fatalf("min = %v, want %v", p.Min, defaultBackoffMin)
	}
	if p.Max != defaultBackoffMax {
		t.Fatalf("max = %v, want %v", p.Max, defaultBackoffMax)
	}
	if p.Factor != defaultBackoffFactor {
		t.Fatalf("factor = %v, want %v", p.Factor, defaultBackoffFactor)
	}

	p = Policy{Min: time.Minute, Max: time.Second}.Normalize()
	if p.Max != time.Minute {
		t.Fatalf("inverted bounds: max = %v, want %v", p.Max, time.Minute)
	}
}

func TestBackoffDelaysGrowToCap(t *testing.T) {
	b := NewBackoff(Policy{
		MaxRetries: -1,
		Min:        100 * time.Millisecond,
		Max:        400 * time.Millisecond,
		Factor:     2,
	})

	var slept []time.Duration
	b.jitter = func(d time.Duration) time.Duration { return d }
	b.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	for i := 0; i < 4; i++ {
		if err := b.Sleep(context.Background()); err != nil {
			t.Fatalf("sleep %d: %v", i, err)
		}
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond,
	}
	if len(slept) != len(want) {
		t.Fatalf("paced %d delays, want %d", len(slept), len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestBackoffRespectsRetryLimit(t *testing.T) {
	b := NewBackoff(Policy{MaxRetries: 2, Min: time.Millisecond, Max: time.Millisecond, Factor: 2})
	b.jitter = func(d time.Duration) time.Duration { return d }
	b.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatalf("restart %d should be allowed", i)
		}
		if err := b.Sleep(context.Background()); err != nil {
			t.Fatalf("sleep %d: %v", i, err)
		}
	}
	if b.Allow() {
		t.Fatal("third restart should be denied")
	}
	if b.Restarts() != 2 {
		t.Fatalf("restarts = %d, want 2", b.Restarts())
	}

	unlimited := NewBackoff(Policy{MaxRetries: -1})
	if !unlimited.Allow() {
		t.Fatal("negative retry limit should always allow restarts")
	}
}

func TestBackoffSleepHonorsContext(t *testing.T) {
	b := NewBackoff(Policy{MaxRetries: -1, Min: time.Hour, Max: time.Hour, Factor: 2})
	b.jitter = func(d time.Duration) time.Duration { return d }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Sleep(ctx); err != context.Canceled {
		t.Fatalf("sleep error = %v, want context.Canceled", err)
	}
}
