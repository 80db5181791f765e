package sched

import (
	"reflect"
	"testing"
	"time"
)

func TestLoopRunsPostedTasksInOrder(t *testing.T) {
	loop := New()
	var got []string
	loop.Post(func() { got = append(got, "a") })
	loop.Post(func() { got = append(got, "b") })
	loop.Post(func() { got = append(got, "c") })

	loop.Run(nil)

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("task order = %v, want %v", got, want)
	}
}

func TestLoopMidTurnPostLandsInNextTurn(t *testing.T) {
	loop := New()
	turns := map[string]uint64{}
	loop.Post(func() {
		turns["first"] = loop.Turn()
		loop.Post(func() { turns["second"] = loop.Turn() })
	})

	loop.Run(nil)

	if turns["second"] != turns["first"]+1 {
		t.Fatalf("second task ran in turn %d, want %d", turns["second"], turns["first"]+1)
	}
}

func TestLoopHoldKeepsLoopAlive(t *testing.T) {
	loop := New()
	release := loop.Hold()
	ran := false
	go func() {
		time.Sleep(10 * time.Millisecond)
		loop.Post(func() { ran = true })
		release()
	}()

	done := make(chan struct{})
	go func() {
		loop.Run(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain after hold release")
	}
	if !ran {
		t.Fatal("task posted while held never ran")
	}
}

func TestLoopIdleMayScheduleMoreWork(t *testing.T) {
	loop := New()
	idleCalls := 0
	ran := false
	loop.Post(func() {})

	loop.Run(func() {
		idleCalls++
		if idleCalls == 1 {
			loop.Post(func() { ran = true })
		}
	})

	if !ran {
		t.Fatal("work scheduled from idle never ran")
	}
	if idleCalls != 2 {
		t.Fatalf("idle ran %d times, want 2", idleCalls)
	}
}

func TestLoopStopSkipsRemainingTasks(t *testing.T) {
	loop := New()
	ranLater := false
	loop.Post(func() { loop.Stop() })
	loop.Post(func() { ranLater = true })

	loop.Run(nil)

	if ranLater {
		t.Fatal("task queued behind Stop still ran")
	}
}

func TestLoopTerminatePanicStopsCleanly(t *testing.T) {
	loop := New()
	ranLater := false
	loop.Post(func() { panic(Terminate{}) })
	loop.Post(func() { ranLater = true })

	loop.Run(nil)

	if ranLater {
		t.Fatal("task queued behind a terminate still ran")
	}
}

func TestLoopTrapObservesPanicAndContinues(t *testing.T) {
	loop := New()
	var trapped any
	loop.SetTrap(func(v any, stack []byte) {
		trapped = v
		if len(stack) == 0 {
			t.Error("trap received empty stack")
		}
	})
	recovered := false
	loop.Post(func() { panic("boom") })
	loop.Post(func() { recovered = true })

	loop.Run(nil)

	if trapped != "boom" {
		t.Fatalf("trap saw %v, want boom", trapped)
	}
	if !recovered {
		t.Fatal("loop did not continue after trapped panic")
	}
}

func TestLoopTrapMayTerminate(t *testing.T) {
	loop := New()
	loop.SetTrap(func(v any, stack []byte) { panic(Terminate{}) })
	ranLater := false
	loop.Post(func() { panic("fatal") })
	loop.Post(func() { ranLater = true })

	loop.Run(nil)

	if ranLater {
		t.Fatal("task ran after trap requested termination")
	}
}

func TestLoopAfterDeliversAndHolds(t *testing.T) {
	loop := New()
	ran := false
	loop.After(5*time.Millisecond, func() { ran = true })

	done := make(chan struct{})
	go func() {
		loop.Run(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not drain after timer fired")
	}
	if !ran {
		t.Fatal("timer callback never ran")
	}
}

func TestLoopAfterCancelReleasesHold(t *testing.T) {
	loop := New()
	cancel := loop.After(time.Hour, func() { t.Error("cancelled timer fired") })
	cancel()

	done := make(chan struct{})
	go func() {
		loop.Run(nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled timer still held the loop open")
	}
}
