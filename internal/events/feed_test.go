package events

import (
	"reflect"
	"testing"
)

func TestFeedEmitsInRegistrationOrder(t *testing.T) {
	feed := NewFeed[int]()
	var got []string
	feed.Subscribe(func(v int) { got = append(got, "a") })
	feed.Subscribe(func(v int) { got = append(got, "b") })
	feed.Subscribe(func(v int) { got = append(got, "c") })

	feed.Emit(1)

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("dispatch order = %v, want %v", got, want)
	}
}

func TestFeedSubscribeOnce(t *testing.T) {
	feed := NewFeed[string]()
	calls := 0
	feed.SubscribeOnce(func(string) { calls++ })

	feed.Emit("x")
	feed.Emit("y")

	if calls != 1 {
		t.Fatalf("once handler ran %d times, want 1", calls)
	}
	if n := feed.Len(); n != 0 {
		t.Fatalf("Len() = %d after once delivery, want 0", n)
	}
}

func TestFeedCloseRemovesHandler(t *testing.T) {
	feed := NewFeed[int]()
	calls := 0
	sub := feed.Subscribe(func(int) { calls++ })

	feed.Emit(1)
	sub.Close()
	sub.Close()
	feed.Emit(2)

	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func TestFeedCloseDuringDispatchSkipsLaterHandler(t *testing.T) {
	feed := NewFeed[int]()
	var got []string
	var second *Subscription[int]
	feed.Subscribe(func(int) {
		got = append(got, "first")
		second.Close()
	})
	second = feed.Subscribe(func(int) { got = append(got, "second") })

	feed.Emit(1)

	if !reflect.DeepEqual(got, []string{"first"}) {
		t.Fatalf("dispatch = %v, want [first]", got)
	}
}

func TestFeedSubscribeDuringDispatchWaitsForNextEmit(t *testing.T) {
	feed := NewFeed[int]()
	var late []int
	feed.Subscribe(func(v int) {
		if v == 1 {
			feed.Subscribe(func(v int) { late = append(late, v) })
		}
	})

	feed.Emit(1)
	if len(late) != 0 {
		t.Fatalf("late handler saw current emission: %v", late)
	}

	feed.Emit(2)
	if !reflect.DeepEqual(late, []int{2}) {
		t.Fatalf("late handler = %v, want [2]", late)
	}
}

func TestFeedLenAndClear(t *testing.T) {
	feed := NewFeed[int]()
	if n := feed.Len(); n != 0 {
		t.Fatalf("Len() = %d, want 0", n)
	}
	feed.Subscribe(func(int) {})
	feed.Subscribe(func(int) {})
	if n := feed.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
	feed.Clear()
	if n := feed.Len(); n != 0 {
		t.Fatalf("Len() = %d after Clear, want 0", n)
	}
}
