package mailbox

import (
	"sync"
	"testing"
)

func TestTakeEmptiesSlot(t *testing.T) {
	box := New()

	box.Post("owner-a", ChannelSiren, "start")

	payload, ok := box.Take("owner-a", ChannelSiren)
	if !ok {
		t.Fatalf("expected a pending payload")
	}
	if payload != "start" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	if _, ok := box.Take("owner-a", ChannelSiren); ok {
		t.Fatalf("slot should be empty after take")
	}
}

func TestSecondPostReplacesFirst(t *testing.T) {
	box := New()

	box.Post("owner-a", ChannelPostAlarm, "first")
	box.Post("owner-a", ChannelPostAlarm, "second")

	payload, ok := box.Take("owner-a", ChannelPostAlarm)
	if !ok {
		t.Fatalf("expected a pending payload")
	}
	if payload != "second" {
		t.Fatalf("expected the later post to win, got %v", payload)
	}
}

func TestSlotsAreIsolatedPerOwnerAndChannel(t *testing.T) {
	box := New()

	box.Post("owner-a", ChannelSiren, "for-a")
	box.Post("owner-b", ChannelSiren, "for-b")
	box.Post("owner-a", ChannelPostAlarm, "alarm-a")

	if payload, _ := box.Take("owner-b", ChannelSiren); payload != "for-b" {
		t.Fatalf("owner-b got wrong payload: %v", payload)
	}
	if payload, _ := box.Take("owner-a", ChannelSiren); payload != "for-a" {
		t.Fatalf("owner-a got wrong payload: %v", payload)
	}
	if payload, _ := box.Take("owner-a", ChannelPostAlarm); payload != "alarm-a" {
		t.Fatalf("owner-a alarm channel got wrong payload: %v", payload)
	}
}

func TestConcurrentTakesObservePayloadOnce(t *testing.T) {
	box := New()
	box.Post("owner-a", ChannelSiren, "only-once")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan any, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if payload, ok := box.Take("owner-a", ChannelSiren); ok {
				results <- payload
			}
		}()
	}
	wg.Wait()
	close(results)

	var seen int
	for payload := range results {
		seen++
		if payload != "only-once" {
			t.Fatalf("unexpected payload: %v", payload)
		}
	}
	if seen != 1 {
		t.Fatalf("payload observed %d times, want exactly once", seen)
	}
}
