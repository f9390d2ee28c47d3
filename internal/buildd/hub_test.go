package buildd

import (
	"fmt"
	"testing"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

func TestHub_SubscribeReplaysAndFollows(t *testing.T) {
	h := NewHub()
	h.Open("b-1")

	h.Publish("b-1", types.BuildLogEntry{Type: types.LogEntryStdout, Line: "early 1"})
	h.Publish("b-1", types.BuildLogEntry{Type: types.LogEntryStdout, Line: "early 2"})

	ch, cancel, ok := h.Subscribe("b-1")
	if !ok {
		t.Fatal("expected subscription to active build")
	}
	defer cancel()

	h.Publish("b-1", types.BuildLogEntry{Type: types.LogEntryStdout, Line: "live 3"})
	h.Close("b-1")

	var lines []string
	for entry := range ch {
		lines = append(lines, entry.Line)
	}

	want := []string{"early 1", "early 2", "live 3"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(lines), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("entry %d: expected %q, got %q", i, want[i], lines[i])
		}
	}
}

func TestHub_SubscribeUnknownBuild(t *testing.T) {
	h := NewHub()
	if _, _, ok := h.Subscribe("nope"); ok {
		t.Fatal("expected no subscription for unknown build")
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	h := NewHub()
	h.Open("b-1")

	ch, cancel, ok := h.Subscribe("b-1")
	if !ok {
		t.Fatal("expected subscription")
	}
	cancel()

	// Publishing after cancel must not panic or deliver.
	h.Publish("b-1", types.BuildLogEntry{Type: types.LogEntryStdout, Line: "late"})

	if _, open := <-ch; open {
		t.Error("expected channel closed after cancel")
	}
	h.Close("b-1")
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	h.Open("b-1")

	ch, cancel, ok := h.Subscribe("b-1")
	if !ok {
		t.Fatal("expected subscription")
	}
	defer cancel()

	// Fill the channel buffer without draining; the hub must keep
	// accepting entries and eventually drop the subscriber.
	for i := 0; i < 2000; i++ {
		h.Publish("b-1", types.BuildLogEntry{Type: types.LogEntryStdout, Line: fmt.Sprintf("line %d", i)})
	}
	h.Close("b-1")

	count := 0
	for range ch {
		count++
	}
	if count == 0 {
		t.Error("expected some entries before the subscriber was dropped")
	}
	if count >= 2000 {
		t.Errorf("expected the slow subscriber to be dropped, got all %d entries", count)
	}
}
