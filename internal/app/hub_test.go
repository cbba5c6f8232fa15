package app

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/core"
)

func TestHubSubscribeRequiresOpen(t *testing.T) {
	h := NewHub(4)
	if _, err := h.Subscribe(); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("Subscribe() on closed hub error = %v, want %v", err, ErrHubClosed)
	}
	h.Open(1)
	if _, err := h.Subscribe(); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub(4)
	h.Open(1)
	a, _ := h.Subscribe()
	b, _ := h.Subscribe()

	res, err := h.Publish(1, core.PeerJoined("10.0.0.2:6000", "bob"))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if res.SendTo != 2 || len(res.Dropped) != 0 {
		t.Fatalf("Publish() = %+v, want 2 sent", res)
	}

	for _, o := range []*Observer{a, b} {
		select {
		case ev := <-o.Events():
			if ev.Type != core.EventPeerJoin {
				t.Errorf("event type = %s, want %s", ev.Type, core.EventPeerJoin)
			}
			var n core.PeerNotice
			if err := json.Unmarshal(ev.Data, &n); err != nil || n.Name != "bob" {
				t.Errorf("event data = %s (%v)", ev.Data, err)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestHubSlowObserverIsolated(t *testing.T) {
	h := NewHub(1)
	h.Open(1)
	slow, _ := h.Subscribe()
	fast, _ := h.Subscribe()

	ev := core.PeerLeft("x:1", "x")
	if _, err := h.Publish(1, ev); err != nil {
		t.Fatal(err)
	}
	<-fast.Events()

	// slow still holds the first event, so only it drops the second.
	res, _ := h.Publish(1, ev)
	if res.SendTo != 1 || len(res.Dropped) != 1 || res.Dropped[0] != slow.ID {
		t.Fatalf("Publish() = %+v, want slow observer dropped only", res)
	}
	select {
	case <-fast.Events():
	default:
		t.Error("fast observer did not get second event")
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub(1)
	h.Open(1)
	_, _ = h.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = h.Publish(1, core.PeerLeft("x:1", "x"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full observer")
	}
}

func TestHubCloseEndsStreams(t *testing.T) {
	h := NewHub(4)
	h.Open(1)
	o, _ := h.Subscribe()

	h.Close(2)
	if _, ok := <-o.Events(); ok {
		t.Error("observer channel still open after Close")
	}
	if h.Len() != 0 {
		t.Errorf("Len() = %d after Close", h.Len())
	}
	if _, err := h.Publish(1, core.PeerLeft("x:1", "x")); !errors.Is(err, ErrStaleGeneration) {
		t.Errorf("Publish() after Close error = %v, want %v", err, ErrStaleGeneration)
	}
	if err := o.TrySend(core.PeerLeft("x:1", "x")); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("TrySend() on closed observer = %v, want %v", err, ErrSinkClosed)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(4)
	h.Open(1)
	o, _ := h.Subscribe()
	h.Unsubscribe(o.ID)
	h.Unsubscribe(o.ID)

	if h.Len() != 0 {
		t.Errorf("Len() = %d, want 0", h.Len())
	}
	res, _ := h.Publish(1, core.PeerLeft("x:1", "x"))
	if res.SendTo != 0 {
		t.Errorf("unsubscribed observer still receives events")
	}
}
