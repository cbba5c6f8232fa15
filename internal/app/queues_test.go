package app

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dkeye/Huddle/internal/domain"
)

func TestQueueDropIncoming(t *testing.T) {
	q := NewQueueTable(3, DropIncoming)
	q.Reset(1)
	id := domain.PeerID("p:1")
	if err := q.Create(1, id); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := q.Push(1, id, []byte{byte(i)}); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	res, err := q.Push(1, id, []byte{9})
	if !errors.Is(err, ErrQueueFull) || res.Accepted {
		t.Fatalf("Push() on full queue = %+v, %v, want rejected with %v", res, err, ErrQueueFull)
	}
	if q.Len(id) != 3 {
		t.Errorf("Len() = %d, want 3", q.Len(id))
	}

	// Oldest frame comes out first; the rejected frame never appears.
	for want := 0; want < 3; want++ {
		frames, _ := q.PopEach(1)
		if len(frames) != 1 || frames[0].Data[0] != byte(want) {
			t.Fatalf("PopEach() = %+v, want frame %d", frames, want)
		}
	}
	if frames, _ := q.PopEach(1); len(frames) != 0 {
		t.Errorf("PopEach() on empty queue = %+v", frames)
	}
}

func TestQueueEvictOldest(t *testing.T) {
	q := NewQueueTable(2, EvictOldest)
	q.Reset(1)
	id := domain.PeerID("p:1")
	_ = q.Create(1, id)

	_, _ = q.Push(1, id, []byte{1})
	_, _ = q.Push(1, id, []byte{2})
	res, err := q.Push(1, id, []byte{3})
	if err != nil || !res.Accepted || !res.Evicted {
		t.Fatalf("Push() on full queue = %+v, %v, want accepted and evicted", res, err)
	}

	var got []byte
	for {
		frames, _ := q.PopEach(1)
		if len(frames) == 0 {
			break
		}
		got = append(got, frames[0].Data[0])
	}
	if string(got) != string([]byte{2, 3}) {
		t.Errorf("drained %v, want [2 3]", got)
	}
}

func TestQueuePopEachTakesOnePerPeer(t *testing.T) {
	q := NewQueueTable(10, DropIncoming)
	q.Reset(1)
	for _, id := range []domain.PeerID{"a:1", "b:1", "c:1"} {
		_ = q.Create(1, id)
	}
	_, _ = q.Push(1, "a:1", []byte("a1"))
	_, _ = q.Push(1, "a:1", []byte("a2"))
	_, _ = q.Push(1, "b:1", []byte("b1"))

	frames, err := q.PopEach(1)
	if err != nil {
		t.Fatalf("PopEach() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("PopEach() returned %d frames, want 2", len(frames))
	}
	if string(frames[0].Data) != "a1" || string(frames[1].Data) != "b1" {
		t.Errorf("PopEach() = %q %q", frames[0].Data, frames[1].Data)
	}
	if q.Len("a:1") != 1 {
		t.Errorf("a queue Len() = %d, want 1", q.Len("a:1"))
	}
}

func TestQueueUnknownAndStale(t *testing.T) {
	q := NewQueueTable(2, DropIncoming)
	q.Reset(5)

	if _, err := q.Push(5, "ghost:1", []byte{1}); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("Push() unknown peer error = %v, want %v", err, ErrUnknownPeer)
	}
	if err := q.Create(4, "a:1"); !errors.Is(err, ErrStaleGeneration) {
		t.Errorf("Create() stale error = %v, want %v", err, ErrStaleGeneration)
	}
	if q.Has("a:1") {
		t.Error("stale Create() made a queue")
	}
	if q.Len("a:1") != -1 {
		t.Errorf("Len() of missing queue = %d, want -1", q.Len("a:1"))
	}
}

func TestQueueBoundUnderSustainedLoad(t *testing.T) {
	for _, policy := range []QueuePolicy{DropIncoming, EvictOldest} {
		t.Run(policy.String(), func(t *testing.T) {
			const capacity = 10
			q := NewQueueTable(capacity, policy)
			q.Reset(1)
			peers := make([]domain.PeerID, 4)
			for i := range peers {
				peers[i] = domain.PeerID(fmt.Sprintf("10.0.0.%d:5000", i+1))
				_ = q.Create(1, peers[i])
			}

			var wg sync.WaitGroup
			for _, id := range peers {
				wg.Add(1)
				go func(id domain.PeerID) {
					defer wg.Done()
					for i := 0; i < 2000; i++ {
						_, _ = q.Push(1, id, []byte{byte(i)})
						if n := q.Len(id); n > capacity {
							t.Errorf("Len(%s) = %d exceeds %d", id, n, capacity)
							return
						}
					}
				}(id)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					_, _ = q.PopEach(1)
				}
			}()
			wg.Wait()

			for _, id := range peers {
				if n := q.Len(id); n > capacity {
					t.Errorf("final Len(%s) = %d exceeds %d", id, n, capacity)
				}
			}
		})
	}
}

func TestParseQueuePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    QueuePolicy
		wantErr bool
	}{
		{"", DropIncoming, false},
		{"drop_incoming", DropIncoming, false},
		{"evict_oldest", EvictOldest, false},
		{"lifo", DropIncoming, true},
	}
	for _, tt := range tests {
		got, err := ParseQueuePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseQueuePolicy(%q) = %v, %v", tt.in, got, err)
		}
	}
}
