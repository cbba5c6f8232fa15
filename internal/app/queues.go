package app

import (
	"errors"
	"sort"
	"sync"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrQueueFull   = errors.New("frame queue full")
	ErrUnknownPeer = errors.New("no frame queue for peer")
)

// frameQueue is a fixed-capacity FIFO ring of encoded frames.
type frameQueue struct {
	buf  [][]byte
	head int
	size int
}

func newFrameQueue(capacity int) *frameQueue {
	return &frameQueue{buf: make([][]byte, capacity)}
}

func (q *frameQueue) full() bool { return q.size == len(q.buf) }

func (q *frameQueue) push(f []byte) {
	q.buf[(q.head+q.size)%len(q.buf)] = f
	q.size++
}

func (q *frameQueue) pop() ([]byte, bool) {
	if q.size == 0 {
		return nil, false
	}
	f := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return f, true
}

// PushResult tells the caller what happened to a pushed frame.
type PushResult struct {
	Accepted bool
	Evicted  bool
}

// QueueTable holds one bounded queue per known peer.
type QueueTable struct {
	mu       sync.Mutex
	gen      uint64
	capacity int
	policy   QueuePolicy
	queues   map[domain.PeerID]*frameQueue
}

func NewQueueTable(capacity int, policy QueuePolicy) *QueueTable {
	if capacity < 1 {
		capacity = 1
	}
	return &QueueTable{
		capacity: capacity,
		policy:   policy,
		queues:   make(map[domain.PeerID]*frameQueue),
	}
}

func (t *QueueTable) Capacity() int       { return t.capacity }
func (t *QueueTable) Policy() QueuePolicy { return t.policy }

// Reset destroys every queue and accepts writes from gen only.
func (t *QueueTable) Reset(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queues = make(map[domain.PeerID]*frameQueue)
	t.gen = gen
}

// Create makes an empty queue for id. Existing queues are kept.
func (t *QueueTable) Create(gen uint64, id domain.PeerID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return ErrStaleGeneration
	}
	if _, ok := t.queues[id]; !ok {
		t.queues[id] = newFrameQueue(t.capacity)
		log.Debug().Str("module", "app.queues").Str("peer_id", string(id)).Msg("created frame queue")
	}
	return nil
}

func (t *QueueTable) Delete(gen uint64, id domain.PeerID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return ErrStaleGeneration
	}
	delete(t.queues, id)
	return nil
}

// Push enqueues without blocking. When the queue is full the configured
// policy applies: DropIncoming returns ErrQueueFull, EvictOldest discards
// the head and accepts.
func (t *QueueTable) Push(gen uint64, id domain.PeerID, frame []byte) (PushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return PushResult{}, ErrStaleGeneration
	}
	q, ok := t.queues[id]
	if !ok {
		return PushResult{}, ErrUnknownPeer
	}
	var res PushResult
	if q.full() {
		if t.policy == DropIncoming {
			return res, ErrQueueFull
		}
		q.pop()
		res.Evicted = true
	}
	q.push(frame)
	res.Accepted = true
	return res, nil
}

// PoppedFrame is the oldest frame of one peer's queue.
type PoppedFrame struct {
	PeerID domain.PeerID
	Data   []byte
}

// PopEach removes exactly one frame from every non-empty queue.
func (t *QueueTable) PopEach(gen uint64) ([]PoppedFrame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return nil, ErrStaleGeneration
	}
	var out []PoppedFrame
	for id, q := range t.queues {
		if f, ok := q.pop(); ok {
			out = append(out, PoppedFrame{PeerID: id, Data: f})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out, nil
}

func (t *QueueTable) Has(id domain.PeerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.queues[id]
	return ok
}

// Len is the occupancy of id's queue, -1 when it has none.
func (t *QueueTable) Len(id domain.PeerID) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[id]
	if !ok {
		return -1
	}
	return q.size
}

func (t *QueueTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues)
}
