package app

import (
	"errors"
	"maps"
	"sync"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrHubClosed    = errors.New("no session running")
	ErrSinkClosed   = errors.New("observer closed")
)

// Observer is one UI client's bounded event queue.
type Observer struct {
	ID   string
	send chan core.Event

	mu     sync.RWMutex
	closed bool
}

func newObserver(buffer int) *Observer {
	return &Observer{
		ID:   uuid.NewString(),
		send: make(chan core.Event, buffer),
	}
}

// Events is closed when the observer is closed.
func (o *Observer) Events() <-chan core.Event { return o.send }

func (o *Observer) TrySend(ev core.Event) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return ErrSinkClosed
	}
	select {
	case o.send <- ev:
	default:
		return ErrBackpressure
	}
	return nil
}

func (o *Observer) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.send)
}

// Hub fans events out to every observer of the running session.
type Hub struct {
	mu        sync.RWMutex
	gen       uint64
	open      bool
	buffer    int
	observers map[string]core.EventSink
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		buffer:    buffer,
		observers: make(map[string]core.EventSink),
	}
}

// Open starts accepting observers and events of gen.
func (h *Hub) Open(gen uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen = gen
	h.open = true
}

// Close ends every observer stream and refuses further events until Open.
func (h *Hub) Close(gen uint64) {
	h.mu.Lock()
	old := h.observers
	h.observers = make(map[string]core.EventSink)
	h.gen = gen
	h.open = false
	h.mu.Unlock()

	for _, o := range old {
		o.Close()
	}
	if len(old) > 0 {
		log.Info().Str("module", "app.hub").Int("observers", len(old)).Msg("closed observer streams")
	}
}

func (h *Hub) Subscribe() (*Observer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return nil, ErrHubClosed
	}
	o := newObserver(h.buffer)
	h.observers[o.ID] = o
	log.Info().Str("module", "app.hub").Str("observer", o.ID).Int("total", len(h.observers)).Msg("observer subscribed")
	return o, nil
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	o, ok := h.observers[id]
	delete(h.observers, id)
	h.mu.Unlock()
	if ok {
		o.Close()
		log.Info().Str("module", "app.hub").Str("observer", id).Msg("observer unsubscribed")
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Publish delivers ev to every observer without blocking. A full observer
// loses this event only.
func (h *Hub) Publish(gen uint64, ev core.Event) (core.PublishResult, error) {
	h.mu.RLock()
	if !h.open || gen != h.gen {
		h.mu.RUnlock()
		return core.PublishResult{}, ErrStaleGeneration
	}
	snapshot := make(map[string]core.EventSink, len(h.observers))
	maps.Copy(snapshot, h.observers)
	h.mu.RUnlock()

	res := core.PublishResult{}
	for id, o := range snapshot {
		if err := o.TrySend(ev); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}
	if len(res.Dropped) > 0 {
		log.Debug().Str("module", "app.hub").Str("event", string(ev.Type)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("observer backpressure")
	}
	return res, nil
}
