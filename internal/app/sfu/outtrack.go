package sfu

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

var (
	ErrBackpressure = errors.New("subscriber send buffer full")
	ErrTrackClosed  = errors.New("subscriber closed")
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDelete
)

// OutTrack is one remote subscriber connected to the local publisher.
type OutTrack struct {
	ID     string
	Prefix string

	send  chan []byte
	state atomic.Int32 // Zero by default (TrackStateOk)

	mu     sync.RWMutex
	closed bool
}

func NewOutTrack(prefix string, buffer int) *OutTrack {
	if buffer < 1 {
		buffer = 1
	}
	return &OutTrack{
		ID:     uuid.NewString(),
		Prefix: prefix,
		send:   make(chan []byte, buffer),
	}
}

// Wants reports whether the subscription prefix matches topic.
func (ot *OutTrack) Wants(topic string) bool {
	return strings.HasPrefix(topic, ot.Prefix)
}

// TrySend queues msg without blocking.
func (ot *OutTrack) TrySend(msg []byte) error {
	ot.mu.RLock()
	defer ot.mu.RUnlock()
	if ot.closed {
		return ErrTrackClosed
	}
	select {
	case ot.send <- msg:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close ends the send stream; the write pump then closes the connection.
func (ot *OutTrack) Close() {
	ot.mu.Lock()
	defer ot.mu.Unlock()
	if ot.closed {
		return
	}
	ot.closed = true
	ot.MarkDelete()
	close(ot.send)
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
