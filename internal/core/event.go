package core

import (
	"encoding/json"

	"github.com/dkeye/Huddle/internal/domain"
)

type EventType string

const (
	EventPeerJoin    EventType = "peer_join"
	EventPeerLeave   EventType = "peer_leave"
	EventVideoUpdate EventType = "video_update"
)

// Event is a serialized notice for observers. Data is JSON.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

type PeerNotice struct {
	PeerID domain.PeerID `json:"peer_id"`
	Name   string        `json:"name"`
}

type VideoUpdate struct {
	PeerID domain.PeerID `json:"peer_id"`
	Frame  string        `json:"frame"`
}

func NewEvent(t EventType, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Data: b}, nil
}

func PeerJoined(id domain.PeerID, name string) Event {
	ev, _ := NewEvent(EventPeerJoin, PeerNotice{PeerID: id, Name: name})
	return ev
}

func PeerLeft(id domain.PeerID, name string) Event {
	ev, _ := NewEvent(EventPeerLeave, PeerNotice{PeerID: id, Name: name})
	return ev
}
