package domain

import "strings"

// FieldSeparator delimits beacon fields and topic parts.
const FieldSeparator = "|"

type RoomName string

// NewRoomName trims and validates a self-declared room tag.
func NewRoomName(raw string) (RoomName, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrRoomEmpty
	}
	if len(raw) > MaxRoomLen {
		return "", ErrRoomTooLong
	}
	if strings.Contains(raw, FieldSeparator) {
		return "", ErrReservedChar
	}
	return RoomName(raw), nil
}

// TopicPrefix is the subscription filter for every publisher in the room.
func (r RoomName) TopicPrefix() string {
	return string(r) + FieldSeparator
}

// Topic is the routing key a peer publishes its frames under.
func (r RoomName) Topic(id PeerID) string {
	return string(r) + FieldSeparator + string(id)
}

// ParseTopic splits "<room>|<peer_id>".
func ParseTopic(topic string) (RoomName, PeerID, bool) {
	room, peer, ok := strings.Cut(topic, FieldSeparator)
	if !ok || room == "" || peer == "" || strings.Contains(peer, FieldSeparator) {
		return "", "", false
	}
	return RoomName(room), PeerID(peer), true
}
