package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name    string
		room    string
		user    string
		ip      string
		port    int
		wantErr error
	}{
		{"ok", "7", "alice", "10.0.0.5", 40001, nil},
		{"trimmed", "  lab ", " bob ", "192.168.1.9", 1, nil},
		{"empty room", "  ", "alice", "10.0.0.5", 40001, ErrRoomEmpty},
		{"empty name", "7", "", "10.0.0.5", 40001, ErrUsernameEmpty},
		{"room too long", strings.Repeat("r", MaxRoomLen+1), "alice", "10.0.0.5", 40001, ErrRoomTooLong},
		{"name too long", "7", strings.Repeat("n", MaxUsernameLen+1), "10.0.0.5", 40001, ErrUsernameTooLong},
		{"pipe in room", "a|b", "alice", "10.0.0.5", 40001, ErrReservedChar},
		{"pipe in name", "7", "al|ce", "10.0.0.5", 40001, ErrReservedChar},
		{"ipv6", "7", "alice", "::1", 40001, ErrInvalidIP},
		{"garbage ip", "7", "alice", "nope", 40001, ErrInvalidIP},
		{"port zero", "7", "alice", "10.0.0.5", 0, ErrInvalidPort},
		{"port high", "7", "alice", "10.0.0.5", 65536, ErrInvalidPort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentity(tt.room, tt.user, tt.ip, tt.port)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewIdentity() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewIdentity() error = %v", err)
			}
			if id.PeerID != NewPeerID(id.IP, id.Port) {
				t.Errorf("PeerID = %q, want %q", id.PeerID, NewPeerID(id.IP, id.Port))
			}
			if string(id.Room) != strings.TrimSpace(tt.room) || id.Name != strings.TrimSpace(tt.user) {
				t.Errorf("Room/Name = %q/%q, not trimmed", id.Room, id.Name)
			}
		})
	}
}

func TestIdentityWithRoomKeepsEndpoint(t *testing.T) {
	id, err := NewIdentity("101", "A", "10.0.0.5", 40001)
	if err != nil {
		t.Fatal(err)
	}
	next, err := id.WithRoom("202", "B")
	if err != nil {
		t.Fatal(err)
	}
	if next.PeerID != id.PeerID || next.Addr() != "10.0.0.5:40001" {
		t.Errorf("endpoint changed: %+v", next)
	}
	if next.Room != "202" || next.Name != "B" {
		t.Errorf("room/name = %q/%q", next.Room, next.Name)
	}
	if id.Room != "101" {
		t.Errorf("original mutated: %q", id.Room)
	}
}

func TestTopic(t *testing.T) {
	room := RoomName("7")
	if got := room.Topic("10.0.0.6:40002"); got != "7|10.0.0.6:40002" {
		t.Errorf("Topic() = %q", got)
	}
	if !strings.HasPrefix(room.Topic("x:1"), room.TopicPrefix()) {
		t.Error("topic does not start with prefix")
	}
	// "7|" must not match room "70".
	if strings.HasPrefix(RoomName("70").Topic("x:1"), room.TopicPrefix()) {
		t.Error("prefix of room 7 matches room 70")
	}
}

func TestParseTopic(t *testing.T) {
	tests := []struct {
		in   string
		room RoomName
		peer PeerID
		ok   bool
	}{
		{"7|10.0.0.6:40002", "7", "10.0.0.6:40002", true},
		{"7", "", "", false},
		{"|10.0.0.6:1", "", "", false},
		{"7|", "", "", false},
		{"7|a|b", "", "", false},
	}
	for _, tt := range tests {
		room, peer, ok := ParseTopic(tt.in)
		if ok != tt.ok || room != tt.room || peer != tt.peer {
			t.Errorf("ParseTopic(%q) = %q, %q, %v", tt.in, room, peer, ok)
		}
	}
}
