package domain

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var (
	ErrInvalidIP   = errors.New("invalid ip address")
	ErrInvalidPort = errors.New("port out of range")
)

// PeerID is "ip:port" of a peer's publish endpoint. It is derived, never chosen.
type PeerID string

func NewPeerID(ip string, port int) PeerID {
	return PeerID(ip + ":" + strconv.Itoa(port))
}

// Identity describes the local participant for one session.
// It is replaced wholesale on switch, never mutated.
type Identity struct {
	IP     string   `json:"ip"`
	Port   int      `json:"port"`
	PeerID PeerID   `json:"peer_id"`
	Name   string   `json:"name"`
	Room   RoomName `json:"room"`
}

func NewIdentity(room, name, ip string, port int) (Identity, error) {
	r, err := NewRoomName(room)
	if err != nil {
		return Identity{}, err
	}
	n, err := NormalizeUsername(name)
	if err != nil {
		return Identity{}, err
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	if port < 1 || port > 65535 {
		return Identity{}, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}
	ip = parsed.To4().String()
	return Identity{
		IP:     ip,
		Port:   port,
		PeerID: NewPeerID(ip, port),
		Name:   n,
		Room:   r,
	}, nil
}

// WithRoom returns a new identity on the same endpoint with a new room and name.
func (id Identity) WithRoom(room, name string) (Identity, error) {
	return NewIdentity(room, name, id.IP, id.Port)
}

// Addr is the publish endpoint address in host:port form.
func (id Identity) Addr() string {
	return net.JoinHostPort(id.IP, strconv.Itoa(id.Port))
}

// IsZero reports whether no identity is set.
func (id Identity) IsZero() bool {
	return id.PeerID == ""
}
