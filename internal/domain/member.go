package domain

import (
	"net"
	"strconv"
	"time"
)

// PeerAddr is where a peer's publisher accepts subscribers.
type PeerAddr struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

func (a PeerAddr) String() string {
	return net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// PeerRecord is the liveness entry for one remote peer in the current room.
// No transport or lifecycle logic here.
type PeerRecord struct {
	ID       PeerID    `json:"peer_id"`
	Name     string    `json:"name"`
	Addr     PeerAddr  `json:"addr"`
	LastSeen time.Time `json:"last_seen"`
}
