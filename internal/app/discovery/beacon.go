package discovery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/Huddle/internal/domain"
)

const (
	tagAlive    = "ALIVE"
	beaconParts = 5
	// Safe UDP payload on any LAN; beacons are far below it.
	maxDatagram = 1024
)

var ErrMalformed = errors.New("malformed beacon")

// Beacon is the presence announcement: ALIVE|room|name|port|peer_id.
type Beacon struct {
	Room   domain.RoomName
	Name   string
	Port   int
	PeerID domain.PeerID
}

func BeaconFor(id domain.Identity) Beacon {
	return Beacon{Room: id.Room, Name: id.Name, Port: id.Port, PeerID: id.PeerID}
}

func (b Beacon) Bytes() []byte {
	return []byte(strings.Join([]string{
		tagAlive, string(b.Room), b.Name, strconv.Itoa(b.Port), string(b.PeerID),
	}, domain.FieldSeparator))
}

func Encode(id domain.Identity) []byte { return BeaconFor(id).Bytes() }

func Parse(data []byte) (Beacon, error) {
	if !utf8.Valid(data) {
		return Beacon{}, fmt.Errorf("%w: not utf-8", ErrMalformed)
	}
	parts := strings.Split(string(data), domain.FieldSeparator)
	if len(parts) != beaconParts {
		return Beacon{}, fmt.Errorf("%w: %d fields", ErrMalformed, len(parts))
	}
	if parts[0] != tagAlive {
		return Beacon{}, fmt.Errorf("%w: tag %q", ErrMalformed, parts[0])
	}
	port, err := strconv.Atoi(parts[3])
	if err != nil || port < 1 || port > 65535 {
		return Beacon{}, fmt.Errorf("%w: port %q", ErrMalformed, parts[3])
	}
	return Beacon{
		Room:   domain.RoomName(parts[1]),
		Name:   parts[2],
		Port:   port,
		PeerID: domain.PeerID(parts[4]),
	}, nil
}
