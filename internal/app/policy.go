package app

import "fmt"

// QueuePolicy decides what a full frame queue does with an incoming frame.
type QueuePolicy int

const (
	// DropIncoming discards the frame being pushed; queued frames stay.
	DropIncoming QueuePolicy = iota
	// EvictOldest discards the head of the queue to make room.
	EvictOldest
)

func ParseQueuePolicy(s string) (QueuePolicy, error) {
	switch s {
	case "", "drop_incoming":
		return DropIncoming, nil
	case "evict_oldest":
		return EvictOldest, nil
	}
	return DropIncoming, fmt.Errorf("unknown queue policy %q", s)
}

func (p QueuePolicy) String() string {
	switch p {
	case EvictOldest:
		return "evict_oldest"
	default:
		return "drop_incoming"
	}
}
