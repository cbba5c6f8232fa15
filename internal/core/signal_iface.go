package core

// EventSink abstracts one observer's outbound event queue.
// Owned by the adapter; the adapter must Close() it.
type EventSink interface {
	TrySend(Event) error
	Close()
}
