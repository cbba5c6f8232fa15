package app

// State is the whole in-memory model of one process: the peer directory,
// the frame queue table and the observer hub. Each part has its own lock;
// none of them is ever taken while holding another.
type State struct {
	Peers  *Directory
	Queues *QueueTable
	Hub    *Hub
}

func NewState(queueSize int, policy QueuePolicy, observerBuffer int) *State {
	return &State{
		Peers:  NewDirectory(),
		Queues: NewQueueTable(queueSize, policy),
		Hub:    NewHub(observerBuffer),
	}
}

// Begin empties the tables and binds them to a new running generation.
func (s *State) Begin(gen uint64) {
	s.Peers.Reset(gen)
	s.Queues.Reset(gen)
	s.Hub.Open(gen)
}

// End empties the tables, ends observer streams and binds everything to gen
// so that workers of the previous generation are refused.
func (s *State) End(gen uint64) {
	s.Hub.Close(gen)
	s.Peers.Reset(gen)
	s.Queues.Reset(gen)
}
