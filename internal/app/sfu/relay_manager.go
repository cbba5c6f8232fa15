package sfu

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrRecvTimeout = errors.New("no relay message before timeout")
	ErrLinksClosed = errors.New("link manager closed")
)

// LinkManager is the subscribing half of the pub/sub link: one Link per
// remote publisher, all feeding a single inbox.
type LinkManager struct {
	mu     sync.Mutex
	links  map[string]*Link
	closed bool

	prefix string
	inbox  chan Message
	dialer *websocket.Dialer
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

func NewLinkManager(prefix string, inboxSize int, dialTimeout time.Duration, logger zerolog.Logger) *LinkManager {
	if inboxSize < 1 {
		inboxSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LinkManager{
		links:  make(map[string]*Link),
		prefix: prefix,
		inbox:  make(chan Message, inboxSize),
		dialer: &websocket.Dialer{HandshakeTimeout: dialTimeout, ReadBufferSize: 64 * 1024},
		ctx:    ctx,
		cancel: cancel,
		log:    logger,
	}
}

// Connect starts a link to addr. Connecting twice is a no-op.
func (m *LinkManager) Connect(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if _, ok := m.links[addr]; ok {
		return
	}
	logger := m.log.With().Str("addr", addr).Logger()
	ctx, cancel := context.WithCancel(m.ctx)
	l := &Link{Addr: addr, prefix: m.prefix, cancel: cancel, done: make(chan struct{})}
	m.links[addr] = l
	logger.Info().Msg("connecting to publisher")
	go l.loop(ctx, m.dialer, m.inbox, &logger)
}

// Disconnect stops the link to addr and waits for it to finish.
func (m *LinkManager) Disconnect(addr string) {
	m.mu.Lock()
	l, ok := m.links[addr]
	delete(m.links, addr)
	m.mu.Unlock()
	if !ok {
		return
	}
	l.cancel()
	<-l.done
	m.log.Info().Str("addr", addr).Msg("disconnected from publisher")
}

// HasLink reports whether addr is connected or being dialed.
func (m *LinkManager) HasLink(addr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.links[addr]
	return ok
}

func (m *LinkManager) Connected() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.links))
	for addr := range m.links {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Recv waits at most timeout for the next message from any link.
func (m *LinkManager) Recv(ctx context.Context, timeout time.Duration) (Message, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case msg := <-m.inbox:
		return msg, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-m.ctx.Done():
		return Message{}, ErrLinksClosed
	case <-t.C:
		return Message{}, ErrRecvTimeout
	}
}

// Close stops every link and waits for them.
func (m *LinkManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	old := m.links
	m.links = make(map[string]*Link)
	m.mu.Unlock()

	m.cancel()
	for _, l := range old {
		<-l.done
	}
}
