package sfu

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog"
)

var (
	ErrBadTopic      = errors.New("malformed topic")
	ErrForeignRoom   = errors.New("frame from another room")
	ErrUnknownSender = errors.New("frame from unknown peer")
)

type SubscriberConfig struct {
	RecvTimeout time.Duration
	DialTimeout time.Duration
	InboxSize   int
}

// Subscriber follows the directory: it links to every known peer's
// publisher and queues what arrives.
type Subscriber struct {
	cfg   SubscriberConfig
	room  domain.RoomName
	gen   uint64
	state *app.State
	links *LinkManager
	log   zerolog.Logger
}

func NewSubscriber(cfg SubscriberConfig, room domain.RoomName, gen uint64, state *app.State, logger zerolog.Logger) *Subscriber {
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	return &Subscriber{
		cfg:   cfg,
		room:  room,
		gen:   gen,
		state: state,
		links: NewLinkManager(room.TopicPrefix(), cfg.InboxSize, cfg.DialTimeout, logger),
		log:   logger,
	}
}

func (s *Subscriber) Links() *LinkManager { return s.links }

func (s *Subscriber) Run(ctx context.Context) {
	defer s.links.Close()
	s.log.Info().Str("prefix", s.room.TopicPrefix()).Msg("subscriber started")
	defer s.log.Info().Msg("subscriber stopped")

	for ctx.Err() == nil {
		if err := s.Sync(); err != nil {
			s.log.Info().Err(err).Msg("subscriber generation ended")
			return
		}
		msg, err := s.links.Recv(ctx, s.cfg.RecvTimeout)
		if err != nil {
			if errors.Is(err, ErrRecvTimeout) {
				continue
			}
			return
		}
		if err := s.Deliver(msg); errors.Is(err, app.ErrStaleGeneration) {
			return
		}
	}
}

// Sync connects to newly known publishers and drops links to vanished ones.
// Once the generation has ended it drops every link and dials nothing.
func (s *Subscriber) Sync() error {
	want, err := s.state.Peers.Addresses(s.gen)
	if err != nil {
		for _, addr := range s.links.Connected() {
			s.links.Disconnect(addr)
		}
		return err
	}
	for _, addr := range s.links.Connected() {
		if _, ok := want[addr]; !ok {
			s.links.Disconnect(addr)
		}
	}
	for addr := range want {
		s.links.Connect(addr)
	}
	return nil
}

// Deliver queues one received frame for its sender.
func (s *Subscriber) Deliver(msg Message) error {
	room, sender, ok := domain.ParseTopic(msg.Topic)
	if !ok {
		return ErrBadTopic
	}
	if room != s.room {
		return ErrForeignRoom
	}
	if !s.state.Peers.Has(sender) {
		return ErrUnknownSender
	}
	res, err := s.state.Queues.Push(s.gen, sender, msg.Payload)
	switch {
	case errors.Is(err, app.ErrQueueFull), errors.Is(err, app.ErrUnknownPeer):
		s.log.Debug().Err(err).Str("peer_id", string(sender)).Msg("frame dropped")
	case err != nil:
		return err
	case res.Evicted:
		s.log.Debug().Str("peer_id", string(sender)).Msg("oldest frame evicted")
	}
	return err
}
