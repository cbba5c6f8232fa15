// Package discovery announces the local participant on the broadcast domain
// and keeps the peer directory in sync with what it hears.
package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/netutil"
	"github.com/rs/zerolog"
)

var (
	ErrSelf      = errors.New("own beacon")
	ErrSpoofed   = errors.New("peer id does not match sender address")
	ErrOtherRoom = errors.New("beacon from another room")
)

type Config struct {
	Port              int
	BroadcastAddr     string
	HeartbeatInterval time.Duration
	PeerTimeout       time.Duration
	RecvTimeout       time.Duration

	// Listen opens the discovery socket. Defaults to netutil.ListenBroadcastUDP.
	Listen func(ctx context.Context, port int) (net.PacketConn, error)
}

// Engine is the discovery worker of one session generation.
type Engine struct {
	cfg   Config
	self  domain.Identity
	gen   uint64
	state *app.State
	log   zerolog.Logger
	now   func() time.Time
}

func New(cfg Config, self domain.Identity, gen uint64, state *app.State, logger zerolog.Logger) *Engine {
	if cfg.Listen == nil {
		cfg.Listen = netutil.ListenBroadcastUDP
	}
	if cfg.RecvTimeout <= 0 {
		cfg.RecvTimeout = time.Second
	}
	return &Engine{
		cfg:   cfg,
		self:  self,
		gen:   gen,
		state: state,
		log:   logger,
		now:   time.Now,
	}
}

// Run heartbeats, receives and sweeps until ctx is done or the generation
// it belongs to has ended.
func (e *Engine) Run(ctx context.Context) {
	conn, err := e.cfg.Listen(ctx, e.cfg.Port)
	if err != nil {
		e.log.Error().Err(err).Int("port", e.cfg.Port).Msg("discovery bind failed")
		return
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(e.cfg.BroadcastAddr, strconv.Itoa(e.cfg.Port)))
	if err != nil {
		e.log.Error().Err(err).Str("broadcast", e.cfg.BroadcastAddr).Msg("bad broadcast address")
		return
	}

	e.log.Info().Int("port", e.cfg.Port).Str("peer_id", string(e.self.PeerID)).Msg("discovery started")
	defer e.log.Info().Msg("discovery stopped")

	beacon := Encode(e.self)
	buf := make([]byte, maxDatagram)
	var lastBeat time.Time
	for ctx.Err() == nil {
		if now := e.now(); lastBeat.IsZero() || now.Sub(lastBeat) >= e.cfg.HeartbeatInterval {
			if _, err := conn.WriteTo(beacon, target); err != nil {
				e.log.Warn().Err(err).Msg("heartbeat send failed")
			} else {
				lastBeat = now
			}
		}

		_ = conn.SetReadDeadline(time.Now().Add(e.cfg.RecvTimeout))
		n, from, err := conn.ReadFrom(buf)
		switch {
		case err == nil:
			if err := e.HandleDatagram(buf[:n], from); errors.Is(err, app.ErrStaleGeneration) {
				return
			}
		case ctx.Err() != nil:
			return
		case isTimeout(err):
		default:
			e.log.Warn().Err(err).Msg("discovery receive failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(e.cfg.RecvTimeout):
			}
		}

		if err := e.Sweep(e.now()); errors.Is(err, app.ErrStaleGeneration) {
			return
		}
	}
}

// HandleDatagram applies one received datagram to the directory. nil means
// the beacon was accepted.
func (e *Engine) HandleDatagram(data []byte, from net.Addr) error {
	b, err := Parse(data)
	if err != nil {
		e.log.Warn().Err(err).Str("from", addrString(from)).Msg("dropping datagram")
		return err
	}
	senderIP := netutil.HostIP(from)
	if senderIP == e.self.IP && b.Port == e.self.Port {
		return ErrSelf
	}
	if domain.NewPeerID(senderIP, b.Port) != b.PeerID {
		e.log.Warn().Str("from", senderIP).Str("claimed", string(b.PeerID)).Msg("spoofed beacon")
		return ErrSpoofed
	}
	if b.Room != e.self.Room {
		return ErrOtherRoom
	}

	rec := domain.PeerRecord{
		ID:       b.PeerID,
		Name:     b.Name,
		Addr:     domain.PeerAddr{IP: senderIP, Port: b.Port},
		LastSeen: e.now(),
	}
	// Discovery is the only writer of the directory, so a miss here means
	// a new peer. Its queue and join notice go out before the record is
	// visible, so the subscriber cannot queue a frame ahead of the join.
	if !e.state.Peers.Has(b.PeerID) {
		if err := e.state.Queues.Create(e.gen, b.PeerID); err != nil {
			return err
		}
		if _, err := e.state.Hub.Publish(e.gen, core.PeerJoined(b.PeerID, b.Name)); err != nil {
			return err
		}
		e.log.Info().Str("peer_id", string(b.PeerID)).Str("name", b.Name).Msg("peer joined")
	}
	_, err = e.state.Peers.Upsert(e.gen, rec)
	return err
}

// Sweep evicts every peer silent for longer than the peer timeout.
// The record goes first, so the subscriber stops accepting the peer's
// frames before its queue is deleted and peer_leave is emitted.
func (e *Engine) Sweep(now time.Time) error {
	gone, err := e.state.Peers.Evict(e.gen, now, e.cfg.PeerTimeout)
	if err != nil {
		return err
	}
	for _, r := range gone {
		if err := e.state.Queues.Delete(e.gen, r.ID); err != nil {
			return err
		}
		if _, err := e.state.Hub.Publish(e.gen, core.PeerLeft(r.ID, r.Name)); err != nil {
			return err
		}
		e.log.Info().Str("peer_id", string(r.ID)).Str("name", r.Name).Msg("peer timed out")
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
