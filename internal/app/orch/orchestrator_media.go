package orch

import (
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/discovery"
	"github.com/dkeye/Huddle/internal/app/sfu"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SessionWorkers wires the four workers of a session: discovery, publisher,
// subscriber and distributor.
func SessionWorkers(cfg *config.Config, open core.DeviceOpener, enc core.Encoder) WorkerFactory {
	return func(self domain.Identity, gen uint64, state *app.State) ([]Worker, error) {
		logger := func(module string) zerolog.Logger {
			return log.With().
				Str("module", module).
				Str("room", string(self.Room)).
				Uint64("gen", gen).
				Logger()
		}

		disc := discovery.New(discovery.Config{
			Port:              cfg.Discovery.Port,
			BroadcastAddr:     cfg.Discovery.BroadcastAddr,
			HeartbeatInterval: cfg.Discovery.HeartbeatInterval,
			PeerTimeout:       cfg.Discovery.PeerTimeout,
			RecvTimeout:       cfg.Discovery.RecvTimeout,
		}, self, gen, state, logger("discovery"))

		pub := sfu.NewPublisher(sfu.PublisherConfig{
			Width:        cfg.Media.Width,
			Height:       cfg.Media.Height,
			Quality:      cfg.Media.Quality,
			MaxFPS:       cfg.Media.MaxFPS,
			SendBuffer:   cfg.Media.SendBuffer,
			CaptureRetry: cfg.Media.CaptureRetry,
		}, self, open, enc, logger("publisher"))

		sub := sfu.NewSubscriber(sfu.SubscriberConfig{
			RecvTimeout: cfg.Media.RecvTimeout,
			DialTimeout: cfg.Media.DialTimeout,
		}, self.Room, gen, state, logger("subscriber"))

		dist := &app.Distributor{
			Queues: state.Queues,
			Hub:    state.Hub,
			Tick:   cfg.Relay.Tick,
			Gen:    gen,
			Log:    logger("distributor"),
		}

		return []Worker{
			{Name: "discovery", Run: disc.Run},
			{Name: "publisher", Run: pub.Run},
			{Name: "subscriber", Run: sub.Run},
			{Name: "distributor", Run: dist.Run},
		}, nil
	}
}
