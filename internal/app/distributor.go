package app

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/rs/zerolog"
)

// Distributor drains one frame per peer queue on every tick and turns it
// into a video_update for all observers.
type Distributor struct {
	Queues *QueueTable
	Hub    *Hub
	Tick   time.Duration
	Gen    uint64
	Log    zerolog.Logger
}

func (d *Distributor) Run(ctx context.Context) {
	tick := d.Tick
	if tick <= 0 {
		tick = time.Second / 30
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	d.Log.Info().Dur("tick", tick).Msg("distributor started")
	for {
		select {
		case <-ctx.Done():
			d.Log.Info().Msg("distributor ctx done")
			return
		case <-ticker.C:
			if _, err := d.Flush(); err != nil {
				d.Log.Info().Err(err).Msg("distributor generation ended")
				return
			}
		}
	}
}

// Flush performs one tick worth of work and returns how many updates it emitted.
func (d *Distributor) Flush() (int, error) {
	frames, err := d.Queues.PopEach(d.Gen)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range frames {
		ev, err := core.NewEvent(core.EventVideoUpdate, core.VideoUpdate{
			PeerID: f.PeerID,
			Frame:  base64.StdEncoding.EncodeToString(f.Data),
		})
		if err != nil {
			d.Log.Error().Err(err).Str("peer_id", string(f.PeerID)).Msg("encode video_update")
			continue
		}
		if _, err := d.Hub.Publish(d.Gen, ev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
