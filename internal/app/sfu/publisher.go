// Package sfu moves encoded frames between peers: the local Publisher
// serves the camera stream, the Subscriber pulls every other peer's.
package sfu

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/netutil"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxCaptureRetry = 2 * time.Second

type PublisherConfig struct {
	Width        int
	Height       int
	Quality      int
	MaxFPS       int
	SendBuffer   int
	CaptureRetry time.Duration

	// Listen binds the publish endpoint. Defaults to netutil.ListenReusableTCP.
	Listen func(ctx context.Context, addr string) (net.Listener, error)
}

// Publisher captures, encodes and publishes the local stream under the
// session's topic.
type Publisher struct {
	cfg     PublisherConfig
	self    domain.Identity
	open    core.DeviceOpener
	encoder core.Encoder
	relay   *Relay
	log     zerolog.Logger
}

func NewPublisher(cfg PublisherConfig, self domain.Identity, open core.DeviceOpener, enc core.Encoder, logger zerolog.Logger) *Publisher {
	if cfg.Listen == nil {
		cfg.Listen = netutil.ListenReusableTCP
	}
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = 25
	}
	if cfg.CaptureRetry <= 0 {
		cfg.CaptureRetry = 100 * time.Millisecond
	}
	return &Publisher{
		cfg:     cfg,
		self:    self,
		open:    open,
		encoder: enc,
		relay:   NewRelay(cfg.SendBuffer, logger),
		log:     logger,
	}
}

func (p *Publisher) Relay() *Relay { return p.relay }

func (p *Publisher) Run(ctx context.Context) {
	device, err := p.open(p.cfg.Width, p.cfg.Height)
	if err != nil {
		p.log.Error().Err(err).Msg("cannot open capture device")
		return
	}
	defer func() {
		if err := device.Close(); err != nil {
			p.log.Warn().Err(err).Msg("capture device close failed")
		}
	}()

	ln, err := p.cfg.Listen(ctx, p.self.Addr())
	if err != nil {
		p.log.Error().Err(err).Str("addr", p.self.Addr()).Msg("cannot bind publish endpoint")
		return
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/relay", p.relay.Handler())
	srv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Warn().Err(err).Msg("publish endpoint stopped")
		}
	}()
	defer func() {
		p.relay.CloseAll()
		_ = srv.Close()
	}()

	p.log.Info().Str("addr", p.self.Addr()).Msg("publisher started")
	defer p.log.Info().Msg("publisher stopped")

	limiter := rate.NewLimiter(rate.Limit(p.cfg.MaxFPS), 1)
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.CaptureRetry
	bo.MaxInterval = maxCaptureRetry
	bo.MaxElapsedTime = 0
	bo.Reset()

	topic := p.self.Room.Topic(p.self.PeerID)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		img, err := device.Read()
		if err != nil {
			wait := bo.NextBackOff()
			p.log.Warn().Err(err).Dur("retry_in", wait).Msg("capture read failed")
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		bo.Reset()

		frame, err := p.encoder.Encode(img, p.cfg.Quality)
		if err != nil {
			p.log.Warn().Err(err).Msg("encode failed, frame skipped")
			continue
		}
		res, err := p.relay.Publish(topic, frame)
		if err != nil {
			p.log.Warn().Err(err).Msg("publish failed")
			continue
		}
		if len(res.Dropped) > 0 {
			p.log.Debug().Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("subscriber backpressure")
		}
	}
}
