package sfu

import (
	"context"
	"net/url"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const maxRedialInterval = 2 * time.Second

// Message is one frame received from a remote publisher.
type Message struct {
	From    string
	Topic   string
	Payload []byte
}

// Link keeps one subscription to a remote publisher alive. Connecting is
// asynchronous: a peer whose publisher is not up yet is redialed with
// backoff until the link is dropped.
type Link struct {
	Addr   string
	prefix string

	cancel context.CancelFunc
	done   chan struct{}
}

func (l *Link) url() string {
	u := url.URL{Scheme: "ws", Host: l.Addr, Path: "/relay"}
	q := u.Query()
	q.Set("subscribe", l.prefix)
	u.RawQuery = q.Encode()
	return u.String()
}

func (l *Link) loop(ctx context.Context, dialer *websocket.Dialer, inbox chan<- Message, logger *zerolog.Logger) {
	defer close(l.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = maxRedialInterval
	bo.MaxElapsedTime = 0
	bo.Reset()

	target := l.url()
	for ctx.Err() == nil {
		conn, _, err := dialer.DialContext(ctx, target, nil)
		if err != nil {
			logger.Debug().Err(err).Msg("dial failed")
			if !sleep(ctx, bo.NextBackOff()) {
				return
			}
			continue
		}
		bo.Reset()
		logger.Debug().Msg("link up")
		l.read(ctx, conn, inbox, logger)
		if !sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

func (l *Link) read(ctx context.Context, conn *websocket.Conn, inbox chan<- Message, logger *zerolog.Logger) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug().Err(err).Msg("link down")
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		topic, payload, err := DecodeMessage(data)
		if err != nil {
			logger.Debug().Err(err).Msg("dropping relay message")
			continue
		}
		select {
		case inbox <- Message{From: l.Addr, Topic: topic, Payload: payload}:
		default:
			logger.Debug().Str("topic", topic).Msg("inbox full, frame dropped")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
