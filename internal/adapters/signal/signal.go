// Package signal is the websocket face of the session: it streams observer
// events to the browser and takes join/switch/leave commands back.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

const sendBuffer = 64

type SignalWSController struct {
	Orch       *orch.Orchestrator
	PingPeriod time.Duration
	ReadLimit  int64
	Limiter    *RoomRateLimiter
}

func NewSignalWSController(o *orch.Orchestrator, pingPeriod time.Duration, readLimit int64) *SignalWSController {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	if readLimit <= 0 {
		readLimit = 32768
	}
	return &SignalWSController{
		Orch:       o,
		PingPeriod: pingPeriod,
		ReadLimit:  readLimit,
		Limiter:    NewRoomRateLimiter(5, 10*time.Second),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	closed   bool
	observer *app.Observer
	ended    *app.Observer
}

func (c *WsSignalConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// swapObserver installs obs and returns the one it replaces.
func (c *WsSignalConn) swapObserver(obs *app.Observer) *app.Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.observer
	c.observer = obs
	return old
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("sid", sid).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan []byte, sendBuffer),
	}
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
	}()
	ctl.attach(ctx, conn)
}

// attach subscribes conn to the running session's events. It does nothing
// while idle; a later join attaches again.
func (ctl *SignalWSController) attach(ctx context.Context, c *WsSignalConn) {
	obs, err := ctl.Orch.State.Hub.Subscribe()
	if err != nil {
		return
	}
	if old := c.swapObserver(obs); old != nil {
		ctl.Orch.State.Hub.Unsubscribe(old.ID)
	}
	go ctl.forward(ctx, c, obs)
}

func (ctl *SignalWSController) forward(ctx context.Context, c *WsSignalConn, obs *app.Observer) {
	defer ctl.Orch.State.Hub.Unsubscribe(obs.ID)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-obs.Events():
			if !ok {
				// A replaced or detached observer ends silently.
				c.mu.RLock()
				current := c.observer == obs
				c.mu.RUnlock()
				if current {
					ctl.notifyEnded(c, obs)
				}
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("marshal event")
				continue
			}
			if err := c.TrySend(b); errors.Is(err, ErrConnClosed) {
				return
			}
		}
	}
}

// notifyEnded tells the client that obs's session is over, once per observer.
func (ctl *SignalWSController) notifyEnded(c *WsSignalConn, obs *app.Observer) {
	c.mu.Lock()
	if obs == nil || c.ended == obs {
		c.mu.Unlock()
		return
	}
	c.ended = obs
	c.mu.Unlock()
	ctl.sendJSON(c, map[string]any{"type": "session_ended"})
}
