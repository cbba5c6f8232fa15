package sfu

import (
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 2 * time.Second
	maxControlSize = 512
)

// Relay fans published frames out to the remote subscribers of the local
// publisher. It is the serving half of the pub/sub link.
type Relay struct {
	mu        sync.RWMutex
	outTracks map[string]*OutTrack

	sendBuffer int
	upgrader   websocket.Upgrader
	log        zerolog.Logger
}

func NewRelay(sendBuffer int, logger zerolog.Logger) *Relay {
	return &Relay{
		outTracks:  make(map[string]*OutTrack),
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

// Handler serves GET /relay?subscribe=<prefix>.
func (r *Relay) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		prefix := c.Query("subscribe")
		conn, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			r.log.Warn().Err(err).Msg("relay upgrade failed")
			return
		}
		ot := NewOutTrack(prefix, r.sendBuffer)
		r.AddOutTrack(ot)
		r.log.Info().Str("subscriber", ot.ID).Str("remote", c.Request.RemoteAddr).Str("prefix", prefix).Msg("subscriber connected")

		go r.writePump(conn, ot)
		r.readPump(conn)

		r.RemoveOutTrack(ot.ID)
		r.log.Info().Str("subscriber", ot.ID).Msg("subscriber gone")
	}
}

// readPump only watches for the peer going away; subscribers send nothing.
func (r *Relay) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxControlSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) writePump(conn *websocket.Conn, ot *OutTrack) {
	defer conn.Close()
	for msg := range ot.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			r.log.Debug().Err(err).Str("subscriber", ot.ID).Msg("relay write failed, marking outtrack as delete")
			ot.MarkDelete()
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
}

// Publish hands the frame to every matching subscriber without blocking.
// A subscriber with a full buffer loses this frame only.
func (r *Relay) Publish(topic string, payload []byte) (core.PublishResult, error) {
	msg, err := EncodeMessage(topic, payload)
	if err != nil {
		return core.PublishResult{}, err
	}

	r.mu.RLock()
	snapshot := make(map[string]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	res := core.PublishResult{}
	var dirty []string
	for id, ot := range snapshot {
		if ot.GetState() == TrackStateDelete {
			dirty = append(dirty, id)
			continue
		}
		if !ot.Wants(topic) {
			continue
		}
		if err := ot.TrySend(msg); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SendTo++
	}

	// Cleanup is done outside the RLock.
	for _, id := range dirty {
		r.RemoveOutTrack(id)
	}
	return res, nil
}

func (r *Relay) AddOutTrack(ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[ot.ID] = ot
}

func (r *Relay) RemoveOutTrack(id string) {
	r.mu.Lock()
	ot, ok := r.outTracks[id]
	delete(r.outTracks, id)
	r.mu.Unlock()
	if ok {
		ot.Close()
	}
}

func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}

// CloseAll disconnects every subscriber.
func (r *Relay) CloseAll() {
	r.mu.Lock()
	old := r.outTracks
	r.outTracks = make(map[string]*OutTrack)
	r.mu.Unlock()
	for _, ot := range old {
		ot.Close()
	}
}
