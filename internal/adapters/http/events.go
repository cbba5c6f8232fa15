package http

import (
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// events streams observer events as SSE: "event: <type>" with the JSON
// payload as data. The stream ends with the session.
func (h *handlers) events(c *gin.Context) {
	hub := h.orch.State.Hub
	obs, err := hub.Subscribe()
	if err != nil {
		c.String(http.StatusForbidden, "Not joined.")
		return
	}
	defer hub.Unsubscribe(obs.ID)
	log.Info().Str("module", "adapters.http").Str("observer", obs.ID).Str("remote", c.Request.RemoteAddr).Msg("sse client connected")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// Peers known before this observer subscribed. One already announced
	// through obs in between may show up twice; clients treat joins as upserts.
	for _, p := range h.orch.State.Peers.Snapshot() {
		ev := core.PeerJoined(p.ID, p.Name)
		c.SSEvent(string(ev.Type), string(ev.Data))
	}
	c.Writer.Flush()

	keepalive := h.cfg.KeepalivePeriod
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	idle := time.NewTimer(keepalive)
	defer idle.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-obs.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), string(ev.Data))
		case <-idle.C:
			_, _ = io.WriteString(w, ": keepalive\n\n")
		}
		idle.Reset(keepalive)
		return true
	})
	log.Info().Str("module", "adapters.http").Str("observer", obs.ID).Msg("sse stream closed")
}
