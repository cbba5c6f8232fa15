package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessLastRoom = "last_room"
	sessLastName = "last_name"
)

type handlers struct {
	orch  *orch.Orchestrator
	cfg   *config.Config
	media Media
}

type RoomRequest struct {
	Room string `json:"room" form:"room_id"`
	Name string `json:"name" form:"username"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomEmpty),
		errors.Is(err, domain.ErrRoomTooLong),
		errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrReservedChar),
		errors.Is(err, orch.ErrNotRunning):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *handlers) session(c *gin.Context) {
	sess := sessions.Default(c)
	st := h.orch.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"state":     st.State,
		"identity":  st.Identity,
		"last_room": sess.Get(sessLastRoom),
		"last_name": sess.Get(sessLastName),
	})
}

func (h *handlers) join(c *gin.Context) {
	h.roomChange(c, h.orch.Join)
}

func (h *handlers) switchRoom(c *gin.Context) {
	h.roomChange(c, h.orch.Switch)
}

func (h *handlers) roomChange(c *gin.Context, apply func(room, name string) error) {
	var req RoomRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "Invalid request format."})
		return
	}
	err := apply(req.Room, req.Name)
	switch {
	case errors.Is(err, orch.ErrNoChange):
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "No changes detected."})
		return
	case err != nil:
		code := statusOf(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Str("module", "adapters.http").Str("room", req.Room).Msg("room change failed")
		}
		c.JSON(code, gin.H{"status": "error", "message": err.Error()})
		return
	}

	id, _ := h.orch.Identity()
	sess := sessions.Default(c)
	sess.Set(sessLastRoom, string(id.Room))
	sess.Set(sessLastName, id.Name)
	if err := sess.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "identity": id})
}

func (h *handlers) leave(c *gin.Context) {
	if err := h.orch.Leave(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) peers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"peers": h.orch.State.Peers.Snapshot()})
}
