package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/rs/zerolog/log"
)

type roomPayload struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Name string `json:"name"`
}

func (ctl *SignalWSController) decodeRoom(c *WsSignalConn, data []byte) (roomPayload, bool) {
	var p roomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad room payload")
		ctl.sendError(c, "bad_payload")
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid string,
	conn *WsSignalConn,
	data []byte,
) {
	p, ok := ctl.decodeRoom(conn, data)
	if !ok {
		return
	}
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, "too many room changes")
		return
	}
	log.Info().Str("module", "signal").Str("sid", sid).Str("room", p.Room).Msg("join")
	old := conn.swapObserver(nil)
	ctl.applyRoomChange(ctx, conn, old, ctl.Orch.Join(p.Room, p.Name))
}

func (ctl *SignalWSController) handleSwitch(
	ctx context.Context,
	sid string,
	conn *WsSignalConn,
	data []byte,
) {
	p, ok := ctl.decodeRoom(conn, data)
	if !ok {
		return
	}
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, "too many room changes")
		return
	}
	log.Info().Str("module", "signal").Str("sid", sid).Str("room", p.Room).Msg("switch")
	old := conn.swapObserver(nil)
	ctl.applyRoomChange(ctx, conn, old, ctl.Orch.Switch(p.Room, p.Name))
}

// applyRoomChange finishes a join or switch. old is the observer detached
// before the change; a failed change puts it back and reports its session
// as ended if the change stopped it.
func (ctl *SignalWSController) applyRoomChange(ctx context.Context, conn *WsSignalConn, old *app.Observer, err error) {
	if err != nil && old != nil {
		conn.swapObserver(old)
		if !ctl.Orch.Running() {
			ctl.notifyEnded(conn, old)
		}
	}
	switch {
	case errors.Is(err, orch.ErrNoChange):
		ctl.sendJSON(conn, map[string]any{"type": "info", "message": "No changes detected."})
		return
	case err != nil:
		ctl.sendError(conn, err.Error())
		return
	}
	if old != nil {
		ctl.Orch.State.Hub.Unsubscribe(old.ID)
	}
	ctl.attach(ctx, conn)
	st := ctl.Orch.Snapshot()
	ctl.sendJSON(conn, map[string]any{
		"type":     "joined",
		"identity": st.Identity,
		"peers":    st.Peers,
	})
}

// handleLeave stops the session; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid string,
	conn *WsSignalConn,
) {
	log.Info().Str("module", "signal").Str("sid", sid).Msg("leave")
	if err := ctl.Orch.Leave(); err != nil {
		ctl.sendError(conn, err.Error())
		return
	}
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})
}
