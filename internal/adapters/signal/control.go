package signal

import (
	"github.com/dkeye/Huddle/internal/domain"
)

func (ctl *SignalWSController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *SignalWSController) handleWhoAmI(
	conn *WsSignalConn,
) {
	st := ctl.Orch.Snapshot()
	resp := struct {
		Type     string           `json:"type"`
		State    string           `json:"state"`
		Identity *domain.Identity `json:"identity,omitempty"`
	}{
		Type:     "whoami",
		State:    st.State,
		Identity: st.Identity,
	}
	ctl.sendJSON(conn, resp)
}
