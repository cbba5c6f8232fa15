package orch

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// Switch moves the running session to another room and name on the same
// endpoint. The old session is fully stopped before the new one starts.
func (o *Orchestrator) Switch(room, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.switchTo(room, name)
}

func (o *Orchestrator) switchTo(room, name string) error {
	if o.state != StateRunning {
		return ErrNotRunning
	}
	cur, _ := o.Identity()
	next, err := cur.WithRoom(room, name)
	if err != nil {
		return err
	}
	if next.Room == cur.Room && next.Name == cur.Name {
		return ErrNoChange
	}
	if err := o.stop(); err != nil {
		return err
	}
	log.Info().Str("module", "orch").Str("from_room", string(cur.Room)).Str("to_room", string(next.Room)).Msg("switching room")
	return o.start(next)
}

// Join starts a session, or switches the running one.
func (o *Orchestrator) Join(room, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return o.switchTo(room, name)
	}
	ip, port, err := o.endpoint()
	if err != nil {
		return err
	}
	self, err := domain.NewIdentity(room, name, ip, port)
	if err != nil {
		return err
	}
	return o.start(self)
}

// Leave stops the running session. It is a no-op while idle.
func (o *Orchestrator) Leave() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return nil
	}
	return o.stop()
}

func (o *Orchestrator) endpoint() (string, int, error) {
	if o.port != 0 {
		return o.ip, o.port, nil
	}
	ip := o.opts.LocalIP()
	port := o.opts.MediaPort
	if port == 0 {
		p, err := o.opts.FreePort(ip)
		if err != nil {
			return "", 0, fmt.Errorf("pick media port: %w", err)
		}
		port = p
	}
	o.ip, o.port = ip, port
	log.Info().Str("module", "orch").Str("ip", ip).Int("port", port).Msg("publish endpoint chosen")
	return ip, port, nil
}
