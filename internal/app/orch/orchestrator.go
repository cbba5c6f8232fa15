// Package orch owns the session lifecycle: it starts the workers of one
// session generation, stops them and swaps identities on room switch.
package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/dkeye/Huddle/internal/netutil"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
)

type State int

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrNotRunning     = errors.New("no session running")
	ErrNoChange       = errors.New("no changes detected")
)

// Worker is one long-running loop of a session. Run must return once ctx
// is done.
type Worker struct {
	Name string
	Run  func(ctx context.Context)
}

// WorkerFactory builds the workers of one generation.
type WorkerFactory func(self domain.Identity, gen uint64, state *app.State) ([]Worker, error)

type Options struct {
	StopTimeout time.Duration
	// MediaPort fixes the publish port; 0 picks a free one on first join.
	MediaPort int
	LocalIP   func() string
	FreePort  func(ip string) (int, error)
}

type runningWorker struct {
	name string
	done chan struct{}
}

type Orchestrator struct {
	State *app.State

	factory WorkerFactory
	opts    Options

	mu      sync.Mutex
	state   State
	gen     uint64
	cancel  context.CancelFunc
	workers []runningWorker

	idMu     sync.RWMutex
	identity domain.Identity

	// Publish endpoint, resolved on the first join and kept for the process.
	ip   string
	port int
}

func New(state *app.State, factory WorkerFactory, opts Options) *Orchestrator {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Second
	}
	if opts.LocalIP == nil {
		opts.LocalIP = netutil.LocalIP
	}
	if opts.FreePort == nil {
		opts.FreePort = netutil.FreePort
	}
	return &Orchestrator{State: state, factory: factory, opts: opts}
}

// Start launches a session for self. Only valid while idle.
func (o *Orchestrator) Start(self domain.Identity) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.start(self)
}

// Stop ends the running session. Workers that do not finish within the
// stop timeout are left behind; the generation bump fences them off.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stop()
}

func (o *Orchestrator) start(self domain.Identity) error {
	if o.state == StateRunning {
		return ErrAlreadyRunning
	}
	if self.IsZero() {
		return fmt.Errorf("start: %w", errors.New("empty identity"))
	}

	o.gen++
	gen := o.gen
	o.State.Begin(gen)
	o.setIdentity(self)
	ctx, cancel := context.WithCancel(context.Background())

	workers, err := o.factory(self, gen, o.State)
	if err != nil {
		o.rollback(cancel)
		return fmt.Errorf("start session: %w", err)
	}

	o.workers = o.workers[:0]
	for _, w := range workers {
		o.workers = append(o.workers, launch(ctx, gen, w))
	}
	o.cancel = cancel
	o.state = StateRunning

	log.Info().
		Str("module", "orch").
		Str("room", string(self.Room)).
		Str("name", self.Name).
		Str("peer_id", string(self.PeerID)).
		Uint64("gen", gen).
		Int("workers", len(workers)).
		Msg("session started")
	return nil
}

func (o *Orchestrator) stop() error {
	if o.state != StateRunning {
		return ErrNotRunning
	}
	stopped := o.gen
	o.cancel()

	leaked := 0
	for _, w := range o.workers {
		t := time.NewTimer(o.opts.StopTimeout)
		select {
		case <-w.done:
		case <-t.C:
			leaked++
			log.Warn().Str("module", "orch").Str("worker", w.name).Uint64("gen", stopped).Dur("timeout", o.opts.StopTimeout).Msg("worker leaked")
		}
		t.Stop()
	}

	o.gen++
	o.State.End(o.gen)
	o.setIdentity(domain.Identity{})
	o.cancel = nil
	o.workers = nil
	o.state = StateIdle

	log.Info().Str("module", "orch").Uint64("gen", stopped).Int("leaked", leaked).Msg("session stopped")
	return nil
}

// rollback returns to idle after a failed start.
func (o *Orchestrator) rollback(cancel context.CancelFunc) {
	cancel()
	o.gen++
	o.State.End(o.gen)
	o.setIdentity(domain.Identity{})
	o.cancel = nil
	o.workers = nil
	o.state = StateIdle
	log.Warn().Str("module", "orch").Uint64("gen", o.gen).Msg("session start rolled back")
}

func launch(ctx context.Context, gen uint64, w Worker) runningWorker {
	rw := runningWorker{name: w.Name, done: make(chan struct{})}
	go func() {
		defer close(rw.done)
		if r := panics.Try(func() { w.Run(ctx) }); r != nil {
			log.Error().Str("module", "orch").Str("worker", w.Name).Uint64("gen", gen).Err(r.AsError()).Msg("worker panicked")
		}
	}()
	return rw
}

func (o *Orchestrator) setIdentity(id domain.Identity) {
	o.idMu.Lock()
	defer o.idMu.Unlock()
	o.identity = id
}

// Identity returns the active identity, if any.
func (o *Orchestrator) Identity() (domain.Identity, bool) {
	o.idMu.RLock()
	defer o.idMu.RUnlock()
	return o.identity, !o.identity.IsZero()
}

// Status is a point-in-time view for the UI.
type Status struct {
	State      string              `json:"state"`
	Generation uint64              `json:"generation"`
	Identity   *domain.Identity    `json:"identity,omitempty"`
	Peers      []domain.PeerRecord `json:"peers"`
}

func (o *Orchestrator) Snapshot() Status {
	o.mu.Lock()
	st := Status{State: o.state.String(), Generation: o.gen}
	o.mu.Unlock()
	if id, ok := o.Identity(); ok {
		st.Identity = &id
	}
	st.Peers = o.State.Peers.Snapshot()
	return st
}

func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateRunning
}
