package app

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrStaleGeneration is returned when a worker of a finished session tries to
// mutate state that now belongs to a newer one.
var ErrStaleGeneration = errors.New("stale session generation")

// Directory maps peer ids to liveness records for the current session.
// Writes carry the session generation and are refused unless it is current.
type Directory struct {
	mu    sync.RWMutex
	gen   uint64
	peers map[domain.PeerID]*domain.PeerRecord
}

func NewDirectory() *Directory {
	return &Directory{peers: make(map[domain.PeerID]*domain.PeerRecord)}
}

// Reset drops every record and accepts writes from gen only.
func (d *Directory) Reset(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.peers)
	d.peers = make(map[domain.PeerID]*domain.PeerRecord)
	d.gen = gen
	log.Debug().Str("module", "app.directory").Uint64("gen", gen).Int("dropped", n).Msg("reset")
}

// Upsert inserts or refreshes a record. created reports a new peer id.
func (d *Directory) Upsert(gen uint64, rec domain.PeerRecord) (created bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return false, ErrStaleGeneration
	}
	cur, ok := d.peers[rec.ID]
	if !ok {
		r := rec
		d.peers[rec.ID] = &r
		return true, nil
	}
	cur.Name = rec.Name
	cur.Addr = rec.Addr
	cur.LastSeen = rec.LastSeen
	return false, nil
}

func (d *Directory) Get(id domain.PeerID) (domain.PeerRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if r, ok := d.peers[id]; ok {
		return *r, true
	}
	return domain.PeerRecord{}, false
}

func (d *Directory) Has(id domain.PeerID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.peers[id]
	return ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

// Evict removes every record last seen more than timeout before now and
// returns them sorted by id.
func (d *Directory) Evict(gen uint64, now time.Time, timeout time.Duration) ([]domain.PeerRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return nil, ErrStaleGeneration
	}
	var out []domain.PeerRecord
	for id, r := range d.peers {
		if now.Sub(r.LastSeen) > timeout {
			out = append(out, *r)
			delete(d.peers, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Addresses returns the set of publish endpoints of every known peer.
// Callers of a finished generation get ErrStaleGeneration.
func (d *Directory) Addresses(gen uint64) (map[string]struct{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if gen != d.gen {
		return nil, ErrStaleGeneration
	}
	out := make(map[string]struct{}, len(d.peers))
	for _, r := range d.peers {
		out[r.Addr.String()] = struct{}{}
	}
	return out, nil
}

func (d *Directory) Snapshot() []domain.PeerRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.PeerRecord, 0, len(d.peers))
	for _, r := range d.peers {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
