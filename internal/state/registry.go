// Package state holds the in-memory, process-wide registry of known
// players, their statuses, and the current selection.
package state

import (
	"sync"

	"github.com/mprisbridge/mpris-bridge/internal/domain"
)

// Registry is the multi-reader, exclusive-writer state store. Every
// mutation is a short, I/O-free critical section.
type Registry struct {
	mu sync.RWMutex

	players      map[domain.PlayerID]struct{}
	status       map[domain.PlayerID]string
	selected     domain.PlayerID
	lastSelected domain.PlayerID
	focusHint    string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		players: make(map[domain.PlayerID]struct{}),
		status:  make(map[domain.PlayerID]string),
	}
}

// Seed replaces the known player set and status map wholesale, as done on
// startup and on any MPRIS-namespace NameOwnerChanged signal.
func (r *Registry) Seed(players map[domain.PlayerID]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.players = make(map[domain.PlayerID]struct{}, len(players))
	r.status = make(map[domain.PlayerID]string, len(players))
	for id, status := range players {
		r.players[id] = struct{}{}
		r.status[id] = status
	}
}

// SetStatus updates a single player's last-known status, adding it to the
// known set if necessary.
func (r *Registry) SetStatus(id domain.PlayerID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[id] = struct{}{}
	r.status[id] = status
}

// SetFocusHint updates the focus-hint family.
func (r *Registry) SetFocusHint(family string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focusHint = family
}

// SetSelected records the election outcome, updating lastSelected whenever
// the new selection is non-empty.
func (r *Registry) SetSelected(id domain.PlayerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
	if id != "" {
		r.lastSelected = id
	}
}

// Snapshot is a point-in-time, copy-out view of the registry sufficient
// to run the election engine and to answer IPC target-player queries.
type Snapshot struct {
	Players      map[domain.PlayerID]string
	Selected     domain.PlayerID
	LastSelected domain.PlayerID
	FocusHint    string
}

// Snapshot returns a consistent copy of the registry's contents.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	players := make(map[domain.PlayerID]string, len(r.players))
	for id := range r.players {
		players[id] = r.status[id]
	}
	return Snapshot{
		Players:      players,
		Selected:     r.selected,
		LastSelected: r.lastSelected,
		FocusHint:    r.focusHint,
	}
}

// Selected returns the current selection.
func (r *Registry) Selected() domain.PlayerID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}
