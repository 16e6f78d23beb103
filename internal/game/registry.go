package game

import (
	"sync"

	"github.com/google/uuid"
)

// MatchRegistry tracks the handles of all running matches. Safe for
// concurrent use.
type MatchRegistry struct {
	mu      sync.RWMutex
	matches map[uuid.UUID]*MatchHandle
}

// NewMatchRegistry returns an empty registry.
func NewMatchRegistry() *MatchRegistry {
	return &MatchRegistry{matches: make(map[uuid.UUID]*MatchHandle)}
}

// Insert registers a match handle.
func (r *MatchRegistry) Insert(h *MatchHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[h.ID] = h
}

// Remove deregisters a match by id.
func (r *MatchRegistry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matches, id)
}

// Get returns the handle for a match id.
func (r *MatchRegistry) Get(id uuid.UUID) (*MatchHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.matches[id]
	return h, ok
}

// ActiveMatches returns the number of registered matches.
func (r *MatchRegistry) ActiveMatches() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.matches)
}

// TotalPlayers returns the player count summed over all matches.
func (r *MatchRegistry) TotalPlayers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, h := range r.matches {
		total += h.PlayerCount()
	}
	return total
}

// FindAvailableMatch returns a joinable match with room for more players,
// preferring fuller matches so lobbies fill quickly.
func (r *MatchRegistry) FindAvailableMatch(maxPlayers int) (*MatchHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *MatchHandle
	for _, h := range r.matches {
		if !h.Joinable() {
			continue
		}
		n := h.PlayerCount()
		if n >= maxPlayers {
			continue
		}
		if best == nil || n > best.PlayerCount() {
			best = h
		}
	}
	return best, best != nil
}
