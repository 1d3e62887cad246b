package memory

import (
	"sync"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"
)

// MatchRegistry is an in-memory implementation of app.MatchRegistry.
// The waiting queue and player index share one lock so pairing is a single
// critical section.
type MatchRegistry struct {
	newMatch app.MatchFactory

	mu       sync.Mutex
	waiting  []domain.Player
	matches  map[string]*app.Match
	byPlayer map[string]string
}

func NewMatchRegistry(factory app.MatchFactory) *MatchRegistry {
	return &MatchRegistry{
		newMatch: factory,
		matches:  make(map[string]*app.Match),
		byPlayer: make(map[string]string),
	}
}

func (r *MatchRegistry) Admit(p domain.Player) (*app.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byPlayer[p.UserID]; ok {
		if m, ok := r.matches[id]; ok && m.Status() != domain.StatusCompleted {
			return m, false
		}
		delete(r.byPlayer, p.UserID)
	}
	if r.queuedLocked(p.UserID) >= 0 {
		return nil, false
	}
	if len(r.waiting) == 0 {
		r.waiting = append(r.waiting, p)
		return nil, false
	}

	opponent := r.waiting[0]
	r.waiting = r.waiting[1:]
	m := r.newMatch(opponent, p)
	r.matches[m.ID()] = m
	r.byPlayer[opponent.UserID] = m.ID()
	r.byPlayer[p.UserID] = m.ID()
	return m, true
}

func (r *MatchRegistry) Withdraw(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.queuedLocked(playerID); i >= 0 {
		r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
	}
}

func (r *MatchRegistry) Lookup(playerID string) (*app.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[id]
	return m, ok
}

func (r *MatchRegistry) LookupByID(matchID string) (*app.Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	return m, ok
}

// Remove drops the match and every index entry still pointing at it.
func (r *MatchRegistry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok {
		return
	}
	delete(r.matches, matchID)
	a, b := m.Players()
	r.unindexLocked(a.UserID, matchID)
	if b != nil {
		r.unindexLocked(b.UserID, matchID)
	}
}

// Stats reports the queue length and number of tracked matches.
func (r *MatchRegistry) Stats() (waiting, matches int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting), len(r.matches)
}

func (r *MatchRegistry) unindexLocked(playerID, matchID string) {
	if r.byPlayer[playerID] == matchID {
		delete(r.byPlayer, playerID)
	}
}

func (r *MatchRegistry) queuedLocked(playerID string) int {
	for i, p := range r.waiting {
		if p.UserID == playerID {
			return i
		}
	}
	return -1
}
