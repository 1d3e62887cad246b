package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"mathduel-service/internal/domain"

	"github.com/google/uuid"
)

// SessionRecord is the stored lifecycle of one match.
type SessionRecord struct {
	ID        string
	MatchID   string
	PlayerAID string
	PlayerBID string
	Status    domain.MatchStatus
	StartedAt time.Time
	EndedAt   time.Time
}

// ResultStore is an in-memory implementation of app.ResultStore. It also acts
// as a LeaderboardLoader so the cache can sit in front of it.
type ResultStore struct {
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	answers  map[string][]domain.AnswerRecord
	entries  map[string]*domain.LeaderboardEntry
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		clock:    time.Now,
		sessions: make(map[string]*SessionRecord),
		answers:  make(map[string][]domain.AnswerRecord),
		entries:  make(map[string]*domain.LeaderboardEntry),
	}
}

func (s *ResultStore) CreateSession(_ context.Context, matchID, playerAID, playerBID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.sessions[id] = &SessionRecord{
		ID:        id,
		MatchID:   matchID,
		PlayerAID: playerAID,
		PlayerBID: playerBID,
		Status:    domain.StatusWaiting,
	}
	return id, nil
}

func (s *ResultStore) StartSession(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[handle]
	if !ok {
		return domain.ErrSessionNotFound
	}
	rec.Status = domain.StatusActive
	rec.StartedAt = s.clock()
	return nil
}

func (s *ResultStore) EndSession(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[handle]
	if !ok {
		return domain.ErrSessionNotFound
	}
	rec.Status = domain.StatusCompleted
	rec.EndedAt = s.clock()
	return nil
}

func (s *ResultStore) RecordAnswer(_ context.Context, handle string, answer domain.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[handle]; !ok {
		return domain.ErrSessionNotFound
	}
	s.answers[handle] = append(s.answers[handle], answer)
	return nil
}

func (s *ResultStore) UpdateLeaderboard(_ context.Context, playerID, email string, scoreDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[playerID]
	if !ok {
		e = &domain.LeaderboardEntry{PlayerID: playerID}
		s.entries[playerID] = e
	}
	if email != "" {
		e.Email = email
	}
	e.TotalScore += scoreDelta
	e.TotalGames++
	return nil
}

// LoadTop returns up to limit entries, highest total score first.
func (s *ResultStore) LoadTop(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	out := make([]domain.LeaderboardEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Session returns a copy of the stored session.
func (s *ResultStore) Session(handle string) (SessionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[handle]
	if !ok {
		return SessionRecord{}, false
	}
	return *rec, true
}

// SessionsFor returns every session recorded for matchID.
func (s *ResultStore) SessionsFor(matchID string) []SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SessionRecord
	for _, rec := range s.sessions {
		if rec.MatchID == matchID {
			out = append(out, *rec)
		}
	}
	return out
}

// Answers returns the answers stored under handle in submission order.
func (s *ResultStore) Answers(handle string) []domain.AnswerRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AnswerRecord(nil), s.answers[handle]...)
}
