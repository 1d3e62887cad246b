package app

import (
	"context"

	"mathduel-service/internal/domain"
	"mathduel-service/internal/protocol"
	"mathduel-service/internal/session"

	"github.com/google/uuid"
)

// MatchRegistry abstracts where waiting players and live matches are tracked (in-memory, Redis, etc).
type MatchRegistry interface {
	// Admit pairs p with the head of the waiting queue or enqueues p. paired is
	// true only when this call created the match; a player already seated in a
	// live match gets that match back with paired false.
	Admit(p domain.Player) (m *Match, paired bool)
	Withdraw(playerID string)
	Lookup(playerID string) (*Match, bool)
	LookupByID(matchID string) (*Match, bool)
	Remove(matchID string)
}

// SessionRouter delivers protocol messages to connected players.
type SessionRouter interface {
	Register(playerID string, t session.Transport)
	Send(playerID string, msg protocol.Outbound)
	Unregister(t session.Transport) (string, bool)
}

// ResultStore persists match sessions, answers and leaderboard totals.
type ResultStore interface {
	CreateSession(ctx context.Context, matchID, playerAID, playerBID string) (string, error)
	StartSession(ctx context.Context, handle string) error
	EndSession(ctx context.Context, handle string) error
	RecordAnswer(ctx context.Context, handle string, answer domain.AnswerRecord) error
	UpdateLeaderboard(ctx context.Context, playerID, email string, scoreDelta int) error
}

// LeaderboardReader serves the ranked leaderboard.
type LeaderboardReader interface {
	Top(ctx context.Context, limit int) (domain.Leaderboard, error)
}

// EventPublisher forwards match lifecycle events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.MatchEvent) error
}

// QuestionSource supplies fresh questions; it keeps no per-match state.
type QuestionSource interface {
	Generate(n int) []domain.Question
}

// MatchFactory builds a fully prepared match for two players.
type MatchFactory func(first, second domain.Player) *Match

// NewMatchFactory generates the question list before the match is handed out,
// so questions are never mutated once players can see them.
func NewMatchFactory(src QuestionSource, questionsPerMatch int) MatchFactory {
	return func(first, second domain.Player) *Match {
		m := NewMatch(uuid.NewString(), first)
		m.Seat(second)
		for _, q := range src.Generate(questionsPerMatch) {
			m.AddQuestion(q)
		}
		return m
	}
}
