package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mathduel-service/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OpenDB returns a bun handle over the pgdriver connector for dsn.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// ResultStore persists match sessions, answers and leaderboard totals with bun.
type ResultStore struct {
	db    *bun.DB
	clock func() time.Time
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db, clock: time.Now}
}

func (s *ResultStore) CreateSession(ctx context.Context, matchID, playerAID, playerBID string) (string, error) {
	row := &gameSessionModel{
		ID:        uuid.NewString(),
		MatchID:   matchID,
		Player1ID: playerAID,
		Player2ID: playerBID,
		Status:    string(domain.StatusWaiting),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return row.ID, nil
}

func (s *ResultStore) StartSession(ctx context.Context, handle string) error {
	return s.transition(ctx, handle, domain.StatusActive, "start_time")
}

func (s *ResultStore) EndSession(ctx context.Context, handle string) error {
	return s.transition(ctx, handle, domain.StatusCompleted, "end_time")
}

func (s *ResultStore) transition(ctx context.Context, handle string, status domain.MatchStatus, column string) error {
	res, err := s.db.NewUpdate().
		Model((*gameSessionModel)(nil)).
		Set("status = ?", string(status)).
		Set("? = ?", bun.Ident(column), s.clock().UTC()).
		Where("id = ?", handle).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session %s: %w", handle, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *ResultStore) RecordAnswer(ctx context.Context, handle string, answer domain.AnswerRecord) error {
	row := &playerAnswerModel{
		ID:            uuid.NewString(),
		GameSessionID: handle,
		PlayerID:      answer.PlayerID,
		QuestionID:    answer.QuestionID,
		Answer:        answer.Answer,
		IsCorrect:     answer.Correct,
		Expression:    answer.Expression,
		CreatedAt:     s.clock().UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}
	return nil
}

// UpdateLeaderboard adds scoreDelta and one game to the player's totals in a single upsert.
func (s *ResultStore) UpdateLeaderboard(ctx context.Context, playerID, email string, scoreDelta int) error {
	row := &leaderboardEntryModel{
		PlayerID:   playerID,
		Email:      email,
		TotalScore: scoreDelta,
		TotalGames: 1,
		UpdatedAt:  s.clock().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (player_id) DO UPDATE").
		Set("total_score = leaderboard_entries.total_score + EXCLUDED.total_score").
		Set("total_games = leaderboard_entries.total_games + 1").
		Set("email = COALESCE(NULLIF(EXCLUDED.email, ''), leaderboard_entries.email)").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update leaderboard for %s: %w", playerID, err)
	}
	return nil
}
