package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

type gameSessionModel struct {
	bun.BaseModel `bun:"table:game_sessions"`

	ID        string     `bun:"id,pk"`
	MatchID   string     `bun:"match_id,notnull"`
	Player1ID string     `bun:"player1_id,notnull"`
	Player2ID string     `bun:"player2_id,nullzero"`
	StartTime *time.Time `bun:"start_time"`
	EndTime   *time.Time `bun:"end_time"`
	Status    string     `bun:"status,notnull"`
}

type playerAnswerModel struct {
	bun.BaseModel `bun:"table:player_answers"`

	ID            string    `bun:"id,pk"`
	GameSessionID string    `bun:"game_session_id,notnull"`
	PlayerID      string    `bun:"player_id,notnull"`
	QuestionID    string    `bun:"question_id,notnull"`
	Answer        int       `bun:"answer,notnull"`
	IsCorrect     bool      `bun:"is_correct,notnull"`
	Expression    string    `bun:"expression,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type leaderboardEntryModel struct {
	bun.BaseModel `bun:"table:leaderboard_entries"`

	PlayerID   string    `bun:"player_id,pk"`
	Email      string    `bun:"email,notnull"`
	TotalScore int       `bun:"total_score,notnull"`
	TotalGames int       `bun:"total_games,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}
