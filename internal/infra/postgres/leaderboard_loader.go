package postgres

import (
	"context"
	"fmt"

	"mathduel-service/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// LeaderboardLoader reads ranked leaderboard rows from Postgres.
type LeaderboardLoader struct {
	pool *pgxpool.Pool
}

func NewLeaderboardLoader(pool *pgxpool.Pool) *LeaderboardLoader {
	return &LeaderboardLoader{pool: pool}
}

func (l *LeaderboardLoader) LoadTop(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT player_id, email, total_score, total_games
		FROM leaderboard_entries
		ORDER BY total_score DESC, player_id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Email, &e.TotalScore, &e.TotalGames); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	return entries, nil
}
