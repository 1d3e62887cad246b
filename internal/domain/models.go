package domain

import "time"

// MatchStatus is the lifecycle state of a two-player match.
type MatchStatus string

const (
	StatusWaiting   MatchStatus = "WAITING"
	StatusActive    MatchStatus = "ACTIVE"
	StatusCompleted MatchStatus = "COMPLETED"
)

// Result is a player's outcome once a match is over.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLose Result = "LOSE"
	ResultDraw Result = "DRAW"
)

// Identity is the verified caller attached to a connection by the auth layer.
type Identity struct {
	UserID      string
	Email       string
	DisplayName string
}

// Player represents a seated participant and their running tally.
type Player struct {
	UserID         string
	DisplayName    string
	Email          string
	Score          int
	CorrectAnswers int
}

// NewPlayer seats an identity with a zero score.
func NewPlayer(id Identity) Player {
	return Player{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Email:       id.Email,
	}
}

// Question is an arithmetic prompt owned by exactly one match.
type Question struct {
	ID            string    `json:"id"`
	Expression    string    `json:"expression"`
	CorrectAnswer int       `json:"correctAnswer"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AnswerRecord is what gets persisted for every accepted submission.
type AnswerRecord struct {
	PlayerID   string
	QuestionID string
	Answer     int
	Correct    bool
	Expression string
}

// Summary is one player's view of a finished (or running) match.
type Summary struct {
	YourScore      int
	OpponentScore  int
	Result         Result
	CorrectAnswers int
	TotalQuestions int
}

// LeaderboardEntry aggregates a player's results over all matches.
type LeaderboardEntry struct {
	PlayerID   string `json:"playerId"`
	Email      string `json:"email"`
	TotalScore int    `json:"totalScore"`
	TotalGames int    `json:"totalGames"`
}

// Leaderboard is an ordered snapshot, highest total score first.
type Leaderboard struct {
	TopPlayers []LeaderboardEntry `json:"topPlayers"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// EventKind names a match lifecycle event.
type EventKind string

const (
	EventMatchStarted EventKind = "match.started"
	EventMatchEnded   EventKind = "match.ended"
)

// MatchEvent is published to downstream consumers on start and end.
type MatchEvent struct {
	Kind      EventKind      `json:"kind"`
	MatchID   string         `json:"matchId"`
	PlayerIDs []string       `json:"playerIds"`
	Scores    map[string]int `json:"scores,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	At        time.Time      `json:"at"`
}

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// NormalizeLimit maps a requested leaderboard size into [1, MaxLeaderboardLimit],
// using DefaultLeaderboardLimit for non-positive input.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}
