package domain

import "errors"

var (
	// ErrNoActiveMatch is returned when a player acts outside an ACTIVE match.
	ErrNoActiveMatch = errors.New("you are not in an active game")
	// ErrQuestionNotFound indicates a submitted question ID is not part of the match.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidToken is returned when a handshake credential cannot be verified.
	ErrInvalidToken = errors.New("invalid or missing token")
	// ErrLeaderboardUnavailable indicates the leaderboard could not be loaded.
	ErrLeaderboardUnavailable = errors.New("leaderboard unavailable")
)

// ErrSessionNotFound is returned by result stores for an unknown session handle.
var ErrSessionNotFound = errors.New("session not found")
