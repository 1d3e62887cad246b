// Package protocol defines the websocket message set. Every message is a flat
// JSON object discriminated by its "type" field.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"mathduel-service/internal/domain"
)

// Type is the wire discriminator.
type Type string

const (
	TypeJoinWaitingRoom  Type = "JOIN_WAITING_ROOM"
	TypeAnswerSubmission Type = "ANSWER_SUBMISSION"
	TypePing             Type = "PING"
	TypeConnected        Type = "CONNECTED"
	TypeWaiting          Type = "WAITING"
	TypeGameStarted      Type = "GAME_STARTED"
	TypeQuestion         Type = "QUESTION"
	TypeScoreUpdate      Type = "SCORE_UPDATE"
	TypeGameEnded        Type = "GAME_ENDED"
	TypeError            Type = "ERROR"
)

var (
	// ErrMalformed is returned for payloads that are not valid JSON or miss required fields.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned for a well-formed message with an unsupported type.
	ErrUnknownType = errors.New("unsupported message type")
)

// Inbound is a client-to-server message.
type Inbound interface {
	inbound()
}

// Outbound is a server-to-client message.
type Outbound interface {
	MessageType() Type
}

type JoinWaitingRoom struct{}

type AnswerSubmission struct {
	QuestionID string `json:"questionId"`
	Answer     int    `json:"answer"`
	Timestamp  int64  `json:"timestamp"`
}

// Ping travels both ways: clients send it, the server echoes it with its own clock.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

func (JoinWaitingRoom) inbound()  {}
func (AnswerSubmission) inbound() {}
func (Ping) inbound()             {}

type Connected struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

type Waiting struct {
	Message string `json:"message"`
}

type GameStarted struct {
	RoomID       string `json:"roomId"`
	OpponentID   string `json:"opponentId"`
	OpponentName string `json:"opponentName"`
	StartTime    int64  `json:"startTime"`
}

type Question struct {
	QuestionID     string `json:"questionId"`
	Expression     string `json:"expression"`
	QuestionNumber int    `json:"questionNumber"`
	TotalQuestions int    `json:"totalQuestions"`
}

type ScoreUpdate struct {
	YourScore     int `json:"yourScore"`
	OpponentScore int `json:"opponentScore"`
}

type GameEnded struct {
	YourScore      int           `json:"yourScore"`
	OpponentScore  int           `json:"opponentScore"`
	Result         domain.Result `json:"result"`
	CorrectAnswers int           `json:"correctAnswers"`
	TotalQuestions int           `json:"totalQuestions"`
}

type Error struct {
	Message string `json:"message"`
}

func (Ping) MessageType() Type        { return TypePing }
func (Connected) MessageType() Type   { return TypeConnected }
func (Waiting) MessageType() Type     { return TypeWaiting }
func (GameStarted) MessageType() Type { return TypeGameStarted }
func (Question) MessageType() Type    { return TypeQuestion }
func (ScoreUpdate) MessageType() Type { return TypeScoreUpdate }
func (GameEnded) MessageType() Type   { return TypeGameEnded }
func (Error) MessageType() Type       { return TypeError }

// NewGameEnded maps a match summary onto the wire message.
func NewGameEnded(s domain.Summary) GameEnded {
	return GameEnded{
		YourScore:      s.YourScore,
		OpponentScore:  s.OpponentScore,
		Result:         s.Result,
		CorrectAnswers: s.CorrectAnswers,
		TotalQuestions: s.TotalQuestions,
	}
}

type envelope struct {
	Type Type `json:"type"`
}

type answerWire struct {
	QuestionID string `json:"questionId"`
	Answer     *int   `json:"answer"`
	Timestamp  int64  `json:"timestamp"`
}

// Decode parses a client frame into its concrete inbound message.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeJoinWaitingRoom:
		return JoinWaitingRoom{}, nil
	case TypeAnswerSubmission:
		var w answerWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if w.QuestionID == "" || w.Answer == nil {
			return nil, fmt.Errorf("%w: questionId and answer are required", ErrMalformed)
		}
		return AnswerSubmission{QuestionID: w.QuestionID, Answer: *w.Answer, Timestamp: w.Timestamp}, nil
	case TypePing:
		var p Ping
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}
}

// Encode renders an outbound message with its type discriminator inlined.
func Encode(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(msg.MessageType())
	fields["type"] = tag
	return json.Marshal(fields)
}
