package app

import (
	"sync"
	"time"

	"mathduel-service/internal/domain"
)

// Match is the per-pair state machine. All methods are safe for concurrent use.
type Match struct {
	id  string
	now func() time.Time

	mu        sync.RWMutex
	playerA   domain.Player
	playerB   *domain.Player
	status    domain.MatchStatus
	startTime time.Time
	endTime   time.Time
	questions []domain.Question
	answers   map[string]map[string]int
	scored    map[string]map[string]bool
	cursors   map[string]int
	handle    string

	// notifyMu orders player notifications against the end-of-match announcement.
	notifyMu sync.Mutex
	writes   *journal
}

// SubmitOutcome describes how a single submission was applied.
type SubmitOutcome struct {
	Question domain.Question
	Correct  bool
	// Scored is true only for the first correct submission of a (player, question) pair.
	Scored bool
}

// NewMatch creates a WAITING match with its first seat taken.
func NewMatch(id string, first domain.Player) *Match {
	return NewMatchWithClock(id, first, time.Now)
}

// NewMatchWithClock allows deterministic timestamps in tests.
func NewMatchWithClock(id string, first domain.Player, now func() time.Time) *Match {
	return &Match{
		id:      id,
		now:     now,
		playerA: first,
		status:  domain.StatusWaiting,
		answers: make(map[string]map[string]int),
		scored:  make(map[string]map[string]bool),
		cursors: make(map[string]int),
		writes:  newJournal(),
	}
}

func (m *Match) ID() string { return m.id }

// Seat fills the second seat. It fails if the seat is taken or the player already sits.
func (m *Match) Seat(p domain.Player) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playerB != nil || p.UserID == m.playerA.UserID {
		return false
	}
	m.playerB = &p
	return true
}

// AddQuestion appends to the question list. Only allowed before start.
func (m *Match) AddQuestion(q domain.Question) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != domain.StatusWaiting {
		return false
	}
	m.questions = append(m.questions, q)
	return true
}

// Start moves WAITING -> ACTIVE when both seats are filled. It reports whether
// this call performed the transition.
func (m *Match) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != domain.StatusWaiting || m.playerB == nil {
		return false
	}
	m.status = domain.StatusActive
	m.startTime = m.now()
	return true
}

// End moves the match to COMPLETED. Only the first call reports true.
func (m *Match) End() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == domain.StatusCompleted {
		return false
	}
	m.status = domain.StatusCompleted
	m.endTime = m.now()
	return true
}

// RecordAnswer stores the answer for (player, question); last write wins.
func (m *Match) RecordAnswer(playerID, questionID string, value int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(playerID, questionID, value)
}

// Evaluate reports whether the recorded answer matches the question. Unknown
// questions and missing answers evaluate false.
func (m *Match) Evaluate(playerID, questionID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.evaluateLocked(playerID, questionID)
}

// ApplyCorrectAnswer credits one point and one correct answer to the player.
func (m *Match) ApplyCorrectAnswer(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creditLocked(playerID)
}

// Submit records, evaluates and scores one answer under a single lock. It
// is the locked composition of RecordAnswer, Evaluate and ApplyCorrectAnswer,
// and only an ACTIVE match accepts answers.
func (m *Match) Submit(playerID, questionID string, value int) (SubmitOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != domain.StatusActive {
		return SubmitOutcome{}, domain.ErrNoActiveMatch
	}
	q, ok := m.questionLocked(questionID)
	if !ok {
		return SubmitOutcome{}, domain.ErrQuestionNotFound
	}
	m.recordLocked(playerID, questionID, value)
	out := SubmitOutcome{Question: q, Correct: m.evaluateLocked(playerID, questionID)}

	if out.Correct && !m.scored[playerID][questionID] {
		if m.scored[playerID] == nil {
			m.scored[playerID] = make(map[string]bool)
		}
		m.scored[playerID][questionID] = true
		m.creditLocked(playerID)
		out.Scored = true
	}
	return out, nil
}

// Result compares scores from playerID's point of view. Strangers get DRAW.
func (m *Match) Result(playerID string) domain.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.resultLocked(playerID)
}

// Summary returns the end-of-match view for playerID.
func (m *Match) Summary(playerID string) domain.Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	own, opp := m.seatsLocked(playerID)
	s := domain.Summary{
		Result:         m.resultLocked(playerID),
		TotalQuestions: len(m.questions),
	}
	if own != nil {
		s.YourScore = own.Score
		s.CorrectAnswers = own.CorrectAnswers
	}
	if opp != nil {
		s.OpponentScore = opp.Score
	}
	return s
}

// Scores returns (own, opponent) scores for playerID.
func (m *Match) Scores(playerID string) (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	own, opp := m.seatsLocked(playerID)
	var a, b int
	if own != nil {
		a = own.Score
	}
	if opp != nil {
		b = opp.Score
	}
	return a, b
}

// Players returns copies of both seats; second is nil while the seat is empty.
func (m *Match) Players() (domain.Player, *domain.Player) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.playerB == nil {
		return m.playerA, nil
	}
	b := *m.playerB
	return m.playerA, &b
}

// Opponent returns the other seat for playerID.
func (m *Match) Opponent(playerID string) (domain.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	own, opp := m.seatsLocked(playerID)
	if own == nil || opp == nil {
		return domain.Player{}, false
	}
	return *opp, true
}

func (m *Match) HasPlayer(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	own, _ := m.seatsLocked(playerID)
	return own != nil
}

func (m *Match) Status() domain.MatchStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Match) StartTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startTime
}

func (m *Match) EndTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.endTime
}

// Questions returns a copy of the question list.
func (m *Match) Questions() []domain.Question {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Question(nil), m.questions...)
}

// ResetCursors rewinds every seated player's delivery cursor to the first question.
func (m *Match) ResetCursors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors = map[string]int{m.playerA.UserID: 0}
	if m.playerB != nil {
		m.cursors[m.playerB.UserID] = 0
	}
}

// NextQuestion returns questions[cursor] for playerID and advances the cursor.
// number is 1-based. ok is false once the list is exhausted.
func (m *Match) NextQuestion(playerID string) (q domain.Question, number int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cursor := m.cursors[playerID]
	if cursor >= len(m.questions) {
		return domain.Question{}, 0, false
	}
	m.cursors[playerID] = cursor + 1
	return m.questions[cursor], cursor + 1, true
}

// PendingQuestion returns the last question delivered to playerID without advancing.
func (m *Match) PendingQuestion(playerID string) (q domain.Question, number int, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cursor := m.cursors[playerID]
	if cursor == 0 || cursor > len(m.questions) {
		return domain.Question{}, 0, false
	}
	return m.questions[cursor-1], cursor, true
}

// SessionHandle is the persistence handle obtained at start, if any.
func (m *Match) SessionHandle() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handle
}

func (m *Match) SetSessionHandle(handle string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handle = handle
}

// whileActive runs fn only if the match is ACTIVE, holding the notification
// lock so fn cannot interleave with announce.
func (m *Match) whileActive(fn func()) bool {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if m.Status() != domain.StatusActive {
		return false
	}
	fn()
	return true
}

func (m *Match) announce(fn func()) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	fn()
}

func (m *Match) recordLocked(playerID, questionID string, value int) {
	if m.answers[playerID] == nil {
		m.answers[playerID] = make(map[string]int)
	}
	m.answers[playerID][questionID] = value
}

func (m *Match) evaluateLocked(playerID, questionID string) bool {
	answer, ok := m.answers[playerID][questionID]
	if !ok {
		return false
	}
	q, ok := m.questionLocked(questionID)
	if !ok {
		return false
	}
	return answer == q.CorrectAnswer
}

func (m *Match) creditLocked(playerID string) {
	own, _ := m.seatsLocked(playerID)
	if own == nil {
		return
	}
	own.Score++
	own.CorrectAnswers++
}

func (m *Match) questionLocked(questionID string) (domain.Question, bool) {
	for _, q := range m.questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

func (m *Match) resultLocked(playerID string) domain.Result {
	own, opp := m.seatsLocked(playerID)
	if own == nil || opp == nil {
		return domain.ResultDraw
	}
	switch {
	case own.Score > opp.Score:
		return domain.ResultWin
	case own.Score < opp.Score:
		return domain.ResultLose
	default:
		return domain.ResultDraw
	}
}

// seatsLocked returns pointers to (playerID's seat, the other seat).
func (m *Match) seatsLocked(playerID string) (*domain.Player, *domain.Player) {
	switch {
	case m.playerA.UserID == playerID:
		return &m.playerA, m.playerB
	case m.playerB != nil && m.playerB.UserID == playerID:
		return m.playerB, &m.playerA
	default:
		return nil, nil
	}
}
