package app

import (
	"context"
	"sync"
	"time"

	"mathduel-service/internal/domain"
	"mathduel-service/internal/protocol"
	"mathduel-service/internal/session"

	"go.uber.org/zap"
)

const (
	connectedMessage    = "Successfully connected to game server"
	waitingMessage      = "Waiting for an opponent to join..."
	opponentLeftMessage = "Your opponent has disconnected. Game ended."

	reasonTimeout    = "timeout"
	reasonDisconnect = "opponent_disconnected"
	reasonEnded      = "ended"
)

// Settings tunes match timing and persistence behaviour.
type Settings struct {
	MatchDuration        time.Duration
	PersistTimeout       time.Duration
	PersistRetries       int
	PersistRetryInterval time.Duration
}

// DefaultSettings mirrors the production defaults.
func DefaultSettings() Settings {
	return Settings{
		MatchDuration:        60 * time.Second,
		PersistTimeout:       5 * time.Second,
		PersistRetries:       3,
		PersistRetryInterval: 500 * time.Millisecond,
	}
}

// MatchService contains the matchmaking and match lifecycle use cases.
type MatchService struct {
	registry MatchRegistry
	router   SessionRouter
	store    ResultStore
	events   EventPublisher
	logger   *zap.Logger
	settings Settings

	mu       sync.Mutex
	timers   map[string]*time.Timer
	journals map[string]*journal
	closed   bool
	writers  sync.WaitGroup
}

// NewMatchService wires the orchestrator. events may be nil.
func NewMatchService(registry MatchRegistry, router SessionRouter, store ResultStore, events EventPublisher, logger *zap.Logger, settings Settings) *MatchService {
	if settings.PersistRetries < 1 {
		settings.PersistRetries = 1
	}
	return &MatchService{
		registry: registry,
		router:   router,
		store:    store,
		events:   events,
		logger:   logger.Named("match"),
		settings: settings,
		timers:   make(map[string]*time.Timer),
		journals: make(map[string]*journal),
	}
}

// OnConnect registers the player's transport and acknowledges the connection.
func (s *MatchService) OnConnect(_ context.Context, id domain.Identity, t session.Transport) {
	s.router.Register(id.UserID, t)
	s.logger.Info("player connected", zap.String("player_id", id.UserID))
	s.router.Send(id.UserID, protocol.Connected{UserID: id.UserID, Message: connectedMessage})
}

// JoinQueue admits the player. It returns the match the player ended up in, or
// nil while they wait for an opponent.
func (s *MatchService) JoinQueue(_ context.Context, id domain.Identity) *Match {
	m, paired := s.registry.Admit(domain.NewPlayer(id))
	if m == nil {
		s.logger.Info("player waiting for opponent", zap.String("player_id", id.UserID))
		s.router.Send(id.UserID, protocol.Waiting{Message: waitingMessage})
		return nil
	}
	if paired {
		s.begin(m)
	} else {
		s.resume(m, id.UserID)
	}
	return m
}

// SubmitAnswer applies an answer, replies with the score and pushes the
// player's next question. Answers outside an ACTIVE match are not accepted.
func (s *MatchService) SubmitAnswer(_ context.Context, playerID, questionID string, value int) (SubmitOutcome, error) {
	m, ok := s.registry.Lookup(playerID)
	if !ok {
		return SubmitOutcome{}, domain.ErrNoActiveMatch
	}
	out, err := m.Submit(playerID, questionID, value)
	if err != nil {
		return SubmitOutcome{}, err
	}

	answer := domain.AnswerRecord{
		PlayerID:   playerID,
		QuestionID: questionID,
		Answer:     value,
		Correct:    out.Correct,
		Expression: out.Question.Expression,
	}
	acked := m.whileActive(func() {
		own, opp := m.Scores(playerID)
		s.router.Send(playerID, protocol.ScoreUpdate{YourScore: own, OpponentScore: opp})
		s.sendNextQuestion(m, playerID)
		s.enqueue(m, func(ctx context.Context) { s.recordAnswer(ctx, m, answer) })
	})
	if !acked {
		s.logger.Debug("match ended before answer was acknowledged",
			zap.String("match_id", m.ID()),
			zap.String("player_id", playerID))
	}
	return out, nil
}

// Ping answers a client heartbeat with the server clock.
func (s *MatchService) Ping(playerID string) {
	s.router.Send(playerID, protocol.Ping{Timestamp: time.Now().UnixMilli()})
}

// EndMatch finalizes the match. Only the first call for a match has any effect.
func (s *MatchService) EndMatch(ctx context.Context, matchID string) bool {
	m, ok := s.registry.LookupByID(matchID)
	if !ok {
		return false
	}
	return s.finish(ctx, m, "", reasonEnded)
}

// ScheduleTimeout arms a one-shot timer that ends the match after d.
func (s *MatchService) ScheduleTimeout(matchID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.timers[matchID] == timer {
			delete(s.timers, matchID)
		}
		s.mu.Unlock()

		m, ok := s.registry.LookupByID(matchID)
		if !ok {
			return
		}
		s.logger.Info("match timer expired", zap.String("match_id", matchID))
		s.finish(context.Background(), m, "", reasonTimeout)
	})
	if old, ok := s.timers[matchID]; ok {
		old.Stop()
	}
	s.timers[matchID] = timer
}

// OnDisconnect tears down the session. A queued player is withdrawn; a seated
// player ends their match and the opponent is told why.
func (s *MatchService) OnDisconnect(ctx context.Context, t session.Transport) {
	playerID, ok := s.router.Unregister(t)
	if !ok {
		return
	}
	s.logger.Info("player disconnected", zap.String("player_id", playerID))

	s.registry.Withdraw(playerID)
	m, ok := s.registry.Lookup(playerID)
	if !ok || m.Status() == domain.StatusCompleted {
		return
	}
	s.finish(ctx, m, playerID, reasonDisconnect)
}

// Close stops every pending match timer and waits for queued storage writes.
func (s *MatchService) Close() {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for _, j := range s.journals {
		j.close()
	}
	s.mu.Unlock()
	s.writers.Wait()
}

func (s *MatchService) begin(m *Match) {
	if !m.Start() {
		return
	}
	m.ResetCursors()

	a, b := m.Players()
	s.logger.Info("match started",
		zap.String("match_id", m.ID()),
		zap.String("player_a", a.UserID),
		zap.String("player_b", b.UserID))

	m.whileActive(func() {
		s.ScheduleTimeout(m.ID(), s.settings.MatchDuration)

		start := m.StartTime().UnixMilli()
		s.router.Send(a.UserID, protocol.GameStarted{RoomID: m.ID(), OpponentID: b.UserID, OpponentName: b.DisplayName, StartTime: start})
		s.router.Send(b.UserID, protocol.GameStarted{RoomID: m.ID(), OpponentID: a.UserID, OpponentName: a.DisplayName, StartTime: start})
		s.sendNextQuestion(m, a.UserID)
		s.sendNextQuestion(m, b.UserID)

		event := domain.MatchEvent{
			Kind:      domain.EventMatchStarted,
			MatchID:   m.ID(),
			PlayerIDs: []string{a.UserID, b.UserID},
			At:        m.StartTime(),
		}
		s.enqueue(m, func(ctx context.Context) {
			s.openSession(ctx, m, a.UserID, b.UserID)
			s.publish(ctx, event)
		})
	})
}

// resume re-sends the match header and the outstanding question to a player
// who joined again while already seated.
func (s *MatchService) resume(m *Match, playerID string) {
	if m.Status() != domain.StatusActive {
		return
	}
	opp, ok := m.Opponent(playerID)
	if !ok {
		return
	}
	s.logger.Info("player rejoined active match", zap.String("match_id", m.ID()), zap.String("player_id", playerID))
	m.whileActive(func() {
		s.router.Send(playerID, protocol.GameStarted{
			RoomID:       m.ID(),
			OpponentID:   opp.UserID,
			OpponentName: opp.DisplayName,
			StartTime:    m.StartTime().UnixMilli(),
		})
		if q, n, ok := m.PendingQuestion(playerID); ok {
			s.router.Send(playerID, questionMessage(q, n, len(m.Questions())))
			return
		}
		s.sendNextQuestion(m, playerID)
	})
}

func (s *MatchService) sendNextQuestion(m *Match, playerID string) bool {
	q, n, ok := m.NextQuestion(playerID)
	if !ok {
		return false
	}
	s.router.Send(playerID, questionMessage(q, n, len(m.Questions())))
	return true
}

func questionMessage(q domain.Question, number, total int) protocol.Question {
	return protocol.Question{
		QuestionID:     q.ID,
		Expression:     q.Expression,
		QuestionNumber: number,
		TotalQuestions: total,
	}
}

// finish is the single join point for every way a match can end. Players are
// notified synchronously; storage and the ended event follow on the match
// journal, after any writes queued while the match was running.
func (s *MatchService) finish(_ context.Context, m *Match, departed, reason string) bool {
	if !m.End() {
		return false
	}

	a, b := m.Players()
	seats := []domain.Player{a}
	if b != nil {
		seats = append(seats, *b)
	}

	m.announce(func() {
		s.cancelTimeout(m.ID())
		if departed != "" {
			for _, p := range seats {
				if p.UserID != departed {
					s.router.Send(p.UserID, protocol.Error{Message: opponentLeftMessage})
				}
			}
		}
		for _, p := range seats {
			s.router.Send(p.UserID, protocol.NewGameEnded(m.Summary(p.UserID)))
		}
	})
	s.registry.Remove(m.ID())

	scores := make(map[string]int, len(seats))
	ids := make([]string, 0, len(seats))
	for _, p := range seats {
		scores[p.UserID] = p.Score
		ids = append(ids, p.UserID)
	}
	s.logger.Info("match ended",
		zap.String("match_id", m.ID()),
		zap.String("reason", reason),
		zap.Any("scores", scores))

	event := domain.MatchEvent{
		Kind:      domain.EventMatchEnded,
		MatchID:   m.ID(),
		PlayerIDs: ids,
		Scores:    scores,
		Reason:    reason,
		At:        m.EndTime(),
	}
	queued := s.enqueue(m, func(ctx context.Context) {
		s.persistResult(ctx, m, seats)
		s.publish(ctx, event)
	})
	if !queued {
		s.logger.Warn("match result not persisted, service closed", zap.String("match_id", m.ID()))
	}
	m.writes.close()
	return true
}

func (s *MatchService) cancelTimeout(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[matchID]; ok {
		timer.Stop()
		delete(s.timers, matchID)
	}
}

// enqueue hands a storage job to the match journal, starting its writer on
// first use. It reports false once the journal or the service is closed.
func (s *MatchService) enqueue(m *Match, job func(context.Context)) bool {
	j := m.writes
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	if !j.started {
		j.started = true
		s.journals[m.ID()] = j
		s.writers.Add(1)
		go func() {
			defer s.writers.Done()
			j.run(context.Background())
			s.mu.Lock()
			delete(s.journals, m.ID())
			s.mu.Unlock()
		}()
	}
	s.mu.Unlock()
	return j.push(job)
}

func (s *MatchService) openSession(ctx context.Context, m *Match, playerAID, playerBID string) {
	var handle string
	_ = s.attempt(ctx, "create session", m.ID(), 1, func(ctx context.Context) error {
		h, err := s.store.CreateSession(ctx, m.ID(), playerAID, playerBID)
		if err != nil {
			return err
		}
		handle = h
		return s.store.StartSession(ctx, h)
	})
	if handle != "" {
		m.SetSessionHandle(handle)
	}
}

func (s *MatchService) recordAnswer(ctx context.Context, m *Match, answer domain.AnswerRecord) {
	handle := m.SessionHandle()
	if handle == "" {
		s.logger.Debug("no persistence session, answer not stored", zap.String("match_id", m.ID()))
		return
	}
	_ = s.attempt(ctx, "record answer", m.ID(), 1, func(ctx context.Context) error {
		return s.store.RecordAnswer(ctx, handle, answer)
	})
}

func (s *MatchService) persistResult(ctx context.Context, m *Match, seats []domain.Player) {
	handle := m.SessionHandle()
	if handle == "" && len(seats) == 2 {
		_ = s.attempt(ctx, "create session", m.ID(), s.settings.PersistRetries, func(ctx context.Context) error {
			h, err := s.store.CreateSession(ctx, m.ID(), seats[0].UserID, seats[1].UserID)
			if err == nil {
				handle = h
			}
			return err
		})
	}
	if handle != "" {
		_ = s.attempt(ctx, "end session", m.ID(), s.settings.PersistRetries, func(ctx context.Context) error {
			return s.store.EndSession(ctx, handle)
		})
	}
	for _, p := range seats {
		p := p
		_ = s.attempt(ctx, "update leaderboard", m.ID(), s.settings.PersistRetries, func(ctx context.Context) error {
			return s.store.UpdateLeaderboard(ctx, p.UserID, p.Email, p.Score)
		})
	}
}

// attempt runs fn up to attempts times, each bounded by the persist timeout.
func (s *MatchService) attempt(ctx context.Context, op, matchID string, attempts int, fn func(context.Context) error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		callCtx, cancel := context.WithTimeout(ctx, s.settings.PersistTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		s.logger.Warn("persistence call failed",
			zap.String("op", op),
			zap.String("match_id", matchID),
			zap.Int("attempt", i),
			zap.Error(err))
		if i < attempts {
			select {
			case <-time.After(s.settings.PersistRetryInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	s.logger.Error("persistence call abandoned", zap.String("op", op), zap.String("match_id", matchID), zap.Error(err))
	return err
}

func (s *MatchService) publish(ctx context.Context, event domain.MatchEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish match event failed",
			zap.String("match_id", event.MatchID),
			zap.String("kind", string(event.Kind)),
			zap.Error(err))
	}
}
