package app

import (
	"sync"
	"testing"
	"time"

	"mathduel-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatch(t *testing.T) (*Match, *time.Time) {
	t.Helper()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMatchWithClock("m1", domain.Player{UserID: "a", DisplayName: "Alice"}, func() time.Time { return now })
	require.True(t, m.Seat(domain.Player{UserID: "b", DisplayName: "Bob"}))
	require.True(t, m.AddQuestion(domain.Question{ID: "q1", Expression: "2 + 3", CorrectAnswer: 5}))
	require.True(t, m.AddQuestion(domain.Question{ID: "q2", Expression: "6 ÷ 2", CorrectAnswer: 3}))
	return m, &now
}

func TestMatch_StartIsIdempotent(t *testing.T) {
	m, now := newTestMatch(t)
	started := *now

	require.True(t, m.Start())
	*now = now.Add(5 * time.Second)
	assert.False(t, m.Start())

	assert.Equal(t, domain.StatusActive, m.Status())
	assert.Equal(t, started, m.StartTime())
}

func TestMatch_StartNeedsTwoPlayers(t *testing.T) {
	m := NewMatch("solo", domain.Player{UserID: "a"})
	assert.False(t, m.Start())
	assert.Equal(t, domain.StatusWaiting, m.Status())
}

func TestMatch_SeatRejectsSamePlayerAndFullMatch(t *testing.T) {
	m := NewMatch("m", domain.Player{UserID: "a"})
	assert.False(t, m.Seat(domain.Player{UserID: "a"}))
	assert.True(t, m.Seat(domain.Player{UserID: "b"}))
	assert.False(t, m.Seat(domain.Player{UserID: "c"}))
}

func TestMatch_QuestionsFrozenAfterStart(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())
	assert.False(t, m.AddQuestion(domain.Question{ID: "late"}))
	assert.Len(t, m.Questions(), 2)
}

func TestMatch_EvaluateMissing(t *testing.T) {
	m, _ := newTestMatch(t)
	assert.False(t, m.Evaluate("a", "q1"), "no recorded answer")
	m.RecordAnswer("a", "ghost", 5)
	assert.False(t, m.Evaluate("a", "ghost"), "unknown question")
	assert.False(t, m.Evaluate("nobody", "q1"))
}

func TestMatch_ResubmissionScoresOnce(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())

	out, err := m.Submit("a", "q1", 4)
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.False(t, m.Evaluate("a", "q1"))

	out, err = m.Submit("a", "q1", 5)
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.True(t, out.Scored)
	assert.True(t, m.Evaluate("a", "q1"), "last write wins")

	out, err = m.Submit("a", "q1", 5)
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.False(t, out.Scored)

	own, opp := m.Scores("a")
	assert.Equal(t, 1, own)
	assert.Equal(t, 0, opp)
}

func TestMatch_SubmitUnknownQuestion(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())
	_, err := m.Submit("a", "nope", 1)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
}

func TestMatch_SubmitRequiresActiveMatch(t *testing.T) {
	m, _ := newTestMatch(t)
	_, err := m.Submit("a", "q1", 5)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch, "not started")

	require.True(t, m.Start())
	require.True(t, m.End())
	assert.False(t, m.End())

	_, err = m.Submit("b", "q2", 3)
	assert.ErrorIs(t, err, domain.ErrNoActiveMatch, "completed")
	assert.False(t, m.Evaluate("b", "q2"), "rejected answer is not recorded")
	own, _ := m.Scores("b")
	assert.Zero(t, own)
}

func TestMatch_RecordEvaluateApply(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())

	m.RecordAnswer("b", "q2", 3)
	require.True(t, m.Evaluate("b", "q2"))
	m.ApplyCorrectAnswer("b")

	own, opp := m.Scores("b")
	assert.Equal(t, 1, own)
	assert.Zero(t, opp)
	assert.Equal(t, 1, m.Summary("b").CorrectAnswers)
	assert.Equal(t, domain.ResultWin, m.Result("b"))
}

func TestMatch_WhileActiveSkipsAfterEnd(t *testing.T) {
	m, _ := newTestMatch(t)
	assert.False(t, m.whileActive(func() { t.Fatal("ran before start") }))

	require.True(t, m.Start())
	ran := false
	assert.True(t, m.whileActive(func() { ran = true }))
	assert.True(t, ran)

	require.True(t, m.End())
	assert.False(t, m.whileActive(func() { t.Fatal("ran after end") }))
}

func TestMatch_ConcurrentSubmitsFromBothSeats(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, _ = m.Submit(id, "q1", 4)
				_, _ = m.Submit(id, "q1", 5)
				_, _ = m.Submit(id, "q2", 3)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		own, opp := m.Scores(id)
		assert.Equal(t, 2, own)
		assert.Equal(t, 2, opp)
		assert.True(t, m.Evaluate(id, "q2"))
	}
	assert.Equal(t, domain.ResultDraw, m.Result("a"))
}

func TestMatch_Result(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())
	assert.Equal(t, domain.ResultDraw, m.Result("a"))

	_, err := m.Submit("b", "q1", 5)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultLose, m.Result("a"))
	assert.Equal(t, domain.ResultWin, m.Result("b"))
	assert.Equal(t, domain.ResultDraw, m.Result("stranger"))

	s := m.Summary("b")
	assert.Equal(t, domain.Summary{YourScore: 1, OpponentScore: 0, Result: domain.ResultWin, CorrectAnswers: 1, TotalQuestions: 2}, s)
}

func TestMatch_IndependentCursors(t *testing.T) {
	m, _ := newTestMatch(t)
	require.True(t, m.Start())
	m.ResetCursors()

	_, _, ok := m.PendingQuestion("a")
	assert.False(t, ok, "nothing delivered yet")

	q, n, ok := m.NextQuestion("a")
	require.True(t, ok)
	assert.Equal(t, "q1", q.ID)
	assert.Equal(t, 1, n)

	q, n, ok = m.NextQuestion("a")
	require.True(t, ok)
	assert.Equal(t, "q2", q.ID)
	assert.Equal(t, 2, n)

	_, _, ok = m.NextQuestion("a")
	assert.False(t, ok, "list exhausted")

	q, n, ok = m.PendingQuestion("a")
	require.True(t, ok)
	assert.Equal(t, "q2", q.ID)
	assert.Equal(t, 2, n)

	q, _, ok = m.NextQuestion("b")
	require.True(t, ok)
	assert.Equal(t, "q1", q.ID, "b has its own cursor")
}
