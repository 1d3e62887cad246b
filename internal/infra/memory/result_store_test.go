package memory

import (
	"context"
	"errors"
	"testing"

	"mathduel-service/internal/domain"
)

func TestResultStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	h, err := store.CreateSession(ctx, "m1", "a", "b")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := store.StartSession(ctx, h); err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := store.RecordAnswer(ctx, h, domain.AnswerRecord{PlayerID: "a", QuestionID: "q1", Answer: 4, Correct: true, Expression: "2 + 2"}); err != nil {
		t.Fatalf("record answer: %v", err)
	}
	if err := store.EndSession(ctx, h); err != nil {
		t.Fatalf("end session: %v", err)
	}

	rec, ok := store.Session(h)
	if !ok {
		t.Fatalf("session missing")
	}
	if rec.Status != domain.StatusCompleted || rec.StartedAt.IsZero() || rec.EndedAt.IsZero() {
		t.Fatalf("unexpected session record %+v", rec)
	}
	if got := store.Answers(h); len(got) != 1 || !got[0].Correct {
		t.Fatalf("unexpected answers %+v", got)
	}
	if got := store.SessionsFor("m1"); len(got) != 1 {
		t.Fatalf("expected one session for match, got %d", len(got))
	}
}

func TestResultStoreUnknownHandle(t *testing.T) {
	store := NewResultStore()
	if err := store.EndSession(context.Background(), "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestResultStoreLeaderboardAccumulates(t *testing.T) {
	ctx := context.Background()
	store := NewResultStore()

	_ = store.UpdateLeaderboard(ctx, "a", "a@example.com", 3)
	_ = store.UpdateLeaderboard(ctx, "a", "", 2)
	_ = store.UpdateLeaderboard(ctx, "b", "b@example.com", 7)
	_ = store.UpdateLeaderboard(ctx, "c", "c@example.com", 0)

	top, err := store.LoadTop(ctx, 2)
	if err != nil {
		t.Fatalf("load top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].PlayerID != "b" || top[0].TotalScore != 7 {
		t.Fatalf("unexpected leader %+v", top[0])
	}
	if top[1].PlayerID != "a" || top[1].TotalScore != 5 || top[1].TotalGames != 2 || top[1].Email != "a@example.com" {
		t.Fatalf("unexpected runner-up %+v", top[1])
	}
}
