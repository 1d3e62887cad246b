package memory

import (
	"fmt"
	"sync"
	"testing"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"
)

type staticQuestions struct{}

func (staticQuestions) Generate(n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{ID: fmt.Sprintf("q%d", i+1), Expression: "1 + 1", CorrectAnswer: 2}
	}
	return out
}

func newTestRegistry() *MatchRegistry {
	return NewMatchRegistry(app.NewMatchFactory(staticQuestions{}, 3))
}

func player(id string) domain.Player {
	return domain.Player{UserID: id, DisplayName: id}
}

func TestMatchRegistryPairsInArrivalOrder(t *testing.T) {
	reg := newTestRegistry()

	if m, _ := reg.Admit(player("a")); m != nil {
		t.Fatalf("first player should wait")
	}
	m, paired := reg.Admit(player("b"))
	if m == nil || !paired {
		t.Fatalf("expected new match, got %v paired=%v", m, paired)
	}
	a, b := m.Players()
	if a.UserID != "a" || b == nil || b.UserID != "b" {
		t.Fatalf("unexpected seats %v %v", a, b)
	}
	if len(m.Questions()) != 3 {
		t.Fatalf("expected questions prepared, got %d", len(m.Questions()))
	}
	for _, id := range []string{"a", "b"} {
		got, ok := reg.Lookup(id)
		if !ok || got != m {
			t.Fatalf("player %s not indexed to match", id)
		}
	}
	if waiting, matches := reg.Stats(); waiting != 0 || matches != 1 {
		t.Fatalf("stats = %d waiting, %d matches", waiting, matches)
	}
}

func TestMatchRegistryDuplicateQueueAdmissionIgnored(t *testing.T) {
	reg := newTestRegistry()
	reg.Admit(player("a"))
	if m, _ := reg.Admit(player("a")); m != nil {
		t.Fatalf("player must not be paired with themselves")
	}
	if waiting, _ := reg.Stats(); waiting != 1 {
		t.Fatalf("expected one queued player, got %d", waiting)
	}
}

func TestMatchRegistryReturnsExistingMatch(t *testing.T) {
	reg := newTestRegistry()
	reg.Admit(player("a"))
	m, _ := reg.Admit(player("b"))

	again, paired := reg.Admit(player("a"))
	if again != m || paired {
		t.Fatalf("expected existing match without pairing")
	}
}

func TestMatchRegistryWithdraw(t *testing.T) {
	reg := newTestRegistry()
	reg.Admit(player("a"))
	reg.Withdraw("a")
	reg.Withdraw("a")

	if m, _ := reg.Admit(player("b")); m != nil {
		t.Fatalf("withdrawn player must not be paired")
	}
}

func TestMatchRegistryRemoveClearsIndex(t *testing.T) {
	reg := newTestRegistry()
	reg.Admit(player("a"))
	m, _ := reg.Admit(player("b"))

	reg.Remove(m.ID())
	reg.Remove(m.ID())
	if _, ok := reg.LookupByID(m.ID()); ok {
		t.Fatalf("match still registered")
	}
	if _, ok := reg.Lookup("a"); ok {
		t.Fatalf("player index not cleared")
	}

	// Both players can queue again.
	reg.Admit(player("a"))
	if m2, paired := reg.Admit(player("b")); m2 == nil || !paired || m2.ID() == m.ID() {
		t.Fatalf("expected fresh match")
	}
}

func TestMatchRegistryCompletedMatchDoesNotBlockRequeue(t *testing.T) {
	reg := newTestRegistry()
	reg.Admit(player("a"))
	m, _ := reg.Admit(player("b"))
	m.End()

	if got, _ := reg.Admit(player("a")); got != nil {
		t.Fatalf("expected player to wait after completed match, got %v", got.ID())
	}
}

func TestMatchRegistryConcurrentAdmit(t *testing.T) {
	reg := newTestRegistry()
	const players = 200

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created []*app.Match
	)
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, paired := reg.Admit(player(fmt.Sprintf("p%d", i)))
			if paired {
				mu.Lock()
				created = append(created, m)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(created) != players/2 {
		t.Fatalf("expected %d matches, got %d", players/2, len(created))
	}
	seen := make(map[string]bool)
	for _, m := range created {
		a, b := m.Players()
		if b == nil || a.UserID == b.UserID {
			t.Fatalf("match %s has invalid seats", m.ID())
		}
		for _, id := range []string{a.UserID, b.UserID} {
			if seen[id] {
				t.Fatalf("player %s seated twice", id)
			}
			seen[id] = true
		}
	}
}
