package memory

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"mathduel-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// LeaderboardLoader fetches ranked entries from a backing store (e.g., Postgres).
type LeaderboardLoader interface {
	LoadTop(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardRepository caches leaderboard snapshots with TTL to avoid repeated DB hits.
type LeaderboardRepository struct {
	loader LeaderboardLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[int]cachedBoard
}

type cachedBoard struct {
	board     domain.Leaderboard
	expiresAt time.Time
}

func NewLeaderboardRepository(loader LeaderboardLoader, ttl time.Duration) *LeaderboardRepository {
	return &LeaderboardRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[int]cachedBoard),
	}
}

func (r *LeaderboardRepository) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	limit = domain.NormalizeLimit(limit)
	if board, ok := r.cached(limit); ok {
		return board, nil
	}

	result, err, _ := r.sf.Do(strconv.Itoa(limit), func() (interface{}, error) {
		if board, ok := r.cached(limit); ok {
			return board, nil
		}
		return r.load(ctx, limit)
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Refresh reloads the snapshot for limit regardless of expiry.
func (r *LeaderboardRepository) Refresh(ctx context.Context, limit int) error {
	limit = domain.NormalizeLimit(limit)
	_, err, _ := r.sf.Do(strconv.Itoa(limit), func() (interface{}, error) {
		return r.load(ctx, limit)
	})
	return err
}

func (r *LeaderboardRepository) cached(limit int) (domain.Leaderboard, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[limit]; ok && entry.expiresAt.After(now) {
		return entry.board, true
	}
	return domain.Leaderboard{}, false
}

func (r *LeaderboardRepository) load(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := r.loader.LoadTop(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	now := r.clock()
	board := domain.Leaderboard{TopPlayers: entries, UpdatedAt: now}

	r.mu.Lock()
	r.cache[limit] = cachedBoard{board: board, expiresAt: now.Add(r.ttlWithJitter())}
	r.mu.Unlock()
	return board, nil
}

func (r *LeaderboardRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
