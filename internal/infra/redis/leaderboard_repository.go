package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"mathduel-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// LeaderboardLoader fetches ranked entries from a backing store (e.g., Postgres).
type LeaderboardLoader interface {
	LoadTop(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// LeaderboardRepository caches leaderboard snapshots in Redis and falls back to a loader on cache miss.
// Snapshots are stored as JSON: SET mathduel:leaderboard:{limit} {snapshot}
type LeaderboardRepository struct {
	client *redis.Client
	loader LeaderboardLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewLeaderboardRepository(client *redis.Client, loader LeaderboardLoader, ttl time.Duration) *LeaderboardRepository {
	return &LeaderboardRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *LeaderboardRepository) Top(ctx context.Context, limit int) (domain.Leaderboard, error) {
	limit = domain.NormalizeLimit(limit)
	if board, ok := r.cached(ctx, limit); ok {
		return board, nil
	}

	result, err, _ := r.sf.Do(strconv.Itoa(limit), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if board, ok := r.cached(ctx, limit); ok {
			return board, nil
		}
		return r.load(ctx, limit)
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return result.(domain.Leaderboard), nil
}

// Refresh reloads and rewrites the snapshot for limit regardless of expiry.
func (r *LeaderboardRepository) Refresh(ctx context.Context, limit int) error {
	limit = domain.NormalizeLimit(limit)
	_, err, _ := r.sf.Do(strconv.Itoa(limit), func() (interface{}, error) {
		return r.load(ctx, limit)
	})
	return err
}

func (r *LeaderboardRepository) cached(ctx context.Context, limit int) (domain.Leaderboard, bool) {
	raw, err := r.client.Get(ctx, r.key(limit)).Bytes()
	if err != nil {
		return domain.Leaderboard{}, false
	}
	var board domain.Leaderboard
	if err := json.Unmarshal(raw, &board); err != nil {
		return domain.Leaderboard{}, false
	}
	return board, true
}

func (r *LeaderboardRepository) load(ctx context.Context, limit int) (domain.Leaderboard, error) {
	entries, err := r.loader.LoadTop(ctx, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	board := domain.Leaderboard{TopPlayers: entries, UpdatedAt: r.clock().UTC()}

	if ttl := r.ttlWithJitter(); ttl > 0 {
		if data, err := json.Marshal(board); err == nil {
			// cache write is best-effort; the fresh board is still returned
			_ = r.client.Set(ctx, r.key(limit), data, ttl).Err()
		}
	}
	return board, nil
}

func (r *LeaderboardRepository) key(limit int) string {
	return "mathduel:leaderboard:" + strconv.Itoa(limit)
}

func (r *LeaderboardRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
