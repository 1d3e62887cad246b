package redis

import (
	"context"
	"time"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"
	"mathduel-service/internal/infra/memory"

	"github.com/redis/go-redis/v9"
)

const markerTimeout = time.Second

// MatchRegistry is a Redis-aware implementation of app.MatchRegistry.
// Notes:
//   - Pairing still happens in the local registry so admit stays a single
//     critical section.
//   - Redis holds best-effort presence markers for queued players and live
//     matches so operators and other instances can see them.
type MatchRegistry struct {
	local  *memory.MatchRegistry
	client *redis.Client
	ttl    time.Duration
}

func NewMatchRegistry(client *redis.Client, factory app.MatchFactory, ttl time.Duration) *MatchRegistry {
	return &MatchRegistry{
		local:  memory.NewMatchRegistry(factory),
		client: client,
		ttl:    ttl,
	}
}

func (r *MatchRegistry) Admit(p domain.Player) (*app.Match, bool) {
	m, paired := r.local.Admit(p)

	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	switch {
	case m == nil:
		_ = r.client.Set(ctx, queueKey(p.UserID), p.DisplayName, r.ttl).Err()
	case paired:
		a, b := m.Players()
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, queueKey(a.UserID), queueKey(b.UserID))
		pipe.HSet(ctx, matchKey(m.ID()), "player_a", a.UserID, "player_b", b.UserID, "created_at", time.Now().UnixMilli())
		if r.ttl > 0 {
			pipe.Expire(ctx, matchKey(m.ID()), r.ttl)
		}
		_, _ = pipe.Exec(ctx)
	}
	return m, paired
}

func (r *MatchRegistry) Withdraw(playerID string) {
	r.local.Withdraw(playerID)
	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	_ = r.client.Del(ctx, queueKey(playerID)).Err()
}

func (r *MatchRegistry) Lookup(playerID string) (*app.Match, bool) {
	return r.local.Lookup(playerID)
}

func (r *MatchRegistry) LookupByID(matchID string) (*app.Match, bool) {
	return r.local.LookupByID(matchID)
}

func (r *MatchRegistry) Remove(matchID string) {
	r.local.Remove(matchID)
	ctx, cancel := context.WithTimeout(context.Background(), markerTimeout)
	defer cancel()
	_ = r.client.Del(ctx, matchKey(matchID)).Err()
}

func (r *MatchRegistry) Stats() (waiting, matches int) {
	return r.local.Stats()
}

func queueKey(playerID string) string {
	return "mathduel:queue:" + playerID
}

func matchKey(matchID string) string {
	return "mathduel:match:" + matchID
}
