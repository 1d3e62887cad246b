package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"mathduel-service/internal/app"
	"mathduel-service/internal/domain"
	natspub "mathduel-service/internal/infra/nats"
	"mathduel-service/internal/infra/postgres"
	pgmigrations "mathduel-service/internal/infra/postgres/migrations"
	infraredis "mathduel-service/internal/infra/redis"
	"mathduel-service/internal/protocol"
	"mathduel-service/internal/question"
	"mathduel-service/internal/session"

	"github.com/jackc/pgx/v4/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

type inbox struct {
	msgs chan protocol.Outbound
}

func newInbox() *inbox { return &inbox{msgs: make(chan protocol.Outbound, 64)} }

func (i *inbox) Enqueue(msg protocol.Outbound) error {
	select {
	case i.msgs <- msg:
		return nil
	default:
		return session.ErrBufferFull
	}
}

func (i *inbox) Close() error { return nil }

func (i *inbox) await(t *testing.T, typ protocol.Type) protocol.Outbound {
	t.Helper()
	timeout := time.After(10 * time.Second)
	for {
		select {
		case msg := <-i.msgs:
			if msg.MessageType() == typ {
				return msg
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()
	natsURL, natsCleanup := startNATS(t, ctx)
	defer natsCleanup()

	db := postgres.OpenDB(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	logger := zap.NewNop()
	publisher, err := natspub.Connect(natsURL, "it", logger)
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	defer publisher.Close()

	sub, err := natsgo.Connect(natsURL)
	if err != nil {
		t.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()
	ended := make(chan *natsgo.Msg, 1)
	if _, err := sub.ChanSubscribe(publisher.Subject(domain.EventMatchEnded), ended); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush subscription: %v", err)
	}

	registry := infraredis.NewMatchRegistry(redisClient, app.NewMatchFactory(question.NewGenerator(), 4), time.Minute)
	store := postgres.NewResultStore(db)
	board := infraredis.NewLeaderboardRepository(redisClient, postgres.NewLeaderboardLoader(pool), time.Minute)
	settings := app.DefaultSettings()
	settings.MatchDuration = time.Hour
	service := app.NewMatchService(registry, session.NewRouter(logger), store, publisher, logger, settings)
	defer service.Close()

	alice := domain.Identity{UserID: "alice", Email: "alice@example.com", DisplayName: "alice"}
	bob := domain.Identity{UserID: "bob", Email: "bob@example.com", DisplayName: "bob"}
	aliceIn, bobIn := newInbox(), newInbox()
	service.OnConnect(ctx, alice, aliceIn)
	service.OnConnect(ctx, bob, bobIn)

	service.JoinQueue(ctx, alice)
	m := service.JoinQueue(ctx, bob)
	if m == nil {
		t.Fatalf("expected match")
	}
	if n, err := redisClient.Exists(ctx, "mathduel:match:"+m.ID()).Result(); err != nil || n != 1 {
		t.Fatalf("expected match presence key, n=%d err=%v", n, err)
	}

	q := bobIn.await(t, protocol.TypeQuestion).(protocol.Question)
	correct := m.Questions()[0].CorrectAnswer
	if _, err := service.SubmitAnswer(ctx, "bob", q.QuestionID, correct); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !service.EndMatch(ctx, m.ID()) {
		t.Fatalf("expected end match to take effect")
	}
	result := bobIn.await(t, protocol.TypeGameEnded).(protocol.GameEnded)
	if result.Result != domain.ResultWin || result.YourScore != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	// Storage writes run on the match journal; Close waits for them.
	service.Close()

	var answers int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM player_answers WHERE player_id = 'bob' AND is_correct`).Scan(&answers); err != nil {
		t.Fatalf("count answers: %v", err)
	}
	if answers != 1 {
		t.Fatalf("expected one stored answer, got %d", answers)
	}
	var status string
	if err := pool.QueryRow(ctx, `SELECT status FROM game_sessions WHERE match_id = $1`, m.ID()).Scan(&status); err != nil {
		t.Fatalf("load session: %v", err)
	}
	if status != string(domain.StatusCompleted) {
		t.Fatalf("expected completed session, got %s", status)
	}

	top, err := board.Top(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(top.TopPlayers) != 2 || top.TopPlayers[0].PlayerID != "bob" || top.TopPlayers[0].TotalGames != 1 {
		t.Fatalf("expected bob leading, got %+v", top.TopPlayers)
	}

	select {
	case msg := <-ended:
		var event domain.MatchEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.MatchID != m.ID() || event.Scores["bob"] != 1 {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no match.ended event received")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "duel", "POSTGRES_PASSWORD": "duelpass", "POSTGRES_DB": "dueldb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container := startContainer(t, ctx, req)
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	cleanup := func() { _ = container.Terminate(ctx) }
	return fmt.Sprintf("postgres://duel:duelpass@%s:%s/dueldb?sslmode=disable", host, mapped.Port()), cleanup
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container := startContainer(t, ctx, req)
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	cleanup := func() { _ = container.Terminate(ctx) }
	return fmt.Sprintf("redis://%s:%s", host, mapped.Port()), cleanup
}

func startNATS(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "nats:2-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp").WithStartupTimeout(30 * time.Second),
	}
	container := startContainer(t, ctx, req)
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("nats host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "4222/tcp")
	if err != nil {
		t.Fatalf("nats port: %v", err)
	}
	cleanup := func() { _ = container.Terminate(ctx) }
	return fmt.Sprintf("nats://%s:%s", host, mapped.Port()), cleanup
}

func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest) tc.Container {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	return container
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
