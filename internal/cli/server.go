package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mathduel-service/internal/app"
	"mathduel-service/internal/config"
	"mathduel-service/internal/infra/memory"
	natspub "mathduel-service/internal/infra/nats"
	"mathduel-service/internal/infra/postgres"
	redisinfra "mathduel-service/internal/infra/redis"
	"mathduel-service/internal/jobs"
	"mathduel-service/internal/logging"
	"mathduel-service/internal/question"
	"mathduel-service/internal/session"
	transport "mathduel-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the match server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// leaderboard is served over HTTP and kept warm by the scheduler.
type leaderboard interface {
	app.LeaderboardReader
	jobs.LeaderboardRefresher
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Development)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var (
		store  app.ResultStore
		loader memory.LeaderboardLoader
	)
	if cfg.Postgres.URL != "" {
		db := postgres.OpenDB(cfg.Postgres.URL)
		defer db.Close()
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store = postgres.NewResultStore(db)
		loader = postgres.NewLeaderboardLoader(pool)
	} else {
		logger.Warn("postgres not configured, results are kept in memory")
		mem := memory.NewResultStore()
		store = mem
		loader = mem
	}

	lbTTL := config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second)
	var board leaderboard
	if redisClient != nil {
		board = redisinfra.NewLeaderboardRepository(redisClient, loader, lbTTL)
	} else {
		board = memory.NewLeaderboardRepository(loader, lbTTL)
	}

	factory := app.NewMatchFactory(question.NewGenerator(), config.IntOr(cfg.Match.Questions, 20))
	var registry app.MatchRegistry
	if redisClient != nil {
		registry = redisinfra.NewMatchRegistry(redisClient, factory, redisTTL)
	} else {
		registry = memory.NewMatchRegistry(factory)
	}

	var events app.EventPublisher
	if cfg.NATS.URL != "" {
		pub, err := natspub.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("match events disabled", zap.Error(err))
		} else {
			defer func() { _ = pub.Close() }()
			events = pub
		}
	}

	settings := app.Settings{
		MatchDuration:        config.TTLDuration(cfg.Match.Duration, 60*time.Second),
		PersistTimeout:       config.TTLDuration(cfg.Match.PersistTimeout, 5*time.Second),
		PersistRetries:       config.IntOr(cfg.Match.PersistRetries, 3),
		PersistRetryInterval: config.TTLDuration(cfg.Match.PersistRetryInterval, 500*time.Millisecond),
	}
	service := app.NewMatchService(registry, session.NewRouter(logger), store, events, logger, settings)
	defer service.Close()

	scheduler := jobs.NewScheduler(logger)
	refresh := cfg.Leaderboard.Refresh
	if refresh == "" {
		refresh = "@every 1m"
	}
	size := config.IntOr(cfg.Leaderboard.Size, 10)
	if err := scheduler.ScheduleLeaderboardRefresh(refresh, size, board); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	handler := transport.NewRouter(
		transport.NewWSHandler(service, verifier, logger, config.IntOr(cfg.Match.SendBuffer, 32)),
		transport.NewLeaderboardHandler(board, logger),
		logger,
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting match service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
