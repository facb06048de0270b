package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/infra/memory"
	natsbus "trivia-room-service/internal/infra/nats"
	"trivia-room-service/internal/infra/postgres"
	redisinfra "trivia-room-service/internal/infra/redis"
	"trivia-room-service/internal/randomizer"
	transport "trivia-room-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

type closer func() error

func runServer(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn().Err(err).Msg("shutdown")
			}
		}
	}()

	var (
		pool  *pgxpool.Pool
		bunDB *bun.DB
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg); err != nil {
			return err
		}
		var err error
		pool, err = postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, func() error { pool.Close(); return nil })
		bunDB = postgres.OpenBun(cfg.Postgres.URL)
		closers = append(closers, bunDB.Close)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, redisClient.Close)
	}

	questions, err := buildQuestionBank(ctx, cfg, pool, redisClient)
	if err != nil {
		return err
	}

	var store app.RoomStore = memory.NewStore()
	var results app.ResultStore = memory.NewResultStore()
	if pool != nil {
		store = postgres.NewRoomStore(pool)
		results = postgres.NewResultStore(bunDB)
	}

	bus, closeBus, err := buildBus(cfg, redisClient)
	if err != nil {
		return err
	}
	closers = append(closers, closeBus)

	rooms := app.NewRoomService(store, questions, bus, app.Options{
		CodeAttempts:      cfg.Rooms.CodeAttempts,
		MaxSeconds:        cfg.Rooms.MaxSeconds,
		MaxPlayersLimit:   cfg.Rooms.MaxPlayers,
		TrustClientTiming: cfg.Rooms.TrustClientTiming,
		Randomizer:        randomizer.New(),
	})
	handler := transport.NewHandler(rooms, app.NewResultService(results, nil))

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler.Router(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}

	errs := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("bus", cfg.Bus.Driver).
			Bool("postgres", pool != nil).
			Bool("redis", redisClient != nil).
			Msg("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildQuestionBank(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, client *redis.Client) (app.QuestionBank, error) {
	defaults, err := memory.DefaultQuestions()
	if err != nil {
		return nil, err
	}
	var loader memory.QuestionLoader = memory.NewStaticLoader(defaults...)
	if pool != nil {
		pg := postgres.NewQuestionLoader(pool)
		seeded, err := pg.SeedMissing(ctx, defaults)
		if err != nil {
			return nil, fmt.Errorf("seed questions: %w", err)
		}
		if seeded > 0 {
			log.Info().Int("sets", seeded).Msg("seeded built-in question sets")
		}
		loader = pg
	}

	if client != nil {
		return redisinfra.NewQuestionBank(client, loader, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)), nil
	}
	return memory.NewQuestionBank(loader, config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)), nil
}

func buildBus(cfg config.Config, client *redis.Client) (app.EventBus, closer, error) {
	switch cfg.Bus.Driver {
	case config.BusRedis:
		if client == nil {
			return nil, nil, errors.New("redis bus requires redis.addr")
		}
		bus := redisinfra.NewBus(client, cfg.Bus.Buffer)
		return bus, bus.Close, nil
	case config.BusNATS:
		natsCfg := natsbus.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		nc, err := natsbus.Connect(natsCfg)
		if err != nil {
			return nil, nil, err
		}
		bus := natsbus.NewBus(nc, cfg.NATS.SubjectPrefix, cfg.Bus.Buffer)
		return bus, func() error {
			err := bus.Close()
			nc.Close()
			return err
		}, nil
	}
	bus := memory.NewBus(cfg.Bus.Buffer)
	return bus, bus.Close, nil
}
