package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"trivia-room-service/internal/config"
	"trivia-room-service/internal/infra/memory"
	"trivia-room-service/internal/infra/postgres"
)

// NewMigrateCmd applies database migrations and seeds the built-in questions.
func NewMigrateCmd(opts *options) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg); err != nil {
				return err
			}
			if !seed {
				return nil
			}
			return seedQuestions(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", true, "store the built-in question sets for difficulties that have none")
	return cmd
}

func runMigrations(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()

	group, err := postgres.Migrate(ctx, db)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if group.IsZero() {
		log.Info().Msg("no new migrations")
		return nil
	}
	log.Info().Str("group", group.String()).Msg("migrations applied")
	return nil
}

func seedQuestions(ctx context.Context, cfg config.Config) error {
	pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	sets, err := memory.DefaultQuestions()
	if err != nil {
		return err
	}
	n, err := postgres.NewQuestionLoader(pool).SeedMissing(ctx, sets)
	if err != nil {
		return fmt.Errorf("seed questions: %w", err)
	}
	log.Info().Int("sets", n).Msg("question sets seeded")
	return nil
}
