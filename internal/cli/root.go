package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trivia-room-service/internal/config"
)

// options are the persistent flags. Empty values defer to the config file.
type options struct {
	configPath  string
	port        string
	logLevel    string
	logPretty   bool
	redisAddr   string
	postgresURL string
	natsURL     string
	busDriver   string
}

// Execute runs the CLI.
func Execute() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()
	v.SetEnvPrefix("TRIVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "trivia-room-service",
		Short:         "Real-time trivia rooms with synchronized questions and live scoring",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config (env: TRIVIA_CONFIG)")
	flags.StringVar(&opts.port, "port", "", "port to listen on (env: TRIVIA_PORT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn or error (env: TRIVIA_LOG_LEVEL)")
	flags.BoolVar(&opts.logPretty, "log-pretty", false, "human readable console logs (env: TRIVIA_LOG_PRETTY)")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address (env: TRIVIA_REDIS_ADDR)")
	flags.StringVar(&opts.postgresURL, "postgres-url", "", "postgres connection url (env: TRIVIA_POSTGRES_URL)")
	flags.StringVar(&opts.natsURL, "nats-url", "", "nats server url (env: TRIVIA_NATS_URL)")
	flags.StringVar(&opts.busDriver, "bus", "", "event bus driver: memory, redis or nats (env: TRIVIA_BUS)")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.AddCommand(NewStartCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	return cmd
}

// loadConfig reads the config file and applies flag and env overrides.
func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if opts.port != "" {
		cfg.Server.Port = opts.port
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logPretty {
		cfg.Log.Pretty = true
	}
	if opts.redisAddr != "" {
		cfg.Redis.Addr = opts.redisAddr
	}
	if opts.postgresURL != "" {
		cfg.Postgres.URL = opts.postgresURL
	}
	if opts.natsURL != "" {
		cfg.NATS.URL = opts.natsURL
	}
	if opts.busDriver != "" {
		cfg.Bus.Driver = opts.busDriver
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, setupLogging(cfg)
}

func setupLogging(cfg config.Config) error {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return nil
}
