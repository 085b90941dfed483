package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quizboard-client/internal/app"
	"quizboard-client/internal/config"
	fileinfra "quizboard-client/internal/infra/file"
	"quizboard-client/internal/infra/memory"
	redisinfra "quizboard-client/internal/infra/redis"
	transport "quizboard-client/internal/transport/http"

	goredis "github.com/redis/go-redis/v9"
)

var (
	configPath string
	apiURL     string
	socketURL  string
	verbose    bool
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("QUIZBOARD_CONFIG")

	cmd := &cobra.Command{
		Use:           "quizboard",
		Short:         "Terminal client for the Quiz Board real-time quiz service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&apiURL, "api", "", "backend API base URL (overrides config)")
	cmd.PersistentFlags().StringVar(&socketURL, "socket", "", "event channel URL (overrides config)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newSignupCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newJoinCmd())
	cmd.AddCommand(newLeaderboardCmd())
	return cmd
}

// stack bundles the wired collaborators every command needs.
type stack struct {
	cfg      config.Config
	log      zerolog.Logger
	sessions app.SessionStore
	client   *transport.Client
	api      app.QuizAPI // client behind the snapshot cache
}

func buildStack() (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.Server.APIURL = apiURL
	}
	if socketURL != "" {
		cfg.Server.SocketURL = socketURL
	}

	logger := newLogger()

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	tokenSource := func(ctx context.Context) string {
		id, err := sessions.Load(ctx)
		if err != nil {
			return ""
		}
		return id.Token
	}

	timeout := config.TTLDuration(cfg.Server.Timeout, 15*time.Second)
	client := transport.NewClient(cfg.Server.APIURL, timeout, tokenSource, logger)

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 30*time.Second)

	return &stack{
		cfg:      cfg,
		log:      logger,
		sessions: sessions,
		client:   client,
		api:      memory.NewSnapshotCache(client, cacheTTL),
	}, nil
}

func buildSessionStore(cfg config.Config) (app.SessionStore, error) {
	switch cfg.Session.Backend {
	case "memory":
		return memory.NewSessionStore(), nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.TTLDuration(cfg.Redis.TTL, 24*time.Hour)
		return redisinfra.NewSessionStore(client, ttl), nil
	case "file", "":
		path := cfg.Session.Path
		if path == "" {
			var err error
			path, err = fileinfra.DefaultPath()
			if err != nil {
				return nil, err
			}
		}
		return fileinfra.NewSessionStore(path), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
