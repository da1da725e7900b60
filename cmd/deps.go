package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/teemow/inboxsweeper/internal/actionlog"
	"github.com/teemow/inboxsweeper/internal/backoff"
	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/events"
	"github.com/teemow/inboxsweeper/internal/gmail"
	"github.com/teemow/inboxsweeper/internal/logging"
	"github.com/teemow/inboxsweeper/internal/token"
)

// runtimeConfig holds the settings shared by serve and the one-shot
// commands.
type runtimeConfig struct {
	DBPath          string
	TokenRefreshURL string
	TokenRevokeURL  string
	RateLimit       float64
	Debug           bool
}

func (c *runtimeConfig) registerFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.Debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&c.DBPath, "db-path", "", "Path to the action log database. Can also use SWEEPER_DB_PATH env var. Default: ~/.inboxsweeper/actions.db")
	cmd.Flags().StringVar(&c.TokenRefreshURL, "token-refresh-url", "", "Token refresh endpoint URL. Can also use TOKEN_REFRESH_URL env var.")
	cmd.Flags().StringVar(&c.TokenRevokeURL, "token-revoke-url", "", "Token revoke endpoint URL. Can also use TOKEN_REVOKE_URL env var.")
	cmd.Flags().Float64Var(&c.RateLimit, "rate-limit", 10, "Gmail API requests per second")
}

// loadEnv fills unset flags from the environment and applies defaults,
// following the flag-then-env convention used across the commands.
func (c *runtimeConfig) loadEnv() error {
	if c.TokenRefreshURL == "" {
		c.TokenRefreshURL = os.Getenv("TOKEN_REFRESH_URL")
	}
	if c.TokenRevokeURL == "" {
		c.TokenRevokeURL = os.Getenv("TOKEN_REVOKE_URL")
	}
	if c.DBPath == "" {
		c.DBPath = os.Getenv("SWEEPER_DB_PATH")
	}
	if c.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory for default db path: %w", err)
		}
		c.DBPath = filepath.Join(home, ".inboxsweeper", "actions.db")
	}
	if c.TokenRefreshURL == "" {
		return fmt.Errorf("token refresh URL is required (--token-refresh-url or TOKEN_REFRESH_URL)")
	}
	return nil
}

// setupLogging installs the process-wide slog logger. Logs always go
// to stderr so the stdio MCP transport keeps stdout to itself.
func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// engineRuntime bundles the long-lived pieces of the sweep engine.
type engineRuntime struct {
	bus    *events.Bus
	store  *actionlog.Store
	tokens *token.Manager
	client *gmail.Client
	exec   *engine.Executor
}

// buildRuntime wires the engine: event bus, action log, token manager,
// Gmail client and executor. Interrupted analysis runs from a previous
// process are flagged before anything else touches the store.
func buildRuntime(ctx context.Context, cfg runtimeConfig) (*engineRuntime, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	bus := events.NewBus()

	store, err := actionlog.Open(cfg.DBPath, actionlog.WithBus(bus))
	if err != nil {
		return nil, fmt.Errorf("open action log: %w", err)
	}

	if n, err := store.MarkInterruptedRuns(ctx, actionlog.HeartbeatStaleAfter); err != nil {
		slog.Warn("failed to flag interrupted analysis runs", logging.Err(err))
	} else if n > 0 {
		slog.Info("flagged interrupted analysis runs", slog.Int("count", n))
	}

	tokens := token.NewManager(token.NewEndpointRefresher(token.EndpointConfig{
		RefreshURL: cfg.TokenRefreshURL,
		RevokeURL:  cfg.TokenRevokeURL,
	}), bus)

	burst := int(cfg.RateLimit * 2)
	if burst < 1 {
		burst = 1
	}

	client, err := gmail.NewClient(ctx, tokens.Source(),
		gmail.WithRateLimit(rate.Limit(cfg.RateLimit), burst),
		gmail.WithBackoffPolicy(backoff.Policy{Invalidator: tokens}),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create gmail client: %w", err)
	}

	return &engineRuntime{
		bus:    bus,
		store:  store,
		tokens: tokens,
		client: client,
		exec:   engine.NewExecutor(client, engine.WithActionLog(store)),
	}, nil
}

func (r *engineRuntime) Close() {
	if err := r.store.Close(); err != nil {
		slog.Warn("failed to close action log", logging.Err(err))
	}
}
