package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxsweeper/internal/engine"
	"github.com/teemow/inboxsweeper/internal/instrumentation"
	"github.com/teemow/inboxsweeper/internal/logging"
	"github.com/teemow/inboxsweeper/internal/server"
	"github.com/teemow/inboxsweeper/internal/token"
	"github.com/teemow/inboxsweeper/internal/tools/jobtools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		cfg       runtimeConfig
		transport string
		httpAddr  string
		yolo      bool
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing the sweep
engine to AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport with health endpoints

Safety Mode:
  By default, the server operates in read-only mode: analysis, mark
  read and labeling tools only. Use --yolo to enable destructive
  operations (delete, filter creation, unsubscribe).

Token Configuration:
  The engine refreshes its Gmail access token against an external
  token endpoint:
    --token-refresh-url OR TOKEN_REFRESH_URL env var (required)
    --token-revoke-url OR TOKEN_REVOKE_URL env var`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.loadEnv(); err != nil {
				return err
			}

			// Load metrics config from environment if not set via flags
			metricsConfig := MetricsConfig{Enabled: metricsEnabled, Addr: metricsAddr}
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				metricsConfig.Enabled = false
			}
			if !cmd.Flags().Changed("metrics-addr") {
				if addr := os.Getenv("METRICS_ADDR"); addr != "" {
					metricsConfig.Addr = addr
				}
			}

			return runServe(cfg, transport, httpAddr, yolo, metricsConfig)
		},
	}

	cfg.registerFlags(cmd)
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable destructive operations (delete, filter creation, unsubscribe). Default is read-only mode.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg runtimeConfig, transport, httpAddr string, yolo bool, metricsConfig MetricsConfig) error {
	setupLogging(cfg.Debug)

	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	rt, err := buildRuntime(shutdownCtx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Probe the token endpoint so the readiness check reflects whether
	// sweeps can actually run.
	if state := rt.tokens.Initialize(shutdownCtx); state == token.RefreshAbsent {
		slog.Warn("no refresh credential available at startup; sweeps will fail until the session is authenticated")
	}

	queue := engine.NewQueue(rt.exec,
		engine.WithBus(rt.bus),
		engine.WithQueueActionLog(rt.store),
	)
	queue.Start()
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		if err := queue.Stop(stopCtx); err != nil {
			slog.Warn("queue shutdown failed", logging.Err(err))
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx, queue, rt.tokens, rt.store, rt.bus)
	serverContext.SetMailbox(rt.client)
	defer func() {
		if metricsServer != nil {
			mctx, mcancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer mcancel()
			if err := metricsServer.Shutdown(mctx); err != nil {
				slog.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			slog.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
	}

	mcpSrv := mcpserver.NewMCPServer("inboxsweeper", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !yolo
	if transport != "stdio" {
		if readOnly {
			slog.Info("starting server in read-only mode (use --yolo to enable destructive operations)")
		} else {
			slog.Info("starting server with destructive operations enabled")
		}
	}

	if err := jobtools.RegisterJobTools(mcpSrv, serverContext, readOnly); err != nil {
		return fmt.Errorf("failed to register job tools: %w", err)
	}

	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, httpAddr, metricsConfig)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, addr string, metricsConfig MetricsConfig) error {
	healthChecker := server.NewHealthChecker(sc)
	httpServer := server.NewHTTPServer(mcpSrv, healthChecker)

	slog.Info("streamable HTTP server starting",
		slog.String("addr", addr),
		slog.String("mcp_endpoint", "/mcp"))
	if metricsConfig.Enabled {
		slog.Info("metrics endpoint available",
			slog.String("addr", metricsConfig.Addr),
			slog.String("path", "/metrics"))
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping HTTP server")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	return nil
}
