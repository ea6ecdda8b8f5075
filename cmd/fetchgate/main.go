package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/use-agent/fetchgate/api"
	"github.com/use-agent/fetchgate/config"
	"github.com/use-agent/fetchgate/engine"
	"github.com/use-agent/fetchgate/metrics"
	"github.com/use-agent/fetchgate/scraper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "fetchgate",
		Short:        "HTTP gateway for plain, dynamic and stealthy page fetching",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the fetch gateway.

Configuration is read from FETCHGATE_* environment variables and an optional
.env file. Flags override the listen address.

Example:
  FETCHGATE_API_KEY=secret fetchgate serve --port 8000`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	serveCmd.Flags().String("host", "", "Address to bind (default from FETCHGATE_HOST)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default from FETCHGATE_PORT)")
	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("fetchgate starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"auth", cfg.Auth.Enabled(),
		"maxPages", cfg.Browser.MaxPages,
	)
	if !cfg.Auth.Enabled() {
		slog.Warn("no API key configured, protected routes are open", "env", config.APIKeyEnv)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Engines ──────────────────────────────────────────────────
	// Browsers launch on first use; the scraper's Fetch is handed to the
	// engine package as a callback so engine/ never imports scraper/.
	sc := scraper.NewScraper(cfg.Browser)
	defer sc.Close()

	eng := engine.New(
		engine.NewHTTPEngine(cfg.Fetcher),
		engine.NewRodEngine(sc.Fetch, false),
		engine.NewRodEngine(sc.Fetch, true),
	)

	// ── 4. Metrics ──────────────────────────────────────────────────
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
		m.RegisterActivePages(sc.ActivePages)
	}

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, eng, cfg, m)

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// sc.Close() runs via defer and kills any launched Chrome.
	slog.Info("fetchgate stopped")
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
