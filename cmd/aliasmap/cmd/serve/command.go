// Package serve provides the HTTP server command for the aliasmap CLI.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/aliasmap/cmd/application"
	"github.com/agentstation/aliasmap/internal/cmd/cmdutil"
	"github.com/agentstation/aliasmap/internal/cmd/emoji"
	"github.com/agentstation/aliasmap/internal/server"
	"github.com/agentstation/aliasmap/pkg/constants"
	"github.com/agentstation/aliasmap/pkg/errors"
)

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the alias catalog HTTP API",
		Long: `Start an HTTP API over the alias catalog.

Endpoints (under --prefix, default /api):
  GET  /aliases?query=&namespace=&force_refresh=   Search aliases
  GET  /namespaces?with_counts=                   List namespaces
  GET  /statistics                                Cache statistics
  POST /refresh?force_refresh=                    Rebuild the catalog
  GET  /updates/ws, /updates/stream               Rebuild events
  GET  /health, /ready                            Health checks

The catalog is built on the first request unless --warm-up is set, and is
rebuilt at most once at a time when its TTL expires.`,
		Example: `  # Start on the default port 8000
  aliasmap serve

  # Build the catalog at startup and keep it fresh in the background
  aliasmap serve --warm-up --auto-refresh

  # Require an API key and limit each client to 60 requests per minute
  aliasmap serve --auth --api-key "$KEY" --rate-limit 60`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd, app)
		},
	}

	// Server configuration flags
	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	// CORS flags
	cmd.Flags().Bool("cors", false, "Enable CORS")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated, default all)")

	// Authentication flags
	cmd.Flags().Bool("auth", false, "Enable API key authentication")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")
	cmd.Flags().String("api-key", "", "API key (default $ALIASMAP_API_KEY)")

	// Performance flags
	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("response-cache-ttl", defaults.CacheTTL, "Lifetime of memoized responses")
	cmd.Flags().Duration("wait-timeout", defaults.WaitTimeout, "How long a request waits for a rebuild")

	// Timeout flags
	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout (0 keeps event streams open)")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	// Feature flags
	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable the /metrics endpoint")
	cmd.Flags().Bool("warm-up", false, "Build the catalog in the background at startup")
	cmd.Flags().Bool("auto-refresh", false, "Rebuild the catalog on a fixed interval")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, app application.Application) error {
	cfg, err := parseConfig(cmd)
	if err != nil {
		return err
	}
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Bool("warm_up", cfg.WarmUp).
		Msg("Starting API server")

	srv, err := server.New(app, cfg)
	if err != nil {
		return errors.WrapResource("create", "server", "", err)
	}

	handler, err := srv.Handler()
	if err != nil {
		return err
	}

	if cmdutil.MustGetBool(cmd, "auto-refresh") {
		client, err := app.Client()
		if err != nil {
			return err
		}
		if err := client.AutoRefreshOn(); err != nil {
			return err
		}
	}

	// Start background services (event broker, WebSocket hub, SSE broadcaster)
	srv.Start()

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	// cmd.Context() carries signal handling from main.go
	return startWithGracefulShutdown(cmd.Context(), httpServer, srv, logger)
}

// parseConfig parses command flags into server configuration.
func parseConfig(cmd *cobra.Command) (server.Config, error) {
	cfg := server.DefaultConfig()

	cfg.Port = cmdutil.MustGetInt(cmd, "port")
	cfg.Host = cmdutil.MustGetString(cmd, "host")
	cfg.PathPrefix = cmdutil.MustGetString(cmd, "prefix")
	cfg.CORSEnabled = cmdutil.MustGetBool(cmd, "cors")
	cfg.CORSOrigins = cmdutil.MustGetStringSlice(cmd, "cors-origins")
	cfg.AuthEnabled = cmdutil.MustGetBool(cmd, "auth")
	cfg.AuthHeader = cmdutil.MustGetString(cmd, "auth-header")
	cfg.APIKey = cmdutil.MustGetString(cmd, "api-key")
	cfg.RateLimit = cmdutil.MustGetInt(cmd, "rate-limit")
	cfg.CacheTTL = cmdutil.MustGetDuration(cmd, "response-cache-ttl")
	cfg.WaitTimeout = cmdutil.MustGetDuration(cmd, "wait-timeout")
	cfg.ReadTimeout = cmdutil.MustGetDuration(cmd, "read-timeout")
	cfg.WriteTimeout = cmdutil.MustGetDuration(cmd, "write-timeout")
	cfg.IdleTimeout = cmdutil.MustGetDuration(cmd, "idle-timeout")
	cfg.MetricsEnabled = cmdutil.MustGetBool(cmd, "metrics")
	cfg.WarmUp = cmdutil.MustGetBool(cmd, "warm-up")

	// Environment overrides apply only when the flag was left alone.
	if envPort := os.Getenv("HTTP_PORT"); envPort != "" && !cmd.Flags().Changed("port") {
		p, err := parsePort(envPort)
		if err != nil {
			return server.Config{}, err
		}
		cfg.Port = p
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" && !cmd.Flags().Changed("host") {
		cfg.Host = envHost
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return server.Config{}, errors.NewValidationError("port", cfg.Port, "must be between 1 and 65535")
	}
	if cfg.RateLimit < 0 {
		return server.Config{}, errors.NewValidationError("rate-limit", cfg.RateLimit, "must not be negative")
	}
	return cfg, nil
}

// parsePort safely parses a port string to integer.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, errors.NewValidationError("HTTP_PORT", portStr, "invalid port number")
	}
	if port < 1 || port > 65535 {
		return 0, errors.NewValidationError("HTTP_PORT", port, "port out of range")
	}
	return port, nil
}

// startWithGracefulShutdown runs httpServer until ctx is cancelled, then
// drains connections and stops the background services.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Msg("HTTP server listening")

		fmt.Printf("%s API server listening on %s\n", emoji.Info, httpServer.Addr)
		fmt.Println("   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- errors.WrapResource("listen", "http server", httpServer.Addr, err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")
		fmt.Printf("\n%s Shutting down API server...\n", emoji.Stop)

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		// Background services first so event streams end and connections can drain.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapResource("shutdown", "http server", httpServer.Addr, err)
		}

		logger.Info().Msg("Server stopped gracefully")
		fmt.Printf("%s API server stopped gracefully\n", emoji.Success)
		return nil
	}
}
