// Package serve provides the HTTP server command for the statuspage CLI.
package serve

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/statuspage/cmd/application"
	"github.com/agentstation/statuspage/internal/cmd/emoji"
	"github.com/agentstation/statuspage/internal/server"
)

// shutdownTimeout bounds connection draining after a signal.
const shutdownTimeout = 30 * time.Second

// NewCommand creates the serve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the status page API with WebSocket and SSE updates",
		Long: `Start the status page REST API and realtime server.

Features:
  - Staff endpoints for services, incidents, maintenance and teams
  - Public status page snapshot (/api/public/status?org=<slug>)
  - WebSocket updates (/api/socket) with join/leave of organization rooms
  - Server-Sent Events for one organization (/api/socket/stream?org=<slug>)
  - Redis backplane for multi-instance fan-out (STATUSPAGE_REDIS_ADDR)
  - Rate limiting, API key authentication and CORS
  - Health, readiness and stats endpoints`,
		Example: `  # Start on the default port 3000 with the in-memory store
  statuspage serve

  # Use SQLite and require an API key for staff endpoints
  STATUSPAGE_DATABASE_DRIVER=sqlite STATUSPAGE_DATABASE_DSN=status.db \
  STATUSPAGE_API_KEY=secret statuspage serve --auth

  # Allow a browser front end on another origin
  statuspage serve --cors-origins "https://status.example.com"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, args, app)
		},
	}

	// Server configuration flags
	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")

	// Realtime flags
	cmd.Flags().String("ws-path", defaults.WSPath, "WebSocket endpoint path (SSE is served at <ws-path>/stream)")
	cmd.Flags().Int("max-connections-per-room", defaults.MaxConnectionsPerRoom, "Maximum realtime connections per organization room (0 for unbounded)")

	// CORS flags
	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	// Authentication flags
	cmd.Flags().Bool("auth", false, "Require STATUSPAGE_API_KEY on staff endpoints")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")

	// Performance flags
	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("cache-ttl", defaults.CacheTTL, "Public status cache TTL")

	// Timeout flags
	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, _ []string, app application.Application) error {
	cfg := parseConfig(cmd)
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("ws_path", cfg.WSPath).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Starting API server")

	srv, err := server.New(app, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Start()

	httpServer := srv.HTTPServer(net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	return startWithGracefulShutdown(cmd.Context(), cmd, httpServer, srv, logger)
}

// parseConfig parses command flags into server configuration.
func parseConfig(cmd *cobra.Command) server.Config {
	cfg := server.Config{
		Host:                  mustGetString(cmd, "host"),
		Port:                  mustGetInt(cmd, "port"),
		WSPath:                mustGetString(cmd, "ws-path"),
		MaxConnectionsPerRoom: mustGetInt(cmd, "max-connections-per-room"),
		CORSEnabled:           mustGetBool(cmd, "cors"),
		CORSOrigins:           mustGetStringSlice(cmd, "cors-origins"),
		AuthEnabled:           mustGetBool(cmd, "auth"),
		AuthHeader:            mustGetString(cmd, "auth-header"),
		RateLimit:             mustGetInt(cmd, "rate-limit"),
		CacheTTL:              mustGetDuration(cmd, "cache-ttl"),
		ReadTimeout:           mustGetDuration(cmd, "read-timeout"),
		WriteTimeout:          mustGetDuration(cmd, "write-timeout"),
		IdleTimeout:           mustGetDuration(cmd, "idle-timeout"),
	}

	// Platform conventions override flags that were left at their defaults.
	if envPort := os.Getenv("PORT"); envPort != "" && !cmd.Flags().Changed("port") {
		if p, err := parsePort(envPort); err == nil {
			cfg.Port = p
		}
	}
	if envHost := os.Getenv("HTTP_HOST"); envHost != "" && !cmd.Flags().Changed("host") {
		cfg.Host = envHost
	}

	return cfg
}

// parsePort safely parses a port string to integer.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range: %d", port)
	}
	return port, nil
}

// startWithGracefulShutdown serves until ctx is cancelled, then drains HTTP
// connections and stops the hub.
func startWithGracefulShutdown(ctx context.Context, cmd *cobra.Command, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("service", "API").
			Msg("HTTP server listening")

		cmd.Printf("%s Status page listening on %s\n", emoji.Success, httpServer.Addr)
		cmd.Println("   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received via context")
		cmd.Printf("\n%s Shutting down...\n", emoji.Stop)

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Hijacked websocket connections are not tracked by the http.Server,
		// so the hub closes them after the listener stops.
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		cmd.Printf("%s Server stopped gracefully\n", emoji.Success)
		return nil
	}
}

// mustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetStringSlice retrieves a string slice flag value or panics if the flag doesn't exist.
func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

// mustGetDuration retrieves a duration flag value or panics if the flag doesn't exist.
func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
