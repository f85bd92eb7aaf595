package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/scanpoint/internal/backend"
	"github.com/erazemk/scanpoint/internal/config"
	"github.com/erazemk/scanpoint/internal/db"
	"github.com/erazemk/scanpoint/internal/events"
	"github.com/erazemk/scanpoint/internal/logging"
	"github.com/erazemk/scanpoint/internal/scanner"
	"github.com/erazemk/scanpoint/internal/store"
	"github.com/erazemk/scanpoint/internal/web"
)

const sessionSweepInterval = 15 * time.Minute

func main() {
	fs := flag.NewFlagSet("scanpoint", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	var dbPath string
	fs.StringVar(&dbPath, "db", "", "")
	fs.StringVar(&dbPath, "d", "", "")

	var addr string
	fs.StringVar(&addr, "addr", "", "")
	fs.StringVar(&addr, "a", "", "")

	var backendURL string
	fs.StringVar(&backendURL, "backend", "", "")
	fs.StringVar(&backendURL, "b", "", "")

	var logPath string
	fs.StringVar(&logPath, "log", "", "")
	fs.StringVar(&logPath, "l", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: scanpoint [flags]

Flags:
  -c, -config <path>      YAML config file (default: none)
  -d, -db <path>          SQLite database path (default: scanpoint.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -b, -backend <url>      CRM backend base URL
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Settings not given as flags are read from the config file, a .env file and
SCANPOINT_* environment variables.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	overrides := map[*string]string{
		&cfg.DBPath:      dbPath,
		&cfg.Addr:        addr,
		&cfg.Backend.URL: backendURL,
		&cfg.LogPath:     logPath,
	}
	for dst, v := range overrides {
		if v != "" {
			*dst = v
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := logging.Setup(cfg.LogPath, slog.LevelInfo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	slog.Info("database ready", "path", cfg.DBPath)

	ctx := context.Background()

	// Both keys are generated on first run and persisted.
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	tokenKey, err := store.GetTokenKey(ctx, database)
	if err != nil {
		slog.Error("failed to get token key", "error", err)
		os.Exit(1)
	}
	sealer, err := store.NewSealer(tokenKey)
	if err != nil {
		slog.Error("failed to set up token sealing", "error", err)
		os.Exit(1)
	}

	hub := events.NewHub()
	router, srv, err := web.NewRouter(web.Options{
		DB:         database,
		Backend:    backend.New(cfg.Backend.URL, cfg.Backend.Timeout, nil),
		JWTSecret:  jwtSecret,
		Sealer:     sealer,
		Hub:        hub,
		Decoder:    scanner.NewZXingDecoder(),
		Viewport:   cfg.Camera.Viewport,
		BranchID:   cfg.BranchID,
		SessionTTL: cfg.Session.TTL,
	})
	if err != nil {
		slog.Error("failed to set up web router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.LoggingMiddleware(router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSessions(sweepCtx, database, srv.Workspaces)

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "backend", cfg.Backend.URL, "branch", cfg.BranchID)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// sweepSessions periodically deletes expired portal sessions, and with them
// their sealed backend tokens and in-memory workspaces. Revocations of
// expired tokens are pruned on the same tick.
func sweepSessions(ctx context.Context, database *sql.DB, spaces *web.Workspaces) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped := spaces.DropExpired(time.Now())
			n, err := store.DeleteExpiredSessions(ctx, database)
			if err != nil {
				slog.Error("failed to delete expired sessions", "error", err)
				continue
			}
			if n > 0 || dropped > 0 {
				slog.Info("expired sessions removed", "count", n, "workspaces", dropped)
			}
			if _, err := store.PruneRevokedTokens(ctx, database); err != nil {
				slog.Error("failed to prune revoked tokens", "error", err)
			}
		}
	}
}
