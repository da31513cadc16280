/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the sales payroll server.
  Handles configuration, dependency injection, startup integrity checks
  and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (file, environment, then flags)
  2. Open the SQLite store, wrapped in the Redis mirror when enabled
  3. Pull newer remote records into the local store
  4. Load the salary plan (built-in rates when none is configured)
  5. Integrity checks: schema upgrades, legacy archives, orphaned
     months, month rollover
  6. Start the rollover scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -config  YAML config path (default: config.yaml)
  -port    HTTP server port, overrides the config
  -db      SQLite database path, overrides the config
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections, wait for active requests (30s)
  3. Drain the remote sync queue, close the Redis connection
  4. Close the database

ENVIRONMENT:
  SERVER_HOST, SERVER_PORT, DB_PATH, LOG_LEVEL, REDIS_URL, PAYROLL_PLAN,
  ROLLOVER_CRON (see config/config.go)

SEE ALSO:
  - api/server.go: Router configuration
  - archive/manager.go: Startup checks
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/sales-payroll/api"
	"github.com/warp/sales-payroll/archive"
	"github.com/warp/sales-payroll/config"
	"github.com/warp/sales-payroll/factory"
	"github.com/warp/sales-payroll/generic"
	"github.com/warp/sales-payroll/logger"
	"github.com/warp/sales-payroll/planning"
	"github.com/warp/sales-payroll/records"
	"github.com/warp/sales-payroll/salary"
	"github.com/warp/sales-payroll/store/redissync"
	"github.com/warp/sales-payroll/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "config.yaml", "YAML config path")
	port := flag.String("port", "", "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error().Err(err).Str("path", *configPath).Msg("failed to load config")
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	logger.Init(cfg.Log.Level)

	ctx := context.Background()

	// Store
	local, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
		os.Exit(1)
	}
	defer local.Close()

	var store generic.Store = local
	var mirror *redissync.Mirror
	if cfg.Redis.Enabled {
		var remote *redissync.RedisRemote
		mirror, remote, err = openMirror(ctx, cfg, local)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("remote sync disabled")
		} else {
			store = mirror
			defer remote.Close()
			defer mirror.Close()
		}
	}

	// Salary plan
	salaryCfg := salary.DefaultConfig()
	if cfg.Payroll.Plan != "" {
		salaryCfg, err = factory.NewPlanFactory().LoadFile(cfg.Payroll.Plan)
		if err != nil {
			logger.Error().Err(err).Str("plan", cfg.Payroll.Plan).Msg("failed to load salary plan")
			os.Exit(1)
		}
		logger.Info().Str("plan", cfg.Payroll.Plan).Msg("salary plan loaded")
	}

	repo := records.New(store)
	archives := archive.NewManager(repo, salary.New(salaryCfg))
	if err := startupChecks(ctx, repo, archives); err != nil {
		logger.Error().Err(err).Msg("startup checks failed")
		os.Exit(1)
	}

	handler := api.NewHandler(archives, planning.NewPlanner(store))
	router := api.NewRouter(handler, cfg.Server.AllowedOrigins)

	var scheduler *api.RolloverScheduler
	if cfg.Scheduler.Enabled {
		scheduler = api.NewRolloverScheduler(archives, handler.Session, cfg.Scheduler.Spec)
		if err := scheduler.Start(); err != nil {
			logger.Error().Err(err).Str("spec", cfg.Scheduler.Spec).Msg("failed to start rollover scheduler")
			os.Exit(1)
		}
	}

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}

// openMirror connects to Redis, starts the push worker and pulls newer
// remote records. The mirror must be closed before the remote.
func openMirror(ctx context.Context, cfg *config.Config, local *sqlite.Store) (*redissync.Mirror, *redissync.RedisRemote, error) {
	remote, err := redissync.NewRedisRemote(ctx, redissync.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	})
	if err != nil {
		return nil, nil, err
	}

	m := redissync.New(local, remote)
	m.Start(context.Background())

	res, err := m.Pull(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("initial pull failed, using local records")
	} else {
		logger.Info().
			Int("documents", res.Documents).
			Int("archives", res.Archives).
			Int("skipped", res.Skipped).
			Msg("remote records pulled")
	}
	return m, remote, nil
}

// startupChecks brings the store to the current schema and closes any
// month left open while the server was down.
func startupChecks(ctx context.Context, repo *records.Repository, archives *archive.Manager) error {
	if _, err := repo.Migrate(ctx); err != nil {
		return err
	}
	if _, err := archives.MigrateLegacyArchives(ctx); err != nil {
		return err
	}
	if _, err := archives.DetectOrphanedMonth(ctx); err != nil {
		return err
	}
	_, err := archives.CheckRollover(ctx)
	return err
}
