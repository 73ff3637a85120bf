// Package server wires the goal store server: configuration, storage
// backend, the goal service and the gRPC endpoint, with graceful shutdown on
// SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/auth"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/dmitrijs2005/goalkeeper/internal/server/config"
	"github.com/dmitrijs2005/goalkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/goalkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/goalkeeper/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	clock       clock.Clock
	db          *sql.DB
	goalService *services.GoalService
}

// openDatabase is a seam for tests.
var openDatabase = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	return newApp(ctx, c, logger, clock.Real())
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, clk clock.Clock) (*App, error) {
	var (
		db *sql.DB
		rm repomanager.RepositoryManager
	)

	switch c.Storage {
	case config.StorageMemory:
		rm = repomanager.NewMemoryRepositoryManager()
	default:
		var err error
		db, err = openDatabase(c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		rm = repomanager.NewPostgresRepositoryManager()
		if err := rm.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
	}

	gsvc := services.NewGoalService(db, rm, logger)
	return &App{config: c, logger: logger, clock: clk, db: db, goalService: gsvc}, nil
}

// IssueToken mints an access token for owner with the configured secret
// and validity. It needs no storage, so it runs before NewApp.
func IssueToken(c *config.Config, owner string, now time.Time) (string, error) {
	return auth.GenerateToken(owner, []byte(c.SecretKey), c.AccessTokenValidityDuration, now)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.goalService, app.config.SecretKey, app.clock)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.Storage)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()
}

func (app *App) Close() error {
	if app.db == nil {
		return nil
	}
	return app.db.Close()
}
