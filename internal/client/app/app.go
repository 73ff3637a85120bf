// Package app wires the goalkeeper client together: local store, encryption,
// sessions, remote transport, sync coordinator and reconciliation worker.
// An App is built explicitly with New and owns everything it creates.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/goalkeeper/internal/client/client"
	"github.com/dmitrijs2005/goalkeeper/internal/client/config"
	"github.com/dmitrijs2005/goalkeeper/internal/client/goalsync"
	"github.com/dmitrijs2005/goalkeeper/internal/client/keystore"
	"github.com/dmitrijs2005/goalkeeper/internal/client/models"
	"github.com/dmitrijs2005/goalkeeper/internal/client/reconcile"
	"github.com/dmitrijs2005/goalkeeper/internal/client/remote"
	"github.com/dmitrijs2005/goalkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/goalkeeper/internal/client/services"
	"github.com/dmitrijs2005/goalkeeper/internal/client/session"
	"github.com/dmitrijs2005/goalkeeper/internal/clock"
	"github.com/dmitrijs2005/goalkeeper/internal/common"
	"github.com/dmitrijs2005/goalkeeper/internal/cryptox"
	"github.com/dmitrijs2005/goalkeeper/internal/filex"
	"github.com/dmitrijs2005/goalkeeper/internal/logging"
	"github.com/google/uuid"
)

type Mode string

const (
	ModeUnknown Mode = "unknown"
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

var ErrNoPassphrase = errors.New("keystore passphrase is not set")

type Option func(*options)

type options struct {
	clock      clock.Clock
	log        logging.Logger
	transport  client.Client
	keys       keystore.Keystore
	passphrase *string
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithLogger replaces the rotated file logger.
func WithLogger(l logging.Logger) Option { return func(o *options) { o.log = l } }

// WithTransport replaces the transport selected by Config.RemoteKind.
func WithTransport(t client.Client) Option { return func(o *options) { o.transport = t } }

// WithKeystore replaces the passphrase-sealed SQLite keystore.
func WithKeystore(k keystore.Keystore) Option { return func(o *options) { o.keys = k } }

// WithPassphrase supplies the keystore passphrase instead of reading it
// from the environment.
func WithPassphrase(p string) Option { return func(o *options) { o.passphrase = &p } }

type App struct {
	cfg   *config.Config
	db    *sql.DB
	clock clock.Clock
	log   logging.Logger

	closers []io.Closer

	crypto      *cryptox.Service
	store       services.GoalStore
	sessions    *session.Manager
	transport   client.Client
	remote      *remote.SyncClient
	coordinator *goalsync.Coordinator
	worker      *reconcile.Worker

	mu      sync.Mutex
	mode    Mode
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New opens (and migrates) the local database and builds every component.
// Nothing runs in the background until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, clock: o.clock, mode: ModeUnknown}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if o.log == nil {
		if _, err := filex.EnsureParentDir(cfg.LogFile); err != nil {
			return nil, err
		}
		level := slog.LevelInfo
		if cfg.Verbose {
			level = slog.LevelDebug
		}
		l, closer := logging.NewFileLogger(logging.FileOptions{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Level:      level,
		})
		o.log = l
		a.closers = append(a.closers, closer)
	}
	a.log = o.log

	if !strings.HasPrefix(cfg.DatabasePath, "file:") && cfg.DatabasePath != ":memory:" {
		if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrLocalPersistence, err)
		}
	}
	a.db, err = client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", common.ErrLocalPersistence, err)
	}

	keys := o.keys
	if keys == nil {
		passphrase := os.Getenv(cfg.KeystorePassphraseEnv)
		if o.passphrase != nil {
			passphrase = *o.passphrase
		}
		if passphrase == "" {
			return nil, fmt.Errorf("%w: set %s", ErrNoPassphrase, cfg.KeystorePassphraseEnv)
		}
		keys, err = keystore.NewSQLiteKeystore(a.db, passphrase, cfg.KeystoreWorkFactor)
		if err != nil {
			return nil, err
		}
	}

	meta := metadata.NewSQLiteRepository(a.db)

	a.crypto, err = cryptox.NewService(ctx, keys, meta, a.clock, a.log, cryptox.Options{
		MaxKeyAge: cfg.MaxKeyAge,
		GraceKeys: cfg.GraceKeys,
	})
	if err != nil {
		return nil, err
	}
	index, err := cryptox.NewIndexer(ctx, keys)
	if err != nil {
		return nil, err
	}

	a.store = services.NewGoalStore(a.db, a.crypto, index, a.clock, a.log,
		services.SensitiveFields{GoalValues: cfg.EncryptGoalValues})
	a.sessions = session.NewManager(meta, a.clock, a.log)

	transport := o.transport
	if transport == nil {
		if transport, err = newTransport(ctx, cfg); err != nil {
			return nil, err
		}
	}
	a.transport = transport

	a.remote = remote.NewSyncClient(a.transport, a.sessions, a.clock, a.log, remote.RetryPolicy{
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
		Deadline:    cfg.PushDeadline,
	})

	a.coordinator = goalsync.New(goalsync.Config{
		BatchSize:        cfg.BatchSize,
		MaxWait:          cfg.MaxWait,
		MinFlushInterval: cfg.MinFlushInterval,
		MaxRequeues:      cfg.MaxRequeues,
	}, a.remote, a.store, a.clock, a.log)

	a.worker = reconcile.NewWorker(reconcile.Config{
		Interval:  cfg.ReconcileInterval,
		Retention: cfg.Retention,
	}, a.store, a.coordinator, a.crypto, a.clock, a.log)

	return a, nil
}

func newTransport(ctx context.Context, cfg *config.Config) (client.Client, error) {
	switch cfg.RemoteKind {
	case config.RemoteS3:
		c, err := client.NewS3Client(ctx, client.S3Options{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.RemoteGRPC, "":
		c, err := client.NewGRPCClient(cfg.ServerEndpointAddr)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown remote kind %q", cfg.RemoteKind)
	}
}

func (a *App) Store() services.GoalStore          { return a.store }
func (a *App) Sessions() *session.Manager         { return a.sessions }
func (a *App) Crypto() *cryptox.Service           { return a.crypto }
func (a *App) Worker() *reconcile.Worker          { return a.worker }
func (a *App) Coordinator() *goalsync.Coordinator { return a.coordinator }
func (a *App) Logger() logging.Logger             { return a.log }
func (a *App) Config() *config.Config             { return a.cfg }
func (a *App) Now() time.Time                     { return a.clock.Now() }

// Mode reports the last observed reachability of the remote store.
func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// setMode records m and reports whether the remote just came back online.
func (a *App) setMode(ctx context.Context, m Mode) bool {
	a.mu.Lock()
	prev := a.mode
	a.mode = m
	a.mu.Unlock()

	if prev != m {
		a.log.Info(ctx, "remote reachability changed", "from", prev, "to", m)
	}
	return prev == ModeOffline && m == ModeOnline
}

// NewRecord builds a record for a freshly calculated goal set.
func (a *App) NewRecord(ownerID string, values models.GoalValues, source models.CalculationSource, calculatedAt time.Time) models.GoalRecord {
	if calculatedAt.IsZero() {
		calculatedAt = a.clock.Now()
	}
	return models.GoalRecord{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Values:       values,
		CalculatedAt: calculatedAt.UTC(),
		Source:       source,
	}
}

// Save persists r as dirty and schedules it for synchronization. The local
// write is the only thing that can fail; sync problems surface later as a
// record that stays dirty.
func (a *App) Save(ctx context.Context, r models.GoalRecord) (models.GoalRecord, error) {
	saved, err := a.store.Upsert(ctx, r, true)
	if err != nil {
		return models.GoalRecord{}, err
	}
	if saved.IsDirty {
		a.coordinator.Enqueue(saved)
	}
	return saved, nil
}

// Ping probes the remote store and updates Mode.
func (a *App) Ping(ctx context.Context) error {
	err := a.remote.Ping(ctx)
	if err != nil {
		a.setMode(ctx, ModeOffline)
		return err
	}
	a.setMode(ctx, ModeOnline)
	return nil
}

// SyncNow pushes every dirty record once, bypassing the coordinator. It is
// meant for one-shot commands; a running App syncs through Start.
func (a *App) SyncNow(ctx context.Context) (models.BatchResult, error) {
	dirty, err := a.store.GetDirty(ctx)
	if err != nil {
		return models.BatchResult{}, err
	}
	if len(dirty) == 0 {
		return models.BatchResult{}, nil
	}

	res := a.remote.PushBatch(ctx, dirty)
	if acks := res.Acks(); len(acks) > 0 {
		if _, err := a.store.MarkRevisionsSynced(ctx, acks, a.clock.Now()); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Start launches the coordinator drain loop, the reconciliation worker and
// the online watcher. They stop on Close or when ctx is done.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("app already started")
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		_ = a.coordinator.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.worker.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.watchOnline(ctx)
	}()

	a.log.Info(ctx, "client started", "remote", a.cfg.RemoteKind, "database", a.cfg.DatabasePath)
	return nil
}

// watchOnline pings the remote every OnlineCheckInterval and forces a
// flush when it comes back.
func (a *App) watchOnline(ctx context.Context) {
	interval := a.cfg.OnlineCheckInterval
	if interval <= 0 {
		return
	}
	ticker := a.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.remote.Ping(pingCtx)
			cancel()

			mode := ModeOnline
			if err != nil {
				mode = ModeOffline
			}
			if a.setMode(ctx, mode) {
				if err := a.coordinator.ForceFlush(ctx); err != nil && ctx.Err() == nil {
					a.log.Warn(ctx, "flush after reconnect failed", "error", err)
				}
			}
		}
	}
}

// Flush queues every dirty record, pushes everything queued in a started
// App and waits for the push to finish.
func (a *App) Flush(ctx context.Context) error {
	dirty, err := a.store.GetDirty(ctx)
	if err != nil {
		return err
	}
	a.coordinator.EnqueueBatch(dirty)
	return a.coordinator.ForceFlush(ctx)
}

// Close stops the background loops and releases every resource.
func (a *App) Close() error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
