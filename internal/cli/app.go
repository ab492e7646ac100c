package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/ballotkeeper/internal/backup"
	"github.com/dmitrijs2005/ballotkeeper/internal/cache"
	"github.com/dmitrijs2005/ballotkeeper/internal/config"
	"github.com/dmitrijs2005/ballotkeeper/internal/filex"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/services"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/memstore"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/sqlstore"
)

// openEngine is a test seam for the storage engine.
var openEngine = func(ctx context.Context, cfg *config.Config) (store.Engine, error) {
	if cfg.Engine == config.EngineMemory {
		return memstore.New(), nil
	}
	d, err := sqlstore.DialectFor(cfg.Engine)
	if err != nil {
		return nil, err
	}
	if d.Name == sqlstore.SQLite.Name && cfg.DSN != ":memory:" {
		if err := filex.EnsureParentDir(cfg.DSN); err != nil {
			return nil, fmt.Errorf("prepare database file: %w", err)
		}
	}
	return sqlstore.Open(ctx, d, cfg.DSN)
}

// App wires the services over one store and one query cache.
type App struct {
	cfg       *config.Config
	log       logging.Logger
	store     *store.DocumentStore
	cache     *cache.QueryCache
	reader    *services.CachedReader
	registry  services.RegistryService
	voting    services.VotingService
	dashboard services.DashboardService
	backups   services.BackupService
}

// NewApp opens the configured engine and builds the services. Logs go to
// logOut.
func NewApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	log, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Engine, err)
	}
	log.Debug(ctx, "store opened", "engine", cfg.Engine)

	ds := store.New(engine,
		store.WithLogger(log.With("component", "store")),
		store.WithBulkConcurrency(cfg.BulkConcurrency),
	)
	qc := cache.New(cfg.CacheCapacity,
		cache.WithTTLs(cfg.CacheTTLs()),
		cache.WithLogger(log.With("component", "cache")),
	)
	svcLog := log.With("component", "services")
	reader := services.NewCachedReader(ds, qc, svcLog)
	registry := services.NewRegistryService(ds, reader, svcLog)
	s3cfg := backup.S3Config{
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
		AccessKey:    cfg.S3AccessKey,
		SecretKey:    cfg.S3SecretKey,
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     ds,
		cache:     qc,
		reader:    reader,
		registry:  registry,
		voting:    services.NewVotingService(ds, reader, registry, svcLog, cfg.ReconcileChunkSize),
		dashboard: services.NewDashboardService(reader, registry, svcLog),
		backups:   services.NewBackupService(ds, reader, s3cfg, svcLog),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.store.Close()
}
