package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Yulikepython/drive-cleaner/internal/config"
	"github.com/Yulikepython/drive-cleaner/internal/database"
	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/metrics"
	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/internal/repository"
	"github.com/Yulikepython/drive-cleaner/internal/service"
	"github.com/Yulikepython/drive-cleaner/internal/storage"
)

const sqliteBusyTimeout = 5 * time.Second

// ledgerStore is what both ledger backends provide.
type ledgerStore interface {
	service.Ledger
	service.LedgerAdmin
}

// App holds the wired sweeper. Every command builds one, uses the services it
// needs and closes it.
type App struct {
	Config   *config.Config
	Location *time.Location

	Sweep       *service.SweepService
	Ledger      *service.LedgerService
	Audit       *service.AuditService
	SweepConfig service.ConfigProvider

	registry *prometheus.Registry
	db       *database.DB
	sqlite   *sql.DB
	cleanup  []func()
}

func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Location: cfg.Location(),
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.UsesPostgres() {
		slog.Info("connecting to PostgreSQL")
		a.db, err = database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.cleanup = append(a.cleanup, a.db.Close)

		if err := a.db.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
	}

	schema := ledgerSchema(cfg)
	ledger, err := a.openLedger(ctx, schema)
	if err != nil {
		return nil, err
	}

	configProvider, err := a.configProvider()
	if err != nil {
		return nil, err
	}
	a.SweepConfig = configProvider

	source, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer, ok := source.(interface{ Close() error }); ok {
		a.cleanup = append(a.cleanup, func() { _ = closer.Close() })
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	sweepMetrics := metrics.New(a.registry)
	bus := event.NewBus()

	discovery := service.NewDiscoveryService(source, ledger, service.DiscoveryLimits{
		WriteChunkSize: cfg.DiscoverChunkSize,
		MaxFiles:       cfg.DiscoverCap,
	}, a.Location)
	discovery.SetEventBus(bus)
	discovery.SetMetrics(sweepMetrics)

	reconcile := service.NewReconcileService(source, ledger, service.ReconcileLimits{
		DeleteChunkSize: cfg.DeleteChunkSize,
		MaxFiles:        cfg.DeleteCap,
	}, a.Location)
	reconcile.SetTrashRate(cfg.TrashRatePerSecond)
	reconcile.SetEventBus(bus)
	reconcile.SetMetrics(sweepMetrics)

	a.Sweep = service.NewSweepService(configProvider, discovery, reconcile)
	a.Sweep.SetEventBus(bus)
	a.Sweep.SetMetrics(sweepMetrics)

	var auditStore service.AuditStore
	if a.db != nil {
		a.Sweep.SetRunStore(repository.NewRunRepository(a.db.Pool))
		auditStore = repository.NewAuditRepository(a.db.Pool)
	}

	// The audit subscriber outlives the command context so the events of an
	// interrupted run are still recorded; Close drains it.
	a.Audit = service.NewAuditService(auditStore)
	a.Audit.Start(context.WithoutCancel(ctx), bus)
	a.cleanup = append(a.cleanup, a.Audit.Stop)

	a.Ledger = service.NewLedgerService(ledger, source, schema)
	a.Ledger.SetAuditService(a.Audit)

	slog.Info("drive-cleaner ready",
		"ledger", cfg.LedgerBackend,
		"config_source", cfg.SweepConfigSource,
		"storage", cfg.StorageBackend,
		"time_zone", a.Location.String(),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
	a.cleanup = nil
}

func ledgerSchema(cfg *config.Config) model.LedgerSchema {
	schema := model.DefaultLedgerSchema()
	schema.Table = cfg.LedgerTable
	return schema
}

func (a *App) openLedger(ctx context.Context, schema model.LedgerSchema) (ledgerStore, error) {
	switch a.Config.LedgerBackend {
	case config.LedgerBackendPostgres:
		repo := repository.NewLedgerRepository(a.db.Pool, schema)
		if err := repo.EnsureTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare ledger table: %w", err)
		}
		return repo, nil

	case config.LedgerBackendSQLite:
		db, err := database.OpenSQLite(ctx, a.Config.SQLitePath, sqliteBusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
		}
		a.sqlite = db
		a.cleanup = append(a.cleanup, func() { _ = db.Close() })

		return repository.NewSQLiteLedger(ctx, db, schema)

	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", a.Config.LedgerBackend)
	}
}

func (a *App) configProvider() (service.ConfigProvider, error) {
	switch a.Config.SweepConfigSource {
	case config.ConfigSourceFile:
		return repository.NewSweepConfigFile(a.Config.SweepConfigFile), nil
	case config.ConfigSourcePostgres:
		return repository.NewSweepConfigRepository(a.db.Pool, model.ConfigLocation{
			Table: a.Config.SweepConfigTable,
			Name:  a.Config.SweepConfigName,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported sweep config source %q", a.Config.SweepConfigSource)
	}
}

func newSource(ctx context.Context, cfg *config.Config) (service.FileSource, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendLocal:
		source, err := storage.NewLocalSource(cfg.LocalRoot, cfg.LocalTrashRoot, cfg.LocalOwnerDomain)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		return source, nil

	case config.StorageBackendS3:
		source, err := storage.NewS3Source(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3UsePathStyle,
			TrashPrefix:     cfg.S3TrashPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 storage: %w", err)
		}
		return source, nil

	case config.StorageBackendGCS:
		source, err := storage.NewGCSSource(ctx, storage.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GoogleCredentials,
			TrashPrefix:     cfg.GCSTrashPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gcs storage: %w", err)
		}
		return source, nil

	case config.StorageBackendDrive:
		source, err := storage.NewDriveSource(ctx, storage.DriveConfig{CredentialsFile: cfg.GoogleCredentials})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize drive storage: %w", err)
		}
		return source, nil

	default:
		return nil, errors.New("unsupported storage backend " + cfg.StorageBackend)
	}
}

// Migrate creates the fixed tables and, for the postgres backend, the ledger
// table. It needs DATABASE_URL.
func Migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return model.NewConfigurationError("DATABASE_URL", "required for migrate")
	}

	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to ensure database schema: %w", err)
	}

	if cfg.LedgerBackend == config.LedgerBackendPostgres {
		if err := repository.NewLedgerRepository(db.Pool, ledgerSchema(cfg)).EnsureTable(ctx); err != nil {
			return fmt.Errorf("failed to prepare ledger table: %w", err)
		}
	}
	return nil
}
