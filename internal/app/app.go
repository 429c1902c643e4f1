// Package app wires the guest service from configuration.
package app

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/config"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/db"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/internal/repositories/guest"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/aggregation"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/consistency"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/database"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/events"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/guests"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/kafka"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/pagination"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/redis"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/startup"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing"
	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/tracing/exporters"
)

// App holds the started dependencies.
type App struct {
	Config *config.Config
	Logger ectologger.Logger

	DB       database.DB
	Store    docstore.Store
	Redis    *redis.Client
	Producer *kafka.Producer
	Engine   *consistency.Engine
	Pager    *pagination.Engine
	Guests   *guests.Service

	startup         *startup.Startup
	shutdownTracing func(context.Context) error
}

// NewLogger builds the zap-backed logger.
func NewLogger(cfg *config.Config) (ectologger.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = level
	}

	zapLogger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

// New registers the startup dependencies. Nothing connects until Start.
func New(cfg *config.Config, logger ectologger.Logger) *App {
	a := &App{Config: cfg, Logger: logger, startup: startup.New(logger, cfg.StartupMaxAttempts)}

	a.startup.Add(startup.Func{Name: "tracing", OnStart: a.startTracing, OnStop: a.stopTracing})
	a.startup.Add(startup.Func{Name: "store", OnStart: a.startStore, OnStop: a.stopStore})
	if cfg.RenameLockEnabled {
		a.startup.Add(startup.Func{Name: "redis", OnStart: a.startRedis, OnStop: a.stopRedis})
	}
	if cfg.KafkaEnabled {
		a.startup.Add(startup.Func{Name: "kafka", OnStart: a.startKafka, OnStop: a.stopKafka})
	}
	a.startup.Add(startup.Func{Name: "guests", Requires: a.serviceDependencies(), OnStart: a.startGuests})

	return a
}

// Start starts every dependency with retries.
func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// Stop stops dependencies in reverse order.
func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

func (a *App) serviceDependencies() []string {
	deps := []string{"tracing", "store"}
	if a.Config.RenameLockEnabled {
		deps = append(deps, "redis")
	}
	if a.Config.KafkaEnabled {
		deps = append(deps, "kafka")
	}
	return deps
}

func (a *App) startTracing(ctx context.Context) error {
	exporter, err := exporters.New(ctx, exporters.Config{
		Protocol: a.Config.OTLPProtocol,
		Endpoint: a.Config.OTLPEndpoint,
		Insecure: a.Config.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	a.shutdownTracing = tracing.Setup(a.Config.AppName, exporter)
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.shutdownTracing == nil {
		return nil
	}
	return a.shutdownTracing(ctx)
}

// DatabaseConfig maps the DB_* settings.
func DatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

// Migrations builds the migration runner for the DB_MIGRATION_* settings.
func Migrations(cfg *config.Config, logger ectologger.Logger) *database.MigrationService {
	return database.NewMigrationService(logger, database.MigrationConfig{
		FolderPath:   cfg.DatabaseMigrationFolderPath,
		Version:      uint(cfg.DatabaseMigrationVersion),
		Force:        cfg.DatabaseMigrationForce,
		AutoRollback: cfg.DatabaseMigrationAutoRollback,
	}, db.Migrations())
}

func (a *App) startStore(ctx context.Context) error {
	if a.Config.StoreDriver == "memory" {
		a.Logger.Warn("Using the in-memory document store; data is lost on exit")
		a.Store = docstore.NewMemoryStore()
		return nil
	}

	conn, err := database.Open(ctx, DatabaseConfig(a.Config), a.Logger)
	if err != nil {
		return err
	}
	if a.Config.DatabaseMigrateOnStart {
		if err := Migrations(a.Config, a.Logger).Migrate(conn); err != nil {
			_ = conn.Close()
			return err
		}
	}

	a.DB = conn
	a.Store = docstore.NewPostgresStore(conn, a.Logger)
	return nil
}

func (a *App) stopStore(context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.Config.RedisHost,
		Port:     a.Config.RedisPort,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) stopRedis(context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}

func (a *App) startKafka(context.Context) error {
	a.Producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.Config.KafkaBrokers,
		Topic:        a.Config.KafkaOutputTopic,
		BatchSize:    a.Config.KafkaBatchSize,
		BatchTimeout: time.Duration(a.Config.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.Config.KafkaRequiredAcks,
		Compression:  a.Config.KafkaCompression,
	}, a.Logger)
	return nil
}

func (a *App) stopKafka(context.Context) error {
	if a.Producer == nil {
		return nil
	}
	return a.Producer.Close()
}

func (a *App) startGuests(context.Context) error {
	cfg := a.Config
	targets, err := cfg.CascadeTargets()
	if err != nil {
		return err
	}

	var engineOpts []consistency.Option
	var serviceOpts []guests.Option
	if a.Producer != nil {
		emitter := events.NewEmitter(a.Producer, a.Logger)
		engineOpts = append(engineOpts, consistency.WithEmitter(emitter))
		serviceOpts = append(serviceOpts, guests.WithEmitter(emitter))
	}
	if a.Redis != nil {
		serviceOpts = append(serviceOpts, guests.WithLocker(redis.NewLocker(a.Redis, "fern:lock:", cfg.RenameLockTTL, cfg.RenameLockWait)))
	}

	a.Engine = consistency.NewEngine(a.Store, a.Logger, consistency.Config{
		Targets:           targets,
		CollectionTimeout: cfg.CascadeCollectionTimeout,
		MaxConcurrency:    cfg.CascadeMaxConcurrency,
		CountryCode:       cfg.CountryCode,
	}, engineOpts...)
	a.Pager = pagination.NewEngine(a.Store, a.Logger, cfg.SearchMaxResults)

	aggCfg := aggregation.DefaultConfig()
	aggCfg.CountryCode = cfg.CountryCode

	a.Guests = guests.NewService(guests.Config{
		StrictIdentityCreate:   cfg.StrictIdentityCreate,
		BulkRepairDelay:        cfg.BulkRepairDelay,
		RepairPageSize:         cfg.RepairPageSize,
		TransactionsCollection: cfg.TransactionsCollection,
		CountryCode:            cfg.CountryCode,
		Aggregation:            aggCfg,
	}, a.Store, guest.NewRepository(a.Store, a.Logger), a.Engine, a.Pager, a.Logger, serviceOpts...)

	a.Logger.WithFields(map[string]any{
		"store":       cfg.StoreDriver,
		"targets":     len(targets),
		"rename_lock": a.Redis != nil,
		"events":      a.Producer != nil,
	}).Info("Guest service ready")
	return nil
}
