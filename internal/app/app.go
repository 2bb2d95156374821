// Package app wires configuration, stores and services into a runnable
// process. Both binaries build on it.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/valeevte/pricewatch/internal/cache"
	"github.com/valeevte/pricewatch/internal/comparator"
	"github.com/valeevte/pricewatch/internal/config"
	"github.com/valeevte/pricewatch/internal/database"
	"github.com/valeevte/pricewatch/internal/health"
	"github.com/valeevte/pricewatch/internal/ingestion"
	"github.com/valeevte/pricewatch/internal/marketplace"
	"github.com/valeevte/pricewatch/internal/normalizer"
	"github.com/valeevte/pricewatch/internal/products"
	"github.com/valeevte/pricewatch/internal/scheduler"
	"github.com/valeevte/pricewatch/internal/server"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

type App struct {
	Config *config.Config
	Logger *zap.Logger

	Postgres *pgxpool.Pool
	Mongo    *database.Mongo
	Cache    *cache.Cache

	Orchestrator *ingestion.Orchestrator
	Scheduler    *scheduler.Scheduler
	Comparator   *comparator.Service
	Health       *health.Checker

	productRepo *products.Repository
}

// New opens every store and builds the services. ctx is the process
// lifecycle context; cancelling it aborts running cycles.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	pool, err := database.ConnectPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, err
	}
	a.Postgres = pool
	log.Info("connected to postgres", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DBName))

	m, err := database.ConnectMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Mongo = m
	log.Info("connected to mongodb", zap.String("db", cfg.Mongo.Database))

	c, err := cache.New(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	}, log)
	switch {
	case err != nil:
		log.Warn("redis unavailable, running without cache", zap.Error(err))
	case c == nil:
		log.Info("redis not configured, running without cache")
	default:
		a.Cache = c
	}

	productRepo := products.NewRepository(m.DB)
	comparatorRepo := comparator.NewMongoRepository(m.DB)
	cycleLog := ingestion.NewCycleLogRepository(m.DB)
	for _, ix := range []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"products", productRepo.EnsureIndexes},
		{"comparator", comparatorRepo.EnsureIndexes},
		{"cycle log", cycleLog.EnsureIndexes},
	} {
		if err := ix.ensure(ctx); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("ensure %s indexes: %w", ix.name, err)
		}
	}

	client := marketplace.NewClient(marketplace.Config{
		Name:    cfg.Marketplace.Name,
		BaseURL: cfg.Marketplace.BaseURL,
		APIKey:  cfg.Marketplace.APIKey,
		APIHost: cfg.Marketplace.APIHost,
		Country: cfg.Marketplace.Country,
		Timeout: cfg.Marketplace.Timeout,
	}, log)
	if !client.HasCredential() {
		log.Warn("marketplace credential not configured, every fetch will be denied")
	}

	a.Orchestrator = ingestion.NewOrchestrator(ingestion.Config{
		Marketplace: client.Marketplace(),
		Country:     client.Country(),
		Pacing:      cfg.Scheduler.Pacing,
	},
		products.NewTrackedRepository(pool),
		client,
		normalizer.New(log),
		productRepo,
		log,
		ingestion.WithRecorder(cycleLog),
		ingestion.WithCache(a.Cache),
	)

	a.Scheduler = scheduler.New(ctx, a.Orchestrator, scheduler.Config{
		Interval:   cfg.Scheduler.Interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	}, log)

	a.Comparator = comparator.NewService(comparatorRepo, comparator.NewGenerator(), a.Cache, log)

	a.Health = health.NewChecker(server.ServiceName, Version, client.Marketplace(), client.HasCredential(), a.Scheduler)
	a.Health.AddProbe("mongodb", m.Ping)
	a.Health.AddProbe("postgresql", pool.Ping)
	if a.Cache != nil {
		a.Health.AddProbe("redis", a.Cache.Ping)
	} else {
		a.Health.AddProbe("redis", nil)
	}

	a.productRepo = productRepo
	return a, nil
}

// Router builds the HTTP engine over the wired services.
func (a *App) Router() *gin.Engine {
	return server.New(server.Config{
		Version:      Version,
		AllowOrigins: a.Config.Server.AllowOrigins,
		Debug:        a.Config.IsDevelopment(),
	}, a.Logger,
		a.Health,
		products.NewHandler(a.productRepo, a.Cache, a.Logger),
		scheduler.NewHandler(a.Scheduler, a.Logger),
		comparator.NewHandler(a.Comparator, a.Logger),
	)
}

// Close releases every store. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if a.Mongo != nil {
		if err := a.Mongo.Close(ctx); err != nil {
			a.Logger.Warn("close mongodb", zap.Error(err))
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
}
