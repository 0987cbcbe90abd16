package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/aggregate"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/board"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/cache"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/config"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/db"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/feed"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/handler"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/remote"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
	dynamorepository "github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository/dynamo"
	gormrepository "github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository/gorm"
	memoryrepository "github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository/memory"
	remoterepository "github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository/remote"
)

type deps struct {
	store  repository.Store
	board  *board.Service
	hub    *feed.Hub
	checks map[string]handler.Check

	closers []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// wire builds the store backend, the board and its cache from cfg.
func wire(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{checks: map[string]handler.Check{}}

	var (
		remoteClient *remote.Client
		remoteSource *board.RemoteSource
	)
	if cfg.Store.Backend == config.BackendRemote || cfg.Board.Source == config.BoardSourceRemote {
		remoteClient = remote.NewClient(remote.Config{BaseURL: cfg.Remote.BaseURL, APIKey: cfg.Remote.APIKey})
		remoteSource = &board.RemoteSource{
			Client:    remoteClient,
			Namespace: aggregate.OpportunitiesNamespace,
			PageLimit: cfg.Remote.PageLimit,
			MaxPages:  cfg.Remote.MaxPages,
			Logger:    logger,
		}
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		d.store = memoryrepository.New()
	case config.BackendPostgres:
		conn, err := db.Open(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		d.closers = append(d.closers, func() { _ = db.Close(conn) })
		if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
			logger.Warn("failed to set timezone", zap.Error(err))
		}
		if err := db.AutoMigrate(conn); err != nil {
			d.close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
		d.store = gormrepository.New(conn.Gorm)
		d.checks["db_unreachable"] = func(ctx context.Context) error { return db.Ping(ctx, conn) }
	case config.BackendDynamoDB:
		client, err := db.OpenDynamoDB(ctx, cfg.DynamoDB)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		if cfg.DynamoDB.CreateTable {
			if err := db.EnsureDynamoTable(ctx, client, cfg.DynamoDB.Table); err != nil {
				return nil, fmt.Errorf("dynamodb table: %w", err)
			}
		}
		d.store = dynamorepository.New(client, cfg.DynamoDB.Table)
	case config.BackendRemote:
		d.store = remoterepository.New(remoteClient, remoteSource, aggregate.OpportunitiesNamespace)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	logger.Info("opportunity store ready", zap.String("backend", cfg.Store.Backend))

	if cfg.Store.SeedDefaults && cfg.Store.Backend == config.BackendMemory {
		if err := repository.Seed(ctx, d.store, repository.DemoOpportunities(), logger); err != nil {
			logger.Warn("seeding demo opportunities failed", zap.Error(err))
		}
	}

	var source board.Source = board.StoreSource{Store: d.store}
	if cfg.Board.Source == config.BoardSourceRemote {
		source = remoteSource
	}

	var snapshots cache.Store
	switch cfg.Board.Cache {
	case config.CacheMemory:
		snapshots = cache.NewMemoryStore()
	case config.CacheRedis:
		rs := cache.NewRedisStore(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.KeyPrefix)
		d.closers = append(d.closers, func() { _ = rs.Close() })
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("redis unreachable at startup", zap.Error(err))
		}
		d.checks["cache_unreachable"] = rs.Ping
		snapshots = rs
	}
	d.board = &board.Service{Source: source, Cache: snapshots, TTL: cfg.Board.CacheTTL, Logger: logger}

	if cfg.Feed.Enabled {
		d.hub = feed.NewHub(cfg.Feed.Buffer)
	}
	return d, nil
}
