package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ScanInventory/internal/config"
	"ScanInventory/internal/inventory"
)

func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (inventory.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory backend; inventory is lost on restart")
		return inventory.NewMemBackend(), nil

	case config.BackendFile:
		b, err := inventory.NewFileBackend(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		log.Info("using file backend", zap.String("path", b.Path()))
		return b, nil

	case config.BackendPostgres:
		return inventory.OpenSQLBackend(ctx, inventory.Postgres, cfg.PostgresDSN)

	case config.BackendMySQL:
		return inventory.OpenSQLBackend(ctx, inventory.MySQL, cfg.MySQLDSN)

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		b := inventory.NewRedisBackend(client, cfg.RedisKey)
		if err := b.Ping(ctx); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return b, nil

	case config.BackendMongo:
		return inventory.OpenMongoBackend(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
	}

	return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}
