// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/tenanthub/internal/app/system/indexes"
	"github.com/dalemusser/tenanthub/internal/app/system/timeouts"
	"github.com/dalemusser/tenanthub/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectDB connects MongoDB and Redis.
//
// Mongo is required. Redis is optional: an unreachable server is logged and
// the connection kept, since every counter call fails open and go-redis
// reconnects on its own.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().ApplyURI(appCfg.MongoURI)
	if appCfg.MongoMaxPoolSize > 0 {
		opts.SetMaxPoolSize(appCfg.MongoMaxPoolSize)
	}
	if appCfg.MongoMinPoolSize > 0 {
		opts.SetMinPoolSize(appCfg.MongoMinPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to MongoDB", zap.String("database", appCfg.MongoDatabase))

	deps := DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}

	if appCfg.RedisURL == "" {
		logger.Warn("redis_url is blank; rate limiting is disabled")
		return deps, nil
	}
	ropts, err := redis.ParseURL(appCfg.RedisURL)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return DBDeps{}, fmt.Errorf("redis url: %w", err)
	}
	rdb := redis.NewClient(ropts)
	rpingCtx, rcancel := context.WithTimeout(ctx, timeouts.Ping())
	defer rcancel()
	if err := rdb.Ping(rpingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; rate limiting will fail open until it recovers",
			zap.String("addr", ropts.Addr), zap.Error(err))
	} else {
		logger.Info("connected to Redis", zap.String("addr", ropts.Addr))
	}
	deps.Redis = rdb

	return deps, nil
}

// EnsureSchema applies collection validators, then indexes.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := validators.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		return fmt.Errorf("validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase, logger); err != nil {
		return fmt.Errorf("indexes: %w", err)
	}
	return nil
}
