package redis

import (
	"context"
	"fmt"

	"github.com/mcservers/playersessions/config"
	"github.com/mcservers/playersessions/pkg/logger"
	pkgRedis "github.com/mcservers/playersessions/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// Connect opens a client and checks the server answers before returning it.
func Connect(ctx context.Context, cfg config.RedisConfig, l logger.Logger) (*redis.Client, error) {
	cli := pkgRedis.NewClient(cfg)

	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", cfg.Addr, err)
	}

	l.Infof(ctx, "Connected to Redis at %s", cfg.Addr)

	return cli, nil
}

func Disconnect(ctx context.Context, cli *redis.Client, l logger.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "infra.redis.Disconnect: %v", err)
		return
	}

	l.Info(ctx, "Connection to Redis closed.")
}
