package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const stockCacheTTL = 10 * time.Minute

// FallbackProvider answers stock lookups on a cache miss, typically the
// persisted stock repository.
type FallbackProvider interface {
	Level(ctx context.Context, materialID string) (int, error)
}

// RedisStockProvider serves stock levels from the redis cache kept fresh
// by the inventory.stock_changed feed, falling back to the store on a
// miss.
type RedisStockProvider struct {
	rdb      *redis.Client
	fallback FallbackProvider
	logger   *zap.Logger
}

func NewRedisStockProvider(rdb *redis.Client, fallback FallbackProvider, logger *zap.Logger) *RedisStockProvider {
	return &RedisStockProvider{rdb: rdb, fallback: fallback, logger: logger}
}

func stockKey(materialID string) string {
	return fmt.Sprintf("stock:%s", materialID)
}

func (p *RedisStockProvider) Level(ctx context.Context, materialID string) (int, error) {
	val, err := p.rdb.Get(ctx, stockKey(materialID)).Result()
	if err == nil {
		level, convErr := strconv.Atoi(val)
		if convErr == nil {
			return level, nil
		}
		p.logger.Warn("Corrupt cached stock level, falling back",
			zap.String("material_id", materialID),
			zap.String("value", val),
		)
	} else if err != redis.Nil {
		p.logger.Warn("Redis stock lookup failed, falling back",
			zap.String("material_id", materialID),
			zap.Error(err),
		)
	}

	level, err := p.fallback.Level(ctx, materialID)
	if err != nil {
		return 0, err
	}

	if err := p.rdb.Set(ctx, stockKey(materialID), level, stockCacheTTL).Err(); err != nil {
		p.logger.Debug("Failed to cache stock level",
			zap.String("material_id", materialID),
			zap.Error(err),
		)
	}
	return level, nil
}

// SetLevel refreshes the cached level, used by the stock feed consumer.
func (p *RedisStockProvider) SetLevel(ctx context.Context, materialID string, level int) error {
	return p.rdb.Set(ctx, stockKey(materialID), level, stockCacheTTL).Err()
}
