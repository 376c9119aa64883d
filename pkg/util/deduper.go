package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards an operation with a Redis SETNX key so it runs at most once
// per ttl. It backs the HTTP Idempotency-Key header and the event worker.
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration) *Deduper {
	return NewDeduperWithLogger(rdb, ttl, zap.NewNop())
}

// NewDeduperWithLogger creates a deduper with logger support
func NewDeduperWithLogger(rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// DedupKey formats the Redis key for a scope (handler name, route) and id.
func DedupKey(scope, id string) string {
	return fmt.Sprintf("dedup:%s:%s", scope, id)
}

// AcquireOnce tries to acquire a dedup lock for scope + id.
// returns true if this is the FIRST time processing
// returns false if it's a duplicate
func (d *Deduper) AcquireOnce(ctx context.Context, scope, id string) bool {
	key := DedupKey(scope, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		// Redis 挂了？为了安全：当 redis 不可用时，不阻止处理，返回 true
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	// 去重命中：记录日志
	if !ok {
		d.logger.Info("Skipped duplicated request",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.String("dedup_key", key),
		)
	}

	return ok
}

// Release drops the lock so a failed attempt can be retried.
func (d *Deduper) Release(ctx context.Context, scope, id string) {
	if err := d.rdb.Del(ctx, DedupKey(scope, id)).Err(); err != nil {
		d.logger.Warn("Redis dedup release failed",
			zap.String("scope", scope),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
