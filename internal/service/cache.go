package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ключи и время жизни записей кэша
const (
	KeyTables         = "tables:all"
	KeyKitchenDisplay = "kitchen_display:all"
	KeyOrders         = "order:all"

	TTLTables         = 3600 * time.Second
	TTLKitchenDisplay = 360 * time.Second
	TTLOrders         = 360 * time.Second
)

// safeCache — обёртка над Cache, которая никогда не возвращает ошибок:
// недоступный кэш логируется и считается промахом
type safeCache struct {
	cache Cache
	log   *slog.Logger
}

func (c safeCache) get(ctx context.Context, key string, dst any) bool {
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.warn("get", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// битое значение перезапишется при следующем заполнении
		c.log.Warn("cached value is corrupted", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

func (c safeCache) put(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error("failed to encode cache value", slog.String("key", key), slog.String("error", err.Error()))
		return
	}
	if err := c.cache.Put(ctx, key, raw, ttl); err != nil {
		c.warn("put", key, err)
	}
}

func (c safeCache) forget(ctx context.Context, key string) {
	if err := c.cache.Forget(ctx, key); err != nil {
		c.warn("forget", key, err)
	}
}

func (c safeCache) warn(action, key string, err error) {
	c.log.Warn("cache operation failed",
		slog.String("action", action),
		slog.String("key", key),
		slog.String("error", fmt.Errorf("%w: %w", ErrCacheUnavailable, err).Error()),
	)
}
