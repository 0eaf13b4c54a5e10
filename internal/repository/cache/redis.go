package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/asquebay/restaurant-order-service/internal/config"
)

// Redis — кэш поверх Redis; все ключи получают общий префикс
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedisClient только создаёт клиент: соединения открываются лениво,
// поэтому недоступный при старте Redis не мешает запуску сервиса
func NewRedisClient(cfg config.Redis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// Ping проверяет, отвечает ли сервер
func (r *Redis) Ping(ctx context.Context) error {
	const op = "repository.cache.Redis.Ping"

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}
	return nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "repository.cache.Redis.Put"

	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Get возвращает false без ошибки, если ключа нет
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const op = "repository.cache.Redis.Get"

	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return value, true, nil
}

func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	const op = "repository.cache.Redis.Has"

	n, err := r.client.Exists(ctx, r.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

func (r *Redis) Forget(ctx context.Context, key string) error {
	const op = "repository.cache.Redis.Forget"

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FlushPattern удаляет ключи по шаблону через SCAN, не блокируя Redis как KEYS
func (r *Redis) FlushPattern(ctx context.Context, pattern string) (int, error) {
	const op = "repository.cache.Redis.FlushPattern"

	removed := 0
	iter := r.client.Scan(ctx, 0, r.prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		n, err := r.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return removed, fmt.Errorf("%s: %w", op, err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("%s: %w", op, err)
	}
	return removed, nil
}

// Keys возвращает ключи по шаблону без общего префикса
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	const op = "repository.cache.Redis.Keys"

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// TTL возвращает оставшееся время жизни ключа
// отрицательное значение: ключ без срока жизни или отсутствует
func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	const op = "repository.cache.Redis.TTL"

	ttl, err := r.client.TTL(ctx, r.prefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return ttl, nil
}

// KeyStat — сведения о ключе для мониторинга
type KeyStat struct {
	Key  string
	Type string
	TTL  time.Duration
	// Size — длина значения в байтах, только для строковых ключей
	Size int64
}

// Stat собирает тип, TTL и размер ключа
func (r *Redis) Stat(ctx context.Context, key string) (KeyStat, error) {
	const op = "repository.cache.Redis.Stat"

	stat := KeyStat{Key: key, Size: -1}
	pipe := r.client.Pipeline()
	typ := pipe.Type(ctx, r.prefix+key)
	ttl := pipe.TTL(ctx, r.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return KeyStat{}, fmt.Errorf("%s: %w", op, err)
	}
	stat.Type = typ.Val()
	stat.TTL = ttl.Val()

	if stat.Type == "string" {
		n, err := r.client.StrLen(ctx, r.prefix+key).Result()
		if err != nil {
			return KeyStat{}, fmt.Errorf("%s: %w", op, err)
		}
		stat.Size = n
	}
	return stat, nil
}

// Info возвращает поля INFO сервера (версия, память, клиенты, keyspace)
func (r *Redis) Info(ctx context.Context) (map[string]string, error) {
	const op = "repository.cache.Redis.Info"

	raw, err := r.client.Info(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return parseInfo(raw), nil
}

// parseInfo разбирает ответ INFO: строки "ключ:значение", секции начинаются с #
func parseInfo(raw string) map[string]string {
	info := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			info[k] = v
		}
	}
	return info
}
