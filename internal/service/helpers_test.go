package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/asquebay/restaurant-order-service/internal/model"
	cachestore "github.com/asquebay/restaurant-order-service/internal/repository/cache"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spyCache считает обращения к ключам и умеет имитировать недоступность
type spyCache struct {
	Cache

	mu      sync.Mutex
	puts    map[string]int
	forgets map[string]int
	down    bool
}

func newSpyCache() *spyCache {
	return &spyCache{Cache: cachestore.NewMemory(), puts: map[string]int{}, forgets: map[string]int{}}
}

var errCacheDown = errors.New("connection refused")

func (c *spyCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.puts[key]++
	down := c.down
	c.mu.Unlock()
	if down {
		return errCacheDown
	}
	return c.Cache.Put(ctx, key, value, ttl)
}

func (c *spyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	down := c.down
	c.mu.Unlock()
	if down {
		return nil, false, errCacheDown
	}
	return c.Cache.Get(ctx, key)
}

func (c *spyCache) Forget(ctx context.Context, key string) error {
	c.mu.Lock()
	c.forgets[key]++
	down := c.down
	c.mu.Unlock()
	if down {
		return errCacheDown
	}
	return c.Cache.Forget(ctx, key)
}

func (c *spyCache) putCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts[key]
}

func (c *spyCache) forgetCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forgets[key]
}

func (c *spyCache) setDown(down bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = down
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.StatusEvent
	err    error
}

func (n *recordingNotifier) NotifyStatusChange(_ context.Context, event model.StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) all() []model.StatusEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.StatusEvent(nil), n.events...)
}

type testEnv struct {
	store     *fakeStore
	cache     *spyCache
	notifier  *recordingNotifier
	resolver  *TableStatusResolver
	refresher *CacheRefresher
	lifecycle *OrderLifecycle
	tables    *TableService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := discardLogger()
	env := &testEnv{
		store:    newFakeStore(),
		cache:    newSpyCache(),
		notifier: &recordingNotifier{},
	}
	env.resolver = NewTableStatusResolver(env.store, env.cache, log)
	env.refresher = NewCacheRefresher(env.store, env.cache, log)
	env.lifecycle = NewOrderLifecycle(env.store, env.resolver, env.refresher, env.notifier, log)
	env.tables = NewTableService(env.store, env.cache, log)
	return env
}

// cached декодирует запись кэша; false, если записи нет
func (e *testEnv) cached(t *testing.T, key string, dst any) bool {
	t.Helper()
	raw, ok, err := e.cache.Cache.Get(context.Background(), key)
	require.NoError(t, err)
	if !ok {
		return false
	}
	require.NoError(t, json.Unmarshal(raw, dst))
	return true
}

func (e *testEnv) kitchenIDs(t *testing.T) []int64 {
	t.Helper()
	var orders []model.Order
	require.True(t, e.cached(t, KeyKitchenDisplay, &orders), "kitchen display is not cached")
	return orderIDs(orders)
}

func orderIDs(orders []model.Order) []int64 {
	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func oneItemRequest(tableID int64) model.CreateOrderRequest {
	return model.CreateOrderRequest{
		TableID: tableID,
		UserID:  1,
		Items:   []model.CreateOrderItem{{MenuID: 1, Quantity: 1, Price: decimal.RequireFromString("12.00")}},
	}
}
