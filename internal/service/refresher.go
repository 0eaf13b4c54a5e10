package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// Origin — инициатор обновления кэша
type Origin int

const (
	// OriginMutation — обновление после изменения заказа в запросе
	OriginMutation Origin = iota
	// OriginScheduler — периодическое фоновое обновление
	OriginScheduler
)

func (o Origin) String() string {
	if o == OriginScheduler {
		return "scheduler"
	}
	return "mutation"
}

// direction задаёт порядок кухонного экрана:
// после изменений — сначала новые, для очереди оператора — сначала старые
func (o Origin) direction() repository.SortDirection {
	if o == OriginMutation {
		return repository.SortDesc
	}
	return repository.SortAsc
}

// CacheRefresher пересобирает order:all и kitchen_display:all целиком из хранилища
type CacheRefresher struct {
	store OrderStore
	cache safeCache
	log   *slog.Logger
}

func NewCacheRefresher(store OrderStore, cache Cache, log *slog.Logger) *CacheRefresher {
	return &CacheRefresher{
		store: store,
		cache: safeCache{cache: cache, log: log},
		log:   log,
	}
}

// RefreshAll перезаписывает обе записи кэша; ошибки только логируются
// повторный вызов без изменений в хранилище даёт те же значения
func (r *CacheRefresher) RefreshAll(ctx context.Context, origin Origin) {
	const op = "service.CacheRefresher.RefreshAll"
	log := r.log.With(slog.String("op", op), slog.String("origin", origin.String()))

	orders, err := r.refreshOrders(ctx)
	if err != nil {
		log.Error("failed to refresh orders cache", slog.String("error", err.Error()))
	}

	kitchen, err := r.refreshKitchen(ctx, origin.direction())
	if err != nil {
		log.Error("failed to refresh kitchen display cache", slog.String("error", err.Error()))
	}

	log.Debug("cache refreshed", slog.Int("orders", len(orders)), slog.Int("active", len(kitchen)))
}

// KitchenDisplay возвращает активные заказы для кухонного экрана
// с поисковым запросом кэш не используется; без него — чтение через кэш
func (r *CacheRefresher) KitchenDisplay(ctx context.Context, search string) ([]model.Order, error) {
	const op = "service.CacheRefresher.KitchenDisplay"
	log := r.log.With(slog.String("op", op))

	if term := strings.TrimSpace(search); term != "" {
		orders, err := r.store.SearchActiveOrders(ctx, term)
		if err != nil {
			log.Error("failed to search active orders", slog.String("error", err.Error()))
			return nil, storeError(op, err)
		}
		return orders, nil
	}

	var orders []model.Order
	if r.cache.get(ctx, KeyKitchenDisplay, &orders) {
		log.Debug("kitchen display served from cache")
		return orders, nil
	}

	orders, err := r.refreshKitchen(ctx, repository.SortAsc)
	if err != nil {
		log.Error("failed to load kitchen display", slog.String("error", err.Error()))
		return nil, storeError(op, err)
	}
	return orders, nil
}

// Orders возвращает полный список заказов через кэш order:all
func (r *CacheRefresher) Orders(ctx context.Context) ([]model.Order, error) {
	const op = "service.CacheRefresher.Orders"

	var orders []model.Order
	if r.cache.get(ctx, KeyOrders, &orders) {
		return orders, nil
	}

	orders, err := r.refreshOrders(ctx)
	if err != nil {
		r.log.Error("failed to load orders", slog.String("op", op), slog.String("error", err.Error()))
		return nil, storeError(op, err)
	}
	return orders, nil
}

func (r *CacheRefresher) refreshOrders(ctx context.Context) ([]model.Order, error) {
	orders, err := r.store.AllOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	r.cache.put(ctx, KeyOrders, orders, TTLOrders)
	return orders, nil
}

func (r *CacheRefresher) refreshKitchen(ctx context.Context, dir repository.SortDirection) ([]model.Order, error) {
	orders, err := r.store.OrdersByStatus(ctx, model.ActiveOrderStatuses, dir, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read active orders: %w", err)
	}
	r.cache.put(ctx, KeyKitchenDisplay, orders, TTLKitchenDisplay)
	return orders, nil
}
