package service

import (
	"context"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// OrderStore определяет контракт транзакционного хранилища заказов и столов
// всё, что меняет данные, выполняется только внутри WithTx
type OrderStore interface {
	// WithTx открывает транзакцию, фиксирует её, если fn вернула nil, и откатывает иначе
	WithTx(ctx context.Context, fn func(tx repository.Tx) error) error

	GetOrderDetail(ctx context.Context, id int64) (model.Order, error)
	AllOrders(ctx context.Context) ([]model.Order, error)
	OrdersByStatus(ctx context.Context, statuses []model.OrderStatus, dir repository.SortDirection, detail bool) ([]model.Order, error)
	SearchActiveOrders(ctx context.Context, term string) ([]model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error)
	AllTables(ctx context.Context) ([]model.Table, error)
	GetTable(ctx context.Context, id int64) (model.Table, error)
}

// Cache определяет контракт для key/value-кэша с TTL
// значения — уже сериализованные данные, кэш перезаписывает их целиком
type Cache interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Has(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
	FlushPattern(ctx context.Context, pattern string) (int, error)
}

// Notifier получает события смены статуса после фиксации транзакции
type Notifier interface {
	NotifyStatusChange(ctx context.Context, event model.StatusEvent) error
}
