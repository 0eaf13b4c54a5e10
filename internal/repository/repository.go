// Package repository описывает общий для всех хранилищ контракт:
// операции внутри транзакции, параметры выборок и ошибки
package repository

import (
	"context"
	"errors"

	"github.com/asquebay/restaurant-order-service/internal/model"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrTableNotFound        = errors.New("table not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")

	// ErrReferenceNotFound — заказ ссылается на несуществующего пользователя или блюдо
	ErrReferenceNotFound = errors.New("referenced record not found")

	ErrDuplicateTableNumber = errors.New("table number already exists")
	// ErrTableInUse — на стол ссылаются заказы, удалить его нельзя
	ErrTableInUse           = errors.New("table is referenced by orders")
)

// SortDirection задаёт порядок сортировки заказов по времени создания
type SortDirection int

const (
	SortAsc SortDirection = iota
	SortDesc
)

func (d SortDirection) String() string {
	if d == SortDesc {
		return "desc"
	}
	return "asc"
}

// OrderFilter — необязательные фильтры списка заказов
type OrderFilter struct {
	Status  *model.OrderStatus
	TableID *int64
}

// Tx — операции, доступные внутри транзакции
type Tx interface {
	// FindTable с forUpdate=true блокирует строку стола до конца транзакции
	FindTable(ctx context.Context, id int64, forUpdate bool) (model.Table, error)
	UpdateTableStatus(ctx context.Context, id int64, status model.TableStatus) error
	CountOrdersForTable(ctx context.Context, tableID int64, statuses []model.OrderStatus) (int, error)
	// CreateTable заполняет ID, CreatedAt и UpdatedAt переданного стола
	CreateTable(ctx context.Context, table *model.Table) error
	UpdateTable(ctx context.Context, table model.Table) error
	DeleteTable(ctx context.Context, id int64) error

	OrderNumberExists(ctx context.Context, number string) (bool, error)
	// CreateOrder заполняет ID, CreatedAt и UpdatedAt переданного заказа
	CreateOrder(ctx context.Context, order *model.Order) error
	CreateOrderItems(ctx context.Context, orderID int64, items []model.OrderItem) error
	GetOrder(ctx context.Context, id int64, forUpdate bool) (model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error
	DeleteOrderItems(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, id int64) error
}
