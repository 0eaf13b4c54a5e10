package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

var errOrderNumberTaken = errors.New("order number is taken")

// OrderLifecycle инкапсулирует бизнес-логику жизненного цикла заказа
// побочные эффекты (статус стола, кэш, уведомления) выполняются явно и только после commit
type OrderLifecycle struct {
	store     OrderStore
	resolver  *TableStatusResolver
	refresher *CacheRefresher
	notifier  Notifier
	log       *slog.Logger

	newOrderNumber func() (string, error)
}

// NewOrderLifecycle создаёт новый экземпляр сервиса заказов
// notifier может быть nil, тогда уведомления не отправляются
func NewOrderLifecycle(
	store OrderStore,
	resolver *TableStatusResolver,
	refresher *CacheRefresher,
	notifier Notifier,
	log *slog.Logger,
) *OrderLifecycle {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OrderLifecycle{
		store:          store,
		resolver:       resolver,
		refresher:      refresher,
		notifier:       notifier,
		log:            log,
		newOrderNumber: generateOrderNumber,
	}
}

// Create оформляет заказ со статусом pending вместе с позициями в одной транзакции
func (s *OrderLifecycle) Create(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	const op = "service.OrderLifecycle.Create"
	log := s.log.With(slog.String("op", op), slog.Int64("table_id", req.TableID))

	if err := req.Validate(); err != nil {
		return model.Order{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	items := make([]model.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.OrderItem{MenuID: it.MenuID, Quantity: it.Quantity, Price: it.Price, Notes: it.Notes}
	}

	var order model.Order
	for attempt := 1; ; attempt++ {
		if attempt > maxOrderNumberAttempts {
			log.Error("order number space exhausted", slog.Int("attempts", maxOrderNumberAttempts))
			return model.Order{}, fmt.Errorf("%s: %w: no free order number after %d attempts",
				op, ErrPersistence, maxOrderNumberAttempts)
		}

		number, err := s.newOrderNumber()
		if err != nil {
			return model.Order{}, fmt.Errorf("%s: %w: failed to generate order number: %w", op, ErrPersistence, err)
		}

		order = model.Order{
			TableID:     req.TableID,
			UserID:      req.UserID,
			OrderNumber: number,
			Status:      model.OrderStatusPending,
			TotalAmount: req.Total(),
			Notes:       req.Notes,
		}

		err = s.store.WithTx(ctx, func(tx repository.Tx) error {
			if _, err := tx.FindTable(ctx, req.TableID, false); err != nil {
				return err
			}

			taken, err := tx.OrderNumberExists(ctx, number)
			if err != nil {
				return err
			}
			if taken {
				return errOrderNumberTaken
			}

			if err := tx.CreateOrder(ctx, &order); err != nil {
				return err
			}
			return tx.CreateOrderItems(ctx, order.ID, items)
		})
		if errors.Is(err, errOrderNumberTaken) || errors.Is(err, repository.ErrDuplicateOrderNumber) {
			log.Warn("order number collision, regenerating", slog.String("order_number", number), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			log.Error("failed to create order", slog.String("error", err.Error()))
			return model.Order{}, storeError(op, err)
		}
		break
	}

	log = log.With(slog.Int64("order_id", order.ID), slog.String("order_number", order.OrderNumber))
	log.Info("order created")

	s.afterCommit(ctx, log, order.TableID)

	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items
	return s.detail(ctx, log, order), nil
}

// ChangeStatus переводит заказ в новый статус по таблице переходов
// запрос на тот же статус — успешный no-op без побочных эффектов
func (s *OrderLifecycle) ChangeStatus(ctx context.Context, orderID int64, status string) (model.Order, error) {
	const op = "service.OrderLifecycle.ChangeStatus"
	log := s.log.With(slog.String("op", op), slog.Int64("order_id", orderID))

	cmd := model.StatusChange{OrderID: orderID, Status: status}
	if err := cmd.Validate(); err != nil {
		return model.Order{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}
	next := model.OrderStatus(status)

	var (
		order   model.Order
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		order, err = tx.GetOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		if order.Status == next {
			return nil
		}
		if !model.CanTransition(order.Status, next) {
			return &TransitionError{From: order.Status, To: next}
		}
		if err := tx.UpdateOrderStatus(ctx, orderID, next); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidTransition) && !errors.Is(err, repository.ErrOrderNotFound) {
			log.Error("failed to change order status", slog.String("error", err.Error()))
		}
		return model.Order{}, storeError(op, err)
	}

	if !changed {
		log.Debug("status unchanged", slog.String("status", status))
		return s.detail(ctx, log, order), nil
	}

	prev := order.Status
	order.Status = next
	log.Info("order status changed", slog.String("from", string(prev)), slog.String("to", string(next)))

	s.afterCommit(ctx, log, order.TableID)
	s.notify(ctx, log, model.StatusEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TableID:     order.TableID,
		OldStatus:   prev,
		NewStatus:   next,
		Timestamp:   time.Now().UTC(),
	})

	return s.detail(ctx, log, order), nil
}

// Delete удаляет позиции и затем сам заказ в одной транзакции
func (s *OrderLifecycle) Delete(ctx context.Context, orderID int64) error {
	const op = "service.OrderLifecycle.Delete"
	log := s.log.With(slog.String("op", op), slog.Int64("order_id", orderID))

	var tableID int64
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		order, err := tx.GetOrder(ctx, orderID, true)
		if err != nil {
			return err
		}
		tableID = order.TableID

		// позиции удаляются первыми, чтобы не оставить сирот
		if err := tx.DeleteOrderItems(ctx, orderID); err != nil {
			return err
		}
		return tx.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			log.Error("failed to delete order", slog.String("error", err.Error()))
		}
		return storeError(op, err)
	}
	log.Info("order deleted")

	if _, err := s.resolver.Release(ctx, tableID); err != nil {
		log.Error("failed to release table", slog.Int64("table_id", tableID), slog.String("error", err.Error()))
	}
	s.refresher.RefreshAll(ctx, OriginMutation)
	return nil
}

// GetOrder возвращает заказ с позициями, столом и пользователем
func (s *OrderLifecycle) GetOrder(ctx context.Context, orderID int64) (model.Order, error) {
	const op = "service.OrderLifecycle.GetOrder"

	order, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.log.Error("failed to get order", slog.String("op", op), slog.String("error", err.Error()))
		}
		return model.Order{}, storeError(op, err)
	}
	return order, nil
}

// ListOrders без фильтров читает order:all через кэш,
// с фильтрами — идёт в хранилище и возвращает заказы с деталями
func (s *OrderLifecycle) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	const op = "service.OrderLifecycle.ListOrders"

	if filter.Status == nil && filter.TableID == nil {
		return s.refresher.Orders(ctx)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%s: %w", op, &ValidationError{Field: "status", Reason: "unknown status"})
	}

	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.String("error", err.Error()))
		return nil, storeError(op, err)
	}
	return orders, nil
}

// afterCommit пересчитывает стол и обновляет кэш
// ошибка пересчёта не отменяет уже зафиксированное изменение заказа
func (s *OrderLifecycle) afterCommit(ctx context.Context, log *slog.Logger, tableID int64) {
	if _, err := s.resolver.Resolve(ctx, tableID); err != nil {
		log.Error("failed to resolve table status", slog.Int64("table_id", tableID), slog.String("error", err.Error()))
	}
	s.refresher.RefreshAll(ctx, OriginMutation)
}

func (s *OrderLifecycle) notify(ctx context.Context, log *slog.Logger, event model.StatusEvent) {
	if err := s.notifier.NotifyStatusChange(ctx, event); err != nil {
		log.Warn("failed to publish status change", slog.String("error", err.Error()))
	}
}

// detail догружает стол и пользователя; при ошибке отдаёт то, что уже есть
func (s *OrderLifecycle) detail(ctx context.Context, log *slog.Logger, order model.Order) model.Order {
	full, err := s.store.GetOrderDetail(ctx, order.ID)
	if err != nil {
		log.Warn("failed to load order detail", slog.String("error", err.Error()))
		return order
	}
	return full
}

// NopNotifier ничего не публикует
type NopNotifier struct{}

func (NopNotifier) NotifyStatusChange(context.Context, model.StatusEvent) error { return nil }
