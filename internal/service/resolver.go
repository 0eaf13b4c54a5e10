package service

import (
	"context"
	"log/slog"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// Resolution описывает результат пересчёта статуса стола
type Resolution struct {
	TableID  int64
	Previous model.TableStatus
	Current  model.TableStatus
	Changed  bool
}

// TableStatusResolver выводит статус стола из его активных заказов
// статус reserved выставляется извне и здесь никогда не меняется
type TableStatusResolver struct {
	store OrderStore
	cache safeCache
	log   *slog.Logger
}

func NewTableStatusResolver(store OrderStore, cache Cache, log *slog.Logger) *TableStatusResolver {
	return &TableStatusResolver{
		store: store,
		cache: safeCache{cache: cache, log: log},
		log:   log,
	}
}

// Resolve приводит статус стола к occupied/available по наличию активных заказов
// вызывается только после фиксации транзакции, изменившей заказ
func (r *TableStatusResolver) Resolve(ctx context.Context, tableID int64) (Resolution, error) {
	const op = "service.TableStatusResolver.Resolve"
	return r.resolve(ctx, op, tableID, false)
}

// Release освобождает стол: occupied -> available, если активных заказов не осталось
// другие переходы не выполняются
func (r *TableStatusResolver) Release(ctx context.Context, tableID int64) (Resolution, error) {
	const op = "service.TableStatusResolver.Release"
	return r.resolve(ctx, op, tableID, true)
}

func (r *TableStatusResolver) resolve(ctx context.Context, op string, tableID int64, releaseOnly bool) (Resolution, error) {
	log := r.log.With(slog.String("op", op), slog.Int64("table_id", tableID))

	res := Resolution{TableID: tableID}
	err := r.store.WithTx(ctx, func(tx repository.Tx) error {
		// строка стола блокируется: конкурентные пересчёты одного стола идут по очереди
		table, err := tx.FindTable(ctx, tableID, true)
		if err != nil {
			return err
		}
		res.Previous, res.Current = table.Status, table.Status

		if table.Status == model.TableStatusReserved {
			return nil
		}
		if releaseOnly && table.Status != model.TableStatusOccupied {
			return nil
		}

		active, err := tx.CountOrdersForTable(ctx, tableID, model.ActiveOrderStatuses)
		if err != nil {
			return err
		}

		target := model.TableStatusAvailable
		if active > 0 {
			target = model.TableStatusOccupied
		}
		if target == table.Status {
			return nil
		}

		if err := tx.UpdateTableStatus(ctx, tableID, target); err != nil {
			return err
		}
		res.Current, res.Changed = target, true
		return nil
	})
	if err != nil {
		log.Error("failed to resolve table status", slog.String("error", err.Error()))
		return Resolution{}, storeError(op, err)
	}

	if res.Changed {
		r.cache.forget(ctx, KeyTables)
		log.Info("table status changed",
			slog.String("from", string(res.Previous)),
			slog.String("to", string(res.Current)),
		)
	}
	return res, nil
}
