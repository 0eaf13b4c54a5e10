package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// TableService управляет столами: список через кэш tables:all,
// создание, изменение и удаление; любое изменение стола сбрасывает tables:all
type TableService struct {
	store OrderStore
	cache safeCache
	log   *slog.Logger
}

func NewTableService(store OrderStore, cache Cache, log *slog.Logger) *TableService {
	return &TableService{
		store: store,
		cache: safeCache{cache: cache, log: log},
		log:   log,
	}
}

// List возвращает все столы; при промахе кэш заполняется из хранилища
func (s *TableService) List(ctx context.Context) ([]model.Table, error) {
	const op = "service.TableService.List"

	var tables []model.Table
	if s.cache.get(ctx, KeyTables, &tables) {
		return tables, nil
	}

	tables, err := s.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tables, nil
}

// Refresh перечитывает столы и перезаписывает tables:all
func (s *TableService) Refresh(ctx context.Context) ([]model.Table, error) {
	const op = "service.TableService.Refresh"

	tables, err := s.store.AllTables(ctx)
	if err != nil {
		s.log.Error("failed to load tables", slog.String("op", op), slog.String("error", err.Error()))
		return nil, storeError(op, err)
	}
	s.cache.put(ctx, KeyTables, tables, TTLTables)
	return tables, nil
}

// Get возвращает стол по ID
func (s *TableService) Get(ctx context.Context, tableID int64) (model.Table, error) {
	const op = "service.TableService.Get"

	table, err := s.store.GetTable(ctx, tableID)
	if err != nil {
		if !errors.Is(err, repository.ErrTableNotFound) {
			s.log.Error("failed to get table", slog.String("op", op), slog.String("error", err.Error()))
		}
		return model.Table{}, storeError(op, err)
	}
	return table, nil
}

// Create добавляет стол; у нового стола нет заказов, поэтому occupied недопустим
func (s *TableService) Create(ctx context.Context, req model.CreateTableRequest) (model.Table, error) {
	const op = "service.TableService.Create"
	log := s.log.With(slog.String("op", op), slog.String("table_number", req.TableNumber))

	if err := req.Validate(); err != nil {
		return model.Table{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	table := model.Table{
		TableNumber: req.TableNumber,
		Capacity:    req.Capacity,
		Status:      model.TableStatusAvailable,
	}
	if req.Status != "" {
		table.Status = model.TableStatus(req.Status)
	}
	if table.Status == model.TableStatusOccupied {
		return model.Table{}, fmt.Errorf("%s: %w", op, &ValidationError{Field: "status", Reason: "table has 0 active orders"})
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateTable(ctx, &table)
	})
	if err != nil {
		err = storeError(op, err)
		if errors.Is(err, ErrPersistence) {
			log.Error("failed to create table", slog.String("error", err.Error()))
		}
		return model.Table{}, err
	}

	log.Info("table created", slog.Int64("table_id", table.ID))
	s.cache.forget(ctx, KeyTables)
	return table, nil
}

// Update меняет переданные поля стола
// смена статуса подчиняется тем же правилам, что и UpdateStatus
func (s *TableService) Update(ctx context.Context, tableID int64, req model.UpdateTableRequest) (model.Table, error) {
	const op = "service.TableService.Update"
	log := s.log.With(slog.String("op", op), slog.Int64("table_id", tableID))

	if err := req.Validate(); err != nil {
		return model.Table{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	var table model.Table
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		table, err = tx.FindTable(ctx, tableID, true)
		if err != nil {
			return err
		}

		if req.TableNumber != nil {
			table.TableNumber = *req.TableNumber
		}
		if req.Capacity != nil {
			table.Capacity = *req.Capacity
		}
		if req.Status != nil && model.TableStatus(*req.Status) != table.Status {
			target := model.TableStatus(*req.Status)
			if err := checkTableStatus(ctx, tx, tableID, target); err != nil {
				return err
			}
			table.Status = target
		}

		return tx.UpdateTable(ctx, table)
	})
	if err != nil {
		err = storeError(op, err)
		if errors.Is(err, ErrPersistence) {
			log.Error("failed to update table", slog.String("error", err.Error()))
		}
		return model.Table{}, err
	}

	log.Info("table updated")
	s.cache.forget(ctx, KeyTables)
	return s.reload(ctx, log, table), nil
}

// Delete удаляет стол без заказов; история заказов стола удаление запрещает
func (s *TableService) Delete(ctx context.Context, tableID int64) error {
	const op = "service.TableService.Delete"
	log := s.log.With(slog.String("op", op), slog.Int64("table_id", tableID))

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.FindTable(ctx, tableID, true); err != nil {
			return err
		}
		n, err := tx.CountOrdersForTable(ctx, tableID, model.OrderStatuses)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%d orders: %w", n, repository.ErrTableInUse)
		}
		return tx.DeleteTable(ctx, tableID)
	})
	if err != nil {
		err = storeError(op, err)
		if errors.Is(err, ErrPersistence) {
			log.Error("failed to delete table", slog.String("error", err.Error()))
		}
		return err
	}

	log.Info("table deleted")
	s.cache.forget(ctx, KeyTables)
	return nil
}

// UpdateStatus выставляет статус стола вручную
// reserved ставится всегда; available и occupied должны совпадать с наличием активных заказов
func (s *TableService) UpdateStatus(ctx context.Context, tableID int64, status string) (model.Table, error) {
	const op = "service.TableService.UpdateStatus"
	log := s.log.With(slog.String("op", op), slog.Int64("table_id", tableID))

	upd := model.TableStatusUpdate{Status: status}
	if err := upd.Validate(); err != nil {
		return model.Table{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}
	target := model.TableStatus(status)

	var (
		table   model.Table
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		table, err = tx.FindTable(ctx, tableID, true)
		if err != nil {
			return err
		}
		if table.Status == target {
			return nil
		}
		if err := checkTableStatus(ctx, tx, tableID, target); err != nil {
			return err
		}
		if err := tx.UpdateTableStatus(ctx, tableID, target); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return model.Table{}, storeError(op, err)
	}

	if changed {
		log.Info("table status set", slog.String("from", string(table.Status)), slog.String("to", status))
		table.Status = target
		s.cache.forget(ctx, KeyTables)
	}
	return table, nil
}

// checkTableStatus не даёт вручную выставить available или occupied вопреки активным заказам
func checkTableStatus(ctx context.Context, tx repository.Tx, tableID int64, target model.TableStatus) error {
	if target == model.TableStatusReserved {
		return nil
	}
	active, err := tx.CountOrdersForTable(ctx, tableID, model.ActiveOrderStatuses)
	if err != nil {
		return err
	}
	if (active > 0) != (target == model.TableStatusOccupied) {
		return &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("table has %d active orders", active),
		}
	}
	return nil
}

// reload перечитывает стол ради updated_at; при ошибке отдаёт то, что уже есть
func (s *TableService) reload(ctx context.Context, log *slog.Logger, table model.Table) model.Table {
	fresh, err := s.store.GetTable(ctx, table.ID)
	if err != nil {
		log.Warn("failed to reload table", slog.String("error", err.Error()))
		return table
	}
	return fresh
}
