package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// имя ограничения уникальности table_number из schema.sql
const tableNumberKey = "tables_table_number_key"

var tableColumns = []string{"id", "table_number", "capacity", "status", "created_at", "updated_at"}

// AllTables возвращает все столы, упорядоченные по ID
func (s *Store) AllTables(ctx context.Context) ([]model.Table, error) {
	const op = "repository.postgres.Store.AllTables"

	sql, args, err := s.sq.Select(tableColumns...).From("tables").OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query tables: %w", op, err)
	}
	defer rows.Close()

	tables := []model.Table{}
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: failed to scan table row: %w", op, err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tables, nil
}

// GetTable извлекает стол вне транзакции
func (s *Store) GetTable(ctx context.Context, id int64) (model.Table, error) {
	return s.reader().FindTable(ctx, id, false)
}

// FindTable извлекает стол; forUpdate сериализует конкурентные пересчёты статуса
func (q *queries) FindTable(ctx context.Context, id int64, forUpdate bool) (model.Table, error) {
	const op = "repository.postgres.table.FindTable"

	query := q.sq.Select(tableColumns...).From("tables").Where(squirrel.Eq{"id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return model.Table{}, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var t model.Table
	err = q.q.QueryRow(ctx, sql, args...).Scan(&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Table{}, fmt.Errorf("%s: %w", op, repository.ErrTableNotFound)
		}
		return model.Table{}, fmt.Errorf("%s: failed to query table: %w", op, err)
	}
	return t, nil
}

func (q *queries) UpdateTableStatus(ctx context.Context, id int64, status model.TableStatus) error {
	const op = "repository.postgres.table.UpdateTableStatus"

	sql, args, err := q.sq.Update("tables").
		Set("status", string(status)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := q.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to update table: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrTableNotFound)
	}
	return nil
}

// CountOrdersForTable считает заказы стола с указанными статусами
func (q *queries) CountOrdersForTable(ctx context.Context, tableID int64, statuses []model.OrderStatus) (int, error) {
	const op = "repository.postgres.table.CountOrdersForTable"

	sql, args, err := q.sq.Select("COUNT(*)").
		From("orders").
		Where(squirrel.Eq{"table_id": tableID, "status": statusStrings(statuses)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	var n int
	if err := q.q.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (q *queries) CreateTable(ctx context.Context, table *model.Table) error {
	const op = "repository.postgres.table.CreateTable"

	sql, args, err := q.sq.Insert("tables").
		Columns("table_number", "capacity", "status").
		Values(table.TableNumber, table.Capacity, string(table.Status)).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	err = q.q.QueryRow(ctx, sql, args...).Scan(&table.ID, &table.CreatedAt, &table.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, tableNumberKey) {
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicateTableNumber)
		}
		return fmt.Errorf("%s: failed to insert into tables: %w", op, err)
	}
	return nil
}

// UpdateTable перезаписывает номер, вместимость и статус стола
func (q *queries) UpdateTable(ctx context.Context, table model.Table) error {
	const op = "repository.postgres.table.UpdateTable"

	sql, args, err := q.sq.Update("tables").
		Set("table_number", table.TableNumber).
		Set("capacity", table.Capacity).
		Set("status", string(table.Status)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": table.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := q.q.Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err, tableNumberKey) {
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicateTableNumber)
		}
		return fmt.Errorf("%s: failed to update table: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrTableNotFound)
	}
	return nil
}

func (q *queries) DeleteTable(ctx context.Context, id int64) error {
	const op = "repository.postgres.table.DeleteTable"

	sql, args, err := q.sq.Delete("tables").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := q.q.Exec(ctx, sql, args...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, repository.ErrTableInUse)
		}
		return fmt.Errorf("%s: failed to delete table: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrTableNotFound)
	}
	return nil
}
