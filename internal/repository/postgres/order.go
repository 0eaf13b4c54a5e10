package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

var orderColumns = []string{
	"o.id", "o.table_id", "o.user_id", "o.order_number", "o.status",
	"o.total_amount", "o.notes", "o.created_at", "o.updated_at",
}

// детальная выборка дополнительно подтягивает стол и пользователя
var orderDetailColumns = append(append([]string{}, orderColumns...),
	"t.id", "t.table_number", "t.capacity", "t.status", "t.created_at", "t.updated_at",
	"u.id", "u.name",
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetOrderDetail извлекает один заказ вместе с позициями, столом и пользователем
func (s *Store) GetOrderDetail(ctx context.Context, id int64) (model.Order, error) {
	const op = "repository.postgres.Store.GetOrderDetail"

	orders, err := s.reader().orders(ctx, s.detailQuery().Where(squirrel.Eq{"o.id": id}), true)
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(orders) == 0 {
		return model.Order{}, fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}
	return orders[0], nil
}

// AllOrders извлекает все заказы без позиций
// этот метод может быть ресурсоёмким на больших объемах данных
func (s *Store) AllOrders(ctx context.Context) ([]model.Order, error) {
	const op = "repository.postgres.Store.AllOrders"

	query := s.sq.Select(orderColumns...).From("orders o").OrderBy("o.id ASC")
	orders, err := s.reader().orders(ctx, query, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// OrdersByStatus извлекает заказы с указанными статусами, отсортированные по времени создания
func (s *Store) OrdersByStatus(ctx context.Context, statuses []model.OrderStatus, dir repository.SortDirection, detail bool) ([]model.Order, error) {
	const op = "repository.postgres.Store.OrdersByStatus"

	query := s.sq.Select(orderColumns...).From("orders o")
	if detail {
		query = s.detailQuery()
	}
	query = query.Where(squirrel.Eq{"o.status": statusStrings(statuses)}).
		OrderBy(createdOrder(dir)...)

	orders, err := s.reader().orders(ctx, query, detail)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// SearchActiveOrders ищет активные заказы по номеру заказа, номеру стола или названию блюда
// поиск регистронезависимый, по подстроке; результат — от старых к новым
func (s *Store) SearchActiveOrders(ctx context.Context, term string) ([]model.Order, error) {
	const op = "repository.postgres.Store.SearchActiveOrders"

	pattern := "%" + likeEscaper.Replace(term) + "%"
	query := s.detailQuery().
		Where(squirrel.Eq{"o.status": statusStrings(model.ActiveOrderStatuses)}).
		Where(squirrel.Or{
			squirrel.ILike{"o.order_number": pattern},
			squirrel.ILike{"t.table_number": pattern},
			squirrel.Expr(`EXISTS (
				SELECT 1 FROM order_items oi
				JOIN menus m ON m.id = oi.menu_id
				WHERE oi.order_id = o.id AND m.name ILIKE ?)`, pattern),
		}).
		OrderBy(createdOrder(repository.SortAsc)...)

	orders, err := s.reader().orders(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// ListOrders возвращает заказы с деталями, от новых к старым
func (s *Store) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	const op = "repository.postgres.Store.ListOrders"

	query := s.detailQuery()
	if filter.Status != nil {
		query = query.Where(squirrel.Eq{"o.status": string(*filter.Status)})
	}
	if filter.TableID != nil {
		query = query.Where(squirrel.Eq{"o.table_id": *filter.TableID})
	}
	query = query.OrderBy(createdOrder(repository.SortDesc)...)

	orders, err := s.reader().orders(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

func (s *Store) detailQuery() squirrel.SelectBuilder {
	return s.sq.Select(orderDetailColumns...).
		From("orders o").
		Join("tables t ON t.id = o.table_id").
		LeftJoin("users u ON u.id = o.user_id")
}

// OrderNumberExists проверяет, занят ли номер заказа
func (q *queries) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	const op = "repository.postgres.order.OrderNumberExists"

	var exists bool
	err := q.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreateOrder вставляет заказ и заполняет его ID и временные метки
func (q *queries) CreateOrder(ctx context.Context, order *model.Order) error {
	const op = "repository.postgres.order.CreateOrder"

	sql, args, err := q.sq.Insert("orders").
		Columns("table_id", "user_id", "order_number", "status", "total_amount", "notes").
		Values(order.TableID, order.UserID, order.OrderNumber, string(order.Status), order.TotalAmount, order.Notes).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build orders insert query: %w", op, err)
	}

	err = q.q.QueryRow(ctx, sql, args...).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "orders_order_number_key") {
			return fmt.Errorf("%s: %w", op, repository.ErrDuplicateOrderNumber)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w: %w", op, repository.ErrReferenceNotFound, err)
		}
		return fmt.Errorf("%s: failed to insert into orders: %w", op, err)
	}
	return nil
}

// CreateOrderItems вставляет все позиции заказа одним запросом
func (q *queries) CreateOrderItems(ctx context.Context, orderID int64, items []model.OrderItem) error {
	const op = "repository.postgres.order.CreateOrderItems"

	if len(items) == 0 {
		return nil
	}

	insert := q.sq.Insert("order_items").Columns("order_id", "menu_id", "quantity", "price", "notes")
	for _, item := range items {
		insert = insert.Values(orderID, item.MenuID, item.Quantity, item.Price, item.Notes)
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build order_items insert query: %w", op, err)
	}
	if _, err := q.q.Exec(ctx, sql, args...); err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w: %w", op, repository.ErrReferenceNotFound, err)
		}
		return fmt.Errorf("%s: failed to insert into order_items: %w", op, err)
	}
	return nil
}

// GetOrder извлекает заказ без позиций; forUpdate блокирует строку
func (q *queries) GetOrder(ctx context.Context, id int64, forUpdate bool) (model.Order, error) {
	const op = "repository.postgres.order.GetOrder"

	query := q.sq.Select(orderColumns...).From("orders o").Where(squirrel.Eq{"o.id": id})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return model.Order{}, fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	order, err := scanOrder(q.q.QueryRow(ctx, sql, args...), false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Order{}, fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
		}
		return model.Order{}, fmt.Errorf("%s: failed to query order: %w", op, err)
	}
	return order, nil
}

func (q *queries) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	const op = "repository.postgres.order.UpdateOrderStatus"

	sql, args, err := q.sq.Update("orders").
		Set("status", string(status)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: failed to build query: %w", op, err)
	}

	tag, err := q.q.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: failed to update order: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}
	return nil
}

func (q *queries) DeleteOrderItems(ctx context.Context, orderID int64) error {
	const op = "repository.postgres.order.DeleteOrderItems"

	if _, err := q.q.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (q *queries) DeleteOrder(ctx context.Context, id int64) error {
	const op = "repository.postgres.order.DeleteOrder"

	tag, err := q.q.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, repository.ErrOrderNotFound)
	}
	return nil
}

// orders выполняет выборку заказов и при detail догружает их позиции
func (q *queries) orders(ctx context.Context, query squirrel.SelectBuilder, detail bool) ([]model.Order, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		order, err := scanOrder(rows, detail)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	if !detail || len(orders) == 0 {
		return orders, nil
	}
	if err := q.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// loadItems получает позиции для всех найденных заказов одним запросом
func (q *queries) loadItems(ctx context.Context, orders []model.Order) error {
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = i
		orders[i].Items = []model.OrderItem{}
	}

	sql, args, err := q.sq.Select(
		"oi.id", "oi.order_id", "oi.menu_id", "COALESCE(m.name, '')",
		"oi.quantity", "oi.price", "oi.notes", "oi.created_at",
	).
		From("order_items oi").
		LeftJoin("menus m ON m.id = oi.menu_id").
		Where("oi.order_id = ANY(?)", ids).
		OrderBy("oi.id ASC").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build items query: %w", err)
	}

	rows, err := q.q.Query(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.MenuID, &item.MenuName,
			&item.Quantity, &item.Price, &item.Notes, &item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan item row: %w", err)
		}
		if i, ok := byID[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.Row, detail bool) (model.Order, error) {
	var o model.Order
	dest := []any{
		&o.ID, &o.TableID, &o.UserID, &o.OrderNumber, &o.Status,
		&o.TotalAmount, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	}

	var (
		t        model.Table
		userID   *int64
		userName *string
	)
	if detail {
		dest = append(dest,
			&t.ID, &t.TableNumber, &t.Capacity, &t.Status, &t.CreatedAt, &t.UpdatedAt,
			&userID, &userName,
		)
	}

	if err := row.Scan(dest...); err != nil {
		return model.Order{}, err
	}

	if detail {
		o.Table = &t
		if userID != nil {
			o.User = &model.User{ID: *userID}
			if userName != nil {
				o.User.Name = *userName
			}
		}
	}
	return o, nil
}

func statusStrings(statuses []model.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func createdOrder(dir repository.SortDirection) []string {
	if dir == repository.SortDesc {
		return []string{"o.created_at DESC", "o.id DESC"}
	}
	return []string{"o.created_at ASC", "o.id ASC"}
}
