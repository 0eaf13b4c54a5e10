package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

var errInjected = errors.New("injected store failure")

// fakeStore — транзакционное хранилище в памяти
// WithTx держит мьютекс всю транзакцию и при ошибке восстанавливает снимок
type fakeStore struct {
	mu sync.Mutex

	tables map[int64]model.Table
	orders map[int64]model.Order
	items  map[int64][]model.OrderItem
	menus  map[int64]string

	nextOrderID int64
	nextItemID  int64
	base        time.Time

	tableWrites int
	readErr     error
	itemsErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tables: map[int64]model.Table{},
		orders: map[int64]model.Order{},
		items:  map[int64][]model.OrderItem{},
		menus:  map[int64]string{1: "Borscht", 2: "Pelmeni", 3: "Kompot"},
		base:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) addTable(id int64, status model.TableStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[id] = model.Table{ID: id, TableNumber: fmt.Sprintf("T%d", id), Capacity: 4, Status: status}
}

// addOrder кладёт заказ напрямую, минуя сервис
func (s *fakeStore) addOrder(tableID int64, status model.OrderStatus) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := model.Order{TableID: tableID, UserID: 1, OrderNumber: fmt.Sprintf("ORD-SEED%04d", s.nextOrderID+1), Status: status}
	s.insertOrder(&o)
	return o
}

func (s *fakeStore) table(id int64) model.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[id]
}

func (s *fakeStore) order(id int64) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

func (s *fakeStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableWrites
}

func (s *fakeStore) insertOrder(o *model.Order) {
	s.nextOrderID++
	o.ID = s.nextOrderID
	o.CreatedAt = s.base.Add(time.Duration(o.ID) * time.Minute)
	o.UpdatedAt = o.CreatedAt
	s.orders[o.ID] = *o
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := cloneMap(s.tables)
	orders := cloneMap(s.orders)
	items := cloneMap(s.items)
	nextOrderID, nextItemID := s.nextOrderID, s.nextItemID

	if err := fn(fakeTx{s}); err != nil {
		s.tables, s.orders, s.items = tables, orders, items
		s.nextOrderID, s.nextItemID = nextOrderID, nextItemID
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *fakeStore) detail(o model.Order) model.Order {
	t := s.tables[o.TableID]
	o.Table = &t
	o.User = &model.User{ID: o.UserID, Name: fmt.Sprintf("user-%d", o.UserID)}
	o.Items = append([]model.OrderItem{}, s.items[o.ID]...)
	return o
}

func (s *fakeStore) sorted(dir repository.SortDirection, keep func(model.Order) bool) []model.Order {
	out := []model.Order{}
	for _, o := range s.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if dir == repository.SortDesc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *fakeStore) GetOrderDetail(ctx context.Context, id int64) (model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return model.Order{}, s.readErr
	}
	o, ok := s.orders[id]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	return s.detail(o), nil
}

func (s *fakeStore) AllOrders(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := s.sorted(repository.SortAsc, func(model.Order) bool { return true })
	return out, nil
}

func (s *fakeStore) OrdersByStatus(ctx context.Context, statuses []model.OrderStatus, dir repository.SortDirection, detail bool) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := s.sorted(dir, func(o model.Order) bool { return hasStatus(statuses, o.Status) })
	if detail {
		for i := range out {
			out[i] = s.detail(out[i])
		}
	}
	return out, nil
}

func (s *fakeStore) SearchActiveOrders(ctx context.Context, term string) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	term = strings.ToLower(term)
	out := s.sorted(repository.SortAsc, func(o model.Order) bool {
		if !o.Status.IsActive() {
			return false
		}
		if strings.Contains(strings.ToLower(o.OrderNumber), term) ||
			strings.Contains(strings.ToLower(s.tables[o.TableID].TableNumber), term) {
			return true
		}
		for _, it := range s.items[o.ID] {
			if strings.Contains(strings.ToLower(it.MenuName), term) {
				return true
			}
		}
		return false
	})
	for i := range out {
		out[i] = s.detail(out[i])
	}
	return out, nil
}

func (s *fakeStore) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := s.sorted(repository.SortDesc, func(o model.Order) bool {
		if filter.Status != nil && o.Status != *filter.Status {
			return false
		}
		return filter.TableID == nil || o.TableID == *filter.TableID
	})
	for i := range out {
		out[i] = s.detail(out[i])
	}
	return out, nil
}

func (s *fakeStore) AllTables(ctx context.Context) ([]model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	out := []model.Table{}
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetTable(ctx context.Context, id int64) (model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return model.Table{}, s.readErr
	}
	t, ok := s.tables[id]
	if !ok {
		return model.Table{}, repository.ErrTableNotFound
	}
	return t, nil
}

func hasStatus(statuses []model.OrderStatus, st model.OrderStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// fakeTx работает под мьютексом, захваченным в WithTx
type fakeTx struct {
	s *fakeStore
}

func (tx fakeTx) FindTable(ctx context.Context, id int64, forUpdate bool) (model.Table, error) {
	t, ok := tx.s.tables[id]
	if !ok {
		return model.Table{}, repository.ErrTableNotFound
	}
	return t, nil
}

func (tx fakeTx) UpdateTableStatus(ctx context.Context, id int64, status model.TableStatus) error {
	t, ok := tx.s.tables[id]
	if !ok {
		return repository.ErrTableNotFound
	}
	t.Status = status
	tx.s.tables[id] = t
	tx.s.tableWrites++
	return nil
}

func (tx fakeTx) CountOrdersForTable(ctx context.Context, tableID int64, statuses []model.OrderStatus) (int, error) {
	n := 0
	for _, o := range tx.s.orders {
		if o.TableID == tableID && hasStatus(statuses, o.Status) {
			n++
		}
	}
	return n, nil
}

func (tx fakeTx) numberTaken(number string, exceptID int64) bool {
	for id, t := range tx.s.tables {
		if id != exceptID && t.TableNumber == number {
			return true
		}
	}
	return false
}

func (tx fakeTx) CreateTable(ctx context.Context, table *model.Table) error {
	if tx.numberTaken(table.TableNumber, 0) {
		return repository.ErrDuplicateTableNumber
	}
	var maxID int64
	for id := range tx.s.tables {
		maxID = max(maxID, id)
	}
	table.ID = maxID + 1
	table.CreatedAt = tx.s.base
	table.UpdatedAt = tx.s.base
	tx.s.tables[table.ID] = *table
	return nil
}

func (tx fakeTx) UpdateTable(ctx context.Context, table model.Table) error {
	if _, ok := tx.s.tables[table.ID]; !ok {
		return repository.ErrTableNotFound
	}
	if tx.numberTaken(table.TableNumber, table.ID) {
		return repository.ErrDuplicateTableNumber
	}
	tx.s.tables[table.ID] = table
	tx.s.tableWrites++
	return nil
}

func (tx fakeTx) DeleteTable(ctx context.Context, id int64) error {
	if _, ok := tx.s.tables[id]; !ok {
		return repository.ErrTableNotFound
	}
	for _, o := range tx.s.orders {
		if o.TableID == id {
			return repository.ErrTableInUse
		}
	}
	delete(tx.s.tables, id)
	return nil
}

func (tx fakeTx) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	for _, o := range tx.s.orders {
		if o.OrderNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (tx fakeTx) CreateOrder(ctx context.Context, order *model.Order) error {
	tx.s.insertOrder(order)
	return nil
}

func (tx fakeTx) CreateOrderItems(ctx context.Context, orderID int64, items []model.OrderItem) error {
	if tx.s.itemsErr != nil {
		return tx.s.itemsErr
	}
	for _, it := range items {
		tx.s.nextItemID++
		it.ID = tx.s.nextItemID
		it.OrderID = orderID
		it.MenuName = tx.s.menus[it.MenuID]
		tx.s.items[orderID] = append(tx.s.items[orderID], it)
	}
	return nil
}

func (tx fakeTx) GetOrder(ctx context.Context, id int64, forUpdate bool) (model.Order, error) {
	o, ok := tx.s.orders[id]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	return o, nil
}

func (tx fakeTx) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	o, ok := tx.s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	tx.s.orders[id] = o
	return nil
}

func (tx fakeTx) DeleteOrderItems(ctx context.Context, orderID int64) error {
	delete(tx.s.items, orderID)
	return nil
}

func (tx fakeTx) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := tx.s.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	if len(tx.s.items[id]) > 0 {
		return errors.New("order still has items")
	}
	delete(tx.s.orders, id)
	return nil
}
