package model

// OrderStatus — статус заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDone       OrderStatus = "done"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ActiveOrderStatuses — статусы, при которых стол считается занятым
var ActiveOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing}

// OrderStatuses — все статусы заказа
var OrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusDone, OrderStatusCancelled}

// допустимые переходы; done и cancelled — терминальные
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDone, OrderStatusCancelled},
}

// Valid сообщает, известен ли статус
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusDone, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsActive() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDone || s == OrderStatusCancelled
}

// CanTransition сообщает, разрешён ли переход from -> to
// переход в тот же статус здесь не считается переходом, его обрабатывает вызывающий код
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TableStatus — статус стола
type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusReserved  TableStatus = "reserved"
)

func (s TableStatus) Valid() bool {
	switch s {
	case TableStatusAvailable, TableStatusOccupied, TableStatusReserved:
		return true
	}
	return false
}
