package model

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Order представляет заказ вместе с позициями
// Items, Table и User заполняются только при детальной загрузке
type Order struct {
	ID          int64           `json:"id"`
	TableID     int64           `json:"table_id"`
	UserID      int64           `json:"user_id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Notes       *string         `json:"notes"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Items       []OrderItem     `json:"items,omitempty"`
	Table       *Table          `json:"table,omitempty"`
	User        *User           `json:"user,omitempty"`
}

// OrderItem — одна позиция заказа
// цена фиксируется в момент создания заказа и не зависит от текущей цены меню
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	MenuID    int64           `json:"menu_id"`
	MenuName  string          `json:"menu_name,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Notes     *string         `json:"notes"`
	CreatedAt time.Time       `json:"created_at"`
}

// User — краткие сведения о сотруднике, оформившем заказ
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CreateOrderRequest — входные данные для оформления заказа
type CreateOrderRequest struct {
	TableID int64             `json:"table_id" validate:"required,gt=0"`
	UserID  int64             `json:"user_id" validate:"required,gt=0"`
	Items   []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	Notes   *string           `json:"notes"`
}

// CreateOrderItem — позиция в запросе на создание заказа
type CreateOrderItem struct {
	MenuID   int64           `json:"menu_id" validate:"required,gt=0"`
	Quantity int             `json:"quantity" validate:"required,gte=1,lte=2147483647"`
	Price    decimal.Decimal `json:"price" validate:"money"`
	Notes    *string         `json:"notes"`
}

// StatusChange — команда смены статуса заказа (HTTP и Kafka)
type StatusChange struct {
	OrderID int64  `json:"order_id" validate:"required,gt=0"`
	Status  string `json:"status" validate:"required,oneof=pending processing done cancelled"`
}

// StatusEvent публикуется после успешной смены статуса
type StatusEvent struct {
	OrderID     int64       `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	TableID     int64       `json:"table_id"`
	OldStatus   OrderStatus `json:"old_status"`
	NewStatus   OrderStatus `json:"new_status"`
	Timestamp   time.Time   `json:"timestamp"`
}

// MaxAmount — наибольшая сумма, которую вмещает NUMERIC(10,2)
var MaxAmount = decimal.RequireFromString("99999999.99")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// в ошибках валидации используем имена полей из json-тегов
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// money: неотрицательная сумма не точнее копейки, помещающаяся в NUMERIC(10,2)
	v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(decimal.Decimal)
		return ok && isMoney(d)
	})

	// сумма заказа хранится в той же колонке, что и цены
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		r, ok := sl.Current().Interface().(CreateOrderRequest)
		if !ok {
			return
		}
		if total := r.Total(); total.GreaterThan(MaxAmount) {
			sl.ReportError(total, "total_amount", "TotalAmount", "max_total", MaxAmount.String())
		}
	}, CreateOrderRequest{})

	return v
}

func isMoney(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(2)) && !d.GreaterThan(MaxAmount)
}

// Validate проверяет корректность запроса на основе тегов validate
func (r *CreateOrderRequest) Validate() error {
	return validate.Struct(r)
}

// Validate проверяет корректность команды смены статуса
func (c *StatusChange) Validate() error {
	return validate.Struct(c)
}

// Total считает сумму заказа как Σ price × quantity
// decimal исключает накопление ошибки округления
func (r *CreateOrderRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
