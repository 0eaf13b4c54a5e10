package model

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []OrderStatus{OrderStatusPending, OrderStatusProcessing, OrderStatusDone, OrderStatusCancelled}
	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusProcessing}:   true,
		{OrderStatusPending, OrderStatusCancelled}:    true,
		{OrderStatusProcessing, OrderStatusDone}:      true,
		{OrderStatusProcessing, OrderStatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusHelpers(t *testing.T) {
	assert.True(t, OrderStatusPending.IsActive())
	assert.True(t, OrderStatusProcessing.IsActive())
	assert.False(t, OrderStatusDone.IsActive())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatus("served").Valid())
	assert.True(t, TableStatusReserved.Valid())
	assert.False(t, TableStatus("broken").Valid())
}

func TestCreateOrderRequest_Total(t *testing.T) {
	req := CreateOrderRequest{
		TableID: 1,
		UserID:  1,
		Items: []CreateOrderItem{
			{MenuID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{MenuID: 2, Quantity: 1, Price: decimal.RequireFromString("5.50")},
		},
	}

	assert.True(t, req.Total().Equal(decimal.RequireFromString("25.50")), "got %s", req.Total())
}

func TestCreateOrderRequest_TotalNoDrift(t *testing.T) {
	req := CreateOrderRequest{}
	for i := 0; i < 3; i++ {
		req.Items = append(req.Items, CreateOrderItem{MenuID: 1, Quantity: 1, Price: decimal.RequireFromString("0.10")})
	}
	assert.Equal(t, "0.3", req.Total().String())
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	valid := func() CreateOrderRequest {
		return CreateOrderRequest{
			TableID: 3,
			UserID:  7,
			Items:   []CreateOrderItem{{MenuID: 1, Quantity: 1, Price: decimal.RequireFromString("4.20")}},
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CreateOrderRequest)
		field  string
	}{
		{"ok", func(r *CreateOrderRequest) {}, ""},
		{"zero price allowed", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.Zero }, ""},
		{"missing table", func(r *CreateOrderRequest) { r.TableID = 0 }, "table_id"},
		{"empty items", func(r *CreateOrderRequest) { r.Items = nil }, "items"},
		{"zero quantity", func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 }, "quantity"},
		{"negative price", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.RequireFromString("-1") }, "price"},
		{"trailing zeros allowed", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.RequireFromString("4.500") }, ""},
		{"sub-cent price", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.RequireFromString("0.005") }, "price"},
		{"max price allowed", func(r *CreateOrderRequest) { r.Items[0].Price = MaxAmount }, ""},
		{"price over column", func(r *CreateOrderRequest) { r.Items[0].Price = decimal.RequireFromString("100000000") }, "price"},
		{"quantity over int4", func(r *CreateOrderRequest) { r.Items[0].Quantity = 2147483648 }, "quantity"},
		{"total over column", func(r *CreateOrderRequest) {
			r.Items[0].Price = decimal.RequireFromString("60000000")
			r.Items[0].Quantity = 2
		}, "total_amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestStatusChange_Validate(t *testing.T) {
	assert.NoError(t, (&StatusChange{OrderID: 1, Status: "done"}).Validate())
	assert.Error(t, (&StatusChange{OrderID: 1, Status: "served"}).Validate())
	assert.Error(t, (&StatusChange{Status: "done"}).Validate())
}
