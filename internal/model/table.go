package model

import "time"

// Table — стол в зале
// статус reserved выставляется только извне, остальные два выводятся из заказов
type Table struct {
	ID          int64       `json:"id"`
	TableNumber string      `json:"table_number"`
	Capacity    int         `json:"capacity"`
	Status      TableStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// TableStatusUpdate — запрос на ручную смену статуса стола
type TableStatusUpdate struct {
	Status string `json:"status" validate:"required,oneof=available occupied reserved"`
}

func (u *TableStatusUpdate) Validate() error {
	return validate.Struct(u)
}

// CreateTableRequest — входные данные для создания стола
// статус по умолчанию available
type CreateTableRequest struct {
	TableNumber string `json:"table_number" validate:"required,max=50"`
	Capacity    int    `json:"capacity" validate:"required,gte=1,lte=2147483647"`
	Status      string `json:"status" validate:"omitempty,oneof=available occupied reserved"`
}

func (r *CreateTableRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateTableRequest — частичное обновление стола, nil-поля не меняются
type UpdateTableRequest struct {
	TableNumber *string `json:"table_number" validate:"omitnil,required,max=50"`
	Capacity    *int    `json:"capacity" validate:"omitnil,gte=1,lte=2147483647"`
	Status      *string `json:"status" validate:"omitnil,oneof=available occupied reserved"`
}

func (r *UpdateTableRequest) Validate() error {
	return validate.Struct(r)
}
