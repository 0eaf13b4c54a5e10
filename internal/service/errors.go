package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/asquebay/restaurant-order-service/internal/model"
	"github.com/asquebay/restaurant-order-service/internal/repository"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
	ErrPersistence       = errors.New("persistence failure")
	ErrCacheUnavailable  = errors.New("cache unavailable")
)

// TransitionError называет недопустимую пару статусов
type TransitionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError называет поле, не прошедшее проверку
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// newValidationError приводит ошибки validator к ValidationError по первому полю
func newValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "request", Reason: err.Error()}
	}

	fe := verrs[0]
	// Namespace выглядит как "CreateOrderRequest.items[0].quantity", корень отбрасываем
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	reason := "failed on " + fe.Tag()
	if fe.Param() != "" {
		reason += "=" + fe.Param()
	}
	return &ValidationError{Field: field, Reason: reason}
}

// storeError приводит ошибку хранилища к таксономии сервиса
func storeError(op string, err error) error {
	switch {
	case isServiceError(err):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, repository.ErrDuplicateTableNumber):
		return fmt.Errorf("%s: %w", op, &ValidationError{Field: "table_number", Reason: "already taken"})
	case errors.Is(err, repository.ErrTableInUse):
		return fmt.Errorf("%s: %w", op, &ValidationError{Field: "table_id", Reason: "table has orders"})
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrTableNotFound),
		errors.Is(err, repository.ErrReferenceNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
	}
}

func isServiceError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersistence)
}
