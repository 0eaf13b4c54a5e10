package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/asquebay/restaurant-order-service/internal/repository"
)

// querier — общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queries выполняет запросы либо на пуле, либо внутри транзакции
type queries struct {
	q  querier
	sq squirrel.StatementBuilderType
}

// Store инкапсулирует логику работы с заказами и столами в БД
type Store struct {
	db *pgxpool.Pool
	sq squirrel.StatementBuilderType
}

// NewStore создает новый экземпляр хранилища
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db: db,
		// использую плейсхолдеры в стиле PostgreSQL ($1, $2, $3,...)
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx выполняет fn в транзакции: nil — commit, ошибка — rollback
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	const op = "repository.postgres.Store.WithTx"

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	// гарантируем откат транзакции в случае любой ошибки
	defer tx.Rollback(ctx)

	if err := fn(&queries{q: tx, sq: s.sq}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

func (s *Store) reader() *queries {
	return &queries{q: s.db, sq: s.sq}
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}
