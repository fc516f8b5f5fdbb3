// Пакет repository — SQL-доступ к коллекциям каталога и счётчику посещений.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

var (
	ErrNotFound = errors.New("запись не найдена")
	ErrConflict = errors.New("запись уже существует")
)

// uniqueViolation — SQLSTATE нарушения уникальности.
const uniqueViolation = "23505"

// DBTX — общее подмножество *pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// collectionTables — единственный источник имён таблиц в SQL.
var collectionTables = map[model.Collection]string{
	model.CollectionPapers: "papers",
	model.CollectionPYQs:   "pyqs",
}

func tableFor(c model.Collection) (string, error) {
	table, ok := collectionTables[c]
	if !ok {
		return "", fmt.Errorf("неизвестная коллекция: %q", c)
	}
	return table, nil
}

// classify переводит ошибки pgx в ErrNotFound / ErrConflict,
// остальные оборачивает с описанием операции.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == uniqueViolation:
		return ErrConflict
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
