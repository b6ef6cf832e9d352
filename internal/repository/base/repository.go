package base

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Коды ошибок PostgreSQL, которые мы различаем
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// ErrVersionConflict условное обновление не нашло строку с ожидаемой версией
var ErrVersionConflict = errors.New("version conflict")

// DBTX общий интерфейс пула и транзакции
type DBTX interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ DBTX = (*pgxpool.Pool)(nil)
	_ DBTX = (pgx.Tx)(nil)
)

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool возвращает пул соединений
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// QueryRow выполняет запрос и возвращает одну строку
func (r *Repository) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return r.pool.QueryRow(ctx, query, args...)
}

// Query выполняет запрос и возвращает множество строк
func (r *Repository) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return r.pool.Query(ctx, query, args...)
}

// ExecAffected выполняет команду и возвращает количество затронутых строк
func (r *Repository) ExecAffected(ctx context.Context, query string, args ...any) (int64, error) {
	return ExecAffected(ctx, r.pool, query, args...)
}

// ExecCAS выполняет условное обновление; ноль строк означает конфликт версий
func (r *Repository) ExecCAS(ctx context.Context, query string, args ...any) error {
	return ExecCAS(ctx, r.pool, query, args...)
}

// WithTx выполняет fn в транзакции, откатывает при ошибке
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ExecAffected то же, что метод Repository, но для произвольного DBTX
func ExecAffected(ctx context.Context, db DBTX, query string, args ...any) (int64, error) {
	tag, err := db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ExecCAS то же, что метод Repository, но для произвольного DBTX
func ExecCAS(ctx context.Context, db DBTX, query string, args ...any) error {
	n, err := ExecAffected(ctx, db, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsVersionConflict проверяет проигрыш в условном обновлении
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsExclusionViolation нарушено ограничение EXCLUDE (пересечение интервалов)
func IsExclusionViolation(err error) bool {
	return pgCode(err) == pgExclusionViolation
}

// IsUniqueViolation нарушено уникальное ограничение
func IsUniqueViolation(err error) bool {
	return pgCode(err) == pgUniqueViolation
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
