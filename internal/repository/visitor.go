package repository

import (
	"context"
	"fmt"
)

// visitorsKey — ключ строки счётчика посещений в analytics.
const visitorsKey = "visitors"

// VisitorRepository — счётчик посещений публичных страниц.
type VisitorRepository interface {
	// Increment атомарно увеличивает счётчик и возвращает новое значение.
	Increment(ctx context.Context) (int64, error)
	// Total возвращает текущее значение счётчика.
	Total(ctx context.Context) (int64, error)
}

type visitorRepo struct {
	db DBTX
}

// NewVisitorRepository создаёт репозиторий счётчика посещений.
func NewVisitorRepository(db DBTX) VisitorRepository {
	return &visitorRepo{db: db}
}

// Increment создаёт строку счётчика при первом обращении (upsert).
func (r *visitorRepo) Increment(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO analytics (key, total_visits, updated_at) VALUES ($1, 1, now())
		ON CONFLICT (key) DO UPDATE
		SET total_visits = analytics.total_visits + 1, updated_at = now()
		RETURNING total_visits`, visitorsKey).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления счётчика посещений: %w", err)
	}
	return total, nil
}

// Total возвращает 0, если счётчик ещё не создан.
func (r *visitorRepo) Total(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE((SELECT total_visits FROM analytics WHERE key = $1), 0)`, visitorsKey,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения счётчика посещений: %w", err)
	}
	return total, nil
}
