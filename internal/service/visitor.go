package service

import (
	"context"
	"log/slog"

	"github.com/shivnayan54/studyvibe/internal/repository"
)

// VisitorService — счётчик посещений публичных страниц.
type VisitorService struct {
	repo   repository.VisitorRepository
	logger *slog.Logger
}

// NewVisitorService создаёт сервис счётчика посещений.
func NewVisitorService(repo repository.VisitorRepository, logger *slog.Logger) *VisitorService {
	return &VisitorService{
		repo:   repo,
		logger: logger.With(slog.String("component", "visitor_service")),
	}
}

// Track увеличивает счётчик и возвращает новое значение.
// Ошибка счётчика не должна мешать показу страницы: вызывающий её только логирует.
func (s *VisitorService) Track(ctx context.Context) (int64, error) {
	total, err := s.repo.Increment(ctx)
	if err != nil {
		s.logger.Warn("Не удалось учесть посещение", slog.String("error", err.Error()))
		return 0, err
	}
	return total, nil
}

// Total возвращает текущее значение счётчика.
func (s *VisitorService) Total(ctx context.Context) (int64, error) {
	return s.repo.Total(ctx)
}
