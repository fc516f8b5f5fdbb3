package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/repository"
)

// --- Mock repositories ---

// mockRecordRepo — мок RecordRepository для unit-тестов.
type mockRecordRepo struct {
	listAllFn    func(ctx context.Context, c model.Collection) ([]model.Record, error)
	createFn     func(ctx context.Context, c model.Collection, rec *model.Record) error
	updateFn     func(ctx context.Context, c model.Collection, id uuid.UUID, meta model.Metadata) (*model.Record, error)
	deleteFn     func(ctx context.Context, c model.Collection, id uuid.UUID) (*model.Record, error)
	countFn      func(ctx context.Context, c model.Collection) (int, error)
	countSinceFn func(ctx context.Context, c model.Collection, since time.Time) (int, error)
}

func (m *mockRecordRepo) ListAll(ctx context.Context, c model.Collection) ([]model.Record, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx, c)
	}
	return []model.Record{}, nil
}

func (m *mockRecordRepo) Create(ctx context.Context, c model.Collection, rec *model.Record) error {
	if m.createFn != nil {
		return m.createFn(ctx, c, rec)
	}
	return nil
}

func (m *mockRecordRepo) Update(ctx context.Context, c model.Collection, id uuid.UUID, meta model.Metadata) (*model.Record, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, c, id, meta)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRecordRepo) Delete(ctx context.Context, c model.Collection, id uuid.UUID) (*model.Record, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, c, id)
	}
	return nil, repository.ErrNotFound
}

func (m *mockRecordRepo) Count(ctx context.Context, c model.Collection) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, c)
	}
	return 0, nil
}

func (m *mockRecordRepo) CountSince(ctx context.Context, c model.Collection, since time.Time) (int, error) {
	if m.countSinceFn != nil {
		return m.countSinceFn(ctx, c, since)
	}
	return 0, nil
}

// mockVisitorRepo — мок VisitorRepository.
type mockVisitorRepo struct {
	total int64
	err   error
}

func (m *mockVisitorRepo) Increment(_ context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.total++
	return m.total, nil
}

func (m *mockVisitorRepo) Total(_ context.Context) (int64, error) {
	return m.total, m.err
}

// --- Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// readyStore создаёт CatalogStore с завершённым сигналом инициализации.
func readyStore(repo repository.RecordRepository) *CatalogStore {
	signal := NewInitSignal()
	signal.Complete()
	return NewCatalogStore(repo, NewSnapshotCache(time.Minute), signal, testLogger())
}

// staticRepo возвращает фиксированные записи по коллекциям.
func staticRepo(data map[model.Collection][]model.Record) *mockRecordRepo {
	return &mockRecordRepo{
		listAllFn: func(_ context.Context, c model.Collection) ([]model.Record, error) {
			return data[c], nil
		},
	}
}

func record(board, class string, year int, subject string) model.Record {
	return model.Record{
		ID:         uuid.New(),
		Board:      board,
		Class:      class,
		Year:       year,
		Subject:    subject,
		Title:      board + " " + subject,
		FileURL:    "https://drive.google.com/uc?export=download&id=" + board,
		UploadDate: time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC),
		Source:     model.SourceGDrive,
	}
}
