package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shivnayan54/studyvibe/internal/database"
	"github.com/shivnayan54/studyvibe/internal/database/dbtest"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// setupTestDB поднимает контейнер, применяет миграции и открывает пул.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	cfg := dbtest.Start(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}
	pool, err := database.Connect(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// TestTableFor проверяет whitelist имён таблиц.
func TestTableFor(t *testing.T) {
	tests := []struct {
		c       model.Collection
		want    string
		wantErr bool
	}{
		{model.CollectionPapers, "papers", false},
		{model.CollectionPYQs, "pyqs", false},
		{model.Collection("papers; DROP TABLE papers"), "", true},
		{model.Collection(""), "", true},
	}

	for _, tt := range tests {
		got, err := tableFor(tt.c)
		if tt.wantErr {
			if err == nil {
				t.Errorf("tableFor(%q): ожидалась ошибка", tt.c)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("tableFor(%q) = %q, %v; ожидалось %q", tt.c, got, err, tt.want)
		}
	}
}

// --- Интеграционные тесты RecordRepository ---

func TestRecordCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRecordRepository(pool)

	rec := &model.Record{
		Board:   "CBSE",
		Class:   "10",
		Year:    2024,
		Subject: "Mathematics",
		Title:   "CBSE Maths 2024",
		FileURL: "https://drive.google.com/uc?export=download&id=abc",
		Source:  model.SourceGDrive,
	}

	if err := repo.Create(ctx, model.CollectionPapers, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("Create должен назначить ID")
	}
	if rec.UploadDate.IsZero() {
		t.Error("Create должен назначить UploadDate")
	}

	papers, err := repo.ListAll(ctx, model.CollectionPapers)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(papers) != 1 || papers[0].ID != rec.ID {
		t.Fatalf("ListAll(papers) = %+v", papers)
	}
	if got := papers[0]; got.Board != "CBSE" || got.Source != model.SourceGDrive || got.Year != 2024 {
		t.Errorf("ListAll вернул %+v", got)
	}

	// Коллекции изолированы
	pyqs, err := repo.ListAll(ctx, model.CollectionPYQs)
	if err != nil {
		t.Fatalf("ListAll(pyqs): %v", err)
	}
	if len(pyqs) != 0 {
		t.Errorf("ListAll(pyqs) = %d записей, ожидалось 0", len(pyqs))
	}

	updated, err := repo.Update(ctx, model.CollectionPapers, rec.ID, model.Metadata{
		Board: "ICSE", Class: "12", Year: 2023, Subject: "Physics", Title: "ICSE Physics",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Board != "ICSE" || updated.Title != "ICSE Physics" || updated.FileURL != rec.FileURL {
		t.Errorf("Update вернул %+v", updated)
	}

	// Дубликат ID
	dup := *rec
	if err := repo.Create(ctx, model.CollectionPapers, &dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create(дубликат): ожидалась ErrConflict, получено %v", err)
	}

	deleted, err := repo.Delete(ctx, model.CollectionPapers, rec.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != rec.ID {
		t.Errorf("Delete вернул ID %s", deleted.ID)
	}
	if _, err := repo.Delete(ctx, model.CollectionPapers, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Delete: ожидалась ErrNotFound, получено %v", err)
	}
	if _, err := repo.Update(ctx, model.CollectionPapers, rec.ID, model.Metadata{Board: "X", Year: 1, Title: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update удалённой: ожидалась ErrNotFound, получено %v", err)
	}
}

func TestRecordListAllOrderAndCounts(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewRecordRepository(pool)

	now := time.Now().UTC().Truncate(time.Second)
	dates := []time.Time{now.AddDate(0, 0, -40), now.AddDate(0, 0, -1), now.AddDate(0, 0, -10)}
	for i, d := range dates {
		rec := &model.Record{
			Board: "CBSE", Year: 2020 + i, Title: "p", Source: model.SourceUpload,
			FileURL: "http://localhost/files/p.pdf", StoragePath: "papers/p.pdf", UploadDate: d,
		}
		if err := repo.Create(ctx, model.CollectionPYQs, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := repo.ListAll(ctx, model.CollectionPYQs)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("ListAll: ожидалось 3 записи, получено %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].UploadDate.Before(list[i].UploadDate) {
			t.Errorf("ListAll: нарушен порядок upload_date DESC на позиции %d", i)
		}
	}

	total, err := repo.Count(ctx, model.CollectionPYQs)
	if err != nil || total != 3 {
		t.Errorf("Count = %d, %v; ожидалось 3", total, err)
	}
	recent, err := repo.CountSince(ctx, model.CollectionPYQs, now.AddDate(0, 0, -30))
	if err != nil || recent != 2 {
		t.Errorf("CountSince(30d) = %d, %v; ожидалось 2", recent, err)
	}

	papers, err := repo.ListAll(ctx, model.CollectionPapers)
	if err != nil || len(papers) != 0 {
		t.Errorf("ListAll(papers) = %d, %v; ожидалось 0", len(papers), err)
	}
}

// --- Интеграционные тесты VisitorRepository ---

func TestVisitorIncrement(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewVisitorRepository(pool)

	total, err := repo.Total(ctx)
	if err != nil || total != 0 {
		t.Fatalf("Total = %d, %v; ожидалось 0", total, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Increment(ctx); err != nil {
				t.Errorf("Increment: %v", err)
			}
		}()
	}
	wg.Wait()

	total, err = repo.Total(ctx)
	if err != nil || total != 10 {
		t.Errorf("Total после 10 инкрементов = %d, %v", total, err)
	}
}

func TestClassify(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "нет строк", err: pgx.ErrNoRows, want: ErrNotFound},
		{name: "дубликат", err: &pgconn.PgError{Code: "23505"}, want: ErrConflict},
		{name: "другая ошибка pg", err: &pgconn.PgError{Code: "42P01"}},
		{name: "сеть", err: other, want: other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("чтение", tt.err)
			if tt.want != nil && !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, ожидалось %v", got, tt.want)
			}
			if errors.Is(got, ErrNotFound) != (tt.want == ErrNotFound) {
				t.Errorf("classify() = %v", got)
			}
		})
	}
}
