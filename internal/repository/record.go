package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// recordColumns — список столбцов коллекции для SELECT/RETURNING.
const recordColumns = `id, board, class, year, subject, title,
	file_url, upload_date, source, storage_path`

// RecordRepository — доступ к коллекциям каталога.
type RecordRepository interface {
	// ListAll возвращает всю коллекцию, новые записи первыми.
	ListAll(ctx context.Context, c model.Collection) ([]model.Record, error)
	// Create вставляет запись. Пустой ID и нулевая дата назначаются хранилищем.
	Create(ctx context.Context, c model.Collection, rec *model.Record) error
	// Update заменяет редактируемые поля и возвращает обновлённую запись.
	Update(ctx context.Context, c model.Collection, id uuid.UUID, meta model.Metadata) (*model.Record, error)
	// Delete удаляет запись и возвращает её последнее состояние.
	Delete(ctx context.Context, c model.Collection, id uuid.UUID) (*model.Record, error)
	// Count возвращает размер коллекции.
	Count(ctx context.Context, c model.Collection) (int, error)
	// CountSince возвращает количество записей, загруженных после since.
	CountSince(ctx context.Context, c model.Collection, since time.Time) (int, error)
}

// recordRepo — реализация RecordRepository через pgx.
type recordRepo struct {
	db DBTX
}

// NewRecordRepository создаёт репозиторий коллекций каталога.
func NewRecordRepository(db DBTX) RecordRepository {
	return &recordRepo{db: db}
}

// ListAll возвращает коллекцию целиком (без пагинации) по убыванию upload_date.
func (r *recordRepo) ListAll(ctx context.Context, c model.Collection) ([]model.Record, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY upload_date DESC, id`, recordColumns, table)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения коллекции %s: %w", c, err)
	}
	defer rows.Close()

	records := make([]model.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения записи %s: %w", c, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации %s: %w", c, err)
	}
	return records, nil
}

// Create вставляет запись и заполняет ID и UploadDate.
func (r *recordRepo) Create(ctx context.Context, c model.Collection, rec *model.Record) error {
	table, err := tableFor(c)
	if err != nil {
		return err
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	var uploadDate *time.Time
	if !rec.UploadDate.IsZero() {
		uploadDate = &rec.UploadDate
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(id, board, class, year, subject, title, file_url, upload_date, source, storage_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), $9, $10)
		RETURNING upload_date`, table)

	err = r.db.QueryRow(ctx, query,
		rec.ID, rec.Board, rec.Class, rec.Year, rec.Subject, rec.Title,
		rec.FileURL, uploadDate, string(rec.Source), rec.StoragePath,
	).Scan(&rec.UploadDate)
	if err != nil {
		return classify("создания записи", err)
	}
	return nil
}

// Update обновляет board, class, year, subject, title.
func (r *recordRepo) Update(ctx context.Context, c model.Collection, id uuid.UUID, meta model.Metadata) (*model.Record, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE %s
		SET board = $2, class = $3, year = $4, subject = $5, title = $6
		WHERE id = $1
		RETURNING %s`, table, recordColumns)

	rec, err := scanRecord(r.db.QueryRow(ctx, query,
		id, meta.Board, meta.Class, meta.Year, meta.Subject, meta.Title))
	if err != nil {
		return nil, classify("обновления записи", err)
	}
	return rec, nil
}

// Delete удаляет запись. Возвращает удалённую запись (для очистки blob).
func (r *recordRepo) Delete(ctx context.Context, c model.Collection, id uuid.UUID) (*model.Record, error) {
	table, err := tableFor(c)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 RETURNING %s`, table, recordColumns)
	rec, err := scanRecord(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, classify("удаления записи", err)
	}
	return rec, nil
}

// Count возвращает количество записей коллекции.
func (r *recordRepo) Count(ctx context.Context, c model.Collection) (int, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта %s: %w", c, err)
	}
	return n, nil
}

// CountSince возвращает количество записей с upload_date >= since.
func (r *recordRepo) CountSince(ctx context.Context, c model.Collection, since time.Time) (int, error) {
	table, err := tableFor(c)
	if err != nil {
		return 0, err
	}

	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE upload_date >= $1`, table)
	if err := r.db.QueryRow(ctx, query, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта %s: %w", c, err)
	}
	return n, nil
}

// scanRecord сканирует строку в model.Record (порядок — recordColumns).
func scanRecord(row pgx.Row) (*model.Record, error) {
	rec := &model.Record{}
	var source string
	err := row.Scan(
		&rec.ID, &rec.Board, &rec.Class, &rec.Year, &rec.Subject, &rec.Title,
		&rec.FileURL, &rec.UploadDate, &source, &rec.StoragePath,
	)
	if err != nil {
		return nil, err
	}
	rec.Source = model.Source(source)
	return rec, nil
}
