// admin.go — операции администратора: загрузка (PDF или ссылка Google Drive),
// редактирование, удаление и сводная статистика.
//
// Загрузка PDF: валидация → запись в blob-хранилище (temp + rename) →
// INSERT в коллекцию. При ошибке INSERT загруженный файл удаляется.
// Каждая запись сбрасывает снимок коллекции.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shivnayan54/studyvibe/internal/domain/link"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/repository"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
)

const (
	// minYear — самый ранний допустимый год экзамена.
	minYear = 2000
	// recentWindow — окно "недавних" загрузок для статистики.
	recentWindow = 30 * 24 * time.Hour
)

// pdfMagic — сигнатура PDF-файла.
var pdfMagic = []byte("%PDF")

// Prometheus-метрики операций администратора.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_uploads_total",
		Help: "Количество добавленных записей каталога (по коллекции и источнику).",
	}, []string{"collection", "source"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_upload_bytes_total",
		Help: "Общий объём загруженных PDF-файлов в байтах.",
	})

	deletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_deletions_total",
		Help: "Количество удалённых записей каталога (по коллекции).",
	}, []string{"collection"})
)

// RecordInput — метаданные новой или редактируемой записи.
type RecordInput struct {
	Board   string `json:"board" validate:"notblank,max=100"`
	Class   string `json:"class" validate:"notblank,max=20"`
	Year    int    `json:"year" validate:"required,gte=2000"`
	Subject string `json:"subject" validate:"notblank,max=100"`
	Title   string `json:"title" validate:"notblank,max=200"`
	// GDriveLink — ссылка Google Drive вместо файла (только при создании)
	GDriveLink string `json:"gdrive_link" validate:"omitempty,url"`
}

// metadata возвращает нормализованные (обрезанные) метаданные.
func (in RecordInput) metadata() model.Metadata {
	return model.Metadata{
		Board:   strings.TrimSpace(in.Board),
		Class:   strings.TrimSpace(in.Class),
		Year:    in.Year,
		Subject: strings.TrimSpace(in.Subject),
		Title:   strings.TrimSpace(in.Title),
	}
}

// FileUpload — загружаемый PDF-файл.
type FileUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// AdminConfig — параметры сервиса администратора.
type AdminConfig struct {
	// PublicBaseURL — внешний адрес сервиса для ссылок на загруженные файлы
	PublicBaseURL string
	// MaxUploadBytes — максимальный размер PDF
	MaxUploadBytes int64
}

// AdminService — изменение каталога.
type AdminService struct {
	records  repository.RecordRepository
	visitors repository.VisitorRepository
	blobs    *blobstore.Store
	store    *CatalogStore
	validate *validator.Validate
	cfg      AdminConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewAdminService создаёт сервис операций администратора.
func NewAdminService(
	records repository.RecordRepository,
	visitors repository.VisitorRepository,
	blobs *blobstore.Store,
	store *CatalogStore,
	cfg AdminConfig,
	logger *slog.Logger,
) *AdminService {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &AdminService{
		records:  records,
		visitors: visitors,
		blobs:    blobs,
		store:    store,
		validate: newValidator(),
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "admin_service")),
	}
}

// Create добавляет запись в коллекцию. Источник — ровно один из file и
// in.GDriveLink. progress получает (записано, всего) байт при загрузке файла.
func (s *AdminService) Create(
	ctx context.Context,
	collection model.Collection,
	in RecordInput,
	file *FileUpload,
	progress blobstore.ProgressFunc,
) (*model.Record, error) {
	if err := s.validateInput(in); err != nil {
		return nil, err
	}
	meta := in.metadata()

	driveLink := strings.TrimSpace(in.GDriveLink)
	switch {
	case file == nil && driveLink == "":
		return nil, &ValidationError{Field: "file", Message: "требуется PDF-файл или ссылка Google Drive"}
	case file != nil && driveLink != "":
		return nil, &ValidationError{Field: "gdrive_link", Message: "укажите либо файл, либо ссылку, но не оба"}
	case driveLink != "":
		return s.createFromLink(ctx, collection, meta, driveLink)
	default:
		return s.createFromFile(ctx, collection, meta, file, progress)
	}
}

// createFromLink сохраняет запись со ссылкой Google Drive в прямой форме.
func (s *AdminService) createFromLink(ctx context.Context, collection model.Collection, meta model.Metadata, raw string) (*model.Record, error) {
	direct, ok := link.NormalizeShareableLink(raw)
	if !ok {
		return nil, &LinkFormatError{Link: raw}
	}

	rec := newRecord(meta)
	rec.FileURL = direct
	rec.Source = model.SourceGDrive
	rec.UploadDate = s.now().UTC()

	if err := s.records.Create(ctx, collection, rec); err != nil {
		return nil, mapRepoError(err)
	}
	s.afterWrite(collection)
	uploadsTotal.WithLabelValues(string(collection), string(model.SourceGDrive)).Inc()

	s.logger.Info("Запись со ссылкой Google Drive добавлена",
		slog.String("collection", string(collection)),
		slog.String("id", rec.ID.String()),
	)
	return rec, nil
}

// createFromFile проверяет PDF, записывает его в blob-хранилище и создаёт запись.
func (s *AdminService) createFromFile(
	ctx context.Context,
	collection model.Collection,
	meta model.Metadata,
	file *FileUpload,
	progress blobstore.ProgressFunc,
) (*model.Record, error) {
	content, err := s.checkPDF(file)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := blobstore.BuildKey(string(collection), meta.Board, meta.Class, meta.Year, file.Filename, now)
	logProgress := func(written, total int64) {
		s.logger.Debug("Загрузка файла",
			slog.String("key", key),
			slog.Int64("written", written),
			slog.Int64("total", total),
		)
		if progress != nil {
			progress(written, total)
		}
	}

	saved, err := s.blobs.Save(ctx, key, content, file.Size, logProgress)
	if err != nil {
		return nil, uploadError(err)
	}
	if saved.Size > s.cfg.MaxUploadBytes {
		s.removeBlob(saved.Key)
		return nil, &ValidationError{Field: "file", Message: s.sizeMessage()}
	}

	rec := newRecord(meta)
	rec.FileURL = s.cfg.PublicBaseURL + "/files/" + saved.Key
	rec.Source = model.SourceUpload
	rec.StoragePath = saved.Key
	rec.UploadDate = now

	if err := s.records.Create(ctx, collection, rec); err != nil {
		s.removeBlob(saved.Key)
		return nil, mapRepoError(err)
	}
	s.afterWrite(collection)
	uploadsTotal.WithLabelValues(string(collection), string(model.SourceUpload)).Inc()
	uploadBytesTotal.Add(float64(saved.Size))

	s.logger.Info("PDF загружен",
		slog.String("collection", string(collection)),
		slog.String("id", rec.ID.String()),
		slog.String("key", saved.Key),
		slog.Int64("size", saved.Size),
		slog.String("sha256", saved.Checksum),
	)
	return rec, nil
}

// checkPDF проверяет имя, размер и сигнатуру файла. Возвращает reader,
// начинающийся с уже прочитанной сигнатуры.
func (s *AdminService) checkPDF(file *FileUpload) (io.Reader, error) {
	if file.Content == nil {
		return nil, &ValidationError{Field: "file", Message: "файл не передан"}
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		return nil, &ValidationError{Field: "file", Message: "допускаются только PDF-файлы"}
	}
	if file.Size > s.cfg.MaxUploadBytes {
		return nil, &ValidationError{Field: "file", Message: s.sizeMessage()}
	}

	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(file.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &UploadError{StatusCode: http.StatusBadRequest, Code: "UPLOAD_READ_FAILED", Message: err.Error()}
	}
	if n < len(pdfMagic) || !bytes.Equal(head, pdfMagic) {
		return nil, &ValidationError{Field: "file", Message: "содержимое файла не является PDF"}
	}
	return io.MultiReader(bytes.NewReader(head), file.Content), nil
}

func (s *AdminService) sizeMessage() string {
	return fmt.Sprintf("размер файла превышает %d МБ", s.cfg.MaxUploadBytes>>20)
}

// Update заменяет метаданные записи. Источник файла не меняется.
func (s *AdminService) Update(ctx context.Context, collection model.Collection, id uuid.UUID, in RecordInput) (*model.Record, error) {
	in.GDriveLink = ""
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	rec, err := s.records.Update(ctx, collection, id, in.metadata())
	if err != nil {
		return nil, mapRepoError(err)
	}
	s.afterWrite(collection)

	s.logger.Info("Запись обновлена",
		slog.String("collection", string(collection)),
		slog.String("id", id.String()),
	)
	return rec, nil
}

// Delete удаляет запись. Файл в blob-хранилище удаляется только для
// источника upload; ссылки Google Drive не затрагиваются.
func (s *AdminService) Delete(ctx context.Context, collection model.Collection, id uuid.UUID) error {
	rec, err := s.records.Delete(ctx, collection, id)
	if err != nil {
		return mapRepoError(err)
	}
	s.afterWrite(collection)
	deletionsTotal.WithLabelValues(string(collection)).Inc()

	if rec.Source == model.SourceUpload && rec.StoragePath != "" {
		s.removeBlob(rec.StoragePath)
	}

	s.logger.Info("Запись удалена",
		slog.String("collection", string(collection)),
		slog.String("id", id.String()),
		slog.String("source", string(rec.Source)),
	)
	return nil
}

// Stats возвращает сводную статистику каталога.
func (s *AdminService) Stats(ctx context.Context) (*model.Stats, error) {
	since := s.now().Add(-recentWindow)
	stats := &model.Stats{}

	for _, c := range model.Collections {
		total, err := s.records.Count(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("статистика %s: %w", c, err)
		}
		recent, err := s.records.CountSince(ctx, c, since)
		if err != nil {
			return nil, fmt.Errorf("статистика %s: %w", c, err)
		}
		switch c {
		case model.CollectionPapers:
			stats.TotalPapers = total
		case model.CollectionPYQs:
			stats.TotalPYQs = total
		}
		stats.RecentUploads += recent
	}

	visits, err := s.visitors.Total(ctx)
	if err != nil {
		return nil, fmt.Errorf("статистика посещений: %w", err)
	}
	stats.TotalVisits = visits
	return stats, nil
}

// validateInput проверяет теги DTO и верхнюю границу года.
func (s *AdminService) validateInput(in RecordInput) error {
	if err := validateStruct(s.validate, in); err != nil {
		return err
	}
	if maxYear := s.now().Year() + 1; in.Year > maxYear {
		return &ValidationError{Field: "year", Message: fmt.Sprintf("должно быть не больше %d", maxYear)}
	}
	return nil
}

// afterWrite сбрасывает снимок коллекции: следующее чтение перезагрузит её целиком.
func (s *AdminService) afterWrite(collection model.Collection) {
	if s.store != nil {
		s.store.Invalidate(collection)
	}
}

// removeBlob удаляет файл; ошибка только логируется.
func (s *AdminService) removeBlob(key string) {
	if err := s.blobs.Delete(key); err != nil {
		s.logger.Warn("Не удалось удалить файл из blob-хранилища",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

// newRecord создаёт запись с новым ID.
func newRecord(meta model.Metadata) *model.Record {
	return &model.Record{
		ID:      uuid.New(),
		Board:   meta.Board,
		Class:   meta.Class,
		Year:    meta.Year,
		Subject: meta.Subject,
		Title:   meta.Title,
	}
}

// uploadError преобразует ошибку blob-хранилища в *UploadError.
func uploadError(err error) error {
	switch {
	case errors.Is(err, blobstore.ErrInvalidKey):
		return &UploadError{StatusCode: http.StatusBadRequest, Code: "INVALID_PATH", Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &UploadError{StatusCode: http.StatusRequestTimeout, Code: "UPLOAD_ABORTED", Message: err.Error()}
	default:
		return &UploadError{StatusCode: http.StatusInternalServerError, Code: "UPLOAD_FAILED", Message: err.Error()}
	}
}

// mapRepoError переводит ошибки репозитория в ошибки сервисного слоя.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
