// Пакет blobstore — хранилище загруженных PDF-файлов на локальном диске.
// Обеспечивает streaming-запись с подсчётом SHA-256 и отчётом о прогрессе,
// чтение и удаление по относительному ключу.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Ошибки хранилища.
var (
	// ErrNotFound — файл не найден.
	ErrNotFound = errors.New("файл не найден")
	// ErrInvalidKey — ключ выходит за пределы корневой директории.
	ErrInvalidKey = errors.New("недопустимый ключ файла")
)

// ProgressFunc получает количество записанных байт и ожидаемый размер
// (total <= 0, если размер неизвестен).
type ProgressFunc func(written, total int64)

// Store — файловое blob-хранилище.
type Store struct {
	// rootDir — корневая директория хранения (SV_BLOB_DIR)
	rootDir string
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// Key — относительный путь файла в rootDir (через "/")
	Key string
	// Size — размер записанных данных в байтах
	Size int64
	// Checksum — SHA-256 содержимого
	Checksum string
}

// New создаёт хранилище. Создаёт директорию, если она не существует.
func New(rootDir string) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", rootDir, err)
	}
	return &Store{rootDir: rootDir}, nil
}

// Save записывает данные из reader под ключом key.
//
// Паттерн: temp файл → запись + SHA-256 → fsync → atomic rename.
// При ошибке или отмене контекста temp файл удаляется.
func (s *Store) Save(ctx context.Context, key string, reader io.Reader, total int64, progress ProgressFunc) (*SaveResult, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return nil, fmt.Errorf("ошибка создания директории: %w", err)
	}

	tmpPath := fullPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	src := &progressReader{ctx: ctx, r: io.TeeReader(reader, hasher), total: total, fn: progress}

	size, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Key:      key,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает файл для чтения. Вызывающий код обязан закрыть файл.
func (s *Store) Open(key string) (*os.File, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", key, err)
	}
	return f, nil
}

// Delete удаляет файл. Возвращает nil, если файла уже нет.
func (s *Store) Delete(key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", key, err)
	}
	return nil
}

// resolve преобразует ключ в абсолютный путь внутри rootDir.
func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.rootDir, filepath.FromSlash(clean)), nil
}

// BuildKey формирует ключ файла каталога:
// {collection}/{board}/class{class}/{year}/{unixmillis}_{uid}_{name}.pdf
func BuildKey(collection, board, class string, year int, originalFilename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	name := sanitize(strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename)))
	if len(name) > 50 {
		name = name[:50]
	}
	if ext == "" {
		ext = ".pdf"
	}

	classSegment := "class" + sanitize(class)
	if class == "" {
		classSegment = "classNA"
	}

	file := fmt.Sprintf("%d_%s_%s%s", now.UnixMilli(), uuid.New().String()[:8], name, ext)
	return path.Join(sanitize(collection), sanitize(board), classSegment, strconv.Itoa(year), file)
}

// sanitize оставляет только буквы, цифры, дефис и подчёркивание;
// пробелы заменяются подчёркиванием.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_':
			result.WriteRune(r)
		case r == ' ':
			result.WriteRune('_')
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// progressReader сообщает о прогрессе чтения и прерывает его при отмене контекста.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	total   int64
	written int64
	fn      ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	if n > 0 {
		p.written += int64(n)
		if p.fn != nil {
			p.fn(p.written, p.total)
		}
	}
	return n, err
}
