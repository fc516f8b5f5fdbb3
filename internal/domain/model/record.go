// Пакет model — доменные модели каталога экзаменационных работ.
// Record — маппинг таблиц papers и pyqs (структура обеих коллекций одинакова).
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Collection — коллекция записей каталога.
type Collection string

const (
	// CollectionPapers — экзаменационные работы
	CollectionPapers Collection = "papers"
	// CollectionPYQs — задания прошлых лет (previous year questions)
	CollectionPYQs Collection = "pyqs"
)

// Collections — все коллекции каталога в порядке отображения.
var Collections = []Collection{CollectionPapers, CollectionPYQs}

// ParseCollection преобразует строку в Collection.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case CollectionPapers, CollectionPYQs:
		return c, nil
	default:
		return "", fmt.Errorf("недопустимая коллекция: %q, допустимые: papers, pyqs", s)
	}
}

// Source — подсистема, в которой хранится бинарный файл записи.
type Source string

const (
	// SourceUpload — файл загружен в локальное blob-хранилище (удаляется вместе с записью)
	SourceUpload Source = "upload"
	// SourceGDrive — внешняя ссылка Google Drive (файл не удаляется)
	SourceGDrive Source = "gdrive"
)

// Record — запись каталога (работа или PYQ).
// После загрузки в снимок каталога запись не изменяется.
type Record struct {
	// ID — UUID записи, назначается хранилищем при создании
	ID uuid.UUID
	// Board — экзаменационный совет (CBSE, ICSE, UP Board, ...)
	Board string
	// Class — класс (опционально, пустая строка отображается как N/A)
	Class string
	// Year — год экзамена
	Year int
	// Subject — предмет (свободный текст)
	Subject string
	// Title — заголовок для отображения
	Title string
	// FileURL — абсолютный URL PDF-файла
	FileURL string
	// UploadDate — время загрузки, ключ сортировки по умолчанию
	UploadDate time.Time
	// Source — где хранится файл: upload или gdrive
	Source Source
	// StoragePath — относительный путь в blob-хранилище (только для upload)
	StoragePath string
}

// DisplayClass возвращает класс для отображения ("N/A" для пустого).
func (r Record) DisplayClass() string {
	if r.Class == "" {
		return "N/A"
	}
	return r.Class
}

// Metadata — редактируемые поля записи.
type Metadata struct {
	Board   string
	Class   string
	Year    int
	Subject string
	Title   string
}

// Stats — сводная статистика для админ-панели.
type Stats struct {
	// TotalPapers — всего работ
	TotalPapers int
	// TotalPYQs — всего PYQ
	TotalPYQs int
	// RecentUploads — загрузок за последние 30 дней (обе коллекции)
	RecentUploads int
	// TotalVisits — счётчик посещений публичных страниц
	TotalVisits int64
}
