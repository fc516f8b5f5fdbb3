package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shivnayan54/studyvibe/internal/config"
	"github.com/shivnayan54/studyvibe/internal/database"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/repository"
	"github.com/shivnayan54/studyvibe/internal/service"
	"github.com/shivnayan54/studyvibe/internal/storage/blobstore"
)

// seedFile — файл начального наполнения каталога.
//
//	papers:
//	  - board: CBSE
//	    class: "10"
//	    year: 2023
//	    subject: Mathematics
//	    title: CBSE Class 10 Mathematics 2023
//	    gdrive_link: https://drive.google.com/file/d/<ID>/view
//	pyqs:
//	  - ...
//	    file: pdf/physics-2022.pdf
type seedFile struct {
	Papers []seedRecord `yaml:"papers"`
	PYQs   []seedRecord `yaml:"pyqs"`
}

// seedRecord — одна запись; источник — gdrive_link или file.
type seedRecord struct {
	Board      string `yaml:"board"`
	Class      string `yaml:"class"`
	Year       int    `yaml:"year"`
	Subject    string `yaml:"subject"`
	Title      string `yaml:"title"`
	GDriveLink string `yaml:"gdrive_link"`
	// File — путь к PDF относительно файла наполнения
	File string `yaml:"file"`
}

func (r seedRecord) input() service.RecordInput {
	return service.RecordInput{
		Board:      r.Board,
		Class:      r.Class,
		Year:       r.Year,
		Subject:    r.Subject,
		Title:      r.Title,
		GDriveLink: r.GDriveLink,
	}
}

// parseSeed разбирает файл наполнения. Неизвестные поля — ошибка.
func parseSeed(r io.Reader) (*seedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var seed seedFile
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return &seedFile{}, nil
		}
		return nil, fmt.Errorf("разбор файла наполнения: %w", err)
	}
	return &seed, nil
}

// seedEntry — запись с указанием коллекции.
type seedEntry struct {
	collection model.Collection
	record     seedRecord
}

func (s *seedFile) entries() []seedEntry {
	out := make([]seedEntry, 0, len(s.Papers)+len(s.PYQs))
	for _, r := range s.Papers {
		out = append(out, seedEntry{collection: model.CollectionPapers, record: r})
	}
	for _, r := range s.PYQs {
		out = append(out, seedEntry{collection: model.CollectionPYQs, record: r})
	}
	return out
}

// recordCreator — создание записи каталога.
type recordCreator interface {
	Create(ctx context.Context, collection model.Collection, in service.RecordInput, file *service.FileUpload, progress blobstore.ProgressFunc) (*model.Record, error)
}

// importResult — итог импорта.
type importResult struct {
	Created int
	Failed  int
}

// importSeed создаёт записи по одной; ошибка записи не останавливает импорт.
func importSeed(ctx context.Context, creator recordCreator, seed *seedFile, baseDir string, out io.Writer) (importResult, error) {
	var res importResult
	for i, e := range seed.entries() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := createEntry(ctx, creator, e, baseDir, out)
		if err != nil {
			res.Failed++
			_, _ = warnColor.Fprintf(out, "[%d] %s/%s: %v\n", i+1, e.collection, e.record.Title, err)
			continue
		}
		res.Created++
		_, _ = successColor.Fprintf(out, "[%d] %s/%s: %s\n", i+1, e.collection, rec.Title, rec.ID)
	}
	return res, nil
}

func createEntry(ctx context.Context, creator recordCreator, e seedEntry, baseDir string, out io.Writer) (*model.Record, error) {
	if e.record.File == "" {
		return creator.Create(ctx, e.collection, e.record.input(), nil, nil)
	}

	path := e.record.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("чтение файла: %w", err)
	}

	upload := &service.FileUpload{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Content:  f,
	}
	return creator.Create(ctx, e.collection, e.record.input(), upload, progressPrinter(out))
}

// progressPrinter печатает прогресс загрузки шагами по 25%.
func progressPrinter(out io.Writer) blobstore.ProgressFunc {
	next := int64(25)
	return func(written, total int64) {
		if total <= 0 {
			return
		}
		for next <= 100 && written*100 >= next*total {
			fmt.Fprintf(out, "  %d%%\n", next)
			next += 25
		}
	}
}

func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Импортировать записи каталога из YAML",
		Long: `Создаёт записи каталога из файла наполнения.

Для каждой записи указывается ровно один источник: gdrive_link
(ссылка Google Drive приводится к прямой форме) или file (PDF копируется
в blob-хранилище). Ошибочные записи пропускаются.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			seed, err := parseSeed(f)
			_ = f.Close()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Работ: %d, PYQ: %d\n", len(seed.Papers), len(seed.PYQs))
				return nil
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			admin, closeFn, err := openAdminService(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := importSeed(cmd.Context(), admin, seed, filepath.Dir(args[0]), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Создано: %d, с ошибками: %d\n", res.Created, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("не импортировано записей: %d", res.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "только проверить файл наполнения")

	return cmd
}

// openAdminService подключается к БД и blob-хранилищу так же, как сервер.
func openAdminService(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*service.AdminService, func(), error) {
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, nil, err
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := blobstore.New(cfg.BlobDir)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	records := repository.NewRecordRepository(pool)
	signal := service.NewInitSignal()
	signal.Complete()
	store := service.NewCatalogStore(records, service.NewSnapshotCache(cfg.CatalogTTL), signal, logger)

	admin := service.NewAdminService(records, repository.NewVisitorRepository(pool), blobs, store, service.AdminConfig{
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, logger)
	return admin, pool.Close, nil
}
