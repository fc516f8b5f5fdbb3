// browse.go — сервис просмотра каталога: списки, опции фильтров,
// поиск по обеим коллекциям, подсказки и счётчики советов.
// Все выборки строятся из снимков CatalogStore чистыми функциями catalog.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// Prometheus-метрики поиска.
var (
	searchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sv_search_requests_total",
		Help: "Общее количество поисковых запросов по каталогу.",
	})

	searchResultsHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sv_search_results",
		Help:    "Распределение количества найденных записей.",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// ListResult — представление коллекции вместе с опциями фильтров.
type ListResult struct {
	Collection model.Collection
	View       catalog.View
	Options    catalog.FilterOptions
	LoadedAt   time.Time
}

// SearchResult — результаты поиска по коллекциям (в порядке model.Collections).
type SearchResult struct {
	Query    string
	Sections []SearchSection
	Total    int
}

// SearchSection — найденные записи одной коллекции.
type SearchSection struct {
	Collection model.Collection
	Records    []model.Record
}

// BrowseService — чтение каталога.
type BrowseService struct {
	store       *CatalogStore
	knownBoards []string
	logger      *slog.Logger
}

// NewBrowseService создаёт сервис просмотра каталога.
// knownBoards — советы, всегда присутствующие в счётчиках главной страницы.
func NewBrowseService(store *CatalogStore, knownBoards []string, logger *slog.Logger) *BrowseService {
	return &BrowseService{
		store:       store,
		knownBoards: knownBoards,
		logger:      logger.With(slog.String("component", "browse_service")),
	}
}

// List применяет конвейер фильтр → поиск → сортировка → группировка к снимку коллекции.
func (s *BrowseService) List(ctx context.Context, collection model.Collection, q catalog.Query) (*ListResult, error) {
	snap, err := s.store.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return &ListResult{
		Collection: collection,
		View:       catalog.Apply(snap.Records, q),
		Options:    snap.Options,
		LoadedAt:   snap.LoadedAt,
	}, nil
}

// Options возвращает опции фильтров, вычисленные при последней загрузке.
func (s *BrowseService) Options(ctx context.Context, collection model.Collection) (catalog.FilterOptions, error) {
	snap, err := s.store.Load(ctx, collection)
	if err != nil {
		return catalog.FilterOptions{}, err
	}
	return snap.Options, nil
}

// Get возвращает запись коллекции по ID из текущего снимка.
func (s *BrowseService) Get(ctx context.Context, collection model.Collection, id uuid.UUID) (*model.Record, error) {
	snap, err := s.store.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	for i := range snap.Records {
		if snap.Records[i].ID == id {
			rec := snap.Records[i]
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("%w: запись %s в коллекции %s", ErrNotFound, id, collection)
}

// Search ищет по всем коллекциям. Коллекция, которую не удалось загрузить,
// пропускается с предупреждением; ошибка возвращается, только если
// не загрузилась ни одна.
func (s *BrowseService) Search(ctx context.Context, query string, sort catalog.SortMode) (*SearchResult, error) {
	searchRequestsTotal.Inc()

	result := &SearchResult{Query: query, Sections: make([]SearchSection, 0, len(model.Collections))}
	var firstErr error
	loaded := 0
	for _, c := range model.Collections {
		snap, err := s.store.Load(ctx, c)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Warn("Коллекция пропущена при поиске",
				slog.String("collection", string(c)),
				slog.String("error", err.Error()),
			)
			continue
		}
		loaded++
		view := catalog.Apply(snap.Records, catalog.Query{Search: query, Sort: sort})
		result.Sections = append(result.Sections, SearchSection{Collection: c, Records: view.Records})
		result.Total += view.Total
	}
	if loaded == 0 && firstErr != nil {
		return nil, firstErr
	}

	searchResultsHistogram.Observe(float64(result.Total))
	s.logger.Debug("Поиск выполнен",
		slog.String("query", query),
		slog.Int("total", result.Total),
	)
	return result, nil
}

// Suggest возвращает подсказки для строки поиска: сначала из работ, затем из PYQ.
func (s *BrowseService) Suggest(ctx context.Context, query string) ([]string, error) {
	var records []model.Record
	for _, c := range model.Collections {
		snap, err := s.store.Load(ctx, c)
		if err != nil {
			return nil, err
		}
		records = append(records, snap.Records...)
	}
	return catalog.Suggest(records, query, catalog.DefaultSuggestionLimit), nil
}

// Boards возвращает счётчики записей по советам для коллекции.
func (s *BrowseService) Boards(ctx context.Context, collection model.Collection) (catalog.BoardSummary, error) {
	snap, err := s.store.Load(ctx, collection)
	if err != nil {
		return catalog.BoardSummary{}, err
	}
	return catalog.CountByBoard(snap.Records, s.knownBoards), nil
}
