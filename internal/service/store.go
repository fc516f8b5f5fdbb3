// store.go — хранилище каталога: загрузка коллекций в неизменяемые снимки.
// Загрузка ждёт сигнала инициализации (БД подключена и мигрирована),
// повторов нет: ошибка возвращается как *LoadError.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shivnayan54/studyvibe/internal/domain/catalog"
	"github.com/shivnayan54/studyvibe/internal/domain/model"
	"github.com/shivnayan54/studyvibe/internal/repository"
)

// ErrNotInitialized — хранилище ещё не получило сигнал инициализации.
var ErrNotInitialized = errors.New("хранилище каталога не инициализировано")

// Prometheus-метрики загрузки каталога.
var (
	catalogLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_catalog_loads_total",
		Help: "Количество загрузок коллекций из БД (по статусу).",
	}, []string{"collection", "status"})

	catalogLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sv_catalog_load_duration_seconds",
		Help:    "Длительность загрузки коллекции из БД.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection"})

	catalogRecords = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sv_catalog_records",
		Help: "Количество записей в последнем снимке коллекции.",
	}, []string{"collection"})
)

// Snapshot — неизменяемый снимок коллекции.
// Records упорядочены по upload_date DESC и не изменяются после загрузки.
type Snapshot struct {
	Collection model.Collection
	Records    []model.Record
	Options    catalog.FilterOptions
	LoadedAt   time.Time
}

// InitSignal — одноразовый сигнал готовности источника данных.
type InitSignal struct {
	once sync.Once
	done chan struct{}
}

// NewInitSignal создаёт незавершённый сигнал.
func NewInitSignal() *InitSignal {
	return &InitSignal{done: make(chan struct{})}
}

// Complete отмечает источник готовым. Повторные вызовы игнорируются.
func (s *InitSignal) Complete() {
	s.once.Do(func() { close(s.done) })
}

// Done закрывается после Complete.
func (s *InitSignal) Done() <-chan struct{} {
	return s.done
}

// Completed сообщает, был ли вызван Complete.
func (s *InitSignal) Completed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// CatalogStore загружает коллекции и кэширует снимки.
type CatalogStore struct {
	repo   repository.RecordRepository
	cache  *SnapshotCache
	signal *InitSignal
	now    func() time.Time
	logger *slog.Logger
}

// NewCatalogStore создаёт хранилище каталога.
func NewCatalogStore(repo repository.RecordRepository, cache *SnapshotCache, signal *InitSignal, logger *slog.Logger) *CatalogStore {
	return &CatalogStore{
		repo:   repo,
		cache:  cache,
		signal: signal,
		now:    time.Now,
		logger: logger.With(slog.String("component", "catalog_store")),
	}
}

// Ready сообщает, получило ли хранилище сигнал инициализации.
func (s *CatalogStore) Ready() bool {
	return s.signal.Completed()
}

// Load возвращает снимок коллекции. При промахе кэша коллекция читается
// из БД целиком. Если контекст завершился до инициализации или БД вернула
// ошибку — *LoadError.
func (s *CatalogStore) Load(ctx context.Context, collection model.Collection) (*Snapshot, error) {
	select {
	case <-s.signal.Done():
	case <-ctx.Done():
		catalogLoadsTotal.WithLabelValues(string(collection), "not_ready").Inc()
		return nil, &LoadError{Collection: collection, Err: errors.Join(ErrNotInitialized, ctx.Err())}
	}

	if snap, ok := s.cache.Get(collection); ok {
		return snap, nil
	}

	start := s.now()
	records, err := s.repo.ListAll(ctx, collection)
	catalogLoadDuration.WithLabelValues(string(collection)).Observe(time.Since(start).Seconds())
	if err != nil {
		catalogLoadsTotal.WithLabelValues(string(collection), "error").Inc()
		s.logger.Error("Ошибка загрузки коллекции",
			slog.String("collection", string(collection)),
			slog.String("error", err.Error()),
		)
		return nil, &LoadError{Collection: collection, Err: err}
	}

	snap := &Snapshot{
		Collection: collection,
		Records:    records,
		Options:    catalog.Options(records),
		LoadedAt:   s.now(),
	}
	s.cache.Set(snap)
	catalogLoadsTotal.WithLabelValues(string(collection), "ok").Inc()
	catalogRecords.WithLabelValues(string(collection)).Set(float64(len(records)))

	s.logger.Debug("Коллекция загружена",
		slog.String("collection", string(collection)),
		slog.Int("records", len(records)),
	)
	return snap, nil
}

// Invalidate сбрасывает снимок: следующее чтение выполнит полную перезагрузку.
func (s *CatalogStore) Invalidate(collection model.Collection) {
	s.cache.Delete(collection)
	s.logger.Debug("Снимок коллекции сброшен", slog.String("collection", string(collection)))
}
