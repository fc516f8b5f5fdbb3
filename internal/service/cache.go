// Пакет service — бизнес-логика каталога StudyVibe.
// SnapshotCache — LRU-кэш снимков коллекций с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shivnayan54/studyvibe/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_snapshot_cache_hits_total",
		Help: "Общее количество попаданий в кэш снимков каталога.",
	}, []string{"collection"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sv_snapshot_cache_misses_total",
		Help: "Общее количество промахов кэша снимков каталога.",
	}, []string{"collection"})
)

// SnapshotCache хранит последний загруженный снимок каждой коллекции.
// Снимок заменяется целиком: частичных обновлений нет.
type SnapshotCache struct {
	cache *expirable.LRU[model.Collection, *Snapshot]
}

// NewSnapshotCache создаёт кэш снимков с указанным TTL.
// Размер равен числу коллекций каталога.
func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		cache: expirable.NewLRU[model.Collection, *Snapshot](len(model.Collections), nil, ttl),
	}
}

// Get возвращает снимок коллекции и обновляет метрики hit/miss.
func (c *SnapshotCache) Get(collection model.Collection) (*Snapshot, bool) {
	snap, ok := c.cache.Get(collection)
	if ok {
		cacheHitsTotal.WithLabelValues(string(collection)).Inc()
		return snap, true
	}
	cacheMissesTotal.WithLabelValues(string(collection)).Inc()
	return nil, false
}

// Set заменяет снимок коллекции.
func (c *SnapshotCache) Set(snap *Snapshot) {
	c.cache.Add(snap.Collection, snap)
}

// Delete сбрасывает снимок (после записи администратора).
func (c *SnapshotCache) Delete(collection model.Collection) {
	c.cache.Remove(collection)
}
