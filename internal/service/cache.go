// Пакет service — бизнес-логика медиа-индексатора.
// CacheService — именованный LRU-кэш с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэшей (лейбл cache — имя кэша).
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mi_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mi_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша.",
	}, []string{"cache"})
)

// CacheService — LRU-кэш с автоматическим TTL.
// Каждый экземпляр сервиса имеет собственный in-memory кэш.
type CacheService[K comparable, V any] struct {
	cache  *expirable.LRU[K, V]
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewCacheService создаёт LRU-кэш с указанным именем, максимальным размером и TTL.
// name — лейбл метрик кэша.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService[K comparable, V any](name string, maxSize int, ttl time.Duration) *CacheService[K, V] {
	return &CacheService[K, V]{
		cache:  expirable.NewLRU[K, V](maxSize, nil, ttl),
		hits:   cacheHitsTotal.WithLabelValues(name),
		misses: cacheMissesTotal.WithLabelValues(name),
	}
}

// Get возвращает значение из кэша.
// Возвращает (значение, true) при hit или (zero, false) при miss.
func (c *CacheService[K, V]) Get(key K) (V, bool) {
	val, ok := c.cache.Get(key)
	if ok {
		c.hits.Inc()
		return val, true
	}
	c.misses.Inc()
	var zero V
	return zero, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService[K, V]) Set(key K, val V) {
	c.cache.Add(key, val)
}

// Delete удаляет запись из кэша (инвалидация).
func (c *CacheService[K, V]) Delete(key K) {
	c.cache.Remove(key)
}

// Purge очищает кэш.
func (c *CacheService[K, V]) Purge() {
	c.cache.Purge()
}

// Len возвращает текущее количество записей.
func (c *CacheService[K, V]) Len() int {
	return c.cache.Len()
}
