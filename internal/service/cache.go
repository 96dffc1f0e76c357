// Пакет service — бизнес-логика Media Module.
// CacheService — LRU-кэш результатов разрешения публичных идентификаторов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/domain/media"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш разрешённых идентификаторов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша разрешённых идентификаторов.",
	})
)

// ResolvedAsset — закэшированный результат разрешения публичного идентификатора.
type ResolvedAsset struct {
	// Identifier — публичный идентификатор ресурса (кандидат, давший совпадение)
	Identifier string
	// Kind — тип ресурса, классифицированный по расширению запроса
	Kind media.Kind
	// Format — формат файла по данным удалённого хранилища
	Format string
	// DeliveryURL — канонический delivery-URL ресурса
	DeliveryURL string
}

// CacheService — LRU-кэш разрешённых идентификаторов с автоматическим TTL.
// Каждый экземпляр MM имеет собственный in-memory кэш (per-instance, stateless архитектура).
type CacheService struct {
	cache *expirable.LRU[string, *ResolvedAsset]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *ResolvedAsset](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает разрешённый ресурс из кэша по идентификатору.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(identifier string) (*ResolvedAsset, bool) {
	val, ok := c.cache.Get(identifier)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(identifier string, resolved *ResolvedAsset) {
	c.cache.Add(identifier, resolved)
}

// Delete удаляет запись из кэша (инвалидация при удалении ресурса).
func (c *CacheService) Delete(identifier string) {
	c.cache.Remove(identifier)
}
