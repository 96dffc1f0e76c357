// assets.go — сервис управления реестром медиаресурсов.
// Выборка, метаданные, история версий, построение delivery-URL
// и идемпотентное best-effort удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/cloudinary"
	"github.com/bigkaa/mediastore/internal/domain/media"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
)

// Prometheus-метрики управления реестром.
var (
	listTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_list_total",
		Help: "Общее количество запросов выборки ресурсов.",
	})
	listDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_list_duration_seconds",
		Help:    "Длительность запросов выборки ресурсов.",
		Buckets: prometheus.DefBuckets,
	})
	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_deletes_total",
		Help: "Общее количество запросов удаления (по статусу).",
	}, []string{"status"})
)

// ListResult — результат выборки с пагинацией.
type ListResult struct {
	// Items — найденные ресурсы
	Items []*model.AssetRecord
	// Total — общее количество совпадений
	Total int
	// Limit — запрошенный лимит
	Limit int
	// Offset — текущее смещение
	Offset int
	// HasMore — есть ли ещё результаты
	HasMore bool
}

// AssetService — сервис управления медиаресурсами.
type AssetService struct {
	assetRepo   repository.AssetRepository
	versionRepo repository.VersionRepository
	client      *cloudinary.Client
	cache       *CacheService
	urlBuilder  *media.URLBuilder
	logger      *slog.Logger
}

// NewAssetService создаёт сервис управления ресурсами.
func NewAssetService(
	assetRepo repository.AssetRepository,
	versionRepo repository.VersionRepository,
	client *cloudinary.Client,
	cache *CacheService,
	urlBuilder *media.URLBuilder,
	logger *slog.Logger,
) *AssetService {
	return &AssetService{
		assetRepo:   assetRepo,
		versionRepo: versionRepo,
		client:      client,
		cache:       cache,
		urlBuilder:  urlBuilder,
		logger:      logger.With(slog.String("component", "asset_service")),
	}
}

// Get возвращает метаданные ресурса по UUID.
// Удалённые ресурсы возвращаются со статусом deleted.
func (s *AssetService) Get(ctx context.Context, assetID string) (*model.AssetRecord, error) {
	record, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение метаданных ресурса: %w", err)
	}
	return record, nil
}

// List выполняет выборку ресурсов по параметрам.
// Обновляет Prometheus-метрики (list_total, list_duration_seconds).
func (s *AssetService) List(ctx context.Context, params repository.ListParams) (*ListResult, error) {
	start := time.Now()
	listTotal.Inc()

	items, total, err := s.assetRepo.List(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("выборка ресурсов: %w", err)
	}

	duration := time.Since(start)
	listDuration.Observe(duration.Seconds())

	s.logger.Debug("Выборка выполнена",
		slog.Int("total", total),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &ListResult{
		Items:   items,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
		HasMore: params.Offset+len(items) < total,
	}, nil
}

// Delete удаляет ресурс: best-effort destroy в удалённом хранилище
// плюс локальный soft delete. Идемпотентен:
//   - ресурс уже удалён локально → успех без действий
//   - удалённое хранилище ответило "not found" → успех (обрабатывает клиент)
//   - иная ошибка удалённого удаления → логируется, локальное удаление выполняется
func (s *AssetService) Delete(ctx context.Context, assetID string) error {
	record, err := s.assetRepo.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			deletesTotal.WithLabelValues("not_found").Inc()
			return ErrNotFound
		}
		deletesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("получение ресурса перед удалением: %w", err)
	}

	// Повторное удаление — no-op
	if record.Status == model.StatusDeleted {
		deletesTotal.WithLabelValues("already_deleted").Inc()
		return nil
	}

	// Best-effort удаление из удалённого хранилища.
	// Ошибка не блокирует локальный soft delete.
	if err := s.client.Destroy(ctx, lookupResourceType(record.Kind), record.Identifier); err != nil {
		s.logger.Error("Ошибка удаления ресурса из удалённого хранилища",
			slog.String("asset_id", assetID),
			slog.String("identifier", record.Identifier),
			slog.String("error", err.Error()),
		)
		deletesTotal.WithLabelValues("remote_error").Inc()
	}

	if err := s.assetRepo.MarkDeleted(ctx, assetID); err != nil {
		// ErrNotFound здесь означает гонку с параллельным удалением — это успех
		if !errors.Is(err, repository.ErrNotFound) {
			deletesTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("пометка ресурса как удалённого: %w", err)
		}
	}

	// Инвалидация кэша разрешённых идентификаторов:
	// публичный resolver не должен продолжать отдавать удалённый ресурс
	s.cache.Delete(record.Identifier)

	deletesTotal.WithLabelValues("success").Inc()
	s.logger.Info("Ресурс удалён",
		slog.String("asset_id", assetID),
		slog.String("identifier", record.Identifier),
	)

	return nil
}

// Versions возвращает историю версий ресурса (новые первыми).
// История доступна и для удалённых ресурсов (append-only аудит).
func (s *AssetService) Versions(ctx context.Context, assetID string) ([]*model.AssetVersion, error) {
	if _, err := s.Get(ctx, assetID); err != nil {
		return nil, err
	}

	versions, err := s.versionRepo.ListByAssetID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("получение истории версий: %w", err)
	}
	return versions, nil
}

// BuildURL строит delivery-URL для ресурса по сохранённому идентификатору.
// Версия по умолчанию — текущая версия записи; для миниатюр документов
// исходный формат берётся из записи. Удалённый ресурс → ErrNotFound.
func (s *AssetService) BuildURL(ctx context.Context, assetID string, opts media.URLOptions) (string, error) {
	record, err := s.Get(ctx, assetID)
	if err != nil {
		return "", err
	}

	if record.Status == model.StatusDeleted {
		return "", ErrNotFound
	}

	if opts.Version == "" {
		opts.Version = record.Version
	}
	if opts.PaginatedThumbnail && opts.SourceFormat == "" {
		opts.SourceFormat = record.Format
	}

	u, err := s.urlBuilder.Build(record.Identifier, record.Kind, opts)
	if err != nil {
		return "", fmt.Errorf("построение delivery-URL: %w", err)
	}
	return u, nil
}
