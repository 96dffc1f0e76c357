// upload.go — сервис загрузки файлов в удалённое хранилище.
// Полный pipeline: валидация → классификация → генерация идентификатора →
// загрузка в Cloudinary → регистрация в реестре → запись версии.
// При сбое регистрации после успешной загрузки — best-effort откат (destroy).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/cloudinary"
	"github.com/bigkaa/mediastore/internal/domain/media"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// Ошибки валидации и загрузки.
var (
	// ErrEmptyFilename — имя файла не задано.
	ErrEmptyFilename = errors.New("имя файла не задано")
	// ErrEmptyFile — загружен пустой файл.
	ErrEmptyFile = errors.New("файл пуст")
	// ErrFileTooLarge — файл превышает максимальный размер.
	ErrFileTooLarge = errors.New("файл превышает максимальный размер")
	// ErrUploadFailed — удалённое хранилище отклонило загрузку.
	ErrUploadFailed = errors.New("загрузка в удалённое хранилище не удалась")
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_uploads_total",
		Help: "Общее количество запросов на загрузку (по статусу).",
	}, []string{"status"})

	uploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_upload_duration_seconds",
		Help:    "Длительность загрузки файла (включая удалённое хранилище и реестр).",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_upload_bytes_total",
		Help: "Общее количество загруженных байт.",
	})
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Filename — исходное имя файла
	Filename string
	// Size — размер файла в байтах (из multipart-заголовка)
	Size int64
	// Folder — подпапка внутри корневой папки (опционально)
	Folder string
	// UploadedBy — идентификатор загрузившего (sub из JWT, пустая строка в dev-режиме)
	UploadedBy string
}

// UploadService — сервис загрузки медиаресурсов.
type UploadService struct {
	assetRepo    repository.AssetRepository
	versionRepo  repository.VersionRepository
	client       *cloudinary.Client
	opts         media.UploadOptions
	uploadFolder string
	maxFileSize  int64
	logger       *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
// opts — политика генерации идентификаторов (из конфигурации).
// uploadFolder — корневая папка идентификаторов (MM_UPLOAD_FOLDER).
// maxFileSize — максимальный размер файла в байтах (MM_MAX_FILE_SIZE).
func NewUploadService(
	assetRepo repository.AssetRepository,
	versionRepo repository.VersionRepository,
	client *cloudinary.Client,
	opts media.UploadOptions,
	uploadFolder string,
	maxFileSize int64,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		assetRepo:    assetRepo,
		versionRepo:  versionRepo,
		client:       client,
		opts:         opts,
		uploadFolder: uploadFolder,
		maxFileSize:  maxFileSize,
		logger:       logger.With(slog.String("component", "upload_service")),
	}
}

// Upload выполняет полный pipeline загрузки файла.
//
// Pipeline:
//  1. Валидация (имя файла, размер)
//  2. Классификация по расширению
//  3. Генерация публичного идентификатора
//  4. Загрузка в Cloudinary
//  5. Регистрация AssetRecord в реестре
//  6. Запись первой версии в историю
//
// При ошибке регистрации (шаг 5) выполняется best-effort откат:
// загруженный ресурс удаляется из Cloudinary.
func (us *UploadService) Upload(ctx context.Context, file io.Reader, p UploadParams) (*model.AssetRecord, error) {
	start := time.Now()

	// 1. Валидация
	if err := us.validate(p); err != nil {
		uploadsTotal.WithLabelValues("validation_error").Inc()
		return nil, err
	}

	// 2. Классификация по расширению исходного имени
	kind := media.KindForFilename(p.Filename)

	// 3. Генерация публичного идентификатора
	folder := media.JoinIdentifier(us.uploadFolder, sanitizeFolder(p.Folder))
	identifier := media.GenerateIdentifier(p.Filename, folder, kind, us.opts)

	us.logger.Debug("Идентификатор сгенерирован",
		slog.String("filename", p.Filename),
		slog.String("identifier", identifier),
		slog.String("kind", string(kind)),
	)

	// 4. Загрузка в удалённое хранилище
	result, err := us.client.Upload(ctx, string(kind), identifier, p.Filename, file)
	if err != nil {
		uploadsTotal.WithLabelValues("remote_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	record := us.buildRecord(result, kind, p)

	// 5. Регистрация в реестре
	if err := us.assetRepo.Insert(ctx, record); err != nil {
		uploadsTotal.WithLabelValues("db_error").Inc()
		// Откат: ресурс уже в хранилище, но реестр о нём не узнает
		us.rollbackRemote(ctx, record)
		return nil, fmt.Errorf("регистрация ресурса %s: %w", record.Identifier, err)
	}

	// 6. Первая запись истории версий.
	// Сбой здесь не отменяет загрузку: реестр уже консистентен.
	version := &model.AssetVersion{
		AssetID:     record.AssetID,
		Version:     record.Version,
		VersionID:   record.VersionID,
		DeliveryURL: record.DeliveryURL,
	}
	if err := us.versionRepo.Insert(ctx, version); err != nil {
		us.logger.Error("Ошибка записи версии ресурса",
			slog.String("asset_id", record.AssetID),
			slog.String("error", err.Error()),
		)
	}

	duration := time.Since(start)
	uploadsTotal.WithLabelValues("success").Inc()
	uploadDuration.Observe(duration.Seconds())
	uploadBytesTotal.Add(float64(record.SizeBytes))

	us.logger.Info("Ресурс загружен",
		slog.String("asset_id", record.AssetID),
		slog.String("identifier", record.Identifier),
		slog.String("kind", string(record.Kind)),
		slog.Int64("size_bytes", record.SizeBytes),
		slog.Duration("duration", duration),
	)

	return record, nil
}

// validate проверяет параметры загрузки.
func (us *UploadService) validate(p UploadParams) error {
	if strings.TrimSpace(p.Filename) == "" {
		return ErrEmptyFilename
	}
	if p.Size <= 0 {
		return ErrEmptyFile
	}
	if p.Size > us.maxFileSize {
		return fmt.Errorf("%w: %d байт при лимите %d", ErrFileTooLarge, p.Size, us.maxFileSize)
	}
	return nil
}

// buildRecord собирает AssetRecord из ответа удалённого хранилища.
func (us *UploadService) buildRecord(result *cloudinary.UploadResult, kind media.Kind, p UploadParams) *model.AssetRecord {
	// Хранилище разрешает auto в конкретный тип — он авторитетен
	actualKind := kind
	if parsed, err := media.ParseKind(result.ResourceType); err == nil && parsed != media.KindAuto {
		actualKind = parsed
	}

	record := &model.AssetRecord{
		AssetID:          uuid.New().String(),
		Identifier:       result.PublicID,
		Kind:             actualKind,
		Format:           result.Format,
		DeliveryURL:      result.SecureURL,
		SizeBytes:        result.Bytes,
		OriginalFilename: p.Filename,
		Version:          formatVersion(result.Version),
		VersionID:        result.VersionID,
		Status:           model.StatusActive,
		UploadedBy:       p.UploadedBy,
		UploadedAt:       parseUploadedAt(result.CreatedAt),
	}

	if result.Width > 0 {
		record.Width = &result.Width
	}
	if result.Height > 0 {
		record.Height = &result.Height
	}
	if result.Duration > 0 {
		record.Duration = &result.Duration
	}
	if result.Pages > 0 {
		record.PageCount = &result.Pages
	}

	return record
}

// rollbackRemote удаляет ресурс из удалённого хранилища после сбоя регистрации.
// Best-effort: ошибка отката только логируется.
func (us *UploadService) rollbackRemote(ctx context.Context, record *model.AssetRecord) {
	if err := us.client.Destroy(ctx, lookupResourceType(record.Kind), record.Identifier); err != nil {
		us.logger.Error("Ошибка отката загрузки: ресурс остался в хранилище без записи в реестре",
			slog.String("identifier", record.Identifier),
			slog.String("error", err.Error()),
		)
		return
	}
	us.logger.Warn("Загрузка откачена: ресурс удалён из хранилища",
		slog.String("identifier", record.Identifier),
	)
}

// sanitizeFolder нормализует подпапку запроса: каждый сегмент пути
// проходит санитизацию, пустые сегменты отбрасываются.
func sanitizeFolder(folder string) string {
	parts := strings.Split(folder, "/")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := media.SanitizeIdentifier(part); s != "" {
			clean = append(clean, s)
		}
	}
	return strings.Join(clean, "/")
}

// formatVersion преобразует числовую версию хранилища в строковый токен.
func formatVersion(v int64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// parseUploadedAt разбирает время загрузки из ответа хранилища (RFC3339).
// При ошибке разбора используется текущее время.
func parseUploadedAt(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
