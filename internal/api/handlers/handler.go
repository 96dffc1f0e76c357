// handler.go — основной обработчик API Media Module.
// Объединяет health, management и публичные обработчики.
// Маршруты chi регистрируются вручную через RegisterRoutes.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/mediastore/internal/service"
)

// APIHandler — основной обработчик API Media Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	health         *HealthHandler
	uploadService  *service.UploadService
	assetService   *service.AssetService
	resolveService *service.ResolveService
	maxFileSize    int64
	logger         *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// maxFileSize — лимит размера файла (MM_MAX_FILE_SIZE), используется
// для ограничения тела multipart-запроса.
func NewAPIHandler(
	health *HealthHandler,
	uploadService *service.UploadService,
	assetService *service.AssetService,
	resolveService *service.ResolveService,
	maxFileSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:         health,
		uploadService:  uploadService,
		assetService:   assetService,
		resolveService: resolveService,
		maxFileSize:    maxFileSize,
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// RegisterRoutes регистрирует все маршруты Media Module.
// Защита management API настраивается на уровне server
// (JWT middleware с исключениями для public путей).
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	// Health и метрики
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	// Публичная отдача ресурсов (без аутентификации)
	r.Get("/static/*", h.handleResolveAsset)

	// Management API
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/assets", h.handleUploadAsset)
		r.Get("/assets", h.handleListAssets)
		r.Get("/assets/{assetID}", h.handleGetAsset)
		r.Delete("/assets/{assetID}", h.handleDeleteAsset)
		r.Get("/assets/{assetID}/versions", h.handleAssetVersions)
		r.Get("/assets/{assetID}/url", h.handleAssetURL)
	})
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// paginationDefaults нормализует параметры пагинации из строки запроса.
// Возвращает корректные limit и offset.
func paginationDefaults(limitStr, offsetStr string) (limit, offset int) {
	limit = 100
	offset = 0

	if limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			limit = v
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 1000 {
		limit = 1000
	}

	if offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v >= 0 {
			offset = v
		}
	}

	return limit, offset
}

// parseBoolFlag интерпретирует query-параметр как флаг.
// Пустая строка, "0", "false" и "no" — false, остальное — true.
func parseBoolFlag(value string) bool {
	switch value {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}
