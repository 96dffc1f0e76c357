// assets.go — management-обработчики /api/v1/assets.
// Метаданные, выборка с фильтрами, история версий, delivery-URL,
// идемпотентное удаление. Доменные модели конвертируются в API-типы
// на границе (model не имеет json-тегов).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/domain/media"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// assetResponse — представление AssetRecord в API.
type assetResponse struct {
	AssetID          string    `json:"asset_id"`
	Identifier       string    `json:"identifier"`
	Kind             string    `json:"kind"`
	Format           string    `json:"format,omitempty"`
	DeliveryURL      string    `json:"delivery_url"`
	SizeBytes        int64     `json:"size_bytes"`
	OriginalFilename string    `json:"original_filename"`
	Width            *int      `json:"width,omitempty"`
	Height           *int      `json:"height,omitempty"`
	Duration         *float64  `json:"duration,omitempty"`
	PageCount        *int      `json:"page_count,omitempty"`
	Version          string    `json:"version,omitempty"`
	VersionID        string    `json:"version_id,omitempty"`
	Status           string    `json:"status"`
	UploadedBy       string    `json:"uploaded_by,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// versionResponse — представление AssetVersion в API.
type versionResponse struct {
	ID          int64     `json:"id"`
	Version     string    `json:"version,omitempty"`
	VersionID   string    `json:"version_id,omitempty"`
	DeliveryURL string    `json:"delivery_url"`
	CreatedAt   time.Time `json:"created_at"`
}

// listResponse — ответ выборки с пагинацией.
type listResponse struct {
	Items   []assetResponse `json:"items"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// urlResponse — ответ построения delivery-URL.
type urlResponse struct {
	URL string `json:"url"`
}

// assetToResponse конвертирует доменную модель в API-тип.
func assetToResponse(r *model.AssetRecord) assetResponse {
	return assetResponse{
		AssetID:          r.AssetID,
		Identifier:       r.Identifier,
		Kind:             string(r.Kind),
		Format:           r.Format,
		DeliveryURL:      r.DeliveryURL,
		SizeBytes:        r.SizeBytes,
		OriginalFilename: r.OriginalFilename,
		Width:            r.Width,
		Height:           r.Height,
		Duration:         r.Duration,
		PageCount:        r.PageCount,
		Version:          r.Version,
		VersionID:        r.VersionID,
		Status:           r.Status,
		UploadedBy:       r.UploadedBy,
		UploadedAt:       r.UploadedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// assetIDFromURL извлекает и валидирует UUID ресурса из пути запроса.
// Возвращает пустую строку, если UUID некорректен (ответ уже записан).
func assetIDFromURL(w http.ResponseWriter, r *http.Request) string {
	assetID := chi.URLParam(r, "assetID")
	if _, err := uuid.Parse(assetID); err != nil {
		apierrors.ValidationError(w, "Некорректный UUID ресурса")
		return ""
	}
	return assetID
}

// handleGetAsset — реализация GET /api/v1/assets/{assetID}.
func (h *APIHandler) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	assetID := assetIDFromURL(w, r)
	if assetID == "" {
		return
	}

	record, err := h.assetService.Get(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Ресурс не найден")
			return
		}
		h.logger.Error("Ошибка получения метаданных ресурса",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении метаданных ресурса")
		return
	}

	writeJSON(w, http.StatusOK, assetToResponse(record))
}

// handleListAssets — реализация GET /api/v1/assets.
// Фильтры: q, folder, kind, format, status, uploaded_by, min_size,
// max_size, uploaded_after, uploaded_before, mode, sort_by, sort_order.
// Пагинация: limit (1..1000, по умолчанию 100), offset.
func (h *APIHandler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	params, err := buildListParams(r)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	result, err := h.assetService.List(r.Context(), params)
	if err != nil {
		h.logger.Error("Ошибка выборки ресурсов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при выборке ресурсов")
		return
	}

	items := make([]assetResponse, 0, len(result.Items))
	for _, record := range result.Items {
		items = append(items, assetToResponse(record))
	}

	writeJSON(w, http.StatusOK, listResponse{
		Items:   items,
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
		HasMore: result.HasMore,
	})
}

// buildListParams строит ListParams из строки запроса с валидацией.
func buildListParams(r *http.Request) (repository.ListParams, error) {
	q := r.URL.Query()

	params := repository.ListParams{
		Mode:      q.Get("mode"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	params.Limit, params.Offset = paginationDefaults(q.Get("limit"), q.Get("offset"))

	if v := q.Get("q"); v != "" {
		params.Query = &v
	}
	if v := q.Get("folder"); v != "" {
		params.Folder = &v
	}
	if v := q.Get("kind"); v != "" {
		if _, err := media.ParseKind(v); err != nil {
			return params, err
		}
		params.Kind = &v
	}
	if v := q.Get("format"); v != "" {
		params.Format = &v
	}
	if v := q.Get("uploaded_by"); v != "" {
		params.UploadedBy = &v
	}

	// По умолчанию — только active ресурсы; status=all отключает фильтр
	status := q.Get("status")
	switch status {
	case "":
		active := model.StatusActive
		params.Status = &active
	case "all":
		// без фильтра
	default:
		params.Status = &status
	}

	if v := q.Get("min_size"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size < 0 {
			return params, errors.New("min_size должен быть неотрицательным числом")
		}
		params.MinSize = &size
	}
	if v := q.Get("max_size"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size < 0 {
			return params, errors.New("max_size должен быть неотрицательным числом")
		}
		params.MaxSize = &size
	}
	if params.MinSize != nil && params.MaxSize != nil && *params.MinSize > *params.MaxSize {
		return params, errors.New("min_size не может быть больше max_size")
	}

	if v := q.Get("uploaded_after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, errors.New("uploaded_after должен быть в формате RFC3339")
		}
		params.UploadedAfter = &t
	}
	if v := q.Get("uploaded_before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return params, errors.New("uploaded_before должен быть в формате RFC3339")
		}
		params.UploadedBefore = &t
	}
	if params.UploadedAfter != nil && params.UploadedBefore != nil &&
		params.UploadedAfter.After(*params.UploadedBefore) {
		return params, errors.New("uploaded_after не может быть позже uploaded_before")
	}

	return params, nil
}

// handleDeleteAsset — реализация DELETE /api/v1/assets/{assetID}.
// Идемпотентное best-effort удаление: повторное удаление — тоже 204.
func (h *APIHandler) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID := assetIDFromURL(w, r)
	if assetID == "" {
		return
	}

	if err := h.assetService.Delete(r.Context(), assetID); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Ресурс не найден")
			return
		}
		h.logger.Error("Ошибка удаления ресурса",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при удалении ресурса")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAssetVersions — реализация GET /api/v1/assets/{assetID}/versions.
func (h *APIHandler) handleAssetVersions(w http.ResponseWriter, r *http.Request) {
	assetID := assetIDFromURL(w, r)
	if assetID == "" {
		return
	}

	versions, err := h.assetService.Versions(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Ресурс не найден")
			return
		}
		h.logger.Error("Ошибка получения истории версий",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении истории версий")
		return
	}

	items := make([]versionResponse, 0, len(versions))
	for _, v := range versions {
		items = append(items, versionResponse{
			ID:          v.ID,
			Version:     v.Version,
			VersionID:   v.VersionID,
			DeliveryURL: v.DeliveryURL,
			CreatedAt:   v.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// handleAssetURL — реализация GET /api/v1/assets/{assetID}/url.
// Query: version (токен), format (целевой формат доставки),
// thumbnail (флаг превью страницы), page (номер страницы).
func (h *APIHandler) handleAssetURL(w http.ResponseWriter, r *http.Request) {
	assetID := assetIDFromURL(w, r)
	if assetID == "" {
		return
	}

	q := r.URL.Query()
	opts := media.URLOptions{
		Version:            q.Get("version"),
		TargetFormat:       q.Get("format"),
		PaginatedThumbnail: parseBoolFlag(q.Get("thumbnail")),
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			apierrors.ValidationError(w, "page должен быть целым числом >= 1")
			return
		}
		opts.PageNumber = page
	}

	u, err := h.assetService.BuildURL(r.Context(), assetID, opts)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Ресурс не найден")
			return
		}
		h.logger.Error("Ошибка построения delivery-URL",
			slog.String("asset_id", assetID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при построении delivery-URL")
		return
	}

	writeJSON(w, http.StatusOK, urlResponse{URL: u})
}
