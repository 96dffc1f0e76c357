// upload.go — обработчик загрузки POST /api/v1/assets.
// Принимает multipart/form-data: поле file (обязательное) и
// поле folder (опциональная подпапка внутри корневой папки).
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/mediastore/internal/api/errors"
	"github.com/bigkaa/mediastore/internal/api/middleware"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/service"
)

// handleUploadAsset — реализация POST /api/v1/assets.
func (h *APIHandler) handleUploadAsset(w http.ResponseWriter, r *http.Request) {
	// Запас поверх лимита файла — на multipart-границы и прочие поля формы.
	// Точный контроль размера файла выполняет сервис по multipart-заголовку.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, "Размер запроса превышает допустимый лимит")
			return
		}
		apierrors.ValidationError(w, "Поле file обязательно (multipart/form-data)")
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			h.logger.Warn("Ошибка закрытия multipart-файла",
				slog.String("error", err.Error()),
			)
		}
	}()

	record, err := h.uploadService.Upload(r.Context(), file, service.UploadParams{
		Filename:   header.Filename,
		Size:       header.Size,
		Folder:     r.FormValue("folder"),
		UploadedBy: middleware.SubjectFromContext(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyFilename), errors.Is(err, service.ErrEmptyFile):
			apierrors.ValidationError(w, err.Error())
		case errors.Is(err, service.ErrFileTooLarge):
			apierrors.FileTooLarge(w, "Размер файла превышает допустимый лимит")
		case errors.Is(err, service.ErrUploadFailed):
			apierrors.UploadFailed(w, "Ошибка загрузки в удалённое хранилище")
		case errors.Is(err, repository.ErrConflict):
			apierrors.Conflict(w, "Ресурс с таким идентификатором уже существует")
		default:
			h.logger.Error("Ошибка загрузки ресурса",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Внутренняя ошибка при загрузке ресурса")
		}
		return
	}

	writeJSON(w, http.StatusCreated, assetToResponse(record))
}
