// static.go — публичная отдача медиаресурсов GET /static/*.
// Разрешение идентификатора и проксирование выполняет ResolveService,
// обработчик только разбирает запрос. Терминальные ответы (200/304/404/500)
// сервис пишет сам.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/mediastore/internal/service"
)

// handleResolveAsset — реализация GET /static/{filename}.
// Query: thumbnail (флаг превью страницы документа), page (номер страницы).
func (h *APIHandler) handleResolveAsset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			page = parsed
		}
	}

	h.resolveService.Serve(r.Context(), w, service.ResolveRequest{
		Filename:    chi.URLParam(r, "*"),
		Thumbnail:   parseBoolFlag(q.Get("thumbnail")),
		Page:        page,
		IfNoneMatch: r.Header.Get("If-None-Match"),
	})
}
