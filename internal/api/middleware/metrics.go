// metrics.go — Prometheus HTTP метрики для Media Module.
// Регистрирует метрики: mm_http_requests_total, mm_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности:
// публичные пути /static/<имя файла> содержат произвольные имена.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Media Module
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Media Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Media Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (имена файлов и UUID заменяются на плейсхолдеры)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет изменчивые сегменты пути на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик.
// /static/docs/report.pdf → /static/{filename}
// /api/v1/assets/a1b2c3d4-... → /api/v1/assets/{id}
// /api/v1/assets/a1b2c3d4-.../versions → /api/v1/assets/{id}/versions
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/assets":
		return path
	}

	// Публичная отдача: имя файла произвольное, схлопываем целиком
	if strings.HasPrefix(path, "/static/") {
		return "/static/{filename}"
	}

	// Динамические пути с UUID
	const assetsPrefix = "/api/v1/assets/"
	if len(path) > len(assetsPrefix) && path[:len(assetsPrefix)] == assetsPrefix {
		// Проверяем суффиксы после UUID (36 символов)
		suffix := ""
		if len(path) > len(assetsPrefix)+36 {
			suffix = path[len(assetsPrefix)+36:]
		}
		switch suffix {
		case "/versions":
			return "/api/v1/assets/{id}/versions"
		case "/url":
			return "/api/v1/assets/{id}/url"
		default:
			return "/api/v1/assets/{id}"
		}
	}

	return path
}
