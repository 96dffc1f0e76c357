// resolve.go — сервис разрешения и отдачи публичных медиаресурсов.
// Конечный автомат: попытка с расширением → попытка без расширения →
// скачивание и отдача. Терминалы: не найдено (404, пустое тело),
// внутренняя ошибка (500, пустое тело).
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/mediastore/internal/cloudinary"
	"github.com/bigkaa/mediastore/internal/domain/media"
)

// Prometheus-метрики разрешения ресурсов.
var (
	resolvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_resolves_total",
		Help: "Общее количество запросов на разрешение ресурса (по статусу).",
	}, []string{"status"})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_resolve_duration_seconds",
		Help:    "Длительность разрешения и отдачи ресурса.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	resolveBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_resolve_bytes_total",
		Help: "Общее количество переданных байт при отдаче ресурсов.",
	})

	activeResolves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_active_resolves",
		Help: "Количество активных (in-progress) запросов на отдачу ресурсов.",
	})

	staleLookupEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_stale_lookup_evictions_total",
		Help: "Количество инвалидированных записей кэша (ресурс исчез из хранилища).",
	})
)

// resolveState — состояние конечного автомата разрешения ресурса.
type resolveState int

const (
	// stateAttemptWithExtension — поиск по идентификатору с сохранённым расширением
	stateAttemptWithExtension resolveState = iota
	// stateAttemptWithoutExtension — поиск по идентификатору с отброшенным расширением
	stateAttemptWithoutExtension
	// stateFetchAndServe — скачивание найденного ресурса и отдача клиенту
	stateFetchAndServe
	// stateNotFound — терминал: ресурс не найден
	stateNotFound
	// stateInternalError — терминал: внутренняя ошибка
	stateInternalError
)

// ResolveRequest — параметры запроса на разрешение ресурса.
type ResolveRequest struct {
	// Filename — путь запроса после /static/ (может содержать '/')
	Filename string
	// Thumbnail — запрошена постраничная миниатюра документа
	Thumbnail bool
	// Page — номер страницы миниатюры (по умолчанию 1)
	Page int
	// IfNoneMatch — значение заголовка If-None-Match от клиента
	IfNoneMatch string
}

// ResolveService — сервис разрешения публичных идентификаторов
// и проксирования ресурсов из удалённого хранилища.
type ResolveService struct {
	client       *cloudinary.Client
	cache        *CacheService
	uploadFolder string
	logger       *slog.Logger
}

// NewResolveService создаёт сервис разрешения ресурсов.
// uploadFolder — корневая папка публичных идентификаторов (MM_UPLOAD_FOLDER).
func NewResolveService(
	client *cloudinary.Client,
	cache *CacheService,
	uploadFolder string,
	logger *slog.Logger,
) *ResolveService {
	return &ResolveService{
		client:       client,
		cache:        cache,
		uploadFolder: uploadFolder,
		logger:       logger.With(slog.String("component", "resolve_service")),
	}
}

// Serve разрешает запрошенное имя файла в ресурс удалённого хранилища
// и записывает ответ клиенту. Ответ формируется целиком внутри сервиса:
// терминальные состояния автомата — это HTTP-ответы.
//
// Автомат:
//  1. Попытка с расширением: join(uploadFolder, filename)
//  2. Попытка без расширения: то же с отброшенным расширением
//  3. Скачивание и отдача (с перезаписью URL для миниатюр документов)
//
// Повторная попытка начинается только после определённого отсутствия
// ресурса на первой. Любая неожиданная ошибка — терминал 500.
func (rs *ResolveService) Serve(ctx context.Context, w http.ResponseWriter, req ResolveRequest) {
	start := time.Now()
	activeResolves.Inc()
	defer activeResolves.Dec()

	filename := strings.Trim(req.Filename, "/")

	// Пустое имя и сегменты ".." не разрешаются (защита пути Admin API)
	if filename == "" || containsDotDot(filename) {
		rs.terminateNotFound(w)
		return
	}

	// Тип классифицируется по расширению запроса и не меняется между попытками
	kind := media.KindForFilename(filename)

	state := stateAttemptWithExtension
	var resolved *ResolvedAsset

	for {
		switch state {
		case stateAttemptWithExtension:
			candidate := media.JoinIdentifier(rs.uploadFolder, filename)
			resolved, state = rs.attempt(ctx, candidate, kind, stateAttemptWithoutExtension)

		case stateAttemptWithoutExtension:
			stripped := strings.TrimSuffix(filename, path.Ext(filename))
			if stripped == filename || stripped == "" {
				// Расширения не было — вторая попытка не отличается от первой
				state = stateNotFound
				continue
			}
			candidate := media.JoinIdentifier(rs.uploadFolder, stripped)
			resolved, state = rs.attempt(ctx, candidate, kind, stateNotFound)

		case stateFetchAndServe:
			rs.fetchAndServe(ctx, w, req, resolved, start)
			return

		case stateNotFound:
			rs.terminateNotFound(w)
			return

		case stateInternalError:
			rs.terminateInternalError(w)
			return
		}
	}
}

// attempt выполняет одну попытку разрешения кандидата.
// Возвращает найденный ресурс и следующее состояние автомата.
// onMiss — состояние при определённом отсутствии ресурса.
func (rs *ResolveService) attempt(
	ctx context.Context,
	candidate string,
	kind media.Kind,
	onMiss resolveState,
) (*ResolvedAsset, resolveState) {
	// Кэш разрешённых идентификаторов
	if res, ok := rs.cache.Get(candidate); ok {
		return res, stateFetchAndServe
	}

	info, err := rs.client.GetResource(ctx, lookupResourceType(kind), candidate)
	if err != nil {
		if errors.Is(err, cloudinary.ErrNotFound) {
			return nil, onMiss
		}
		rs.logger.Error("Ошибка обращения к Admin API при разрешении",
			slog.String("identifier", candidate),
			slog.String("error", err.Error()),
		)
		return nil, stateInternalError
	}

	res := &ResolvedAsset{
		Identifier:  candidate,
		Kind:        kind,
		Format:      info.Format,
		DeliveryURL: info.SecureURL,
	}
	rs.cache.Set(candidate, res)

	rs.logger.Debug("Идентификатор разрешён",
		slog.String("identifier", candidate),
		slog.String("kind", string(kind)),
	)

	return res, stateFetchAndServe
}

// fetchAndServe скачивает разрешённый ресурс и отдаёт его клиенту.
//
// Контракт ответа:
//   - не-2xx от delivery-хоста → 404, пустое тело (плюс инвалидация кэша при 404)
//   - совпадение If-None-Match с ETag → 304, только заголовок ETag
//   - иначе 200 с телом, Content-Type, Content-Length,
//     Cache-Control: public, max-age=31536000 и ETag
func (rs *ResolveService) fetchAndServe(
	ctx context.Context,
	w http.ResponseWriter,
	req ResolveRequest,
	resolved *ResolvedAsset,
	start time.Time,
) {
	fetchURL := resolved.DeliveryURL

	// Постраничная миниатюра: вставка трансформации в delivery-URL.
	// Применяется только к документам (raw).
	if req.Thumbnail && resolved.Kind == media.KindRaw {
		fetchURL = media.ThumbnailRewrite(fetchURL, req.Page)
	}

	resp, err := rs.client.FetchDelivery(ctx, fetchURL)
	if err != nil {
		rs.logger.Error("Ошибка скачивания ресурса с delivery-хоста",
			slog.String("identifier", resolved.Identifier),
			slog.String("url", fetchURL),
			slog.String("error", err.Error()),
		)
		rs.terminateInternalError(w)
		return
	}
	defer resp.Body.Close()

	// Не-2xx от delivery-хоста → 404 для клиента
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if resp.StatusCode == http.StatusNotFound {
			// Удалённый ресурс исчез — разрешённый кандидат устарел
			rs.cache.Delete(resolved.Identifier)
			staleLookupEvictionsTotal.Inc()
		}
		rs.logger.Warn("Delivery-хост вернул не-2xx",
			slog.String("identifier", resolved.Identifier),
			slog.Int("status", resp.StatusCode),
		)
		rs.terminateNotFound(w)
		return
	}

	// Условный запрос: совпадение ETag → 304 только с заголовком ETag
	etag := resp.Header.Get("ETag")
	if etag != "" && req.IfNoneMatch == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		resolvesTotal.WithLabelValues("not_modified").Inc()
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		w.Header().Set("Content-Length", cl)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		// Заголовки уже отправлены — только логируем
		rs.logger.Error("Ошибка streaming при отдаче ресурса",
			slog.String("identifier", resolved.Identifier),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		resolvesTotal.WithLabelValues("stream_error").Inc()
		return
	}

	duration := time.Since(start)
	resolvesTotal.WithLabelValues("success").Inc()
	resolveDuration.Observe(duration.Seconds())
	resolveBytesTotal.Add(float64(written))

	rs.logger.Debug("Ресурс отдан",
		slog.String("identifier", resolved.Identifier),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)
}

// terminateNotFound — терминал "не найдено": 404 с пустым телом.
func (rs *ResolveService) terminateNotFound(w http.ResponseWriter) {
	resolvesTotal.WithLabelValues("not_found").Inc()
	w.WriteHeader(http.StatusNotFound)
}

// terminateInternalError — терминал "внутренняя ошибка": 500 с пустым телом.
func (rs *ResolveService) terminateInternalError(w http.ResponseWriter) {
	resolvesTotal.WithLabelValues("error").Inc()
	w.WriteHeader(http.StatusInternalServerError)
}

// lookupResourceType отображает Kind на тип ресурса Admin API.
// У Admin API нет типа auto: неизвестное расширение, загруженное через
// auto endpoint, хранится в Cloudinary как raw.
func lookupResourceType(kind media.Kind) string {
	if kind == media.KindAuto {
		return string(media.KindRaw)
	}
	return string(kind)
}

// containsDotDot проверяет наличие сегмента ".." в пути запроса.
func containsDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
