// url.go — построение delivery-URL в грамматике путей Cloudinary.
//
// Форма URL:
//
//	https://<host>/<cloud>/<kind>/upload[/v<version>][/<transform-csv>]/<identifier>[.<ext>]
//
// transform-csv — список токенов key_value через запятую (pg_1,f_jpg,q_auto).
package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyIdentifier — идентификатор ресурса обязателен для построения URL.
// Отсутствие идентификатора в метаданных документа — ошибка вызывающей
// стороны, билдер её не компенсирует.
var ErrEmptyIdentifier = errors.New("пустой идентификатор ресурса")

// defaultTransformation — трансформация по умолчанию для image/video:
// автоматический выбор формата и качества. Ресурсы raw и auto отдаются
// без трансформаций.
const defaultTransformation = "f_auto,q_auto"

// URLBuilder — построитель delivery-URL для одного настроенного облака.
// Значение, не синглтон: несколько билдеров с разной конфигурацией
// могут сосуществовать в одном процессе.
type URLBuilder struct {
	// Host — хост доставки без схемы (res.cloudinary.com)
	Host string
	// CloudName — имя облака (тенанта) в пути URL
	CloudName string
	// UseVersioning — включать ли сегмент v<version> при наличии токена
	UseVersioning bool
}

// NewURLBuilder создаёт билдер, нормализуя хост (без схемы и слэшей).
func NewURLBuilder(host, cloudName string, useVersioning bool) URLBuilder {
	return URLBuilder{
		Host:          normalizeHost(host),
		CloudName:     cloudName,
		UseVersioning: useVersioning,
	}
}

// URLOptions — параметры построения delivery-URL.
type URLOptions struct {
	// Version — токен версии ресурса; сегмент v<Version> включается
	// только при UseVersioning и непустом токене
	Version string
	// TargetFormat — явный формат доставки, становится суффиксом .<ext>
	TargetFormat string
	// PaginatedThumbnail — запрос превью страницы документа
	PaginatedThumbnail bool
	// PageNumber — номер страницы для превью, по умолчанию 1
	PageNumber int
	// SourceFormat — исходное расширение документа; для превью суффиксом
	// служит именно оно (не целевой формат), чтобы хранилище извлекло
	// страницу из исходника до конвертации
	SourceFormat string
}

// Build строит delivery-URL для идентификатора и типа ресурса.
func (b URLBuilder) Build(identifier string, kind Kind, opts URLOptions) (string, error) {
	if identifier == "" {
		return "", ErrEmptyIdentifier
	}

	segments := make([]string, 0, 7)
	segments = append(segments, "https://"+normalizeHost(b.Host), b.CloudName, string(kind), "upload")

	if b.UseVersioning && opts.Version != "" {
		segments = append(segments, "v"+opts.Version)
	}

	if t := b.transformation(kind, opts); t != "" {
		segments = append(segments, t)
	}

	name := identifier
	if ext := suffixExtension(opts); ext != "" {
		name += "." + ext
	}
	segments = append(segments, name)

	return strings.Join(segments, "/"), nil
}

// transformation выбирает CSV трансформаций для запроса.
// Превью страницы вытесняет трансформацию по умолчанию.
func (b URLBuilder) transformation(kind Kind, opts URLOptions) string {
	if opts.PaginatedThumbnail {
		return thumbnailTransformation(opts.PageNumber)
	}
	if kind == KindImage || kind == KindVideo {
		return defaultTransformation
	}
	return ""
}

// suffixExtension выбирает расширение для суффикса идентификатора.
func suffixExtension(opts URLOptions) string {
	ext := opts.TargetFormat
	if opts.PaginatedThumbnail {
		ext = opts.SourceFormat
	}
	return strings.TrimPrefix(ext, ".")
}

// thumbnailTransformation — CSV извлечения страницы документа.
func thumbnailTransformation(page int) string {
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("pg_%d,f_jpg,q_auto", page)
}

// ThumbnailRewrite вставляет параметры извлечения страницы в уже
// разрешённый delivery-URL сразу после сегмента /upload/.
// URL без такого сегмента возвращается без изменений.
func ThumbnailRewrite(deliveryURL string, page int) string {
	const marker = "/upload/"

	idx := strings.Index(deliveryURL, marker)
	if idx < 0 {
		return deliveryURL
	}

	cut := idx + len(marker)
	return deliveryURL[:cut] + thumbnailTransformation(page) + "/" + deliveryURL[cut:]
}

// normalizeHost отбрасывает схему и слэши из хоста доставки.
func normalizeHost(host string) string {
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return strings.Trim(host, "/")
}
