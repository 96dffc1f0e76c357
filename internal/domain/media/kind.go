// Пакет media — доменная логика медиахранилища:
//   - классификация ресурсов по расширению файла (Kind)
//   - санитизация строк в безопасные фрагменты идентификаторов
//   - генерация публичных идентификаторов (ключей удалённого хранилища)
//   - построение delivery-URL в грамматике путей Cloudinary
//
// Все функции пакета чистые: без I/O, без разделяемого состояния.
package media

import (
	"fmt"
	"path"
	"strings"
)

// Kind — тип ресурса в удалённом хранилище.
// Определяет сегмент пути в delivery-URL и набор применимых трансформаций.
type Kind string

const (
	// KindImage — изображения (конвейер обработки картинок)
	KindImage Kind = "image"
	// KindVideo — видео и аудио (общий видеоконвейер Cloudinary)
	KindVideo Kind = "video"
	// KindRaw — документы и архивы, отдаются как есть
	KindRaw Kind = "raw"
	// KindAuto — тип определяет само хранилище (catch-all)
	KindAuto Kind = "auto"
)

// imageExtensions — расширения, классифицируемые как image.
var imageExtensions = map[string]bool{
	"avif": true, "bmp": true, "gif": true, "heic": true, "heif": true,
	"ico": true, "jfif": true, "jpe": true, "jpeg": true, "jpg": true,
	"png": true, "svg": true, "tif": true, "tiff": true, "webp": true,
}

// videoExtensions — расширения, классифицируемые как video.
// Аудиоконтейнеры включены: Cloudinary обслуживает их видеоконвейером.
var videoExtensions = map[string]bool{
	"3g2": true, "3gp": true, "avi": true, "flv": true, "m2ts": true,
	"m4v": true, "mkv": true, "mov": true, "mp4": true, "mpeg": true,
	"mpg": true, "mts": true, "ogv": true, "webm": true, "wmv": true,
	// аудио
	"aac": true, "aiff": true, "flac": true, "m4a": true, "mp3": true,
	"ogg": true, "wav": true,
}

// rawExtensions — расширения документов и архивов, классифицируемые как raw.
var rawExtensions = map[string]bool{
	"7z": true, "csv": true, "doc": true, "docx": true, "epub": true,
	"gz": true, "json": true, "md": true, "odp": true, "ods": true,
	"odt": true, "pdf": true, "ppt": true, "pptx": true, "psd": true,
	"rar": true, "rtf": true, "tar": true, "txt": true, "xls": true,
	"xlsx": true, "xml": true, "zip": true,
}

// KindForExtension классифицирует расширение файла.
// Сравнение без учёта регистра, ведущая точка допустима.
// Тотальная функция: неизвестное (в том числе пустое) расширение — KindAuto.
func KindForExtension(ext string) Kind {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	switch {
	case imageExtensions[ext]:
		return KindImage
	case videoExtensions[ext]:
		return KindVideo
	case rawExtensions[ext]:
		return KindRaw
	default:
		return KindAuto
	}
}

// KindForFilename классифицирует файл по расширению его имени.
func KindForFilename(filename string) Kind {
	return KindForExtension(path.Ext(filename))
}

// ParseKind преобразует строку в Kind.
// Возвращает ошибку для недопустимых значений.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindImage, KindVideo, KindRaw, KindAuto:
		return k, nil
	default:
		return "", fmt.Errorf("недопустимый тип ресурса: %q, допустимые: image, video, raw, auto", s)
	}
}
