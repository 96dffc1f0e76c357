// identifier.go — генерация публичного идентификатора (ключа удалённого
// хранилища) из имени файла, папки и параметров загрузки.
//
// Три стратегии, разрешаются один раз на вызов, первая подошедшая:
//   - custom   — пользовательская функция полностью определяет ключ
//   - disabled — санитизированное имя без токена уникальности и расширения
//   - default  — комбинация флагов UseFilename/UniqueFilename/KeepRawExtension
package media

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// GeneratorFunc — пользовательская функция генерации идентификатора.
// Получает исходное имя файла, префикс пути папки (path.Dir) и её
// последний сегмент (path.Base). Результат используется дословно.
type GeneratorFunc func(filename, prefix, folder string) string

// UploadOptions — параметры генерации идентификатора при загрузке.
type UploadOptions struct {
	// Enabled — выполняется ли генерация вообще; при false имя файла
	// санитизируется без токена уникальности и без расширения
	Enabled bool
	// UseFilename — участвует ли исходное имя файла в идентификаторе;
	// при false основой служит литерал "media"
	UseFilename bool
	// UniqueFilename — добавляется ли токен уникальности "_<millis>"
	UniqueFilename bool
	// KeepRawExtension — сохранять ли исходное расширение (дословно,
	// с регистром) для ресурсов типа raw
	KeepRawExtension bool
	// CustomGenerator — полный override; если функция задана, все
	// остальные поля игнорируются
	CustomGenerator GeneratorFunc
}

// DefaultUploadOptions возвращает параметры по умолчанию:
// генерация включена, имя файла используется, токен уникальности
// добавляется, расширение не сохраняется.
func DefaultUploadOptions() UploadOptions {
	return UploadOptions{
		Enabled:        true,
		UseFilename:    true,
		UniqueFilename: true,
	}
}

// strategy — выбранная стратегия генерации.
type strategy int

const (
	strategyCustom strategy = iota
	strategyDisabled
	strategyDefault
)

// resolveStrategy разрешает стратегию по приоритету:
// custom → disabled → default.
func (o UploadOptions) resolveStrategy() strategy {
	switch {
	case o.CustomGenerator != nil:
		return strategyCustom
	case !o.Enabled:
		return strategyDisabled
	default:
		return strategyDefault
	}
}

// timeNow — источник времени для токена уникальности.
// Подменяется в тестах.
var timeNow = time.Now

// GenerateIdentifier строит публичный идентификатор для загружаемого файла.
//
// Токен уникальности — миллисекунды wall-clock: две загрузки одноимённых
// файлов в одну миллисекунду дадут одинаковый ключ. Известное ограничение,
// не гарантия уникальности.
func GenerateIdentifier(filename, folder string, kind Kind, opts UploadOptions) string {
	switch opts.resolveStrategy() {
	case strategyCustom:
		return opts.CustomGenerator(filename, path.Dir(folder), path.Base(folder))

	case strategyDisabled:
		return JoinIdentifier(folder, SanitizeIdentifier(stripExtension(filename)))

	default:
		stem := "media"
		if opts.UseFilename {
			stem = SanitizeIdentifier(stripExtension(filename))
		}
		if opts.UniqueFilename {
			stem += "_" + strconv.FormatInt(timeNow().UnixMilli(), 10)
		}
		// Расширение сохраняется только для raw: такие форматы отдаются
		// по точному совпадению ключа с расширением, а не через
		// трансформацию формата.
		if opts.KeepRawExtension && kind == KindRaw {
			stem += path.Ext(filename)
		}
		return JoinIdentifier(folder, stem)
	}
}

// JoinIdentifier соединяет путь папки и имя через "/".
// Пустые части пропускаются, двойные слэши не возникают.
func JoinIdentifier(folder, name string) string {
	folder = strings.Trim(folder, "/")
	switch {
	case folder == "":
		return name
	case name == "":
		return folder
	default:
		return folder + "/" + name
	}
}

// stripExtension отбрасывает последнее расширение имени файла.
// "archive.tar.gz" → "archive.tar", "noext" → "noext".
func stripExtension(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}
