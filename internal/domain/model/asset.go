// Пакет model — доменные модели Media Module.
// AssetRecord — маппинг таблицы assets, AssetVersion — таблицы asset_versions.
package model

import (
	"time"

	"github.com/bigkaa/mediastore/internal/domain/media"
)

// Статусы записи ресурса.
const (
	// StatusActive — ресурс существует в удалённом хранилище
	StatusActive = "active"
	// StatusDeleted — soft delete: локальная запись сохранена,
	// удалённый ресурс уничтожен (или уничтожение подтверждено как идемпотентное)
	StatusDeleted = "deleted"
)

// AssetRecord — запись ресурса в реестре assets.
// Метаданные создаются один раз при успешной загрузке и далее неизменны,
// кроме статуса (soft delete) и служебных таймстампов.
type AssetRecord struct {
	// AssetID — UUID записи
	AssetID string
	// Identifier — публичный идентификатор (ключ) в удалённом хранилище
	Identifier string
	// Kind — тип ресурса: image, video, raw, auto
	Kind media.Kind
	// Format — формат файла по данным хранилища (jpg, pdf, ...)
	Format string
	// DeliveryURL — канонический delivery-URL, возвращённый при загрузке
	DeliveryURL string
	// SizeBytes — размер файла в байтах
	SizeBytes int64
	// OriginalFilename — исходное имя загруженного файла
	OriginalFilename string
	// Width — ширина в пикселях (image/video)
	Width *int
	// Height — высота в пикселях (image/video)
	Height *int
	// Duration — длительность в секундах (video)
	Duration *float64
	// PageCount — число страниц (многостраничные документы)
	PageCount *int
	// Version — токен текущей версии ресурса
	Version string
	// VersionID — идентификатор версии в удалённом хранилище
	VersionID string
	// Status — статус записи: active, deleted
	Status string
	// UploadedBy — идентификатор загрузившего (sub из JWT)
	UploadedBy string
	// UploadedAt — время загрузки
	UploadedAt time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}

// AssetVersion — запись истории версий ресурса (append-only).
// Строки добавляются при загрузке и перезаписи, никогда не изменяются
// и не удаляются.
type AssetVersion struct {
	// ID — порядковый номер записи
	ID int64
	// AssetID — UUID ресурса-владельца
	AssetID string
	// Version — токен версии
	Version string
	// VersionID — идентификатор версии в удалённом хранилище
	VersionID string
	// DeliveryURL — delivery-URL этой версии
	DeliveryURL string
	// CreatedAt — время появления версии
	CreatedAt time.Time
}
