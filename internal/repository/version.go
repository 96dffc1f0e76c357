package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// VersionRepository — интерфейс доступа к истории версий ресурса.
// Таблица asset_versions append-only: записи не обновляются и не удаляются.
type VersionRepository interface {
	// Insert добавляет запись о версии ресурса.
	Insert(ctx context.Context, v *model.AssetVersion) error
	// ListByAssetID возвращает историю версий ресурса (новые первыми).
	ListByAssetID(ctx context.Context, assetID string) ([]*model.AssetVersion, error)
}

// versionRepo — реализация VersionRepository через pgx.
type versionRepo struct {
	db DBTX
}

// NewVersionRepository создаёт репозиторий истории версий.
func NewVersionRepository(db DBTX) VersionRepository {
	return &versionRepo{db: db}
}

func (r *versionRepo) Insert(ctx context.Context, v *model.AssetVersion) error {
	query := `
		INSERT INTO asset_versions (asset_id, version, version_id, delivery_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		v.AssetID, v.Version, v.VersionID, v.DeliveryURL,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи версии ресурса: %w", err)
	}
	return nil
}

func (r *versionRepo) ListByAssetID(ctx context.Context, assetID string) ([]*model.AssetVersion, error) {
	query := `
		SELECT id, asset_id, version, version_id, delivery_url, created_at
		FROM asset_versions
		WHERE asset_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки версий ресурса: %w", err)
	}
	defer rows.Close()

	var result []*model.AssetVersion
	for rows.Next() {
		v := &model.AssetVersion{}
		if err := rows.Scan(&v.ID, &v.AssetID, &v.Version, &v.VersionID, &v.DeliveryURL, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования версии: %w", err)
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации версий: %w", err)
	}

	return result, nil
}
