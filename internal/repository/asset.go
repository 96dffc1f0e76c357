package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/mediastore/internal/domain/model"
)

// assetColumns — список столбцов таблицы assets для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const assetColumns = `asset_id, identifier, kind, format, delivery_url, size_bytes,
	original_filename, width, height, duration, page_count,
	version, version_id, status, uploaded_by, uploaded_at, created_at, updated_at`

// ListParams — параметры выборки медиаресурсов.
// Поля-указатели: nil = фильтр не применяется.
type ListParams struct {
	// Query — поисковый запрос по исходному имени файла (exact или partial match)
	Query *string
	// Folder — префикс публичного идентификатора (ресурсы внутри папки)
	Folder *string
	// Kind — фильтр по типу ресурса (image/video/raw/auto)
	Kind *string
	// Format — фильтр по формату файла (jpg, mp4, pdf, ...)
	Format *string
	// Status — фильтр по статусу (active/deleted)
	Status *string
	// UploadedBy — фильтр по загрузившему (exact match)
	UploadedBy *string
	// MinSize — минимальный размер файла (байт)
	MinSize *int64
	// MaxSize — максимальный размер файла (байт)
	MaxSize *int64
	// UploadedAfter — ресурсы, загруженные после указанной даты
	UploadedAfter *time.Time
	// UploadedBefore — ресурсы, загруженные до указанной даты
	UploadedBefore *time.Time
	// Mode — режим поиска по Query: "exact" или "partial" (по умолчанию)
	Mode string
	// SortBy — поле сортировки: uploaded_at, original_filename, size_bytes
	SortBy string
	// SortOrder — направление: asc, desc
	SortOrder string
	// Limit — количество результатов
	Limit int
	// Offset — смещение
	Offset int
}

// AssetRepository — интерфейс доступа к реестру медиаресурсов.
type AssetRepository interface {
	// Insert регистрирует загруженный ресурс в реестре.
	Insert(ctx context.Context, a *model.AssetRecord) error
	// GetByID возвращает ресурс по UUID.
	GetByID(ctx context.Context, assetID string) (*model.AssetRecord, error)
	// GetByIdentifier возвращает ресурс по публичному идентификатору.
	GetByIdentifier(ctx context.Context, identifier string) (*model.AssetRecord, error)
	// List возвращает выборку ресурсов по фильтрам.
	// Возвращает: список ресурсов, общее количество, ошибка.
	List(ctx context.Context, params ListParams) ([]*model.AssetRecord, int, error)
	// MarkDeleted обновляет статус ресурса на 'deleted' (soft delete).
	MarkDeleted(ctx context.Context, assetID string) error
}

// assetRepo — реализация AssetRepository через pgx.
type assetRepo struct {
	db DBTX
}

// NewAssetRepository создаёт репозиторий медиаресурсов.
func NewAssetRepository(db DBTX) AssetRepository {
	return &assetRepo{db: db}
}

// Insert регистрирует ресурс или возвращает ErrConflict при дублировании идентификатора.
func (r *assetRepo) Insert(ctx context.Context, a *model.AssetRecord) error {
	query := `
		INSERT INTO assets (asset_id, identifier, kind, format, delivery_url, size_bytes,
			original_filename, width, height, duration, page_count,
			version, version_id, status, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.AssetID, a.Identifier, a.Kind, a.Format, a.DeliveryURL, a.SizeBytes,
		a.OriginalFilename, a.Width, a.Height, a.Duration, a.PageCount,
		a.Version, a.VersionID, a.Status, a.UploadedBy, a.UploadedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ресурс с таким идентификатором уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка регистрации ресурса: %w", err)
	}
	return nil
}

// GetByID возвращает ресурс по UUID или ErrNotFound.
func (r *assetRepo) GetByID(ctx context.Context, assetID string) (*model.AssetRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE asset_id = $1`, assetColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, assetID))
}

// GetByIdentifier возвращает ресурс по публичному идентификатору или ErrNotFound.
// Идентификатор уникален (unique index), поэтому результат однозначен.
func (r *assetRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.AssetRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE identifier = $1`, assetColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, identifier))
}

// scanOne сканирует одну строку в AssetRecord.
func (r *assetRepo) scanOne(row pgx.Row) (*model.AssetRecord, error) {
	a := &model.AssetRecord{}
	err := row.Scan(
		&a.AssetID, &a.Identifier, &a.Kind, &a.Format, &a.DeliveryURL, &a.SizeBytes,
		&a.OriginalFilename, &a.Width, &a.Height, &a.Duration, &a.PageCount,
		&a.Version, &a.VersionID, &a.Status, &a.UploadedBy, &a.UploadedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ресурса: %w", err)
	}
	return a, nil
}

// List выполняет выборку ресурсов с динамическими фильтрами, сортировкой и пагинацией.
// Возвращает (результаты, общее количество, ошибка).
func (r *assetRepo) List(ctx context.Context, params ListParams) ([]*model.AssetRecord, int, error) {
	// Построение WHERE-условия
	where, args := buildListWhere(params, 1)
	argNum := len(args) + 1

	// Сортировка (безопасный whitelist)
	orderBy := buildOrderBy(params.SortBy, params.SortOrder)

	// Запрос данных с пагинацией
	dataQuery := fmt.Sprintf(
		`SELECT %s FROM assets %s %s LIMIT $%d OFFSET $%d`,
		assetColumns, where, orderBy, argNum, argNum+1,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки ресурсов: %w", err)
	}
	defer rows.Close()

	var result []*model.AssetRecord
	for rows.Next() {
		a := &model.AssetRecord{}
		if err := rows.Scan(
			&a.AssetID, &a.Identifier, &a.Kind, &a.Format, &a.DeliveryURL, &a.SizeBytes,
			&a.OriginalFilename, &a.Width, &a.Height, &a.Duration, &a.PageCount,
			&a.Version, &a.VersionID, &a.Status, &a.UploadedBy, &a.UploadedAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования ресурса: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	// Запрос общего количества (с теми же фильтрами, без LIMIT/OFFSET)
	countWhere, countArgs := buildListWhere(params, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM assets %s`, countWhere)

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта ресурсов: %w", err)
	}

	return result, total, nil
}

// MarkDeleted обновляет статус ресурса на 'deleted'.
// Повторный вызов для уже удалённого ресурса возвращает ErrNotFound.
func (r *assetRepo) MarkDeleted(ctx context.Context, assetID string) error {
	query := `
		UPDATE assets
		SET status = 'deleted', updated_at = now()
		WHERE asset_id = $1 AND status != 'deleted'`

	tag, err := r.db.Exec(ctx, query, assetID)
	if err != nil {
		return fmt.Errorf("ошибка пометки ресурса как удалённого: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// buildListWhere строит WHERE-условие и аргументы для выборки ресурсов.
// startArg — номер первого $-параметра (для корректной нумерации).
//
//nolint:cyclop // сложность обусловлена количеством фильтров
func buildListWhere(params ListParams, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Фильтр по query (поиск по исходному имени файла)
	if params.Query != nil && *params.Query != "" {
		if params.Mode == "exact" {
			// Exact: case-insensitive точное совпадение
			conditions = append(conditions, fmt.Sprintf("LOWER(original_filename) = LOWER($%d)", argNum))
			args = append(args, *params.Query)
		} else {
			// Partial (по умолчанию): ILIKE подстрока
			conditions = append(conditions, fmt.Sprintf("original_filename ILIKE $%d", argNum))
			args = append(args, "%"+*params.Query+"%")
		}
		argNum++
	}

	// Фильтр по папке (префикс идентификатора)
	if params.Folder != nil && *params.Folder != "" {
		conditions = append(conditions, fmt.Sprintf("identifier LIKE $%d", argNum))
		args = append(args, strings.Trim(*params.Folder, "/")+"/%")
		argNum++
	}

	// Фильтр по типу ресурса
	if params.Kind != nil && *params.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argNum))
		args = append(args, *params.Kind)
		argNum++
	}

	// Фильтр по формату файла
	if params.Format != nil && *params.Format != "" {
		conditions = append(conditions, fmt.Sprintf("format = $%d", argNum))
		args = append(args, *params.Format)
		argNum++
	}

	// Фильтр по статусу
	if params.Status != nil && *params.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *params.Status)
		argNum++
	}

	// Фильтр по загрузившему (exact match)
	if params.UploadedBy != nil && *params.UploadedBy != "" {
		conditions = append(conditions, fmt.Sprintf("uploaded_by = $%d", argNum))
		args = append(args, *params.UploadedBy)
		argNum++
	}

	// Фильтр по минимальному размеру
	if params.MinSize != nil {
		conditions = append(conditions, fmt.Sprintf("size_bytes >= $%d", argNum))
		args = append(args, *params.MinSize)
		argNum++
	}

	// Фильтр по максимальному размеру
	if params.MaxSize != nil {
		conditions = append(conditions, fmt.Sprintf("size_bytes <= $%d", argNum))
		args = append(args, *params.MaxSize)
		argNum++
	}

	// Фильтр по дате загрузки (после)
	if params.UploadedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_at >= $%d", argNum))
		args = append(args, *params.UploadedAfter)
		argNum++
	}

	// Фильтр по дате загрузки (до)
	if params.UploadedBefore != nil {
		conditions = append(conditions, fmt.Sprintf("uploaded_at <= $%d", argNum))
		args = append(args, *params.UploadedBefore)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// Поле сортировки по умолчанию.
const defaultSortColumn = "uploaded_at"

// buildOrderBy строит ORDER BY с безопасным whitelist полей.
// Предотвращает SQL-инъекции — только разрешённые значения.
func buildOrderBy(sortBy, sortOrder string) string {
	// Whitelist допустимых полей сортировки
	column := defaultSortColumn
	switch sortBy {
	case "original_filename":
		column = "original_filename"
	case "size_bytes":
		column = "size_bytes"
	case defaultSortColumn:
		column = defaultSortColumn
	}

	// Whitelist направлений сортировки
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}

	return fmt.Sprintf("ORDER BY %s %s", column, direction)
}
