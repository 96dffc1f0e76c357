package repository

import (
	"strings"
	"testing"
)

// --- Тесты buildListWhere ---

// TestBuildListWhere_Empty проверяет пустые фильтры.
func TestBuildListWhere_Empty(t *testing.T) {
	params := ListParams{}
	where, args := buildListWhere(params, 1)

	if where != "" {
		t.Errorf("where = %q, ожидалась пустая строка", where)
	}
	if len(args) != 0 {
		t.Errorf("args count = %d, ожидался 0", len(args))
	}
}

// TestBuildListWhere_StatusOnly проверяет фильтрацию по статусу.
func TestBuildListWhere_StatusOnly(t *testing.T) {
	status := "active"
	params := ListParams{Status: &status}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "status = $1") {
		t.Errorf("where = %q, ожидалось содержание 'status = $1'", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
	if args[0] != "active" {
		t.Errorf("args[0] = %v, ожидался 'active'", args[0])
	}
}

// TestBuildListWhere_QueryPartial проверяет частичный поиск по имени файла.
func TestBuildListWhere_QueryPartial(t *testing.T) {
	query := "banner"
	params := ListParams{
		Query: &query,
		Mode:  "partial",
	}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "ILIKE") {
		t.Errorf("where = %q, ожидался ILIKE для partial mode", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
	// Должен быть обёрнут в %...%
	if args[0] != "%banner%" {
		t.Errorf("args[0] = %v, ожидался '%%banner%%'", args[0])
	}
}

// TestBuildListWhere_QueryExact проверяет точный поиск по имени файла.
func TestBuildListWhere_QueryExact(t *testing.T) {
	query := "Annual-Report.pdf"
	params := ListParams{
		Query: &query,
		Mode:  "exact",
	}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "LOWER(original_filename) = LOWER($1)") {
		t.Errorf("where = %q, ожидался LOWER exact match", where)
	}
	if args[0] != "Annual-Report.pdf" {
		t.Errorf("args[0] = %v, ожидался 'Annual-Report.pdf'", args[0])
	}
}

// TestBuildListWhere_Folder проверяет фильтрацию по префиксу идентификатора.
func TestBuildListWhere_Folder(t *testing.T) {
	folder := "cms/media"
	params := ListParams{Folder: &folder}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "identifier LIKE $1") {
		t.Errorf("where = %q, ожидался identifier LIKE $1", where)
	}
	if args[0] != "cms/media/%" {
		t.Errorf("args[0] = %v, ожидался 'cms/media/%%'", args[0])
	}
}

// TestBuildListWhere_FolderTrimsSlashes проверяет нормализацию префикса папки.
func TestBuildListWhere_FolderTrimsSlashes(t *testing.T) {
	folder := "/cms/media/"
	params := ListParams{Folder: &folder}
	_, args := buildListWhere(params, 1)

	if args[0] != "cms/media/%" {
		t.Errorf("args[0] = %v, ожидался 'cms/media/%%'", args[0])
	}
}

// TestBuildListWhere_Kind проверяет фильтрацию по типу ресурса.
func TestBuildListWhere_Kind(t *testing.T) {
	kind := "image"
	params := ListParams{Kind: &kind}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "kind = $1") {
		t.Errorf("where = %q, ожидался kind = $1", where)
	}
	if args[0] != "image" {
		t.Errorf("args[0] = %v, ожидался 'image'", args[0])
	}
}

// TestBuildListWhere_SizeRange проверяет фильтрацию по размеру.
func TestBuildListWhere_SizeRange(t *testing.T) {
	minSize := int64(1024)
	maxSize := int64(10485760)
	params := ListParams{
		MinSize: &minSize,
		MaxSize: &maxSize,
	}
	where, args := buildListWhere(params, 1)

	if !strings.Contains(where, "size_bytes >= $1") {
		t.Errorf("where = %q, ожидался size_bytes >= $1", where)
	}
	if !strings.Contains(where, "size_bytes <= $2") {
		t.Errorf("where = %q, ожидался size_bytes <= $2", where)
	}
	if len(args) != 2 {
		t.Errorf("args count = %d, ожидался 2", len(args))
	}
}

// TestBuildListWhere_MultipleFilters проверяет комбинацию фильтров.
func TestBuildListWhere_MultipleFilters(t *testing.T) {
	query := "report"
	kind := "raw"
	status := "active"
	params := ListParams{
		Query:  &query,
		Kind:   &kind,
		Status: &status,
		Mode:   "partial",
	}
	where, args := buildListWhere(params, 1)

	// Должно быть 3 условия, объединённых AND
	if strings.Count(where, "AND") != 2 {
		t.Errorf("where = %q, ожидалось 2 AND", where)
	}
	if len(args) != 3 {
		t.Errorf("args count = %d, ожидался 3", len(args))
	}
}

// TestBuildListWhere_StartArgOffset проверяет корректную нумерацию аргументов.
func TestBuildListWhere_StartArgOffset(t *testing.T) {
	status := "active"
	params := ListParams{Status: &status}

	// Начинаем с $5 (как если WHERE добавляется после других параметров)
	where, args := buildListWhere(params, 5)

	if !strings.Contains(where, "status = $5") {
		t.Errorf("where = %q, ожидался status = $5", where)
	}
	if len(args) != 1 {
		t.Errorf("args count = %d, ожидался 1", len(args))
	}
}

// --- Тесты buildOrderBy ---

// TestBuildOrderBy_Default проверяет сортировку по умолчанию.
func TestBuildOrderBy_Default(t *testing.T) {
	orderBy := buildOrderBy("", "")
	if orderBy != "ORDER BY uploaded_at DESC" {
		t.Errorf("orderBy = %q, ожидался 'ORDER BY uploaded_at DESC'", orderBy)
	}
}

// TestBuildOrderBy_ByFilename проверяет сортировку по имени файла.
func TestBuildOrderBy_ByFilename(t *testing.T) {
	orderBy := buildOrderBy("original_filename", "asc")
	if orderBy != "ORDER BY original_filename ASC" {
		t.Errorf("orderBy = %q, ожидался 'ORDER BY original_filename ASC'", orderBy)
	}
}

// TestBuildOrderBy_BySize проверяет сортировку по размеру.
func TestBuildOrderBy_BySize(t *testing.T) {
	orderBy := buildOrderBy("size_bytes", "desc")
	if orderBy != "ORDER BY size_bytes DESC" {
		t.Errorf("orderBy = %q, ожидался 'ORDER BY size_bytes DESC'", orderBy)
	}
}

// TestBuildOrderBy_InvalidField проверяет безопасность whitelist.
func TestBuildOrderBy_InvalidField(t *testing.T) {
	// SQL-инъекция через sort field — должен fallback на uploaded_at
	orderBy := buildOrderBy("'; DROP TABLE assets; --", "asc")
	if !strings.Contains(orderBy, "uploaded_at") {
		t.Errorf("orderBy = %q, ожидался fallback на uploaded_at", orderBy)
	}
}

// TestBuildOrderBy_InvalidDirection проверяет безопасность направления сортировки.
func TestBuildOrderBy_InvalidDirection(t *testing.T) {
	// SQL-инъекция через direction — должен fallback на DESC
	orderBy := buildOrderBy("uploaded_at", "'; DROP TABLE assets; --")
	if !strings.Contains(orderBy, "DESC") {
		t.Errorf("orderBy = %q, ожидался fallback на DESC", orderBy)
	}
}
