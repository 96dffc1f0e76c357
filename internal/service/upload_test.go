package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/mediastore/internal/cloudinary"
	"github.com/bigkaa/mediastore/internal/domain/media"
	"github.com/bigkaa/mediastore/internal/domain/model"
	"github.com/bigkaa/mediastore/internal/repository"
)

// newTestUploadService создаёт UploadService с mock-сервером хранилища.
// Политика идентификаторов детерминированная: имя файла без токена
// уникальности. Корневая папка — cms/media, лимит размера — 1024 байта.
func newTestUploadService(
	t *testing.T,
	assetRepo repository.AssetRepository,
	versionRepo repository.VersionRepository,
	cloudSrv *httptest.Server,
) *UploadService {
	t.Helper()

	logger := slog.Default()
	client := cloudinary.New(cloudSrv.URL, "demo", "key123", "testsecret", 5*time.Second, logger)
	opts := media.UploadOptions{
		Enabled:     true,
		UseFilename: true,
	}

	return NewUploadService(assetRepo, versionRepo, client, opts, "cms/media", 1024, logger)
}

// uploadResultJSON — типовой ответ хранилища на успешную загрузку.
func uploadResultJSON(publicID string) string {
	return `{"public_id":"` + publicID + `","version":1700000000,"version_id":"v-abc123",` +
		`"resource_type":"image","format":"jpg","bytes":11,"width":800,"height":600,` +
		`"secure_url":"https://res.cloudinary.com/demo/image/upload/v1700000000/` + publicID + `.jpg",` +
		`"created_at":"2026-08-24T10:00:00Z"}`
}

// --- Тесты UploadService ---

// TestUploadService_Success проверяет полный pipeline загрузки:
// генерация идентификатора, загрузка, регистрация, запись версии.
func TestUploadService_Success(t *testing.T) {
	receivedPublicID := ""
	receivedContent := ""
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/image/upload" {
			t.Errorf("Upload path = %q, ожидался /v1_1/demo/image/upload", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("Ошибка разбора multipart: %v", err)
		}
		receivedPublicID = r.FormValue("public_id")

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("Ошибка чтения файла из multipart: %v", err)
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		receivedContent = string(content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(uploadResultJSON(receivedPublicID)))
	}))
	defer cloudSrv.Close()

	var inserted *model.AssetRecord
	var versionInserted *model.AssetVersion
	assetRepo := &mockAssetRepo{
		insertFn: func(_ context.Context, record *model.AssetRecord) error {
			inserted = record
			return nil
		},
	}
	versionRepo := &mockVersionRepo{
		insertFn: func(_ context.Context, version *model.AssetVersion) error {
			versionInserted = version
			return nil
		},
	}

	svc := newTestUploadService(t, assetRepo, versionRepo, cloudSrv)

	record, err := svc.Upload(context.Background(), strings.NewReader("image-bytes"), UploadParams{
		Filename:   "Banner Photo.jpg",
		Size:       11,
		UploadedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if receivedPublicID != "cms/media/banner-photo" {
		t.Errorf("public_id = %q, ожидался cms/media/banner-photo", receivedPublicID)
	}
	if receivedContent != "image-bytes" {
		t.Errorf("Содержимое файла = %q, ожидалось image-bytes", receivedContent)
	}

	if record.Identifier != "cms/media/banner-photo" {
		t.Errorf("Identifier = %q, ожидался cms/media/banner-photo", record.Identifier)
	}
	if record.Kind != media.KindImage {
		t.Errorf("Kind = %q, ожидался image", record.Kind)
	}
	if record.Format != "jpg" {
		t.Errorf("Format = %q, ожидался jpg", record.Format)
	}
	if record.SizeBytes != 11 {
		t.Errorf("SizeBytes = %d, ожидался 11", record.SizeBytes)
	}
	if record.Version != "1700000000" {
		t.Errorf("Version = %q, ожидался 1700000000", record.Version)
	}
	if record.Width == nil || *record.Width != 800 {
		t.Errorf("Width = %v, ожидался 800", record.Width)
	}
	if record.Status != model.StatusActive {
		t.Errorf("Status = %q, ожидался active", record.Status)
	}
	if record.UploadedBy != "user-1" {
		t.Errorf("UploadedBy = %q, ожидался user-1", record.UploadedBy)
	}
	if record.AssetID == "" {
		t.Error("AssetID пуст, ожидался сгенерированный UUID")
	}

	if inserted == nil {
		t.Fatal("Insert не был вызван")
	}
	if versionInserted == nil {
		t.Fatal("запись версии не была создана")
	}
	if versionInserted.AssetID != record.AssetID {
		t.Errorf("версия привязана к %q, ожидался %q", versionInserted.AssetID, record.AssetID)
	}
	if versionInserted.Version != "1700000000" {
		t.Errorf("версия = %q, ожидался 1700000000", versionInserted.Version)
	}
}

// TestUploadService_ValidationErrors проверяет ошибки валидации
// до обращения к удалённому хранилищу.
func TestUploadService_ValidationErrors(t *testing.T) {
	remoteCalls := 0
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		remoteCalls++
		w.WriteHeader(http.StatusOK)
	}))
	defer cloudSrv.Close()

	svc := newTestUploadService(t, &mockAssetRepo{}, &mockVersionRepo{}, cloudSrv)

	tests := []struct {
		name    string
		params  UploadParams
		wantErr error
	}{
		{
			name:    "пустое имя файла",
			params:  UploadParams{Filename: "   ", Size: 10},
			wantErr: ErrEmptyFilename,
		},
		{
			name:    "пустой файл",
			params:  UploadParams{Filename: "banner.jpg", Size: 0},
			wantErr: ErrEmptyFile,
		},
		{
			name:    "файл превышает лимит",
			params:  UploadParams{Filename: "banner.jpg", Size: 2048},
			wantErr: ErrFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), strings.NewReader("x"), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ошибка = %v, ожидалась %v", err, tt.wantErr)
			}
		})
	}

	if remoteCalls != 0 {
		t.Errorf("хранилище вызвано %d раз, ожидался 0 (валидация до загрузки)", remoteCalls)
	}
}

// TestUploadService_RemoteError проверяет ErrUploadFailed при отказе хранилища.
func TestUploadService_RemoteError(t *testing.T) {
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid image file"}}`))
	}))
	defer cloudSrv.Close()

	insertCalled := false
	assetRepo := &mockAssetRepo{
		insertFn: func(_ context.Context, _ *model.AssetRecord) error {
			insertCalled = true
			return nil
		},
	}

	svc := newTestUploadService(t, assetRepo, &mockVersionRepo{}, cloudSrv)

	_, err := svc.Upload(context.Background(), strings.NewReader("bad"), UploadParams{
		Filename: "banner.jpg",
		Size:     3,
	})
	if err == nil {
		t.Fatal("ожидалась ошибка ErrUploadFailed")
	}
	if !errors.Is(err, ErrUploadFailed) {
		t.Errorf("ошибка = %v, ожидалась ErrUploadFailed", err)
	}
	if insertCalled {
		t.Error("Insert не должен вызываться при отказе хранилища")
	}
}

// TestUploadService_InsertFailureRollback проверяет откат загрузки:
// при сбое регистрации ресурс удаляется из хранилища.
func TestUploadService_InsertFailureRollback(t *testing.T) {
	destroyedPublicID := ""
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1_1/demo/image/upload":
			_ = r.ParseMultipartForm(32 << 20)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(uploadResultJSON(r.FormValue("public_id"))))
		case "/v1_1/demo/image/destroy":
			_ = r.ParseForm()
			destroyedPublicID = r.FormValue("public_id")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":"ok"}`))
		default:
			t.Errorf("Неожиданный запрос: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer cloudSrv.Close()

	assetRepo := &mockAssetRepo{
		insertFn: func(_ context.Context, _ *model.AssetRecord) error {
			return repository.ErrConflict
		},
	}

	svc := newTestUploadService(t, assetRepo, &mockVersionRepo{}, cloudSrv)

	_, err := svc.Upload(context.Background(), strings.NewReader("image-bytes"), UploadParams{
		Filename: "banner.jpg",
		Size:     11,
	})
	if err == nil {
		t.Fatal("ожидалась ошибка регистрации")
	}
	if !errors.Is(err, repository.ErrConflict) {
		t.Errorf("ошибка = %v, ожидалась ErrConflict", err)
	}

	if destroyedPublicID != "cms/media/banner" {
		t.Errorf("откат удалил %q, ожидался cms/media/banner", destroyedPublicID)
	}
}

// TestUploadService_SubfolderSanitized проверяет санитизацию подпапки запроса.
func TestUploadService_SubfolderSanitized(t *testing.T) {
	receivedPublicID := ""
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(32 << 20)
		receivedPublicID = r.FormValue("public_id")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(uploadResultJSON(receivedPublicID)))
	}))
	defer cloudSrv.Close()

	svc := newTestUploadService(t, &mockAssetRepo{}, &mockVersionRepo{}, cloudSrv)

	_, err := svc.Upload(context.Background(), strings.NewReader("image-bytes"), UploadParams{
		Filename: "banner.jpg",
		Size:     11,
		Folder:   "Press Kits/2026!",
	})
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	if receivedPublicID != "cms/media/press-kits/2026/banner" {
		t.Errorf("public_id = %q, ожидался cms/media/press-kits/2026/banner", receivedPublicID)
	}
}

// TestUploadService_VersionInsertFailureIgnored проверяет, что сбой записи
// истории версий не отменяет успешную загрузку.
func TestUploadService_VersionInsertFailureIgnored(t *testing.T) {
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(32 << 20)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(uploadResultJSON(r.FormValue("public_id"))))
	}))
	defer cloudSrv.Close()

	versionRepo := &mockVersionRepo{
		insertFn: func(_ context.Context, _ *model.AssetVersion) error {
			return errors.New("недоступна таблица asset_versions")
		},
	}

	svc := newTestUploadService(t, &mockAssetRepo{}, versionRepo, cloudSrv)

	record, err := svc.Upload(context.Background(), strings.NewReader("image-bytes"), UploadParams{
		Filename: "banner.jpg",
		Size:     11,
	})
	if err != nil {
		t.Fatalf("Upload ошибка: %v (сбой истории версий не должен отменять загрузку)", err)
	}
	if record == nil {
		t.Fatal("ожидалась запись ресурса")
	}
}

// TestUploadService_UploadedAtParsed проверяет разбор времени загрузки
// из ответа хранилища.
func TestUploadService_UploadedAtParsed(t *testing.T) {
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(32 << 20)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(uploadResultJSON(r.FormValue("public_id"))))
	}))
	defer cloudSrv.Close()

	svc := newTestUploadService(t, &mockAssetRepo{}, &mockVersionRepo{}, cloudSrv)

	record, err := svc.Upload(context.Background(), strings.NewReader("image-bytes"), UploadParams{
		Filename: "banner.jpg",
		Size:     11,
	})
	if err != nil {
		t.Fatalf("Upload ошибка: %v", err)
	}

	expected := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if !record.UploadedAt.Equal(expected) {
		t.Errorf("UploadedAt = %v, ожидался %v", record.UploadedAt, expected)
	}
}
