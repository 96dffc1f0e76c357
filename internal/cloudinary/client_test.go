package cloudinary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// newTestClient создаёт клиент, направленный на тестовый сервер.
func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(serverURL, "demo", "key123", "testsecret", 5*time.Second, logger)
}

func TestSignParams(t *testing.T) {
	tests := []struct {
		name     string
		params   map[string]string
		secret   string
		expected string
	}{
		{
			name: "два параметра",
			params: map[string]string{
				"timestamp": "1700000000",
				"public_id": "docs/report",
			},
			secret:   "testsecret",
			expected: "e168048ba84f312f7c9ca35b34052acb186b0596",
		},
		{
			name: "три параметра с сортировкой",
			params: map[string]string{
				"timestamp":  "1700000000",
				"public_id":  "cms/media/banner_1700000000123",
				"invalidate": "true",
			},
			secret:   "testsecret",
			expected: "bbde9b3dfc6fb3769218dae01ff4cc88d4cb9a34",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := signParams(tt.params, tt.secret)
			if got != tt.expected {
				t.Errorf("ожидалась подпись %s, получено %s", tt.expected, got)
			}
		})
	}
}

func TestUpload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("ожидался метод POST, получено %s", r.Method)
		}
		if r.URL.Path != "/v1_1/demo/image/upload" {
			t.Errorf("ожидался путь /v1_1/demo/image/upload, получено %s", r.URL.Path)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ошибка разбора multipart-формы: %v", err)
		}

		if got := r.FormValue("public_id"); got != "cms/media/banner_1700000000123" {
			t.Errorf("ожидался public_id cms/media/banner_1700000000123, получено %s", got)
		}
		if got := r.FormValue("api_key"); got != "key123" {
			t.Errorf("ожидался api_key key123, получено %s", got)
		}

		// Подпись должна соответствовать протоколу: SHA-1 от отсортированных параметров
		expectedSig := signParams(map[string]string{
			"public_id": r.FormValue("public_id"),
			"timestamp": r.FormValue("timestamp"),
		}, "testsecret")
		if got := r.FormValue("signature"); got != expectedSig {
			t.Errorf("ожидалась подпись %s, получено %s", expectedSig, got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("ошибка чтения части file: %v", err)
		}
		defer file.Close()

		if header.Filename != "banner.jpg" {
			t.Errorf("ожидалось имя файла banner.jpg, получено %s", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "file-content" {
			t.Errorf("ожидалось содержимое file-content, получено %s", string(content))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(UploadResult{
			PublicID:     "cms/media/banner_1700000000123",
			Version:      1700000001,
			VersionID:    "abc123def456",
			ResourceType: "image",
			Format:       "jpg",
			Bytes:        12,
			Width:        800,
			Height:       600,
			SecureURL:    "https://res.cloudinary.com/demo/image/upload/v1700000001/cms/media/banner_1700000000123.jpg",
			CreatedAt:    "2023-11-14T22:13:20Z",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	result, err := client.Upload(context.Background(), "image",
		"cms/media/banner_1700000000123", "banner.jpg", strings.NewReader("file-content"))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if result.PublicID != "cms/media/banner_1700000000123" {
		t.Errorf("ожидался public_id cms/media/banner_1700000000123, получено %s", result.PublicID)
	}
	if result.Version != 1700000001 {
		t.Errorf("ожидалась версия 1700000001, получено %d", result.Version)
	}
	if result.Format != "jpg" {
		t.Errorf("ожидался формат jpg, получено %s", result.Format)
	}
	if result.Width != 800 || result.Height != 600 {
		t.Errorf("ожидались размеры 800x600, получено %dx%d", result.Width, result.Height)
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"Invalid Signature"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.Upload(context.Background(), "image", "test", "test.jpg", strings.NewReader("x"))
	if err == nil {
		t.Fatal("ожидалась ошибка при статусе 400")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("ожидалось упоминание статуса 400 в ошибке, получено: %v", err)
	}
}

func TestDestroy(t *testing.T) {
	tests := []struct {
		name      string
		result    string
		expectErr bool
	}{
		{name: "успешное удаление", result: "ok", expectErr: false},
		{name: "ресурс уже отсутствует", result: "not found", expectErr: false},
		{name: "неожиданный результат", result: "pending", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1_1/demo/raw/destroy" {
					t.Errorf("ожидался путь /v1_1/demo/raw/destroy, получено %s", r.URL.Path)
				}
				if err := r.ParseForm(); err != nil {
					t.Fatalf("ошибка разбора формы: %v", err)
				}
				if got := r.FormValue("invalidate"); got != "true" {
					t.Errorf("ожидался invalidate=true, получено %s", got)
				}

				expectedSig := signParams(map[string]string{
					"public_id":  r.FormValue("public_id"),
					"timestamp":  r.FormValue("timestamp"),
					"invalidate": "true",
				}, "testsecret")
				if got := r.FormValue("signature"); got != expectedSig {
					t.Errorf("ожидалась подпись %s, получено %s", expectedSig, got)
				}

				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"result":%q}`, tt.result)
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)

			err := client.Destroy(context.Background(), "raw", "docs/report_1700000000123")
			if tt.expectErr && err == nil {
				t.Error("ожидалась ошибка, получен nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("неожиданная ошибка: %v", err)
			}
		})
	}
}

func TestGetResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/resources/image/upload/cms/media/banner" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			t.Error("ожидалась basic auth в запросе Admin API")
		}
		if user != "key123" || pass != "testsecret" {
			t.Errorf("ожидались учётные данные key123:testsecret, получено %s:%s", user, pass)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ResourceInfo{
			PublicID:     "cms/media/banner",
			Version:      1700000001,
			ResourceType: "image",
			Format:       "jpg",
			Bytes:        2048,
			SecureURL:    "https://res.cloudinary.com/demo/image/upload/v1700000001/cms/media/banner.jpg",
			CreatedAt:    "2023-11-14T22:13:20Z",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	info, err := client.GetResource(context.Background(), "image", "cms/media/banner")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if info.PublicID != "cms/media/banner" {
		t.Errorf("ожидался public_id cms/media/banner, получено %s", info.PublicID)
	}
	if info.Bytes != 2048 {
		t.Errorf("ожидался размер 2048, получено %d", info.Bytes)
	}
}

func TestGetResource_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"message":"Resource not found"}}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GetResource(context.Background(), "image", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ошибка ErrNotFound, получено: %v", err)
	}
}

func TestGetResource_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.GetResource(context.Background(), "image", "broken")
	if err == nil {
		t.Fatal("ожидалась ошибка при статусе 500")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("ошибка сервера не должна классифицироваться как ErrNotFound")
	}
}

func TestFetchDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload/cms/media/banner.jpg" {
			t.Errorf("неожиданный путь: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpeg-bytes")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	resp, err := client.FetchDelivery(context.Background(), server.URL+"/demo/image/upload/cms/media/banner.jpg")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("ожидался статус 200, получено %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "jpeg-bytes" {
		t.Errorf("ожидалось тело jpeg-bytes, получено %s", string(body))
	}
}

func TestFetchDelivery_NotFoundPassthrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	// Не-2xx статус не считается ошибкой: решение принимает вызывающий код
	resp, err := client.FetchDelivery(context.Background(), server.URL+"/demo/image/upload/missing.jpg")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получено %d", resp.StatusCode)
	}
}

func TestNormalizeBase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"api.cloudinary.com", "https://api.cloudinary.com"},
		{"api.cloudinary.com/", "https://api.cloudinary.com"},
		{"http://127.0.0.1:8080/", "http://127.0.0.1:8080"},
		{"https://api.example.com", "https://api.example.com"},
	}

	for _, tt := range tests {
		if got := normalizeBase(tt.input); got != tt.expected {
			t.Errorf("normalizeBase(%q): ожидалось %q, получено %q", tt.input, tt.expected, got)
		}
	}
}
