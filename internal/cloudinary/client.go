// Пакет cloudinary — HTTP-клиент Cloudinary API.
// Три поверхности: Upload API (загрузка и удаление ресурсов с подписью запросов),
// Admin API (метаданные ресурсов, basic auth) и delivery-хост (streaming-скачивание).
package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // G505: SHA-1 требуется протоколом подписи Cloudinary
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound возвращается, когда ресурс отсутствует в Cloudinary.
var ErrNotFound = errors.New("ресурс не найден в Cloudinary")

// UploadResult — результат загрузки ресурса (ответ Upload API).
type UploadResult struct {
	// PublicID — публичный идентификатор ресурса
	PublicID string `json:"public_id"`
	// Version — числовая версия ресурса (участвует в delivery-URL как v<version>)
	Version int64 `json:"version"`
	// VersionID — идентификатор версии
	VersionID string `json:"version_id"`
	// ResourceType — тип ресурса (image, video, raw)
	ResourceType string `json:"resource_type"`
	// Format — формат файла (jpg, mp4, pdf, ...); для raw может быть пустым
	Format string `json:"format"`
	// Bytes — размер файла в байтах
	Bytes int64 `json:"bytes"`
	// Width — ширина в пикселях (0 — неприменимо)
	Width int `json:"width"`
	// Height — высота в пикселях (0 — неприменимо)
	Height int `json:"height"`
	// Duration — длительность в секундах (0 — неприменимо)
	Duration float64 `json:"duration"`
	// Pages — число страниц документа (0 — неприменимо)
	Pages int `json:"pages"`
	// SecureURL — канонический delivery-URL, сформированный Cloudinary
	SecureURL string `json:"secure_url"`
	// CreatedAt — время загрузки в формате RFC3339
	CreatedAt string `json:"created_at"`
}

// ResourceInfo — метаданные ресурса (ответ Admin API).
type ResourceInfo struct {
	// PublicID — публичный идентификатор ресурса
	PublicID string `json:"public_id"`
	// Version — числовая версия ресурса
	Version int64 `json:"version"`
	// ResourceType — тип ресурса (image, video, raw)
	ResourceType string `json:"resource_type"`
	// Format — формат файла
	Format string `json:"format"`
	// Bytes — размер файла в байтах
	Bytes int64 `json:"bytes"`
	// SecureURL — канонический delivery-URL
	SecureURL string `json:"secure_url"`
	// CreatedAt — время загрузки в формате RFC3339
	CreatedAt string `json:"created_at"`
}

// Client — HTTP-клиент Cloudinary API.
type Client struct {
	httpClient *http.Client
	apiBase    string
	cloudName  string
	apiKey     string
	apiSecret  string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	logger     *slog.Logger
}

// New создаёт Cloudinary-клиент.
// apiHost — хост API (обычно api.cloudinary.com; схема по умолчанию https).
// timeout — таймаут HTTP-запросов (из конфигурации MM_HTTP_TIMEOUT).
func New(apiHost, cloudName, apiKey, apiSecret string, timeout time.Duration, logger *slog.Logger) *Client {
	transport := &http.Transport{
		// Настройка пула idle-соединений для эффективного переиспользования
		MaxIdleConnsPerHost: 10,
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		apiBase:   normalizeBase(apiHost),
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		logger:    logger.With(slog.String("component", "cloudinary_client")),
	}
}

// Upload загружает файл в Cloudinary под заданным публичным идентификатором.
// resourceType — сегмент endpoint'а (image, video, raw, auto).
// filename — исходное имя файла (попадает в multipart-часть file).
//
// Формат запроса: POST {apiBase}/v1_1/{cloud}/{resourceType}/upload (multipart/form-data).
// Подпись: SHA-1 от отсортированных параметров public_id и timestamp плюс api_secret.
func (c *Client) Upload(ctx context.Context, resourceType, publicID, filename string, file io.Reader) (*UploadResult, error) {
	uploadURL := fmt.Sprintf("%s/v1_1/%s/%s/upload", c.apiBase, c.cloudName, resourceType)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := signParams(map[string]string{
		"public_id": publicID,
		"timestamp": timestamp,
	}, c.apiSecret)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := [][2]string{
		{"public_id", publicID},
		{"timestamp", timestamp},
		{"api_key", c.apiKey},
		{"signature", signature},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("формирование multipart-поля %s: %w", f[0], err)
		}
	}

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("формирование multipart-части file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("копирование содержимого файла в запрос: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("завершение multipart-тела: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос Upload к Cloudinary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Cloudinary upload вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("декодирование ответа upload: %w", err)
	}

	c.logger.Debug("ресурс загружен в Cloudinary",
		slog.String("public_id", result.PublicID),
		slog.String("resource_type", result.ResourceType),
		slog.Int64("bytes", result.Bytes),
	)

	return &result, nil
}

// Destroy удаляет ресурс из Cloudinary.
// Идемпотентен: результат "not found" считается успехом (ресурс уже отсутствует).
//
// Формат запроса: POST {apiBase}/v1_1/{cloud}/{resourceType}/destroy (form-encoded).
func (c *Client) Destroy(ctx context.Context, resourceType, publicID string) error {
	destroyURL := fmt.Sprintf("%s/v1_1/%s/%s/destroy", c.apiBase, c.cloudName, resourceType)

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := signParams(map[string]string{
		"public_id":  publicID,
		"timestamp":  timestamp,
		"invalidate": "true",
	}, c.apiSecret)

	data := url.Values{
		"public_id":  {publicID},
		"timestamp":  {timestamp},
		"invalidate": {"true"},
		"api_key":    {c.apiKey},
		"signature":  {signature},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destroyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("создание запроса Destroy: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос Destroy к Cloudinary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Cloudinary destroy вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var destroyResp struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&destroyResp); err != nil {
		return fmt.Errorf("декодирование ответа destroy: %w", err)
	}

	switch destroyResp.Result {
	case "ok":
		return nil
	case "not found":
		// Ресурс уже отсутствует — для идемпотентности это успех
		c.logger.Info("ресурс уже отсутствует в Cloudinary",
			slog.String("public_id", publicID),
		)
		return nil
	default:
		return fmt.Errorf("Cloudinary destroy вернул результат %q для %s", destroyResp.Result, publicID)
	}
}

// GetResource запрашивает метаданные ресурса через Admin API.
// Возвращает ErrNotFound, если ресурс отсутствует.
//
// Формат запроса: GET {apiBase}/v1_1/{cloud}/resources/{resourceType}/upload/{publicID}
// Авторизация: basic auth (api_key:api_secret).
func (c *Client) GetResource(ctx context.Context, resourceType, publicID string) (*ResourceInfo, error) {
	reqURL := fmt.Sprintf("%s/v1_1/%s/resources/%s/upload/%s", c.apiBase, c.cloudName, resourceType, publicID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса GetResource: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос GetResource к Cloudinary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("Cloudinary Admin API вернул статус %d для %s: %s",
			resp.StatusCode, publicID, string(respBody))
	}

	var info ResourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("декодирование ответа Admin API: %w", err)
	}

	return &info, nil
}

// FetchDelivery выполняет streaming-скачивание ресурса по delivery-URL.
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
// Статус ответа не проверяется: обработка не-2xx остаётся за вызывающим кодом.
func (c *Client) FetchDelivery(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса FetchDelivery: %w", err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL формируется из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос FetchDelivery к %s: %w", rawURL, err)
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это (streaming)
	return resp, nil
}

// signParams подписывает параметры запроса по протоколу Cloudinary:
// параметры сортируются по ключу, сериализуются как k=v через &,
// к строке добавляется api_secret, от результата берётся SHA-1 hex.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret)) //nolint:gosec // G401: протокол подписи Cloudinary
	return hex.EncodeToString(sum[:])
}

// normalizeBase приводит хост API к базовому URL:
// добавляет схему https, если схема не указана, и убирает trailing slash.
func normalizeBase(host string) string {
	host = strings.TrimRight(host, "/")
	if !strings.Contains(host, "://") {
		return "https://" + host
	}
	return host
}
