// Пакет config — загрузка и валидация конфигурации Media Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Media Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8040-8049)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут чтения HTTP-сервера
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера
	HTTPIdleTimeout time.Duration
	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Удалённое хранилище (Cloudinary) ---

	// Имя облака (тенанта)
	CloudName string
	// API key аккаунта
	APIKey string
	// API secret аккаунта (участвует в подписи запросов)
	APISecret string
	// Хост доставки ресурсов (без схемы)
	DeliveryHost string
	// Хост API загрузки/администрирования (без схемы)
	APIHost string
	// Корневая папка (префикс) публичных идентификаторов
	UploadFolder string
	// Таймаут HTTP-клиента хранилища
	HTTPTimeout time.Duration

	// --- Генерация идентификаторов ---

	// Использовать ли исходное имя файла в идентификаторе
	UseFilename bool
	// Добавлять ли токен уникальности
	UniqueFilename bool
	// Сохранять ли исходное расширение для raw-ресурсов
	KeepRawExtension bool
	// Включать ли сегмент версии в delivery-URL
	UseVersioning bool

	// --- Загрузка ---

	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Пользователь
	DBUser string
	// Пароль
	DBPassword string
	// Режим SSL (disable, require, verify-full, ...)
	DBSSLMode string

	// --- Кэш метаданных ---

	// Максимальное число записей LRU-кэша
	CacheMaxSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Аутентификация management API ---

	// URL JWKS endpoint; пустое значение отключает аутентификацию (dev-режим)
	JWKSUrl string
	// Ожидаемая aud в JWT (опционально)
	JWTAudience string

	// --- topologymetrics ---

	// Имя группы в метриках зависимостей
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Помечать ли зависимости меткой isentry=yes
	DephealthIsEntry bool
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Ошибки конфигурации фатальны: ни одного сетевого вызова до успешной валидации.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MM_PORT — порт HTTP-сервера (по умолчанию 8040)
	port, err := getEnvInt("MM_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("MM_PORT: %w", err)
	}
	if port < 8040 || port > 8049 {
		return nil, fmt.Errorf("MM_PORT: значение %d вне допустимого диапазона 8040-8049", port)
	}
	cfg.Port = port

	// MM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("MM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("MM_LOG_LEVEL: %w", err)
	}

	// MM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// MM_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("MM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_READ_TIMEOUT: %w", err)
	}

	// MM_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("MM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// MM_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("MM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// MM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("MM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Удалённое хранилище ---

	// MM_CLOUD_NAME — обязательный
	cfg.CloudName, err = getEnvRequired("MM_CLOUD_NAME")
	if err != nil {
		return nil, err
	}

	// MM_API_KEY — обязательный
	cfg.APIKey, err = getEnvRequired("MM_API_KEY")
	if err != nil {
		return nil, err
	}

	// MM_API_SECRET — обязательный
	cfg.APISecret, err = getEnvRequired("MM_API_SECRET")
	if err != nil {
		return nil, err
	}

	// MM_DELIVERY_HOST — хост доставки (по умолчанию res.cloudinary.com)
	cfg.DeliveryHost = getEnvDefault("MM_DELIVERY_HOST", "res.cloudinary.com")

	// MM_API_HOST — хост API (по умолчанию api.cloudinary.com)
	cfg.APIHost = getEnvDefault("MM_API_HOST", "api.cloudinary.com")

	// MM_UPLOAD_FOLDER — корневая папка идентификаторов (по умолчанию пустая)
	cfg.UploadFolder = strings.Trim(getEnvDefault("MM_UPLOAD_FOLDER", ""), "/")

	// MM_HTTP_TIMEOUT — таймаут клиента хранилища (по умолчанию 30s)
	cfg.HTTPTimeout, err = getEnvDuration("MM_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_HTTP_TIMEOUT: %w", err)
	}

	// --- Генерация идентификаторов ---

	// MM_USE_FILENAME — использовать имя файла (по умолчанию true)
	cfg.UseFilename, err = getEnvBool("MM_USE_FILENAME", true)
	if err != nil {
		return nil, fmt.Errorf("MM_USE_FILENAME: %w", err)
	}

	// MM_UNIQUE_FILENAME — токен уникальности (по умолчанию true)
	cfg.UniqueFilename, err = getEnvBool("MM_UNIQUE_FILENAME", true)
	if err != nil {
		return nil, fmt.Errorf("MM_UNIQUE_FILENAME: %w", err)
	}

	// MM_KEEP_RAW_EXTENSION — сохранять расширение raw (по умолчанию false)
	cfg.KeepRawExtension, err = getEnvBool("MM_KEEP_RAW_EXTENSION", false)
	if err != nil {
		return nil, fmt.Errorf("MM_KEEP_RAW_EXTENSION: %w", err)
	}

	// MM_USE_VERSIONING — сегмент версии в URL (по умолчанию false)
	cfg.UseVersioning, err = getEnvBool("MM_USE_VERSIONING", false)
	if err != nil {
		return nil, fmt.Errorf("MM_USE_VERSIONING: %w", err)
	}

	// --- Загрузка ---

	// MM_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	maxFileSize, err := getEnvInt64("MM_MAX_FILE_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("MM_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("MM_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// --- PostgreSQL ---

	// MM_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("MM_DB_HOST")
	if err != nil {
		return nil, err
	}

	// MM_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("MM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MM_DB_PORT: %w", err)
	}

	// MM_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("MM_DB_NAME")
	if err != nil {
		return nil, err
	}

	// MM_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("MM_DB_USER")
	if err != nil {
		return nil, err
	}

	// MM_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("MM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// MM_DB_SSLMODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("MM_DB_SSLMODE", "disable")

	// --- Кэш метаданных ---

	// MM_CACHE_MAX_SIZE — размер LRU-кэша (по умолчанию 1024)
	cfg.CacheMaxSize, err = getEnvInt("MM_CACHE_MAX_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("MM_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize <= 0 {
		return nil, fmt.Errorf("MM_CACHE_MAX_SIZE: значение должно быть положительным")
	}

	// MM_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("MM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MM_CACHE_TTL: %w", err)
	}

	// --- Аутентификация ---

	// MM_JWKS_URL — опциональный; пустое значение отключает JWT-аутентификацию
	cfg.JWKSUrl = getEnvDefault("MM_JWKS_URL", "")

	// MM_JWT_AUDIENCE — ожидаемая aud (опционально)
	cfg.JWTAudience = getEnvDefault("MM_JWT_AUDIENCE", "")

	// --- topologymetrics ---

	// MM_DEPHEALTH_GROUP — имя группы (по умолчанию mediastore)
	cfg.DephealthGroup = getEnvDefault("MM_DEPHEALTH_GROUP", "mediastore")

	// MM_DEPHEALTH_CHECK_INTERVAL — интервал проверки (по умолчанию 30s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MM_DEPHEALTH_CHECK_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — метка isentry=yes (по умолчанию false)
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
