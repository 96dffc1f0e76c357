// Точка входа Media Module — адаптера удалённого медиахранилища для CMS.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиент удалённого хранилища, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/mediastore/internal/api/handlers"
	"github.com/bigkaa/mediastore/internal/api/middleware"
	"github.com/bigkaa/mediastore/internal/cloudinary"
	"github.com/bigkaa/mediastore/internal/config"
	"github.com/bigkaa/mediastore/internal/database"
	"github.com/bigkaa/mediastore/internal/domain/media"
	"github.com/bigkaa/mediastore/internal/repository"
	"github.com/bigkaa/mediastore/internal/server"
	"github.com/bigkaa/mediastore/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Media Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("cloud_name", cfg.CloudName),
	)

	if os.Getenv("MM_DEPHEALTH_GROUP") == "" {
		logger.Warn("MM_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Repositories
	assetRepo := repository.NewAssetRepository(pool)
	versionRepo := repository.NewVersionRepository(pool)

	// 6. Клиент удалённого хранилища
	client := cloudinary.New(
		cfg.APIHost,
		cfg.CloudName,
		cfg.APIKey,
		cfg.APISecret,
		cfg.HTTPTimeout,
		logger,
	)
	logger.Info("Клиент удалённого хранилища создан",
		slog.String("api_host", cfg.APIHost),
		slog.String("delivery_host", cfg.DeliveryHost),
	)

	// 7. LRU-кэш разрешённых идентификаторов
	cache := service.NewCacheService(cfg.CacheMaxSize, cfg.CacheTTL)

	// 8. Services
	uploadOpts := media.UploadOptions{
		Enabled:          true,
		UseFilename:      cfg.UseFilename,
		UniqueFilename:   cfg.UniqueFilename,
		KeepRawExtension: cfg.KeepRawExtension,
	}
	uploadSvc := service.NewUploadService(
		assetRepo, versionRepo, client,
		uploadOpts, cfg.UploadFolder, cfg.MaxFileSize,
		logger,
	)

	urlBuilder := media.NewURLBuilder(cfg.DeliveryHost, cfg.CloudName, cfg.UseVersioning)
	assetSvc := service.NewAssetService(
		assetRepo, versionRepo, client, cache, &urlBuilder,
		logger,
	)

	resolveSvc := service.NewResolveService(client, cache, cfg.UploadFolder, logger)

	// 9. Readiness checkers (PostgreSQL + опционально IdP)
	pgChecker := database.NewReadinessChecker(pool)
	var idpChecker handlers.ReadinessChecker
	if cfg.JWKSUrl != "" {
		idpChecker = middleware.NewJWKSReadinessChecker(cfg.JWKSUrl, 5*time.Second)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, idpChecker)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		uploadSvc,
		assetSvc,
		resolveSvc,
		cfg.MaxFileSize,
		logger,
	)

	// 11. Middleware: метрики и логирование для всех запросов,
	// recoverer внутри них — паника обработчика фиксируется как 500
	middlewares := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		chimiddleware.Recoverer,
	}

	// 12. JWT middleware для management API.
	// Пустой MM_JWKS_URL отключает аутентификацию (dev-режим).
	if cfg.JWKSUrl != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(cfg.JWKSUrl, cfg.JWTAudience, logger)
		if jwtErr != nil {
			logger.Error("Ошибка создания JWT middleware", slog.String("error", jwtErr.Error()))
			os.Exit(1)
		}
		logger.Info("JWT middleware инициализирован",
			slog.String("jwks_url", cfg.JWKSUrl),
			slog.String("audience", cfg.JWTAudience),
		)

		// Публичная отдача /static, health и метрики доступны без токена
		middlewares = append(middlewares,
			server.JWTAuthWithExclusions(jwtAuth.Middleware(), "/health", "/metrics", "/static"),
		)
	} else {
		logger.Warn("MM_JWKS_URL не задан, management API работает без аутентификации")
	}

	// 13. topologymetrics — мониторинг зависимостей (PostgreSQL + Cloudinary API)
	apiURL := cfg.APIHost
	if !strings.Contains(apiURL, "://") {
		apiURL = "https://" + apiURL
	}
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"media-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseDSN(),
		apiURL,
		cfg.CloudName,
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 14. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, middlewares...)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 15. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Media Module остановлен")
}
