// main.go — точка входа медиа-индексатора.
// Инициализация: config → logger → MongoDB → PostgreSQL (миграции) → сервисы →
// Telegram-бот и HTTP-сервер с graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/tgmedia-indexer/internal/api/handlers"
	"github.com/bigkaa/tgmedia-indexer/internal/api/middleware"
	"github.com/bigkaa/tgmedia-indexer/internal/bot"
	"github.com/bigkaa/tgmedia-indexer/internal/config"
	"github.com/bigkaa/tgmedia-indexer/internal/database"
	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/repository"
	"github.com/bigkaa/tgmedia-indexer/internal/server"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
	"github.com/bigkaa/tgmedia-indexer/internal/tgclient"
)

func main() {
	startedAt := time.Now()

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Медиа-индексатор запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.Int("channels", len(cfg.Channels)),
	)

	if os.Getenv("MI_DEPHEALTH_GROUP") == "" {
		logger.Warn("MI_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Подключение к MongoDB и индексы коллекции медиафайлов
	mongoClient, err := database.ConnectMongo(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к MongoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	mediaColl := mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
	if err := database.EnsureMediaIndexes(ctx, mediaColl, logger); err != nil {
		logger.Error("Ошибка создания индексов MongoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Применение миграций и подключение к PostgreSQL (pgxpool)
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Репозитории, кэши и сервисы
	mediaRepo := repository.NewMediaRepository(mediaColl)
	settingsRepo := repository.NewSettingsRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	chatRepo := repository.NewChatRepository(pool)

	fileCache := service.NewCacheService[string, *model.MediaRecord]("files", cfg.CacheMaxSize, cfg.CacheTTL)
	settingsCache := service.NewCacheService[int64, model.ChatSettings]("chat_settings", cfg.CacheMaxSize, cfg.CacheTTL)

	settingsSvc := service.NewSettingsService(settingsRepo, settingsCache, logger)
	searchSvc := service.NewSearchService(mediaRepo, settingsSvc, fileCache, cfg.MaxResults, cfg.UseCaptionFilter, logger)
	ingestSvc := service.NewIngestService(mediaRepo, logger)

	// 6. Загрузка заблокированных пользователей и отключённых чатов в память
	banList := service.NewBanList(userRepo, chatRepo, logger)
	if err := banList.Load(ctx); err != nil {
		logger.Error("Ошибка загрузки списков блокировок", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. topologymetrics — мониторинг зависимостей (PostgreSQL, MongoDB, Bot API, JWKS IdP)
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "tgmedia-indexer",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseURL(),
		Mongo:         mongoClient,
		MongoURI:      cfg.MongoURI,
		TGAPIEndpoint: cfg.TGAPIEndpoint,
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 8. HTTP API (только при заданном MI_JWT_JWKS_URL)
	deps := server.Deps{}
	var idpChecker handlers.ReadinessChecker
	if cfg.APIEnabled() {
		jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWTJWKSURL,
			CACertPath:      cfg.JWTCACertPath,
			Issuer:          cfg.JWTIssuer,
			AdminGroups:     cfg.RoleAdminGroups,
			ReadonlyGroups:  cfg.RoleReadonlyGroups,
			ClientTimeout:   cfg.JWKSClientTimeout,
			RefreshInterval: cfg.JWKSRefreshInterval,
			Leeway:          cfg.JWTLeeway,
		}, logger)
		if err != nil {
			logger.Error("Ошибка инициализации JWT middleware", slog.String("error", err.Error()))
			os.Exit(1)
		}

		checker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWTCACertPath, cfg.JWKSClientTimeout)
		if err != nil {
			logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
			os.Exit(1)
		}
		idpChecker = checker

		deps.Auth = jwtAuth
		deps.API = handlers.NewAPIHandler(searchSvc, logger)
		logger.Info("HTTP API включён",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
	} else {
		logger.Info("HTTP API отключён (MI_JWT_JWKS_URL не задан)")
	}

	deps.Health = handlers.NewHealthHandler(
		database.NewMongoReadinessChecker(mongoClient),
		database.NewReadinessChecker(pool),
		idpChecker,
	)
	srv := server.New(cfg, logger, deps)

	// 9. Клиент Bot API и Telegram-бот
	api, err := tgclient.New(tgclient.Config{
		Token:      cfg.BotToken,
		Endpoint:   cfg.TGAPIEndpoint,
		CACertPath: cfg.TGCACertPath,
		Timeout:    cfg.TGTimeout,
	}, logger)
	if err != nil {
		logger.Error("Ошибка подключения к Bot API", slog.String("error", err.Error()))
		os.Exit(1)
	}

	tgBot := bot.New(api, ingestSvc, searchSvc, settingsSvc, banList, bot.Config{
		Channels:    cfg.Channels,
		Admins:      cfg.Admins,
		LogChannel:  cfg.LogChannel,
		Timezone:    cfg.Timezone,
		Workers:     cfg.BotWorkers,
		PollTimeout: cfg.TGPollTimeout,
	}, logger)
	if err := tgBot.Start(ctx); err != nil {
		logger.Error("Ошибка запуска бота", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Бот и HTTP-сервер работают до сигнала завершения
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tgBot.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error("Ошибка работы сервиса", slog.String("error", runErr.Error()))
	}

	// 11. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Медиа-индексатор остановлен", slog.Duration("uptime", time.Since(startedAt)))
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
}
