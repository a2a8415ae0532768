// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Медиа-индексатор мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - MongoDB — ping через существующий *mongo.Client (critical)
//   - Telegram Bot API — TCP checker хоста из MI_TG_API_ENDPOINT (non-critical)
//   - JWKS endpoint IdP — HTTP checker (только если включён HTTP API, non-critical)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/tcpcheck" // регистрация TCP checker factory
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// defaultMongoPort — порт MongoDB, если в URI он не указан.
const defaultMongoPort = "27017"

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа текущего приложения
	ServiceID string
	// Group — имя группы в метриках (MI_DEPHEALTH_GROUP)
	Group string
	// DB — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
	DB *sql.DB
	// PGConnURL — URL PostgreSQL (для лейблов метрик, не для подключения)
	PGConnURL string
	// Mongo — клиент MongoDB, используемый для ping
	Mongo *mongo.Client
	// MongoURI — URI MongoDB (хост и порт для лейблов метрик)
	MongoURI string
	// TGAPIEndpoint — шаблон URL Bot API (пустой — зависимость не регистрируется)
	TGAPIEndpoint string
	// JWKSURL — URL JWKS (пустой — зависимость не регистрируется)
	JWKSURL string
	// CheckInterval — интервал проверки (MI_DEPHEALTH_CHECK_INTERVAL)
	CheckInterval time.Duration
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	return newDephealthService(cfg, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	cfg DephealthConfig,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(cfg, logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(cfg DephealthConfig, logger *slog.Logger, extraOpts ...dephealth.Option) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PGConnURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
	}

	mongoHost, mongoPort, err := mongoEndpoint(cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	opts = append(opts, dephealth.AddDependency("mongodb", dephealth.TypeTCP,
		&mongoChecker{client: cfg.Mongo},
		dephealth.FromParams(mongoHost, mongoPort),
		dephealth.CheckInterval(cfg.CheckInterval),
		dephealth.Critical(true),
	))

	if cfg.TGAPIEndpoint != "" {
		tgHost, tgPort, err := botAPIEndpoint(cfg.TGAPIEndpoint)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dephealth.TCP("telegram-bot-api",
			dephealth.FromParams(tgHost, tgPort),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		))
	}

	if cfg.JWKSURL != "" {
		// Проверяем путь самого JWKS URL: health endpoint IdP может быть недоступен.
		healthPath := "/"
		if parsed, err := url.Parse(cfg.JWKSURL); err == nil && parsed.Path != "" {
			healthPath = parsed.Path
		}
		jwksOpts := []dephealth.DependencyOption{
			dephealth.FromURL(cfg.JWKSURL),
			dephealth.WithHTTPHealthPath(healthPath),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(false),
		}
		if parsed, err := url.Parse(cfg.JWKSURL); err == nil && parsed.Scheme == "https" {
			jwksOpts = append(jwksOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP("idp-jwks", jwksOpts...))
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}

// mongoChecker проверяет MongoDB через ping существующего клиента,
// учитывая аутентификацию и TLS из URI.
type mongoChecker struct {
	client *mongo.Client
}

func (c *mongoChecker) Check(ctx context.Context, _ dephealth.Endpoint) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %w", dephealth.ErrUnhealthy, err)
	}
	return nil
}

func (c *mongoChecker) Type() string {
	return "mongodb"
}

// mongoEndpoint извлекает первый хост и порт из URI MongoDB
// (mongodb:// или mongodb+srv://) без учётных данных.
func mongoEndpoint(uri string) (host, port string, err error) {
	rest, ok := strings.CutPrefix(uri, "mongodb://")
	if !ok {
		rest, ok = strings.CutPrefix(uri, "mongodb+srv://")
	}
	if !ok {
		return "", "", fmt.Errorf("MongoDB URI: неподдерживаемая схема")
	}
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest = rest[i+1:]
	}
	first, _, _ := strings.Cut(rest, ",")
	if first == "" {
		return "", "", fmt.Errorf("MongoDB URI: не указан хост")
	}

	host, port, err = net.SplitHostPort(first)
	if err != nil {
		host, port = strings.Trim(first, "[]"), defaultMongoPort
	}
	return host, port, nil
}

// botAPIEndpoint извлекает хост и порт из шаблона URL Bot API.
func botAPIEndpoint(template string) (host, port string, err error) {
	u, err := url.Parse(fmt.Sprintf(template, "token", "getMe"))
	if err != nil {
		return "", "", fmt.Errorf("MI_TG_API_ENDPOINT: %w", err)
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("MI_TG_API_ENDPOINT: не указан хост")
	}
	port = u.Port()
	if port == "" {
		port = "80"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	return u.Hostname(), port, nil
}
