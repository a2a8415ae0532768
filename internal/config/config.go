// Пакет config — загрузка и валидация конфигурации медиа-индексатора
// из переменных окружения (и файла .env, если он есть).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// defaultTGAPIEndpoint — шаблон URL Bot API (токен, метод).
const defaultTGAPIEndpoint = "https://api.telegram.org/bot%s/%s"

// Config содержит все параметры конфигурации медиа-индексатора.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (health, metrics, API)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Telegram ---

	// Токен бота
	BotToken string
	// Шаблон URL Bot API (для self-hosted Bot API сервера)
	TGAPIEndpoint string
	// Путь к CA-сертификату Bot API сервера (опционально)
	TGCACertPath string
	// Таймаут HTTP-клиента Bot API (должен превышать long polling timeout)
	TGTimeout time.Duration
	// Long polling timeout getUpdates в секундах
	TGPollTimeout int
	// Количество параллельных обработчиков обновлений
	BotWorkers int
	// Каналы для индексации: числовые id или @username
	Channels []string
	// Администраторы бота (user id)
	Admins []int64
	// Канал для служебных сообщений (0 — отключено)
	LogChannel int64
	// Часовой пояс для служебных сообщений
	Timezone *time.Location

	// --- MongoDB ---

	// URI подключения к MongoDB
	MongoURI string
	// Имя базы данных
	MongoDatabase string
	// Имя коллекции медиафайлов
	MongoCollection string
	// Таймаут подключения к MongoDB
	MongoConnectTimeout time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL (disable, require, verify-ca, verify-full)
	DBSSLMode string

	// --- Поиск ---

	// Размер страницы результатов по умолчанию
	MaxResults int
	// Искать также по подписи (caption)
	UseCaptionFilter bool

	// --- Кэш ---

	// Максимальное количество записей в каждом LRU-кэше
	CacheMaxSize int
	// Время жизни записи в кэше
	CacheTTL time.Duration

	// --- JWT (HTTP API) ---

	// URL JWKS; пустое значение отключает HTTP API
	JWTJWKSURL string
	// Ожидаемый issuer (пусто — не проверяется)
	JWTIssuer string
	// Путь к CA-сертификату для JWKS (опционально)
	JWTCACertPath string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration
	// Группы IdP, маппящиеся в роль admin
	RoleAdminGroups []string
	// Группы IdP, маппящиеся в роль readonly
	RoleReadonlyGroups []string

	// --- Topology metrics ---

	// Группа сервиса в topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Если в рабочем каталоге есть .env, переменные из него загружаются
// первыми (уже заданные в окружении не перезаписываются).
//
//nolint:gocyclo,funlen // линейный разбор переменных
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MI_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("MI_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("MI_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MI_PORT: значение %d вне диапазона 1-65535", cfg.Port)
	}

	// MI_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MI_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MI_LOG_LEVEL: %w", err)
	}

	// MI_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MI_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MI_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("MI_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("MI_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("MI_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Telegram ---

	// MI_BOT_TOKEN — обязательный
	cfg.BotToken, err = getEnvRequired("MI_BOT_TOKEN")
	if err != nil {
		return nil, err
	}

	// MI_TG_API_ENDPOINT — шаблон URL Bot API с двумя %s (токен, метод)
	cfg.TGAPIEndpoint = getEnvDefault("MI_TG_API_ENDPOINT", defaultTGAPIEndpoint)
	if strings.Count(cfg.TGAPIEndpoint, "%s") != 2 {
		return nil, fmt.Errorf("MI_TG_API_ENDPOINT: шаблон %q должен содержать два %%s (токен, метод)", cfg.TGAPIEndpoint)
	}

	cfg.TGCACertPath = getEnvDefault("MI_TG_CA_CERT_PATH", "")

	cfg.TGPollTimeout, err = getEnvInt("MI_TG_POLL_TIMEOUT", 60)
	if err != nil {
		return nil, fmt.Errorf("MI_TG_POLL_TIMEOUT: %w", err)
	}
	if cfg.TGPollTimeout < 0 {
		return nil, fmt.Errorf("MI_TG_POLL_TIMEOUT: значение должно быть >= 0")
	}

	// MI_TG_TIMEOUT — по умолчанию poll timeout + 30s
	cfg.TGTimeout, err = getEnvDurationFallback("MI_TG_TIMEOUT", time.Duration(cfg.TGPollTimeout)*time.Second+30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_TG_TIMEOUT: %w", err)
	}
	// Таймаут HTTP-клиента должен перекрывать long polling getUpdates
	if cfg.TGTimeout <= time.Duration(cfg.TGPollTimeout)*time.Second {
		return nil, fmt.Errorf("MI_TG_TIMEOUT: %v должен превышать MI_TG_POLL_TIMEOUT (%ds)", cfg.TGTimeout, cfg.TGPollTimeout)
	}

	// MI_BOT_WORKERS — параллельные обработчики (по умолчанию 50)
	cfg.BotWorkers, err = getEnvInt("MI_BOT_WORKERS", 50)
	if err != nil {
		return nil, fmt.Errorf("MI_BOT_WORKERS: %w", err)
	}
	if cfg.BotWorkers < 1 {
		return nil, fmt.Errorf("MI_BOT_WORKERS: значение должно быть >= 1")
	}

	cfg.Channels = parseCSV(getEnvDefault("MI_CHANNELS", ""))

	cfg.Admins, err = parseInt64CSV(getEnvDefault("MI_ADMINS", ""))
	if err != nil {
		return nil, fmt.Errorf("MI_ADMINS: %w", err)
	}

	cfg.LogChannel, err = getEnvInt64("MI_LOG_CHANNEL", 0)
	if err != nil {
		return nil, fmt.Errorf("MI_LOG_CHANNEL: %w", err)
	}

	tz := getEnvDefault("MI_TIMEZONE", "UTC")
	cfg.Timezone, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("MI_TIMEZONE: неизвестный часовой пояс %q", tz)
	}

	// --- MongoDB ---

	cfg.MongoURI, err = getEnvRequired("MI_MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDatabase = getEnvDefault("MI_MONGO_DATABASE", "tgmedia")
	cfg.MongoCollection = getEnvDefault("MI_MONGO_COLLECTION", "media_files")
	cfg.MongoConnectTimeout, err = getEnvDuration("MI_MONGO_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_MONGO_CONNECT_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("MI_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("MI_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MI_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("MI_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("MI_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("MI_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("MI_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("MI_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Поиск ---

	cfg.MaxResults, err = getEnvInt("MI_MAX_RESULTS", 10)
	if err != nil {
		return nil, fmt.Errorf("MI_MAX_RESULTS: %w", err)
	}
	if cfg.MaxResults < 1 {
		return nil, fmt.Errorf("MI_MAX_RESULTS: значение должно быть >= 1")
	}

	cfg.UseCaptionFilter, err = getEnvBool("MI_USE_CAPTION_FILTER", false)
	if err != nil {
		return nil, fmt.Errorf("MI_USE_CAPTION_FILTER: %w", err)
	}

	// --- Кэш ---

	cfg.CacheMaxSize, err = getEnvInt("MI_CACHE_MAX_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("MI_CACHE_MAX_SIZE: %w", err)
	}
	cfg.CacheTTL, err = getEnvDuration("MI_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MI_CACHE_TTL: %w", err)
	}

	// --- JWT ---

	cfg.JWTJWKSURL = getEnvDefault("MI_JWT_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("MI_JWT_ISSUER", "")
	cfg.JWTCACertPath = getEnvDefault("MI_JWT_CA_CERT_PATH", "")
	cfg.JWKSClientTimeout, err = getEnvDurationFallback("MI_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationFallback("MI_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MI_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("MI_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_JWT_LEEWAY: %w", err)
	}
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("MI_ROLE_ADMIN_GROUPS", "tgmedia-admins"))
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("MI_ROLE_READONLY_GROUPS", "tgmedia-viewers"))

	// --- Topology metrics ---

	cfg.DephealthGroup = getEnvDefault("MI_DEPHEALTH_GROUP", "tgmedia")
	cfg.DephealthCheckInterval, err = getEnvDuration("MI_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("MI_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MI_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL PostgreSQL для golang-migrate (драйвер pgx5).
func (c *Config) MigrateURL() string {
	return fmt.Sprintf(
		"pgx5://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без учётных данных
// (лейблы метрик topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// APIEnabled сообщает, включён ли HTTP API (задан JWKS URL).
func (c *Config) APIEnabled() bool {
	return c.JWTJWKSURL != ""
}

// IsAdmin проверяет, является ли пользователь администратором бота.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
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

// getEnvInt64 — как getEnvInt, но для идентификаторов Telegram.
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

// getEnvDurationFallback возвращает time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
// Если задана — парсится и валидируется (> 0).
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
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

// parseCSV разбирает строку, разделённую запятыми или пробелами, на срез строк.
// Пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseInt64CSV разбирает список числовых идентификаторов.
func parseInt64CSV(s string) ([]int64, error) {
	parts := parseCSV(s)
	if len(parts) == 0 {
		return nil, nil
	}
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("некорректный идентификатор: %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
