// Пакет tgclient — HTTP-клиент Telegram Bot API.
// Поддерживает собственный Bot API сервер (MI_TG_API_ENDPOINT) и TLS
// с кастомным CA (MI_TG_CA_CERT_PATH), перенаправляет логи библиотеки в slog.
package tgclient

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/httpclient"
)

// Config — параметры подключения к Bot API.
type Config struct {
	// Token — токен бота
	Token string
	// Endpoint — шаблон URL метода: bot token и имя метода подставляются через %s
	Endpoint string
	// CACertPath — путь к CA-сертификату (пустая строка — системный пул)
	CACertPath string
	// Timeout — таймаут HTTP-запросов, должен превышать long polling timeout
	Timeout time.Duration
}

// New создаёт клиент Bot API. Выполняет getMe для проверки токена.
func New(cfg Config, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	httpClient, err := httpclient.New(cfg.CACertPath, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("HTTP-клиент Bot API: %w", err)
	}
	if cfg.CACertPath != "" {
		logger.Info("CA-сертификат Bot API добавлен в пул доверия",
			slog.String("ca_cert", cfg.CACertPath),
		)
	}

	if err := tgbotapi.SetLogger(NewLogger(logger)); err != nil {
		return nil, fmt.Errorf("установка логгера Bot API: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("подключение к Bot API %s: %w", endpointHost(cfg.Endpoint), err)
	}
	return api, nil
}

// Logger — адаптер tgbotapi.BotLogger поверх slog.
// Сообщения библиотеки пишутся на уровне WARN: она логирует только сбои.
type Logger struct {
	logger *slog.Logger
}

// NewLogger создаёт адаптер логгера для tgbotapi.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With(slog.String("component", "tgbotapi"))}
}

// Println реализует tgbotapi.BotLogger.
func (l *Logger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

// Printf реализует tgbotapi.BotLogger.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSuffix(fmt.Sprintf(format, v...), "\n"))
}

// endpointHost возвращает шаблон endpoint без токена для логов и ошибок.
func endpointHost(endpoint string) string {
	if i := strings.Index(endpoint, "%s"); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
