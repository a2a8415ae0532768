// Пакет bot — Telegram-бот медиа-индексатора.
// Получает обновления через long polling и раздаёт их ограниченному пулу
// обработчиков (errgroup.SetLimit).
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// API — методы Bot API, используемые ботом. Реализуется *tgbotapi.BotAPI.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetMe() (tgbotapi.User, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Ingester сохраняет медиафайлы из каналов.
type Ingester interface {
	Save(ctx context.Context, m service.IncomingMedia) service.SaveResult
}

// Searcher — поиск и администрирование файлов.
type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResult, error)
	FileDetails(ctx context.Context, fileKey string) (*model.MediaRecord, error)
	BadFiles(ctx context.Context, query, fileType string) ([]*model.MediaRecord, int64, error)
	DeleteFiles(ctx context.Context, files []*model.MediaRecord) (int64, error)
	Total(ctx context.Context) (int64, error)
}

// ChatSettings изменяет настройки чатов.
type ChatSettings interface {
	SetCompact(ctx context.Context, chatID int64, on bool) error
}

// Moderator — блокировки пользователей и чатов.
type Moderator interface {
	IsUserBanned(userID int64) bool
	IsChatDisabled(chatID int64) bool
	BanUser(ctx context.Context, userID int64, reason string) error
	UnbanUser(ctx context.Context, userID int64) error
	DisableChat(ctx context.Context, chatID int64, reason string) error
	EnableChat(ctx context.Context, chatID int64) error
	RegisterUser(ctx context.Context, userID int64, firstName string) (bool, error)
	RegisterChat(ctx context.Context, chatID int64, title string) (bool, error)
	Stats(ctx context.Context) (users, chats int64, err error)
}

// Config — параметры бота.
type Config struct {
	// Channels — каналы для индексации: числовые id или @username
	Channels []string
	// Admins — id администраторов бота
	Admins []int64
	// LogChannel — канал для служебных сообщений (0 — не отправлять)
	LogChannel int64
	// Timezone — часовой пояс для служебных сообщений
	Timezone *time.Location
	// Workers — количество параллельных обработчиков обновлений
	Workers int
	// PollTimeout — long polling timeout в секундах
	PollTimeout int
}

// Bot — Telegram-бот: индексация каналов, поиск и администрирование.
type Bot struct {
	api       API
	ingest    Ingester
	search    Searcher
	settings  ChatSettings
	moderator Moderator
	cfg       Config
	logger    *slog.Logger

	channelIDs   map[int64]struct{}
	channelNames map[string]struct{}
	admins       map[int64]struct{}

	self tgbotapi.User
}

// New создаёт бота. Перед Run необходимо вызвать Start.
func New(
	api API,
	ingest Ingester,
	search Searcher,
	settings ChatSettings,
	moderator Moderator,
	cfg Config,
	logger *slog.Logger,
) *Bot {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	b := &Bot{
		api:          api,
		ingest:       ingest,
		search:       search,
		settings:     settings,
		moderator:    moderator,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "bot")),
		channelIDs:   make(map[int64]struct{}),
		channelNames: make(map[string]struct{}),
		admins:       make(map[int64]struct{}, len(cfg.Admins)),
	}

	for _, ch := range cfg.Channels {
		if id, err := strconv.ParseInt(ch, 10, 64); err == nil {
			b.channelIDs[id] = struct{}{}
			continue
		}
		b.channelNames[strings.ToLower(strings.TrimPrefix(ch, "@"))] = struct{}{}
	}
	for _, id := range cfg.Admins {
		b.admins[id] = struct{}{}
	}
	return b
}

// Start выполняет getMe и отправляет уведомление о перезапуске в лог-канал.
func (b *Bot) Start(_ context.Context) error {
	me, err := b.api.GetMe()
	if err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	b.self = me

	b.logger.Info("Бот запущен",
		slog.Int64("bot_id", me.ID),
		slog.String("username", me.UserName),
		slog.String("name", me.FirstName),
		slog.Int("channels", len(b.cfg.Channels)),
		slog.Int("workers", b.cfg.Workers),
	)

	if b.cfg.LogChannel != 0 {
		b.send(tgbotapi.NewMessage(b.cfg.LogChannel, restartText(time.Now().In(b.cfg.Timezone))))
	}
	return nil
}

// Run получает обновления до отмены ctx. Возвращает после завершения
// всех запущенных обработчиков.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	u.AllowedUpdates = []string{"message", "channel_post", "inline_query", "callback_query"}
	updates := b.api.GetUpdatesChan(u)

	var g errgroup.Group
	g.SetLimit(b.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			_ = g.Wait()
			b.logger.Info("Бот остановлен")
			return nil
		case upd, ok := <-updates:
			if !ok {
				_ = g.Wait()
				b.logger.Info("Бот остановлен")
				return nil
			}
			// Go блокируется при заполненном пуле обработчиков.
			g.Go(func() error {
				b.HandleUpdate(ctx, upd)
				return nil
			})
		}
	}
}

// HandleUpdate обрабатывает одно обновление. Паника обработчика
// логируется и не останавливает бота.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Паника в обработчике обновления",
				slog.Int("update_id", upd.UpdateID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	switch {
	case upd.ChannelPost != nil:
		b.handleChannelPost(ctx, upd.ChannelPost)
	case upd.InlineQuery != nil:
		b.handleInlineQuery(ctx, upd.InlineQuery)
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil:
		b.handleMessage(ctx, upd.Message)
	}
}

// handleMessage обрабатывает сообщения в личных и групповых чатах.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	if msg.From != nil && b.moderator.IsUserBanned(msg.From.ID) {
		b.logger.Debug("Сообщение заблокированного пользователя проигнорировано",
			slog.Int64("user_id", msg.From.ID),
		)
		return
	}
	if !msg.Chat.IsPrivate() && b.moderator.IsChatDisabled(msg.Chat.ID) {
		return
	}

	if len(msg.NewChatMembers) > 0 {
		b.handleNewMembers(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	if msg.Text != "" {
		b.handleTextSearch(ctx, msg)
	}
}

// handleNewMembers регистрирует группу, в которую добавлен бот.
func (b *Bot) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) {
	for _, m := range msg.NewChatMembers {
		if m.ID != b.self.ID {
			continue
		}
		isNew, err := b.moderator.RegisterChat(ctx, msg.Chat.ID, msg.Chat.Title)
		if err != nil {
			b.logger.Error("Ошибка регистрации чата",
				slog.Int64("chat_id", msg.Chat.ID),
				slog.String("error", err.Error()),
			)
		}
		if isNew && b.cfg.LogChannel != 0 {
			b.send(tgbotapi.NewMessage(b.cfg.LogChannel,
				fmt.Sprintf("#NewGroup\nГруппа: %s\nID: %d", msg.Chat.Title, msg.Chat.ID)))
		}
		b.send(tgbotapi.NewMessage(msg.Chat.ID,
			"Спасибо, что добавили меня! Отправьте название файла, и я найду его."))
		return
	}
}

// isAdmin проверяет, является ли пользователь администратором бота.
func (b *Bot) isAdmin(u *tgbotapi.User) bool {
	if u == nil {
		return false
	}
	_, ok := b.admins[u.ID]
	return ok
}

// send отправляет сообщение, ошибки логируются.
func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("Ошибка отправки сообщения", slog.String("error", err.Error()))
	}
}

// request выполняет метод Bot API без результата-сообщения, ошибки логируются.
func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		b.logger.Warn("Ошибка запроса к Bot API", slog.String("error", err.Error()))
	}
}

// restartText — текст уведомления о перезапуске.
func restartText(now time.Time) string {
	return fmt.Sprintf("Бот перезапущен!\n\n📅 Дата: %s\n⏰ Время: %s\n🌐 Часовой пояс: %s",
		now.Format("2006-01-02"), now.Format("15:04:05 PM"), now.Location())
}
