// commands.go — команды бота: /start, административные команды и /compact.
package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// deepLinkFilePrefix — префикс параметра /start для отправки файла.
const deepLinkFilePrefix = "file_"

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(ctx, msg, args)
		return
	case "compact":
		b.cmdCompact(ctx, msg, args)
		return
	}

	if !b.isAdmin(msg.From) {
		return
	}
	switch cmd {
	case "total":
		b.cmdTotal(ctx, msg)
	case "ban":
		b.cmdBan(ctx, msg, args)
	case "unban":
		b.cmdUnban(ctx, msg, args)
	case "disable":
		b.cmdDisable(ctx, msg, args)
	case "enable":
		b.cmdEnable(ctx, msg, args)
	case "deletefiles":
		b.cmdDeleteFiles(ctx, msg, args)
	}
}

// reply отправляет HTML-ответ на сообщение.
func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	m := tgbotapi.NewMessage(msg.Chat.ID, text)
	m.ParseMode = tgbotapi.ModeHTML
	m.ReplyToMessageID = msg.MessageID
	b.send(m)
}

// cmdStart — приветствие или отправка файла по deep link file_<key>.
func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message, args string) {
	if !msg.Chat.IsPrivate() {
		return
	}
	if msg.From != nil {
		isNew, err := b.moderator.RegisterUser(ctx, msg.From.ID, msg.From.FirstName)
		if err != nil {
			b.logger.Error("Ошибка регистрации пользователя",
				slog.Int64("user_id", msg.From.ID),
				slog.String("error", err.Error()),
			)
		}
		if isNew && b.cfg.LogChannel != 0 {
			b.send(tgbotapi.NewMessage(b.cfg.LogChannel,
				fmt.Sprintf("#NewUser\nID: %d\nИмя: %s", msg.From.ID, msg.From.FirstName)))
		}
	}

	fileKey, ok := strings.CutPrefix(args, deepLinkFilePrefix)
	if !ok || fileKey == "" {
		b.reply(msg, fmt.Sprintf(
			"Привет! Я ищу файлы в проиндексированных каналах.\n"+
				"Отправьте название файла или воспользуйтесь inline-режимом: <code>@%s запрос</code>",
			b.self.UserName))
		return
	}

	rec, err := b.search.FileDetails(ctx, fileKey)
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			b.logger.Warn("Ошибка получения файла",
				slog.String("file_key", fileKey),
				slog.String("error", err.Error()),
			)
		}
		b.reply(msg, "Файл не найден")
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileID(rec.FileKey))
	doc.Caption = fileCaption(rec)
	doc.ParseMode = tgbotapi.ModeHTML
	b.send(doc)
}

// cmdCompact — /compact on|off, доступна администраторам группы.
func (b *Bot) cmdCompact(ctx context.Context, msg *tgbotapi.Message, args string) {
	if msg.Chat.IsPrivate() || msg.From == nil {
		return
	}

	var on bool
	switch strings.ToLower(args) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		b.reply(msg, "Использование: <code>/compact on|off</code>")
		return
	}

	if !b.isAdmin(msg.From) && !b.isGroupAdmin(msg.Chat.ID, msg.From.ID) {
		b.reply(msg, "Команда доступна только администраторам группы")
		return
	}

	if err := b.settings.SetCompact(ctx, msg.Chat.ID, on); err != nil {
		b.logger.Error("Ошибка изменения настроек чата",
			slog.Int64("chat_id", msg.Chat.ID),
			slog.String("error", err.Error()),
		)
		b.reply(msg, "Не удалось сохранить настройки, попробуйте позже")
		return
	}
	if on {
		b.reply(msg, "Компактный режим включён: 10 результатов на страницу")
	} else {
		b.reply(msg, "Компактный режим выключен")
	}
}

// isGroupAdmin проверяет права пользователя в группе через getChatMember.
func (b *Bot) isGroupAdmin(chatID, userID int64) bool {
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		b.logger.Warn("Ошибка getChatMember",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func (b *Bot) cmdTotal(ctx context.Context, msg *tgbotapi.Message) {
	files, err := b.search.Total(ctx)
	if err != nil {
		b.reply(msg, "Хранилище файлов недоступно")
		return
	}
	users, chats, err := b.moderator.Stats(ctx)
	if err != nil {
		b.logger.Warn("Ошибка получения статистики", slog.String("error", err.Error()))
	}
	b.reply(msg, fmt.Sprintf("📁 Файлов: <b>%d</b>\n👤 Пользователей: <b>%d</b>\n👥 Чатов: <b>%d</b>", files, users, chats))
}

// parseTarget разбирает аргументы вида "<id> [причина]".
func parseTarget(args string) (id int64, reason string, err error) {
	idStr, reason, _ := strings.Cut(args, " ")
	id, err = strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("некорректный id %q", idStr)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "не указана"
	}
	return id, reason, nil
}

func (b *Bot) cmdBan(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, reason, err := parseTarget(args)
	if err != nil {
		b.reply(msg, "Использование: <code>/ban &lt;user_id&gt; [причина]</code>")
		return
	}
	if b.moderator.IsUserBanned(id) {
		b.reply(msg, fmt.Sprintf("Пользователь <code>%d</code> уже заблокирован", id))
		return
	}
	if err := b.moderator.BanUser(ctx, id, reason); err != nil {
		b.logger.Error("Ошибка блокировки пользователя", slog.Int64("user_id", id), slog.String("error", err.Error()))
		b.reply(msg, "Не удалось заблокировать пользователя")
		return
	}
	b.reply(msg, fmt.Sprintf("Пользователь <code>%d</code> заблокирован. Причина: %s", id, html.EscapeString(reason)))
}

func (b *Bot) cmdUnban(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, _, err := parseTarget(args)
	if err != nil {
		b.reply(msg, "Использование: <code>/unban &lt;user_id&gt;</code>")
		return
	}
	if err := b.moderator.UnbanUser(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			b.reply(msg, fmt.Sprintf("Пользователь <code>%d</code> не заблокирован", id))
			return
		}
		b.logger.Error("Ошибка разблокировки пользователя", slog.Int64("user_id", id), slog.String("error", err.Error()))
		b.reply(msg, "Не удалось разблокировать пользователя")
		return
	}
	b.reply(msg, fmt.Sprintf("Пользователь <code>%d</code> разблокирован", id))
}

func (b *Bot) cmdDisable(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, reason, err := parseTarget(args)
	if err != nil {
		b.reply(msg, "Использование: <code>/disable &lt;chat_id&gt; [причина]</code>")
		return
	}
	if err := b.moderator.DisableChat(ctx, id, reason); err != nil {
		b.logger.Error("Ошибка отключения чата", slog.Int64("chat_id", id), slog.String("error", err.Error()))
		b.reply(msg, "Не удалось отключить чат")
		return
	}
	b.send(tgbotapi.NewMessage(id, "Бот отключён в этом чате администратором. Причина: "+reason))
	b.request(tgbotapi.LeaveChatConfig{ChatID: id})
	b.reply(msg, fmt.Sprintf("Чат <code>%d</code> отключён", id))
}

func (b *Bot) cmdEnable(ctx context.Context, msg *tgbotapi.Message, args string) {
	id, _, err := parseTarget(args)
	if err != nil {
		b.reply(msg, "Использование: <code>/enable &lt;chat_id&gt;</code>")
		return
	}
	if err := b.moderator.EnableChat(ctx, id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			b.reply(msg, fmt.Sprintf("Чат <code>%d</code> не отключён", id))
			return
		}
		b.logger.Error("Ошибка включения чата", slog.Int64("chat_id", id), slog.String("error", err.Error()))
		b.reply(msg, "Не удалось включить чат")
		return
	}
	b.reply(msg, fmt.Sprintf("Чат <code>%d</code> включён", id))
}

// cmdDeleteFiles удаляет все файлы, найденные по запросу.
func (b *Bot) cmdDeleteFiles(ctx context.Context, msg *tgbotapi.Message, args string) {
	query, fileType := ParseInlineQuery(args)
	if query == "" {
		b.reply(msg, "Использование: <code>/deletefiles &lt;запрос&gt; [| тип]</code>")
		return
	}

	files, total, err := b.search.BadFiles(ctx, query, fileType)
	if err != nil {
		b.reply(msg, "Хранилище файлов недоступно")
		return
	}
	if total == 0 {
		b.reply(msg, "Ничего не найдено")
		return
	}

	deleted, err := b.search.DeleteFiles(ctx, files)
	if err != nil {
		b.reply(msg, fmt.Sprintf("Ошибка удаления, удалено %d из %d", deleted, total))
		return
	}
	b.reply(msg, fmt.Sprintf("Удалено файлов: <b>%d</b> из %d по запросу «%s»", deleted, total, html.EscapeString(query)))
}
