// search.go — поиск по текстовым сообщениям с результатами в inline-клавиатуре.
// Callback-данные: file#<file_key> — ссылка на файл, next#<offset> — следующая страница.
package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

const (
	callbackFile  = "file"
	callbackNext  = "next"
	callbackPages = "pages"

	minQueryLen = 2
	maxQueryLen = 100
)

// handleTextSearch ищет файлы по тексту сообщения.
// В группах пустой результат не сообщается.
func (b *Bot) handleTextSearch(ctx context.Context, msg *tgbotapi.Message) {
	query := strings.TrimSpace(msg.Text)
	if n := utf8.RuneCountInString(query); n < minQueryLen || n > maxQueryLen {
		return
	}

	chatID := msg.Chat.ID
	res := b.runSearch(ctx, &chatID, query, 0)
	if len(res.Files) == 0 {
		if msg.Chat.IsPrivate() {
			reply := tgbotapi.NewMessage(chatID, "Ничего не найдено 😔")
			reply.ReplyToMessageID = msg.MessageID
			b.send(reply)
		}
		return
	}

	reply := tgbotapi.NewMessage(chatID, resultsText(query, res.Total))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = msg.MessageID
	reply.ReplyMarkup = ResultsKeyboard(res)
	b.send(reply)
}

// runSearch выполняет поиск; ошибка хранилища логируется, результат пустой.
func (b *Bot) runSearch(ctx context.Context, chatID *int64, query string, offset int) *service.SearchResult {
	res, err := b.search.Search(ctx, service.SearchRequest{ChatID: chatID, Query: query, Offset: offset})
	if err != nil {
		b.logger.Warn("Поиск завершился ошибкой",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
	}
	if res == nil {
		res = &service.SearchResult{}
	}
	return res
}

// resultsText — заголовок сообщения с результатами.
func resultsText(query string, total int64) string {
	return fmt.Sprintf("🔎 Результаты по запросу «<b>%s</b>»\nНайдено файлов: %d", html.EscapeString(query), total)
}

// ResultsKeyboard строит клавиатуру: по кнопке на файл и строку навигации.
func ResultsKeyboard(res *service.SearchResult) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(res.Files)+1)
	for _, rec := range res.Files {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonText(rec), callbackFile+"#"+rec.FileKey),
		))
	}

	nav := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	if res.Offset > 0 {
		prev := max(res.Offset-res.Limit, 0)
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⏪ Назад", callbackNext+"#"+strconv.Itoa(prev)))
	}
	if pages := pageCount(res.Total, res.Limit); pages > 1 {
		current := res.Offset/max(res.Limit, 1) + 1
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("📃 %d/%d", current, pages), callbackPages))
	}
	if res.HasNext {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Далее ⏩", callbackNext+"#"+res.NextOffsetToken()))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pageCount(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// handleCallback обрабатывает нажатия кнопок результатов.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From != nil && b.moderator.IsUserBanned(cb.From.ID) {
		b.request(tgbotapi.NewCallback(cb.ID, "Вы заблокированы"))
		return
	}

	kind, arg, _ := strings.Cut(cb.Data, "#")
	switch kind {
	case callbackFile:
		// Файл отправляется в личном чате через deep link /start file_<key>.
		b.request(tgbotapi.CallbackConfig{
			CallbackQueryID: cb.ID,
			URL:             fmt.Sprintf("https://t.me/%s?start=file_%s", b.self.UserName, arg),
		})
	case callbackNext:
		b.handleNextPage(ctx, cb, arg)
	case callbackPages:
		b.request(tgbotapi.NewCallback(cb.ID, "Номер страницы"))
	default:
		b.request(tgbotapi.NewCallback(cb.ID, ""))
	}
}

// handleNextPage переключает страницу результатов. Запрос берётся из
// сообщения пользователя, на которое ответил бот.
func (b *Bot) handleNextPage(ctx context.Context, cb *tgbotapi.CallbackQuery, arg string) {
	offset, err := strconv.Atoi(arg)
	if err != nil || offset < 0 || cb.Message == nil || cb.Message.Chat == nil {
		b.request(tgbotapi.NewCallback(cb.ID, "Некорректный запрос"))
		return
	}
	orig := cb.Message.ReplyToMessage
	if orig == nil || strings.TrimSpace(orig.Text) == "" {
		b.request(tgbotapi.NewCallback(cb.ID, "Запрос устарел, отправьте его заново"))
		return
	}
	if orig.From != nil && cb.From != nil && orig.From.ID != cb.From.ID {
		answer := tgbotapi.NewCallbackWithAlert(cb.ID, "Это не ваш запрос, отправьте свой")
		b.request(answer)
		return
	}

	chatID := cb.Message.Chat.ID
	query := strings.TrimSpace(orig.Text)
	res := b.runSearch(ctx, &chatID, query, offset)
	if len(res.Files) == 0 {
		b.request(tgbotapi.NewCallback(cb.ID, "Больше результатов нет"))
		return
	}

	b.request(tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, ResultsKeyboard(res)))
	b.request(tgbotapi.NewCallback(cb.ID, ""))
}
