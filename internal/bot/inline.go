// inline.go — inline-поиск: "запрос" или "запрос | тип".
package bot

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// inlineCacheTime — время кэширования inline-ответа на стороне Telegram, секунды.
const inlineCacheTime = 300

// ParseInlineQuery разделяет inline-запрос на текст и тип файла.
func ParseInlineQuery(q string) (query, fileType string) {
	query, fileType, found := strings.Cut(q, "|")
	query = strings.TrimSpace(query)
	if !found {
		return query, ""
	}
	return query, strings.ToLower(strings.TrimSpace(fileType))
}

func (b *Bot) handleInlineQuery(ctx context.Context, iq *tgbotapi.InlineQuery) {
	answer := tgbotapi.InlineConfig{
		InlineQueryID: iq.ID,
		CacheTime:     inlineCacheTime,
		IsPersonal:    true,
		Results:       []interface{}{},
	}

	if iq.From != nil && b.moderator.IsUserBanned(iq.From.ID) {
		answer.SwitchPMText = "Вы заблокированы"
		answer.SwitchPMParameter = "banned"
		b.request(answer)
		return
	}

	query, fileType := ParseInlineQuery(iq.Query)
	offset, _ := strconv.Atoi(iq.Offset)

	res, err := b.search.Search(ctx, service.SearchRequest{
		Query:    query,
		FileType: fileType,
		Offset:   max(offset, 0),
	})
	if err != nil {
		b.logger.Warn("Inline-поиск завершился ошибкой",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
	}
	if res == nil {
		res = &service.SearchResult{}
	}

	for _, rec := range res.Files {
		doc := tgbotapi.NewInlineQueryResultCachedDocument(rec.FileKey, rec.FileKey, rec.FileName)
		doc.Description = HumanSize(rec.FileSize)
		if rec.FileType != "" {
			doc.Description += " · " + rec.FileType
		}
		doc.Caption = fileCaption(rec)
		doc.ParseMode = tgbotapi.ModeHTML
		markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonSwitch("🔍 Искать снова", query),
		))
		doc.ReplyMarkup = &markup
		answer.Results = append(answer.Results, doc)
	}
	answer.NextOffset = res.NextOffsetToken()

	if len(answer.Results) == 0 && offset == 0 {
		answer.SwitchPMText = "Ничего не найдено"
		answer.SwitchPMParameter = "start"
	}

	b.request(answer)
}
