// channel.go — индексация медиафайлов из каналов.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// isIndexedChannel проверяет, входит ли канал в MI_CHANNELS.
func (b *Bot) isIndexedChannel(chat *tgbotapi.Chat) bool {
	if chat == nil {
		return false
	}
	if _, ok := b.channelIDs[chat.ID]; ok {
		return true
	}
	if chat.UserName != "" {
		_, ok := b.channelNames[strings.ToLower(chat.UserName)]
		return ok
	}
	return false
}

// handleChannelPost сохраняет документ, видео или аудио из поста канала.
func (b *Bot) handleChannelPost(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isIndexedChannel(msg.Chat) {
		return
	}
	media, ok := ExtractMedia(msg)
	if !ok {
		return
	}

	res := b.ingest.Save(ctx, media)
	b.logger.Debug("Пост канала обработан",
		slog.Int64("chat_id", msg.Chat.ID),
		slog.Int("message_id", msg.MessageID),
		slog.String("outcome", res.Outcome.String()),
	)
}

// ExtractMedia извлекает медиафайл из сообщения.
// Поддерживаются документ, видео и аудио; остальные сообщения пропускаются.
func ExtractMedia(msg *tgbotapi.Message) (service.IncomingMedia, bool) {
	m := service.IncomingMedia{
		Caption: CaptionHTML(msg.Caption, msg.CaptionEntities),
	}

	var uniqueID string
	switch {
	case msg.Document != nil:
		d := msg.Document
		m.FileID, m.FileName, m.FileSize, m.MimeType = d.FileID, d.FileName, int64(d.FileSize), d.MimeType
		m.FileType = model.FileTypeDocument
		uniqueID = d.FileUniqueID
	case msg.Video != nil:
		v := msg.Video
		m.FileID, m.FileName, m.FileSize, m.MimeType = v.FileID, v.FileName, int64(v.FileSize), v.MimeType
		m.FileType = model.FileTypeVideo
		uniqueID = v.FileUniqueID
	case msg.Audio != nil:
		a := msg.Audio
		m.FileID, m.FileName, m.FileSize, m.MimeType = a.FileID, a.FileName, int64(a.FileSize), a.MimeType
		m.FileType = model.FileTypeAudio
		uniqueID = a.FileUniqueID
		if m.FileName == "" && a.Title != "" {
			m.FileName = strings.TrimSpace(a.Performer + " " + a.Title)
		}
	default:
		return service.IncomingMedia{}, false
	}

	if m.FileName == "" {
		m.FileName = fallbackFileName(msg.Caption, m.FileType, uniqueID)
	}
	return m, true
}

// fallbackFileName строит имя для файла без file_name:
// первая строка подписи или "<тип> <file_unique_id>".
func fallbackFileName(caption, fileType, uniqueID string) string {
	if line, _, _ := strings.Cut(strings.TrimSpace(caption), "\n"); strings.TrimSpace(line) != "" {
		return strings.TrimSpace(line)
	}
	return fmt.Sprintf("%s %s", fileType, uniqueID)
}
