package model

import "time"

// ChatSettings — настройки группового чата.
type ChatSettings struct {
	// ChatID — идентификатор чата Telegram
	ChatID int64
	// MaxBtn — компактный режим: не более 10 результатов на страницу
	MaxBtn bool
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// DefaultChatSettings возвращает настройки чата по умолчанию.
func DefaultChatSettings(chatID int64) ChatSettings {
	return ChatSettings{ChatID: chatID}
}

// BannedUser — заблокированный пользователь.
type BannedUser struct {
	UserID   int64
	Reason   string
	BannedAt time.Time
}

// DisabledChat — отключённый чат.
type DisabledChat struct {
	ChatID     int64
	Reason     string
	DisabledAt time.Time
}
