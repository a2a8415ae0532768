package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

// --- Mock Bot API ---

// mockAPI — мок API, запоминает отправленные запросы.
type mockAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
	member   tgbotapi.ChatMember
	me       tgbotapi.User
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		updates: make(chan tgbotapi.Update, 16),
		me:      tgbotapi.User{ID: 1000, IsBot: true, FirstName: "Indexer", UserName: "indexer_bot"},
	}
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdatesChan(_ tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updates
}

func (m *mockAPI) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockAPI) GetMe() (tgbotapi.User, error) {
	return m.me, nil
}

func (m *mockAPI) GetChatMember(_ tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return m.member, nil
}

// messages возвращает отправленные текстовые сообщения.
func (m *mockAPI) messages() []tgbotapi.MessageConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

// requestsOf возвращает запросы указанного типа.
func requestsOf[T tgbotapi.Chattable](m *mockAPI) []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []T
	for _, c := range append(append([]tgbotapi.Chattable{}, m.sent...), m.requests...) {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// --- Mock services ---

type mockIngester struct {
	mu    sync.Mutex
	saved []service.IncomingMedia
}

func (m *mockIngester) Save(_ context.Context, media service.IncomingMedia) service.SaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, media)
	return service.SaveResult{Outcome: service.OutcomeInserted}
}

type mockSearcher struct {
	searchFn    func(req service.SearchRequest) (*service.SearchResult, error)
	files       map[string]*model.MediaRecord
	total       int64
	deleted     []*model.MediaRecord
	lastRequest service.SearchRequest
}

func (m *mockSearcher) Search(_ context.Context, req service.SearchRequest) (*service.SearchResult, error) {
	m.lastRequest = req
	if m.searchFn != nil {
		return m.searchFn(req)
	}
	return &service.SearchResult{}, nil
}

func (m *mockSearcher) FileDetails(_ context.Context, key string) (*model.MediaRecord, error) {
	if rec, ok := m.files[key]; ok {
		return rec, nil
	}
	return nil, service.ErrNotFound
}

func (m *mockSearcher) BadFiles(_ context.Context, _, _ string) ([]*model.MediaRecord, int64, error) {
	out := make([]*model.MediaRecord, 0, len(m.files))
	for _, rec := range m.files {
		out = append(out, rec)
	}
	return out, int64(len(out)), nil
}

func (m *mockSearcher) DeleteFiles(_ context.Context, files []*model.MediaRecord) (int64, error) {
	m.deleted = append(m.deleted, files...)
	return int64(len(files)), nil
}

func (m *mockSearcher) Total(_ context.Context) (int64, error) {
	return m.total, nil
}

type mockSettings struct {
	compact map[int64]bool
}

func (m *mockSettings) SetCompact(_ context.Context, chatID int64, on bool) error {
	if m.compact == nil {
		m.compact = map[int64]bool{}
	}
	m.compact[chatID] = on
	return nil
}

type mockModerator struct {
	mu            sync.Mutex
	bannedUsers   map[int64]bool
	disabledChats map[int64]bool
	registered    []int64
}

func newMockModerator() *mockModerator {
	return &mockModerator{bannedUsers: map[int64]bool{}, disabledChats: map[int64]bool{}}
}

func (m *mockModerator) IsUserBanned(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bannedUsers[id]
}

func (m *mockModerator) IsChatDisabled(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disabledChats[id]
}

func (m *mockModerator) BanUser(_ context.Context, id int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bannedUsers[id] = true
	return nil
}

func (m *mockModerator) UnbanUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.bannedUsers[id] {
		return service.ErrNotFound
	}
	delete(m.bannedUsers, id)
	return nil
}

func (m *mockModerator) DisableChat(_ context.Context, id int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabledChats[id] = true
	return nil
}

func (m *mockModerator) EnableChat(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.disabledChats[id] {
		return service.ErrNotFound
	}
	delete(m.disabledChats, id)
	return nil
}

func (m *mockModerator) RegisterUser(_ context.Context, id int64, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.registered {
		if r == id {
			return false, nil
		}
	}
	m.registered = append(m.registered, id)
	return true, nil
}

func (m *mockModerator) RegisterChat(_ context.Context, _ int64, _ string) (bool, error) {
	return true, nil
}

func (m *mockModerator) Stats(_ context.Context) (users, chats int64, err error) {
	return int64(len(m.registered)), 0, nil
}

// --- Хелперы ---

const (
	adminID   int64 = 1
	userID    int64 = 2
	groupID   int64 = -1001
	channelID int64 = -1002003
)

type testBot struct {
	*Bot
	api       *mockAPI
	ingest    *mockIngester
	search    *mockSearcher
	settings  *mockSettings
	moderator *mockModerator
}

func newTestBot() *testBot {
	tb := &testBot{
		api:       newMockAPI(),
		ingest:    &mockIngester{},
		search:    &mockSearcher{files: map[string]*model.MediaRecord{}},
		settings:  &mockSettings{},
		moderator: newMockModerator(),
	}
	tb.Bot = New(tb.api, tb.ingest, tb.search, tb.settings, tb.moderator, Config{
		Channels: []string{"-1002003", "@Movies"},
		Admins:   []int64{adminID},
		Workers:  4,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tb.self = tb.api.me
	return tb
}

func privateChat(id int64) *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: id, Type: "private"}
}

func groupChat() *tgbotapi.Chat {
	return &tgbotapi.Chat{ID: groupID, Type: "supergroup", Title: "Movies chat"}
}

// command строит сообщение с командой.
func command(chat *tgbotapi.Chat, from int64, text string) *tgbotapi.Message {
	cmdLen := len(text)
	if i := strings.IndexByte(text, ' '); i >= 0 {
		cmdLen = i
	}
	return &tgbotapi.Message{
		MessageID: 10,
		From:      &tgbotapi.User{ID: from, FirstName: "Tester"},
		Chat:      chat,
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}
