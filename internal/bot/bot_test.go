package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/bigkaa/tgmedia-indexer/internal/domain/model"
	"github.com/bigkaa/tgmedia-indexer/internal/service"
)

func channelPost(chat *tgbotapi.Chat) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 5,
		Chat:      chat,
		Document: &tgbotapi.Document{
			FileID: "BQACAgQAAwMBAgMBAAcCAAcWBA", FileUniqueID: "AgADAQ",
			FileName: "my_movie.2020-720p.mkv", MimeType: "video/x-matroska", FileSize: 2048,
		},
		Caption:         "Matrix 1999",
		CaptionEntities: []tgbotapi.MessageEntity{{Type: "bold", Offset: 0, Length: 6}},
	}
}

// TestHandleChannelPost проверяет индексацию только настроенных каналов.
func TestHandleChannelPost(t *testing.T) {
	tests := []struct {
		name     string
		chat     *tgbotapi.Chat
		wantSave bool
	}{
		{"канал по id", &tgbotapi.Chat{ID: channelID, Type: "channel"}, true},
		{"канал по username", &tgbotapi.Chat{ID: -1, Type: "channel", UserName: "movies"}, true},
		{"чужой канал", &tgbotapi.Chat{ID: -2, Type: "channel", UserName: "other"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot()
			tb.HandleUpdate(context.Background(), tgbotapi.Update{ChannelPost: channelPost(tt.chat)})

			if got := len(tb.ingest.saved) == 1; got != tt.wantSave {
				t.Fatalf("сохранено %d файлов", len(tb.ingest.saved))
			}
			if !tt.wantSave {
				return
			}
			m := tb.ingest.saved[0]
			if m.FileType != model.FileTypeDocument || m.FileSize != 2048 || m.FileName != "my_movie.2020-720p.mkv" {
				t.Errorf("media = %+v", m)
			}
			if m.Caption != "<b>Matrix</b> 1999" {
				t.Errorf("Caption = %q", m.Caption)
			}
		})
	}
}

func TestExtractMedia(t *testing.T) {
	tests := []struct {
		name     string
		msg      *tgbotapi.Message
		wantOK   bool
		wantType string
		wantName string
	}{
		{
			name:     "видео без имени с подписью",
			msg:      &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v", FileUniqueID: "u1"}, Caption: "The Matrix\nsecond line"},
			wantOK:   true,
			wantType: model.FileTypeVideo,
			wantName: "The Matrix",
		},
		{
			name:     "видео без имени и подписи",
			msg:      &tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v", FileUniqueID: "u1"}},
			wantOK:   true,
			wantType: model.FileTypeVideo,
			wantName: "video u1",
		},
		{
			name:     "аудио с исполнителем",
			msg:      &tgbotapi.Message{Audio: &tgbotapi.Audio{FileID: "a", Performer: "Queen", Title: "Bohemian Rhapsody"}},
			wantOK:   true,
			wantType: model.FileTypeAudio,
			wantName: "Queen Bohemian Rhapsody",
		},
		{
			name:   "текст без медиа",
			msg:    &tgbotapi.Message{Text: "hello"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := ExtractMedia(tt.msg)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, ожидалось %v", ok, tt.wantOK)
			}
			if m.FileType != tt.wantType || m.FileName != tt.wantName {
				t.Errorf("media = (%q, %q), ожидалось (%q, %q)", m.FileType, m.FileName, tt.wantType, tt.wantName)
			}
		})
	}
}

func TestParseInlineQuery(t *testing.T) {
	tests := []struct {
		in        string
		wantQuery string
		wantType  string
	}{
		{"matrix", "matrix", ""},
		{"  matrix 1999 ", "matrix 1999", ""},
		{"matrix | Video", "matrix", "video"},
		{"| audio", "", "audio"},
		{"", "", ""},
	}
	for _, tt := range tests {
		q, ft := ParseInlineQuery(tt.in)
		if q != tt.wantQuery || ft != tt.wantType {
			t.Errorf("ParseInlineQuery(%q) = (%q, %q), ожидалось (%q, %q)", tt.in, q, ft, tt.wantQuery, tt.wantType)
		}
	}
}

// pagedSearch возвращает searchFn с total записями и страницей 10.
func pagedSearch(total int) func(req service.SearchRequest) (*service.SearchResult, error) {
	return func(req service.SearchRequest) (*service.SearchResult, error) {
		const limit = 10
		res := &service.SearchResult{Total: int64(total), Limit: limit, Offset: req.Offset}
		for i := req.Offset; i < min(req.Offset+limit, total); i++ {
			res.Files = append(res.Files, &model.MediaRecord{
				FileKey:  "key" + strings.Repeat("x", i%3) + string(rune('a'+i)),
				FileName: "file",
				FileSize: 1536,
			})
		}
		if req.Offset+limit < total {
			res.HasNext = true
			res.NextOffset = req.Offset + limit
		}
		return res, nil
	}
}

func TestHandleInlineQuery(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = pagedSearch(25)

	tb.HandleUpdate(context.Background(), tgbotapi.Update{InlineQuery: &tgbotapi.InlineQuery{
		ID: "iq1", From: &tgbotapi.User{ID: userID}, Query: "file | video", Offset: "10",
	}})

	if tb.search.lastRequest.FileType != "video" || tb.search.lastRequest.Offset != 10 || tb.search.lastRequest.ChatID != nil {
		t.Errorf("запрос = %+v", tb.search.lastRequest)
	}

	answers := requestsOf[tgbotapi.InlineConfig](tb.api)
	if len(answers) != 1 {
		t.Fatalf("ответов = %d, ожидался 1", len(answers))
	}
	a := answers[0]
	if a.InlineQueryID != "iq1" || len(a.Results) != 10 || a.NextOffset != "20" {
		t.Errorf("ответ: id=%q results=%d next=%q", a.InlineQueryID, len(a.Results), a.NextOffset)
	}
	doc, ok := a.Results[0].(tgbotapi.InlineQueryResultCachedDocument)
	if !ok {
		t.Fatalf("результат типа %T", a.Results[0])
	}
	if doc.ID != doc.DocumentID || doc.Description != "1.50 KB" || doc.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("документ = %+v", doc)
	}
	if doc.Caption != "<b>file</b>" {
		t.Errorf("Caption = %q", doc.Caption)
	}
}

func TestHandleInlineQuery_Banned(t *testing.T) {
	tb := newTestBot()
	tb.moderator.bannedUsers[userID] = true

	tb.HandleUpdate(context.Background(), tgbotapi.Update{InlineQuery: &tgbotapi.InlineQuery{
		ID: "iq2", From: &tgbotapi.User{ID: userID}, Query: "file",
	}})

	answers := requestsOf[tgbotapi.InlineConfig](tb.api)
	if len(answers) != 1 || len(answers[0].Results) != 0 || answers[0].SwitchPMText == "" {
		t.Errorf("ответ заблокированному пользователю = %+v", answers)
	}
	if tb.search.lastRequest.Query != "" {
		t.Error("поиск выполнен для заблокированного пользователя")
	}
}

func TestResultsKeyboard(t *testing.T) {
	res := &service.SearchResult{
		Files:      []*model.MediaRecord{{FileKey: "k1", FileName: "a", FileSize: 10}},
		Total:      25,
		Limit:      10,
		Offset:     10,
		HasNext:    true,
		NextOffset: 20,
	}

	want := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("[10 B] a", "file#k1")),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏪ Назад", "next#0"),
			tgbotapi.NewInlineKeyboardButtonData("📃 2/3", "pages"),
			tgbotapi.NewInlineKeyboardButtonData("Далее ⏩", "next#20"),
		),
	)
	if diff := cmp.Diff(want, ResultsKeyboard(res)); diff != "" {
		t.Errorf("клавиатура (-want +got):\n%s", diff)
	}
}

func TestResultsKeyboard_SinglePage(t *testing.T) {
	res := &service.SearchResult{
		Files: []*model.MediaRecord{{FileKey: "k1", FileName: "a"}},
		Total: 1, Limit: 10,
	}
	kb := ResultsKeyboard(res)
	if len(kb.InlineKeyboard) != 1 {
		t.Errorf("строк = %d, ожидалась 1 (без навигации)", len(kb.InlineKeyboard))
	}
}

// TestHandleTextSearch_Group проверяет ответ с клавиатурой и размер страницы чата.
func TestHandleTextSearch_Group(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = pagedSearch(25)

	tb.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 42, From: &tgbotapi.User{ID: userID}, Chat: groupChat(), Text: "matrix",
	}})

	if req := tb.search.lastRequest; req.ChatID == nil || *req.ChatID != groupID || req.Query != "matrix" {
		t.Errorf("запрос = %+v", req)
	}
	msgs := tb.api.messages()
	if len(msgs) != 1 {
		t.Fatalf("сообщений = %d, ожидалось 1", len(msgs))
	}
	m := msgs[0]
	if m.ReplyToMessageID != 42 || !strings.Contains(m.Text, "25") {
		t.Errorf("сообщение = %+v", m)
	}
	kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(kb.InlineKeyboard) != 11 {
		t.Fatalf("ReplyMarkup = %T", m.ReplyMarkup)
	}
	last := kb.InlineKeyboard[10]
	if data := *last[len(last)-1].CallbackData; data != "next#10" {
		t.Errorf("кнопка далее = %q", data)
	}
}

func TestHandleTextSearch_NoResults(t *testing.T) {
	tests := []struct {
		name     string
		chat     *tgbotapi.Chat
		wantMsgs int
	}{
		{"группа молчит", groupChat(), 0},
		{"личный чат отвечает", privateChat(userID), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot()
			tb.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
				From: &tgbotapi.User{ID: userID}, Chat: tt.chat, Text: "nothing here",
			}})
			if got := len(tb.api.messages()); got != tt.wantMsgs {
				t.Errorf("сообщений = %d, ожидалось %d", got, tt.wantMsgs)
			}
		})
	}
}

// TestHandleMessage_Ignored проверяет фильтрацию заблокированных и коротких запросов.
func TestHandleMessage_Ignored(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = pagedSearch(5)
	tb.moderator.bannedUsers[userID] = true
	tb.moderator.disabledChats[groupID] = true

	updates := []*tgbotapi.Message{
		{From: &tgbotapi.User{ID: userID}, Chat: privateChat(userID), Text: "matrix"},
		{From: &tgbotapi.User{ID: 3}, Chat: groupChat(), Text: "matrix"},
		{From: &tgbotapi.User{ID: 3}, Chat: privateChat(3), Text: "m"},
	}
	for _, m := range updates {
		tb.HandleUpdate(context.Background(), tgbotapi.Update{Message: m})
	}

	if got := len(tb.api.messages()); got != 0 {
		t.Errorf("отправлено %d сообщений, ожидалось 0", got)
	}
}

func TestHandleCallback_File(t *testing.T) {
	tb := newTestBot()

	tb.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb1", From: &tgbotapi.User{ID: userID}, Data: "file#BQADBAADAQAHAgAHFgQ",
	}})

	answers := requestsOf[tgbotapi.CallbackConfig](tb.api)
	if len(answers) != 1 {
		t.Fatalf("ответов = %d", len(answers))
	}
	if want := "https://t.me/indexer_bot?start=file_BQADBAADAQAHAgAHFgQ"; answers[0].URL != want {
		t.Errorf("URL = %q, ожидался %q", answers[0].URL, want)
	}
}

func TestHandleCallback_NextPage(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = pagedSearch(25)

	orig := &tgbotapi.Message{MessageID: 42, From: &tgbotapi.User{ID: userID}, Chat: groupChat(), Text: "matrix"}
	cb := &tgbotapi.CallbackQuery{
		ID:      "cb2",
		From:    &tgbotapi.User{ID: userID},
		Data:    "next#20",
		Message: &tgbotapi.Message{MessageID: 43, Chat: groupChat(), ReplyToMessage: orig},
	}
	tb.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: cb})

	if tb.search.lastRequest.Offset != 20 || tb.search.lastRequest.Query != "matrix" {
		t.Errorf("запрос = %+v", tb.search.lastRequest)
	}
	edits := requestsOf[tgbotapi.EditMessageReplyMarkupConfig](tb.api)
	if len(edits) != 1 || edits[0].MessageID != 43 {
		t.Fatalf("правки = %+v", edits)
	}
	// Последняя страница: 5 файлов и строка навигации без "Далее".
	rows := edits[0].ReplyMarkup.InlineKeyboard
	if len(rows) != 6 {
		t.Errorf("строк = %d, ожидалось 6", len(rows))
	}
	for _, btn := range rows[len(rows)-1] {
		if *btn.CallbackData == "next#30" {
			t.Error("на последней странице есть кнопка далее")
		}
	}
}

func TestHandleCallback_NextPage_ForeignUser(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = pagedSearch(25)

	orig := &tgbotapi.Message{MessageID: 42, From: &tgbotapi.User{ID: userID}, Chat: groupChat(), Text: "matrix"}
	tb.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb3", From: &tgbotapi.User{ID: 99}, Data: "next#10",
		Message: &tgbotapi.Message{MessageID: 43, Chat: groupChat(), ReplyToMessage: orig},
	}})

	answers := requestsOf[tgbotapi.CallbackConfig](tb.api)
	if len(answers) != 1 || !answers[0].ShowAlert {
		t.Errorf("ответы = %+v, ожидалось предупреждение", answers)
	}
	if len(requestsOf[tgbotapi.EditMessageReplyMarkupConfig](tb.api)) != 0 {
		t.Error("сообщение отредактировано по чужому запросу")
	}
}

func TestCmdStart_File(t *testing.T) {
	tb := newTestBot()
	tb.search.files["BQADBAADAQAHAgAHFgQ"] = &model.MediaRecord{
		FileKey: "BQADBAADAQAHAgAHFgQ", FileName: "doc", Caption: "<i>caption</i>",
	}

	tb.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: command(privateChat(userID), userID, "/start file_BQADBAADAQAHAgAHFgQ"),
	})

	docs := requestsOf[tgbotapi.DocumentConfig](tb.api)
	if len(docs) != 1 {
		t.Fatalf("документов = %d, ожидался 1", len(docs))
	}
	if docs[0].File != tgbotapi.FileID("BQADBAADAQAHAgAHFgQ") || docs[0].Caption != "<i>caption</i>" {
		t.Errorf("документ = %+v", docs[0])
	}
	if len(tb.moderator.registered) != 1 {
		t.Error("пользователь не зарегистрирован")
	}
}

func TestCmdStart_NotFound(t *testing.T) {
	tb := newTestBot()

	tb.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: command(privateChat(userID), userID, "/start file_missing"),
	})

	msgs := tb.api.messages()
	if len(msgs) != 1 || msgs[0].Text != "Файл не найден" {
		t.Errorf("сообщения = %+v", msgs)
	}
}

// TestAdminCommands проверяет, что команды выполняются только для администраторов.
func TestAdminCommands(t *testing.T) {
	tb := newTestBot()
	ctx := context.Background()

	tb.HandleUpdate(ctx, tgbotapi.Update{Message: command(privateChat(userID), userID, "/ban 555 spam")})
	if tb.moderator.IsUserBanned(555) {
		t.Fatal("команда выполнена не администратором")
	}

	tb.HandleUpdate(ctx, tgbotapi.Update{Message: command(privateChat(adminID), adminID, "/ban 555 spam")})
	if !tb.moderator.IsUserBanned(555) {
		t.Fatal("пользователь не заблокирован")
	}

	tb.HandleUpdate(ctx, tgbotapi.Update{Message: command(privateChat(adminID), adminID, "/unban 555")})
	if tb.moderator.IsUserBanned(555) {
		t.Fatal("пользователь не разблокирован")
	}

	tb.HandleUpdate(ctx, tgbotapi.Update{Message: command(privateChat(adminID), adminID, "/unban 555")})
	msgs := tb.api.messages()
	if last := msgs[len(msgs)-1].Text; !strings.Contains(last, "не заблокирован") {
		t.Errorf("ответ = %q", last)
	}

	tb.HandleUpdate(ctx, tgbotapi.Update{Message: command(privateChat(adminID), adminID, "/ban abc")})
	msgs = tb.api.messages()
	if last := msgs[len(msgs)-1].Text; !strings.Contains(last, "Использование") {
		t.Errorf("ответ = %q", last)
	}
}

func TestCmdDisable(t *testing.T) {
	tb := newTestBot()

	tb.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: command(privateChat(adminID), adminID, "/disable -1001 flood"),
	})

	if !tb.moderator.IsChatDisabled(-1001) {
		t.Fatal("чат не отключён")
	}
	leaves := requestsOf[tgbotapi.LeaveChatConfig](tb.api)
	if len(leaves) != 1 || leaves[0].ChatID != -1001 {
		t.Errorf("leaveChat = %+v", leaves)
	}
}

func TestCmdDeleteFiles(t *testing.T) {
	tb := newTestBot()
	tb.search.files["a"] = &model.MediaRecord{FileKey: "a"}
	tb.search.files["b"] = &model.MediaRecord{FileKey: "b"}

	tb.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: command(privateChat(adminID), adminID, "/deletefiles cam rip"),
	})

	if len(tb.search.deleted) != 2 {
		t.Errorf("удалено %d, ожидалось 2", len(tb.search.deleted))
	}
	msgs := tb.api.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "<b>2</b> из 2") {
		t.Errorf("ответ = %+v", msgs)
	}
}

func TestCmdTotal(t *testing.T) {
	tb := newTestBot()
	tb.search.total = 1234

	tb.HandleUpdate(context.Background(), tgbotapi.Update{Message: command(privateChat(adminID), adminID, "/total")})

	msgs := tb.api.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Text, "1234") {
		t.Errorf("ответ = %+v", msgs)
	}
}

func TestCmdCompact(t *testing.T) {
	tests := []struct {
		name   string
		status string
		args   string
		want   map[int64]bool
	}{
		{"администратор группы", "administrator", "on", map[int64]bool{groupID: true}},
		{"создатель выключает", "creator", "off", map[int64]bool{groupID: false}},
		{"обычный участник", "member", "on", nil},
		{"неверный аргумент", "administrator", "maybe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBot()
			tb.api.member = tgbotapi.ChatMember{Status: tt.status}

			tb.HandleUpdate(context.Background(), tgbotapi.Update{
				Message: command(groupChat(), userID, "/compact "+tt.args),
			})

			if diff := cmp.Diff(tt.want, tb.settings.compact); diff != "" {
				t.Errorf("настройки (-want +got):\n%s", diff)
			}
			if len(tb.api.messages()) != 1 {
				t.Errorf("ответов = %d, ожидался 1", len(tb.api.messages()))
			}
		})
	}
}

// TestHandleUpdate_RecoversPanic проверяет, что паника обработчика не выходит наружу.
func TestHandleUpdate_RecoversPanic(t *testing.T) {
	tb := newTestBot()
	tb.search.searchFn = func(_ service.SearchRequest) (*service.SearchResult, error) {
		panic("boom")
	}

	tb.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID}, Chat: privateChat(userID), Text: "matrix",
	}})
}

func TestStart_RestartNotice(t *testing.T) {
	tb := newTestBot()
	tb.cfg.LogChannel = -100777
	tb.self = tgbotapi.User{}

	if err := tb.Start(context.Background()); err != nil {
		t.Fatalf("Start ошибка: %v", err)
	}
	if tb.self.UserName != "indexer_bot" {
		t.Errorf("self = %+v", tb.self)
	}
	msgs := tb.api.messages()
	if len(msgs) != 1 || msgs[0].ChatID != -100777 || !strings.Contains(msgs[0].Text, "перезапущен") {
		t.Errorf("сообщения = %+v", msgs)
	}
}

func TestRestartText(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	text := restartText(time.Date(2024, 3, 5, 14, 7, 9, 0, loc))

	for _, want := range []string{"2024-03-05", "14:07:09 PM", "IST"} {
		if !strings.Contains(text, want) {
			t.Errorf("текст %q не содержит %q", text, want)
		}
	}
}

// TestRun_DrainsUpdates проверяет обработку всех обновлений до закрытия канала.
func TestRun_DrainsUpdates(t *testing.T) {
	tb := newTestBot()
	for range 3 {
		tb.api.updates <- tgbotapi.Update{ChannelPost: channelPost(&tgbotapi.Chat{ID: channelID, Type: "channel"})}
	}
	close(tb.api.updates)

	if err := tb.Run(context.Background()); err != nil {
		t.Fatalf("Run ошибка: %v", err)
	}
	if len(tb.ingest.saved) != 3 {
		t.Errorf("сохранено %d, ожидалось 3", len(tb.ingest.saved))
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	tb := newTestBot()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tb.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run ошибка: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run не завершился после отмены контекста")
	}
	if !tb.api.stopped {
		t.Error("StopReceivingUpdates не вызван")
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{1 << 30, "1.00 GB"},
	}
	for _, tt := range tests {
		if got := HumanSize(tt.in); got != tt.want {
			t.Errorf("HumanSize(%d) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}
