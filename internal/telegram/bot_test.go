package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ============ Mock API ============

type MockAPI struct {
	sendErrs []error // ошибки по порядку вызовов Send, дальше успех
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	reqErr   error
}

func (m *MockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.sent = append(m.sent, c)
	if n := len(m.sent); n <= len(m.sendErrs) {
		return tgbotapi.Message{}, m.sendErrs[n-1]
	}
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *MockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.requests = append(m.requests, c)
	if m.reqErr != nil {
		return nil, m.reqErr
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func newTestMessenger(api API, attempts int) *Messenger {
	m := NewMessenger(api, attempts, nil)
	m.retry.InitialDelay = time.Millisecond
	m.retry.MaxDelay = 5 * time.Millisecond
	return m
}

func TestMessenger_RetriesTooManyRequests(t *testing.T) {
	api := &MockAPI{sendErrs: []error{
		&tgbotapi.Error{Code: 429, Message: "Too Many Requests: retry after 0"},
	}}
	m := newTestMessenger(api, 3)

	if err := m.SendText(context.Background(), 1, "hi"); err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if len(api.sent) != 2 {
		t.Errorf("попыток = %d, want 2", len(api.sent))
	}
}

func TestMessenger_DoesNotRetryOtherErrors(t *testing.T) {
	api := &MockAPI{sendErrs: []error{
		&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"},
	}}
	m := newTestMessenger(api, 3)

	err := m.SendText(context.Background(), 1, "hi")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if len(api.sent) != 1 {
		t.Errorf("попыток = %d, want 1", len(api.sent))
	}
	if got := describe(err); got != "telegram 400: Bad Request: chat not found" {
		t.Errorf("describe() = %q", got)
	}
}

func TestMessenger_GivesUpAfterAttempts(t *testing.T) {
	tooMany := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	api := &MockAPI{sendErrs: []error{tooMany, tooMany, tooMany, tooMany}}
	m := newTestMessenger(api, 2)

	if err := m.SendText(context.Background(), 1, "hi"); !errors.Is(err, tooMany) {
		t.Errorf("ожидалась последняя ошибка, got %v", err)
	}
	if len(api.sent) != 2 {
		t.Errorf("попыток = %d, want 2", len(api.sent))
	}
}

func TestMessenger_Payloads(t *testing.T) {
	api := &MockAPI{}
	m := newTestMessenger(api, 1)
	ctx := context.Background()
	markup := publicMenuKeyboard()

	if err := m.SendText(ctx, 5, "plain <b>"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendHTML(ctx, 5, "<b>bold</b>", &markup); err != nil {
		t.Fatal(err)
	}
	if err := m.SendDocument(ctx, 5, "/tmp/file.xlsx", "Markets Data - now"); err != nil {
		t.Fatal(err)
	}

	plain := api.sent[0].(tgbotapi.MessageConfig)
	if plain.ParseMode != "" || plain.ChatID != 5 {
		t.Errorf("обычный текст без разметки: %+v", plain)
	}

	html := api.sent[1].(tgbotapi.MessageConfig)
	if html.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("ParseMode = %q", html.ParseMode)
	}
	if _, ok := html.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok {
		t.Errorf("ReplyMarkup = %T", html.ReplyMarkup)
	}

	doc := api.sent[2].(tgbotapi.DocumentConfig)
	if doc.Caption != "Markets Data - now" {
		t.Errorf("Caption = %q", doc.Caption)
	}
	if path, ok := doc.File.(tgbotapi.FilePath); !ok || string(path) != "/tmp/file.xlsx" {
		t.Errorf("File = %#v", doc.File)
	}
}

func TestMessenger_EditAndCallback(t *testing.T) {
	api := &MockAPI{}
	m := newTestMessenger(api, 1)
	ctx := context.Background()
	markup := scheduleListKeyboard()

	if err := m.EditHTML(ctx, 5, 42, "<b>list</b>", &markup); err != nil {
		t.Fatal(err)
	}
	if err := m.EditHTML(ctx, 5, 43, "text", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.AnswerCallback(ctx, "cb-1"); err != nil {
		t.Fatal(err)
	}

	edit := api.requests[0].(tgbotapi.EditMessageTextConfig)
	if edit.MessageID != 42 || edit.ParseMode != tgbotapi.ModeHTML || edit.ReplyMarkup == nil {
		t.Errorf("правка: %+v", edit)
	}
	if plain := api.requests[1].(tgbotapi.EditMessageTextConfig); plain.ReplyMarkup != nil {
		t.Error("без клавиатуры ReplyMarkup должен быть nil")
	}
	if cb := api.requests[2].(tgbotapi.CallbackConfig); cb.CallbackQueryID != "cb-1" {
		t.Errorf("callback = %+v", cb)
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   time.Duration
		wantOK bool
	}{
		{
			name:   "retry_after из ответа",
			err:    &tgbotapi.Error{Code: 429, ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}},
			want:   3 * time.Second,
			wantOK: true,
		},
		{
			name: "429 без retry_after",
			err:  &tgbotapi.Error{Code: 429},
		},
		{
			name: "не ошибка Bot API",
			err:  errors.New("connection reset"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := retryAfter(tt.err)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("retryAfter() = %v, %v; want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsNotModified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"не изменено", &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified: specified new message content"}, true},
		{"другая ошибка", &tgbotapi.Error{Code: 400, Message: "Bad Request: message to edit not found"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotModified(tt.err); got != tt.want {
				t.Errorf("isNotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}
