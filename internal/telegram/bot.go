package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"snapbot/internal/service"
	"snapbot/pkg/retry"
)

// API - часть *tgbotapi.BotAPI, которой пользуется бот
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource - источник обновлений long polling
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var (
	_ API          = (*tgbotapi.BotAPI)(nil)
	_ UpdateSource = (*tgbotapi.BotAPI)(nil)
)

// Sender - все исходящие сообщения бота
type Sender interface {
	service.Notifier
	SendHTML(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	EditHTML(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID string) error
}

// Messenger отправляет сообщения через Bot API.
// 429 Too Many Requests повторяется с задержкой retry_after из ответа.
type Messenger struct {
	api    API
	retry  retry.Config
	logger *zap.Logger
}

var _ Sender = (*Messenger)(nil)

// NewMessenger создает отправителя; attempts - число попыток на сообщение
func NewMessenger(api API, attempts int, logger *zap.Logger) *Messenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := retry.DefaultConfig()
	if attempts > 0 {
		cfg.MaxRetries = attempts
	}
	cfg.RetryIf = isTooManyRequests
	cfg.DelayFor = retryAfter
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Warn("telegram rate limited, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	return &Messenger{api: api, retry: cfg, logger: logger}
}

// SendText отправляет обычный текст без разметки
func (m *Messenger) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	return m.send(ctx, msg)
}

// SendHTML отправляет текст с HTML разметкой и необязательной клавиатурой
func (m *Messenger) SendHTML(ctx context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	return m.send(ctx, msg)
}

// EditHTML заменяет текст и клавиатуру отправленного сообщения
func (m *Messenger) EditHTML(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	var edit tgbotapi.EditMessageTextConfig
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	edit.ParseMode = tgbotapi.ModeHTML
	return m.request(ctx, edit)
}

// SendDocument отправляет файл с подписью
func (m *Messenger) SendDocument(ctx context.Context, chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	return m.send(ctx, doc)
}

// AnswerCallback снимает индикатор загрузки с inline кнопки
func (m *Messenger) AnswerCallback(ctx context.Context, callbackID string) error {
	return m.request(ctx, tgbotapi.NewCallback(callbackID, ""))
}

func (m *Messenger) send(ctx context.Context, c tgbotapi.Chattable) error {
	return retry.Do(ctx, func() error {
		_, err := m.api.Send(c)
		return err
	}, m.retry)
}

func (m *Messenger) request(ctx context.Context, c tgbotapi.Chattable) error {
	return retry.Do(ctx, func() error {
		_, err := m.api.Request(c)
		return err
	}, m.retry)
}

func apiError(err error) (*tgbotapi.Error, bool) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr, true
	}
	return nil, false
}

func isTooManyRequests(err error) bool {
	tgErr, ok := apiError(err)
	return ok && (tgErr.Code == http.StatusTooManyRequests || tgErr.RetryAfter > 0)
}

func retryAfter(err error) (time.Duration, bool) {
	tgErr, ok := apiError(err)
	if !ok || tgErr.RetryAfter <= 0 {
		return 0, false
	}
	return time.Duration(tgErr.RetryAfter) * time.Second, true
}

// isNotModified - Telegram отклонил правку, так как текст и клавиатура не изменились
func isNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "message is not modified")
}

// describe форматирует ошибку Bot API для логов
func describe(err error) string {
	if tgErr, ok := apiError(err); ok {
		return fmt.Sprintf("telegram %d: %s", tgErr.Code, tgErr.Message)
	}
	return err.Error()
}
