package telegram

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"snapbot/internal/exchange"
	"snapbot/internal/export"
	"snapbot/internal/models"
	"snapbot/internal/repository"
	"snapbot/internal/scheduler"
	"snapbot/internal/service"
)

// ============ Mock Sender ============

type sent struct {
	ChatID    int64
	Kind      string // text, html, edit, document
	Text      string
	Markup    *tgbotapi.InlineKeyboardMarkup
	MessageID int
}

type MockSender struct {
	mu        sync.Mutex
	messages  []sent
	callbacks []string
	editErr   error
}

func (m *MockSender) add(s sent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, s)
	return nil
}

func (m *MockSender) SendText(_ context.Context, chatID int64, text string) error {
	return m.add(sent{ChatID: chatID, Kind: "text", Text: text})
}

func (m *MockSender) SendDocument(_ context.Context, chatID int64, path, caption string) error {
	return m.add(sent{ChatID: chatID, Kind: "document", Text: caption})
}

func (m *MockSender) SendHTML(_ context.Context, chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	return m.add(sent{ChatID: chatID, Kind: "html", Text: text, Markup: markup})
}

func (m *MockSender) EditHTML(_ context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if m.editErr != nil {
		return m.editErr
	}
	return m.add(sent{ChatID: chatID, Kind: "edit", Text: text, Markup: markup, MessageID: messageID})
}

func (m *MockSender) AnswerCallback(_ context.Context, callbackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callbackID)
	return nil
}

// last возвращает последнее сообщение
func (m *MockSender) last(t *testing.T) sent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		t.Fatal("ни одного сообщения не отправлено")
	}
	return m.messages[len(m.messages)-1]
}

func (m *MockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// ============ Mock repository.Storage ============

type memStorage struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{docs: make(map[string][]byte)}
}

func (s *memStorage) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.docs[name]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	return data, nil
}

func (s *memStorage) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[name] = append([]byte(nil), data...)
	return nil
}

// ============ Mock exchange.Client ============

type MockClient struct {
	mu         sync.Mutex
	positions  []exchange.Position
	funding    []exchange.FundingPayment
	markets    []exchange.Market
	history    []exchange.HistoricalFunding
	lastParams models.Params
	lastMarket string
	err        error
}

func (m *MockClient) remember(params models.Params) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastParams = params.Clone()
}

func (m *MockClient) GetPositions(_ context.Context, _ *models.APIKeyPair, params models.Params) ([]exchange.Position, error) {
	m.remember(params)
	return m.positions, m.err
}

func (m *MockClient) GetTransfers(_ context.Context, _ *models.APIKeyPair, params models.Params) ([]exchange.Transfer, error) {
	m.remember(params)
	return nil, m.err
}

func (m *MockClient) GetOrders(_ context.Context, _ *models.APIKeyPair, params models.Params) ([]exchange.Order, error) {
	m.remember(params)
	return nil, m.err
}

func (m *MockClient) GetFundingPayments(_ context.Context, _ *models.APIKeyPair, params models.Params) ([]exchange.FundingPayment, error) {
	m.remember(params)
	return m.funding, m.err
}

func (m *MockClient) GetAccounts(_ context.Context, _ *models.APIKeyPair) ([]exchange.Account, error) {
	return nil, m.err
}

func (m *MockClient) GetUser(_ context.Context, _ *models.APIKeyPair) (*exchange.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &exchange.User{PublicID: "PUBLIC1"}, nil
}

func (m *MockClient) GetMarkets(_ context.Context) ([]exchange.Market, error) {
	return m.markets, m.err
}

func (m *MockClient) GetHistoricalFunding(_ context.Context, market string, params models.Params) ([]exchange.HistoricalFunding, error) {
	m.remember(params)
	m.mu.Lock()
	m.lastMarket = market
	m.mu.Unlock()
	return m.history, m.err
}

// ============ Fixture ============

type fixture struct {
	router    *Router
	sender    *MockSender
	client    *MockClient
	accounts  *repository.AccountRepository
	schedules *repository.ScheduleRepository
	scheduler *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	storage := newMemStorage()
	sender := &MockSender{}
	client := &MockClient{}
	accountRepo := repository.NewAccountRepository(storage, nil)
	scheduleRepo := repository.NewScheduleRepository(storage)
	sched := scheduler.New(nil)

	accountService := service.NewAccountService(accountRepo, client, nil)
	queryService := service.NewQueryService(client, export.NewWriter(t.TempDir()), sender, nil)
	scheduleService := service.NewScheduleService(scheduleRepo, accountRepo, queryService, sched, sender, nil)

	return &fixture{
		router:    NewRouter(sender, accountService, queryService, scheduleService, nil),
		sender:    sender,
		client:    client,
		accounts:  accountRepo,
		schedules: scheduleRepo,
		scheduler: sched,
	}
}

// addAccount сохраняет аккаунт с API ключами и при selected выбирает его
func (f *fixture) addAccount(t *testing.T, userID int64, name string, selected bool) *models.Account {
	t.Helper()
	stored, err := f.accounts.Append(context.Background(), userID, &models.Account{
		Name:    name,
		Address: "0xAbC0000000000000000000000000000000000001",
		Credentials: models.Credentials{APIKey: &models.APIKeyPair{
			Key: "key-" + name, Secret: "c2VjcmV0", Passphrase: "pass",
		}},
	})
	if err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if selected {
		if _, err := f.accounts.Select(context.Background(), userID, stored.Key); err != nil {
			t.Fatalf("Select() error: %v", err)
		}
	}
	return stored
}

func (f *fixture) send(u tgbotapi.Update) {
	f.router.HandleUpdate(context.Background(), u)
}

// ============ Helpers ============

const testUser int64 = 1001

func commandUpdate(userID int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: userID},
		From: &tgbotapi.User{ID: userID},
		Entities: []tgbotapi.MessageEntity{
			{Type: "bot_command", Offset: 0, Length: utf8.RuneCountInString(cmd)},
		},
	}}
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: userID},
		From: &tgbotapi.User{ID: userID},
	}}
}

// input отправляет ответ в диалог: /skip приходит как команда
func input(userID int64, text string) tgbotapi.Update {
	if strings.HasPrefix(text, "/") {
		return commandUpdate(userID, text)
	}
	return textUpdate(userID, text)
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-" + data,
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}}
}

// callbackData собирает данные всех кнопок клавиатуры
func callbackData(markup *tgbotapi.InlineKeyboardMarkup) []string {
	if markup == nil {
		return nil
	}
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}
