package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"snapbot/internal/exchange"
	"snapbot/internal/export"
	"snapbot/internal/models"
	"snapbot/internal/repository"
	"snapbot/internal/scheduler"
)

// ============ Mock AccountStore ============

type MockAccountStore struct {
	accounts  map[int64]map[string]*models.Account
	appendErr error
	selectErr error
}

func NewMockAccountStore() *MockAccountStore {
	return &MockAccountStore{accounts: make(map[int64]map[string]*models.Account)}
}

func (m *MockAccountStore) put(userID int64, a *models.Account) {
	if m.accounts[userID] == nil {
		m.accounts[userID] = make(map[string]*models.Account)
	}
	m.accounts[userID][a.Key] = a
}

func (m *MockAccountStore) Append(_ context.Context, userID int64, account *models.Account) (*models.Account, error) {
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	stored := *account
	stored.Key = models.AccountKey(len(m.accounts[userID]) + 1)
	stored.IsSelected = false
	m.put(userID, &stored)
	c := stored
	return &c, nil
}

func (m *MockAccountStore) Select(_ context.Context, userID int64, key string) (*models.Account, error) {
	if m.selectErr != nil {
		return nil, m.selectErr
	}
	target, ok := m.accounts[userID][key]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	for k, a := range m.accounts[userID] {
		a.IsSelected = k == key
	}
	c := *target
	return &c, nil
}

func (m *MockAccountStore) Get(userID int64, key string) (*models.Account, error) {
	a, ok := m.accounts[userID][key]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	c := *a
	return &c, nil
}

func (m *MockAccountStore) List(userID int64) []*models.Account {
	result := make([]*models.Account, 0, len(m.accounts[userID]))
	for _, a := range m.accounts[userID] {
		c := *a
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return models.AccountNumber(result[i].Key) < models.AccountNumber(result[j].Key)
	})
	return result
}

func (m *MockAccountStore) Selected(userID int64) (*models.Account, error) {
	if len(m.accounts[userID]) == 0 {
		return nil, repository.ErrNoAccounts
	}
	for _, a := range m.accounts[userID] {
		if a.IsSelected {
			c := *a
			return &c, nil
		}
	}
	return nil, repository.ErrNoSelectedAccount
}

// ============ Mock ScheduleStore ============

type MockScheduleStore struct {
	jobs      map[int64]map[string][]*models.ScheduledJob
	appendErr error
	removeErr error
}

func NewMockScheduleStore() *MockScheduleStore {
	return &MockScheduleStore{jobs: make(map[int64]map[string][]*models.ScheduledJob)}
}

func (m *MockScheduleStore) Append(_ context.Context, job *models.ScheduledJob) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	if m.jobs[job.OwnerUserID] == nil {
		m.jobs[job.OwnerUserID] = make(map[string][]*models.ScheduledJob)
	}
	c := *job
	m.jobs[job.OwnerUserID][job.AccountKey] = append(m.jobs[job.OwnerUserID][job.AccountKey], &c)
	return nil
}

func (m *MockScheduleStore) RemoveAt(_ context.Context, userID int64, accountKey string, index int) (*models.ScheduledJob, error) {
	if m.removeErr != nil {
		return nil, m.removeErr
	}
	list := m.jobs[userID][accountKey]
	if index < 0 || index >= len(list) {
		return nil, repository.ErrScheduleIndexOutOfRange
	}
	removed := list[index]
	rest := append([]*models.ScheduledJob{}, list[:index]...)
	m.jobs[userID][accountKey] = append(rest, list[index+1:]...)
	return removed, nil
}

func (m *MockScheduleStore) List(userID int64, accountKey string) []*models.ScheduledJob {
	return append([]*models.ScheduledJob{}, m.jobs[userID][accountKey]...)
}

func (m *MockScheduleStore) All() []*models.ScheduledJob {
	var result []*models.ScheduledJob
	for _, byAccount := range m.jobs {
		for _, list := range byAccount {
			result = append(result, list...)
		}
	}
	return result
}

// ============ Mock JobScheduler ============

type MockJobScheduler struct {
	armed  map[uuid.UUID]scheduler.RunFunc
	armErr error
	arms   int
}

func NewMockJobScheduler() *MockJobScheduler {
	return &MockJobScheduler{armed: make(map[uuid.UUID]scheduler.RunFunc)}
}

func (m *MockJobScheduler) Arm(job *models.ScheduledJob, fn scheduler.RunFunc) error {
	if m.armErr != nil {
		return m.armErr
	}
	m.arms++
	m.armed[job.ID] = fn
	return nil
}

func (m *MockJobScheduler) Cancel(jobID uuid.UUID) bool {
	if _, ok := m.armed[jobID]; !ok {
		return false
	}
	delete(m.armed, jobID)
	return true
}

func (m *MockJobScheduler) Armed() int {
	return len(m.armed)
}

// ============ Mock SheetWriter ============

type MockSheetWriter struct {
	written  [][]export.Sheet
	prefixes []string
	writeErr error
}

func (m *MockSheetWriter) Write(userID int64, prefix string, sheets []export.Sheet) (*export.Artifact, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.written = append(m.written, sheets)
	m.prefixes = append(m.prefixes, prefix)
	rows := 0
	for _, s := range sheets {
		rows += len(s.Rows)
	}
	return &export.Artifact{
		Path:      "/tmp/x/" + prefix + ".xlsx",
		Timestamp: "2024-03-05T14-30-00-000Z",
		Rows:      rows,
	}, nil
}

// ============ Mock Notifier ============

type sentMessage struct {
	ChatID  int64
	Text    string
	Path    string
	Caption string
}

type MockNotifier struct {
	mu      sync.Mutex
	texts   []sentMessage
	docs    []sentMessage
	sendErr error
}

func (m *MockNotifier) SendText(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockNotifier) SendDocument(_ context.Context, chatID int64, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.docs = append(m.docs, sentMessage{ChatID: chatID, Path: path, Caption: caption})
	return nil
}

// ============ Mock EventPublisher ============

type publishedEvent struct {
	Type    string
	Payload interface{}
}

type MockPublisher struct {
	events []publishedEvent
}

func (m *MockPublisher) Publish(eventType string, payload interface{}) {
	m.events = append(m.events, publishedEvent{Type: eventType, Payload: payload})
}

func (m *MockPublisher) count(eventType string) int {
	n := 0
	for _, e := range m.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// ============ Mock exchange.Client ============

type MockExchangeClient struct {
	positions []exchange.Position
	transfers []exchange.Transfer
	orders    []exchange.Order
	funding   []exchange.FundingPayment
	accounts  []exchange.Account
	user      *exchange.User
	markets   []exchange.Market
	history   []exchange.HistoricalFunding
	err       error

	lastCreds  *models.APIKeyPair
	lastParams models.Params
	lastMarket string
	calls      int
}

func (m *MockExchangeClient) record(creds *models.APIKeyPair, params models.Params) {
	m.calls++
	m.lastCreds = creds
	m.lastParams = params
}

func (m *MockExchangeClient) GetPositions(_ context.Context, creds *models.APIKeyPair, params models.Params) ([]exchange.Position, error) {
	m.record(creds, params)
	return m.positions, m.err
}

func (m *MockExchangeClient) GetTransfers(_ context.Context, creds *models.APIKeyPair, params models.Params) ([]exchange.Transfer, error) {
	m.record(creds, params)
	return m.transfers, m.err
}

func (m *MockExchangeClient) GetOrders(_ context.Context, creds *models.APIKeyPair, params models.Params) ([]exchange.Order, error) {
	m.record(creds, params)
	return m.orders, m.err
}

func (m *MockExchangeClient) GetFundingPayments(_ context.Context, creds *models.APIKeyPair, params models.Params) ([]exchange.FundingPayment, error) {
	m.record(creds, params)
	return m.funding, m.err
}

func (m *MockExchangeClient) GetAccounts(_ context.Context, creds *models.APIKeyPair) ([]exchange.Account, error) {
	m.record(creds, nil)
	return m.accounts, m.err
}

func (m *MockExchangeClient) GetUser(_ context.Context, creds *models.APIKeyPair) (*exchange.User, error) {
	m.record(creds, nil)
	if m.err != nil {
		return nil, m.err
	}
	if m.user == nil {
		return &exchange.User{}, nil
	}
	return m.user, nil
}

func (m *MockExchangeClient) GetMarkets(_ context.Context) ([]exchange.Market, error) {
	m.record(nil, nil)
	return m.markets, m.err
}

func (m *MockExchangeClient) GetHistoricalFunding(_ context.Context, market string, params models.Params) ([]exchange.HistoricalFunding, error) {
	m.record(nil, params)
	m.lastMarket = market
	return m.history, m.err
}

// ============ Helpers ============

const testAPIKeyJSON = `{"walletAddress":"0xAbC0000000000000000000000000000000000001","secret":"c2VjcmV0","key":"key-1","passphrase":"pass"}`

func apiAccount(key, name string, selected bool) *models.Account {
	return &models.Account{
		Key:  key,
		Name: name,
		Credentials: models.Credentials{APIKey: &models.APIKeyPair{
			Key: "key-" + key, Secret: "c2VjcmV0", Passphrase: "pass",
		}},
		IsSelected: selected,
	}
}
