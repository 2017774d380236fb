package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"snapbot/internal/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrNoAccounts        = errors.New("no accounts saved")
	ErrNoSelectedAccount = errors.New("no selected account")
	ErrInvalidAccount    = errors.New("invalid account")
)

// CredentialSealer шифрует учетные данные перед записью документа
type CredentialSealer interface {
	Seal(plaintext []byte) (string, error)
	Open(encoded string) ([]byte, error)
}

// accountRecord - запись аккаунта в accounts.json.
// При включенном шифровании credentials заменяется на sealedCredentials.
type accountRecord struct {
	Name              string              `json:"name"`
	Credentials       *models.Credentials `json:"credentials,omitempty"`
	SealedCredentials string              `json:"sealedCredentials,omitempty"`
	Address           string              `json:"address,omitempty"`
	Profile           *models.Profile     `json:"profile,omitempty"`
	IsSelected        bool                `json:"isSelected"`
}

// accountsDocument: user-id -> accountKey -> запись
type accountsDocument map[string]map[string]accountRecord

// AccountRepository - хранилище аккаунтов пользователей (accounts.json).
// Все мутации сериализованы и сразу сохраняются документом целиком.
type AccountRepository struct {
	storage Storage
	sealer  CredentialSealer

	mu       sync.RWMutex
	accounts map[int64]map[string]*models.Account
}

// NewAccountRepository создает репозиторий; sealer может быть nil
func NewAccountRepository(storage Storage, sealer CredentialSealer) *AccountRepository {
	return &AccountRepository{
		storage:  storage,
		sealer:   sealer,
		accounts: make(map[int64]map[string]*models.Account),
	}
}

// Load загружает документ. Отсутствующий документ дает пустое хранилище,
// поврежденный документ возвращает ErrCorruptDocument.
func (r *AccountRepository) Load(ctx context.Context) error {
	var doc accountsDocument
	if _, err := loadDocument(ctx, r.storage, AccountsDocument, &doc); err != nil {
		return err
	}

	loaded := make(map[int64]map[string]*models.Account, len(doc))
	for userKey, records := range doc {
		userID, err := strconv.ParseInt(userKey, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: user id %q", ErrCorruptDocument, AccountsDocument, userKey)
		}
		userAccounts := make(map[string]*models.Account, len(records))
		for key, rec := range records {
			account, err := r.fromRecord(key, rec)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", userKey, key, err)
			}
			userAccounts[key] = account
		}
		loaded[userID] = userAccounts
	}

	r.mu.Lock()
	r.accounts = loaded
	r.mu.Unlock()
	return nil
}

// Append добавляет аккаунт пользователю под следующим свободным ключом account_N.
// Новый аккаунт не выбран.
func (r *AccountRepository) Append(ctx context.Context, userID int64, account *models.Account) (*models.Account, error) {
	if account == nil || account.Name == "" || account.Credentials.IsZero() {
		return nil, ErrInvalidAccount
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	userAccounts := r.accounts[userID]
	if userAccounts == nil {
		userAccounts = make(map[string]*models.Account)
		r.accounts[userID] = userAccounts
	}

	next := 1
	for key := range userAccounts {
		if n := models.AccountNumber(key); n >= next {
			next = n + 1
		}
	}

	stored := cloneAccount(account)
	stored.Key = models.AccountKey(next)
	stored.IsSelected = false
	userAccounts[stored.Key] = stored

	if err := r.saveLocked(ctx); err != nil {
		delete(userAccounts, stored.Key)
		return nil, err
	}
	return cloneAccount(stored), nil
}

// Select отмечает аккаунт выбранным, остальные аккаунты пользователя снимаются с выбора
func (r *AccountRepository) Select(ctx context.Context, userID int64, key string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userAccounts := r.accounts[userID]
	target, ok := userAccounts[key]
	if !ok {
		return nil, ErrAccountNotFound
	}

	previous := make(map[string]bool, len(userAccounts))
	for k, a := range userAccounts {
		previous[k] = a.IsSelected
		a.IsSelected = k == key
	}

	if err := r.saveLocked(ctx); err != nil {
		for k, a := range userAccounts {
			a.IsSelected = previous[k]
		}
		return nil, err
	}
	return cloneAccount(target), nil
}

// Get возвращает аккаунт пользователя по ключу
func (r *AccountRepository) Get(userID int64, key string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[userID][key]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// List возвращает аккаунты пользователя в порядке номеров
func (r *AccountRepository) List(userID int64) []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.Account, 0, len(r.accounts[userID]))
	for _, a := range r.accounts[userID] {
		result = append(result, cloneAccount(a))
	}
	sort.Slice(result, func(i, j int) bool {
		return models.AccountNumber(result[i].Key) < models.AccountNumber(result[j].Key)
	})
	return result
}

// Selected возвращает выбранный аккаунт пользователя
func (r *AccountRepository) Selected(userID int64) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userAccounts := r.accounts[userID]
	if len(userAccounts) == 0 {
		return nil, ErrNoAccounts
	}
	for _, a := range userAccounts {
		if a.IsSelected {
			return cloneAccount(a), nil
		}
	}
	return nil, ErrNoSelectedAccount
}

// Count возвращает общее количество аккаунтов
func (r *AccountRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, userAccounts := range r.accounts {
		n += len(userAccounts)
	}
	return n
}

// saveLocked сохраняет документ; вызывается под r.mu
func (r *AccountRepository) saveLocked(ctx context.Context) error {
	doc := make(accountsDocument, len(r.accounts))
	for userID, userAccounts := range r.accounts {
		records := make(map[string]accountRecord, len(userAccounts))
		for key, a := range userAccounts {
			rec, err := r.toRecord(a)
			if err != nil {
				return err
			}
			records[key] = rec
		}
		doc[strconv.FormatInt(userID, 10)] = records
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", AccountsDocument, err)
	}
	return r.storage.Save(ctx, AccountsDocument, data)
}

func (r *AccountRepository) toRecord(a *models.Account) (accountRecord, error) {
	rec := accountRecord{
		Name:       a.Name,
		Address:    a.Address,
		Profile:    a.Profile,
		IsSelected: a.IsSelected,
	}
	if r.sealer == nil {
		creds := a.Credentials
		rec.Credentials = &creds
		return rec, nil
	}

	plain, err := json.Marshal(a.Credentials)
	if err != nil {
		return rec, fmt.Errorf("encode credentials: %w", err)
	}
	sealed, err := r.sealer.Seal(plain)
	if err != nil {
		return rec, fmt.Errorf("seal credentials: %w", err)
	}
	rec.SealedCredentials = sealed
	return rec, nil
}

func (r *AccountRepository) fromRecord(key string, rec accountRecord) (*models.Account, error) {
	account := &models.Account{
		Key:        key,
		Name:       rec.Name,
		Address:    rec.Address,
		Profile:    rec.Profile,
		IsSelected: rec.IsSelected,
	}

	switch {
	case rec.SealedCredentials != "":
		if r.sealer == nil {
			return nil, fmt.Errorf("credentials are sealed but ENCRYPTION_KEY is not set")
		}
		plain, err := r.sealer.Open(rec.SealedCredentials)
		if err != nil {
			return nil, fmt.Errorf("open credentials: %w", err)
		}
		if err := json.Unmarshal(plain, &account.Credentials); err != nil {
			return nil, fmt.Errorf("%w: credentials: %v", ErrCorruptDocument, err)
		}
	case rec.Credentials != nil:
		account.Credentials = *rec.Credentials
	}
	return account, nil
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Credentials.APIKey != nil {
		pair := *a.Credentials.APIKey
		c.Credentials.APIKey = &pair
	}
	if a.Profile != nil {
		p := *a.Profile
		c.Profile = &p
	}
	return &c
}
