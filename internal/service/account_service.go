package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"snapbot/internal/exchange"
	"snapbot/internal/models"
	"snapbot/internal/repository"
	"snapbot/pkg/utils"
)

// Ошибки аккаунтов; совпадают с ошибками репозитория для errors.Is
var (
	ErrAccountNotFound   = repository.ErrAccountNotFound
	ErrNoAccounts        = repository.ErrNoAccounts
	ErrNoSelectedAccount = repository.ErrNoSelectedAccount
)

// AccountLinkedEvent - событие привязки аккаунта
type AccountLinkedEvent struct {
	UserID     int64  `json:"userId"`
	AccountKey string `json:"accountKey"`
	Address    string `json:"address,omitempty"`
	APIKey     bool   `json:"apiKey"`
}

// AccountService - привязка и выбор аккаунтов
type AccountService struct {
	store  AccountStore
	client exchange.Client
	events EventPublisher
	logger *zap.Logger
}

// NewAccountService создает сервис аккаунтов
func NewAccountService(store AccountStore, client exchange.Client, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		store:  store,
		client: client,
		events: nopPublisher{},
		logger: logger,
	}
}

// SetEventPublisher подключает публикацию событий
func (s *AccountService) SetEventPublisher(p EventPublisher) {
	if p != nil {
		s.events = p
	}
}

// Register разбирает учетные данные, для API ключей загружает профиль
// пользователя биржи и сохраняет аккаунт под следующим ключом account_N
func (s *AccountService) Register(ctx context.Context, userID int64, name, rawCredentials string) (*models.Account, error) {
	name, err := utils.ValidateAccountName(name)
	if err != nil {
		return nil, err
	}

	creds, address, err := exchange.ParseCredentials(rawCredentials)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Name:        name,
		Credentials: creds,
		Address:     address,
	}

	if creds.HasAPIKey() {
		user, err := s.client.GetUser(ctx, creds.APIKey)
		if err != nil {
			return nil, fmt.Errorf("fetch user profile: %w", err)
		}
		account.Profile = user.Profile()
		if addr := user.EthereumAddress.String(); addr != "" {
			account.Address = addr
		}
	}

	stored, err := s.store.Append(ctx, userID, account)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account linked",
		utils.UserID(userID),
		utils.AccountKey(stored.Key),
		zap.String("address", stored.Address),
		zap.Bool("api_key", creds.HasAPIKey()),
	)
	s.events.Publish(EventAccountLinked, AccountLinkedEvent{
		UserID:     userID,
		AccountKey: stored.Key,
		Address:    stored.Address,
		APIKey:     creds.HasAPIKey(),
	})
	return stored, nil
}

// List возвращает аккаунты пользователя по порядку
func (s *AccountService) List(userID int64) []*models.Account {
	return s.store.List(userID)
}

// Get возвращает аккаунт по ключу
func (s *AccountService) Get(userID int64, key string) (*models.Account, error) {
	return s.store.Get(userID, key)
}

// Selected возвращает выбранный аккаунт
func (s *AccountService) Selected(userID int64) (*models.Account, error) {
	return s.store.Selected(userID)
}

// Select делает аккаунт выбранным. changed=false если он уже был выбран.
func (s *AccountService) Select(ctx context.Context, userID int64, key string) (account *models.Account, changed bool, err error) {
	current, err := s.store.Selected(userID)
	if err != nil && !errors.Is(err, ErrNoSelectedAccount) && !errors.Is(err, ErrNoAccounts) {
		return nil, false, err
	}
	if current != nil && current.Key == key {
		return current, false, nil
	}

	account, err = s.store.Select(ctx, userID, key)
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("account selected", utils.UserID(userID), utils.AccountKey(key))
	return account, true, nil
}
