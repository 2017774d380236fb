package models

import "fmt"

// APIKeyPair - набор API ключей dYdX в формате API_KEY_PAIRS из браузера
type APIKeyPair struct {
	WalletAddress string `json:"walletAddress"`
	Key           string `json:"key"`
	Secret        string `json:"secret"`
	Passphrase    string `json:"passphrase"`
	WalletType    string `json:"walletType,omitempty"`
}

// Credentials - учетные данные аккаунта: API ключи или приватный ключ кошелька.
// Заполнено ровно одно из полей.
type Credentials struct {
	APIKey     *APIKeyPair `json:"apiKey,omitempty"`
	PrivateKey string      `json:"privateKey,omitempty"`
}

// HasAPIKey возвращает true если аккаунт может выполнять приватные запросы
func (c Credentials) HasAPIKey() bool {
	return c.APIKey != nil && c.APIKey.Key != "" && c.APIKey.Secret != ""
}

// IsZero возвращает true если учетные данные не заданы
func (c Credentials) IsZero() bool {
	return c.APIKey == nil && c.PrivateKey == ""
}

// Profile - кэшированные данные пользователя биржи (getUser)
type Profile struct {
	PublicID                     string `json:"publicId,omitempty"`
	EthereumAddress              string `json:"ethereumAddress,omitempty"`
	Email                        string `json:"email,omitempty"`
	Username                     string `json:"username,omitempty"`
	MakerFeeRate                 string `json:"makerFeeRate,omitempty"`
	TakerFeeRate                 string `json:"takerFeeRate,omitempty"`
	Fees30D                      string `json:"fees30D,omitempty"`
	DydxTokenBalance             string `json:"dydxTokenBalance,omitempty"`
	StakedDydxTokenBalance       string `json:"stakedDydxTokenBalance,omitempty"`
	ActiveStakedDydxTokenBalance string `json:"activeStakedDydxTokenBalance,omitempty"`
}

// Account представляет привязанный к пользователю чата аккаунт биржи
type Account struct {
	Key         string      `json:"-"` // account_N, ключ в карте аккаунтов пользователя
	Name        string      `json:"name"`
	Credentials Credentials `json:"credentials"`
	Address     string      `json:"address,omitempty"`
	Profile     *Profile    `json:"profile,omitempty"`
	IsSelected  bool        `json:"isSelected"`
}

// ShortAddress возвращает адрес в виде 0x12...abcd
func (a *Account) ShortAddress() string {
	if len(a.Address) <= 8 {
		return a.Address
	}
	return fmt.Sprintf("%s...%s", a.Address[:4], a.Address[len(a.Address)-4:])
}

// AccountKey формирует ключ аккаунта по порядковому номеру
func AccountKey(n int) string {
	return fmt.Sprintf("account_%d", n)
}

// AccountNumber извлекает порядковый номер из ключа account_N, 0 если формат не совпал
func AccountNumber(key string) int {
	var n int
	if _, err := fmt.Sscanf(key, "account_%d", &n); err != nil {
		return 0
	}
	return n
}
