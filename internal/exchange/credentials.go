package exchange

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"snapbot/internal/models"
	"snapbot/pkg/utils"
)

// ParseCredentials разбирает присланный пользователем текст:
// JSON набор API ключей (как в API_KEY_PAIRS браузера) или hex приватный ключ кошелька.
// Возвращает учетные данные и адрес кошелька, если его можно определить.
func ParseCredentials(text string) (models.Credentials, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Credentials{}, "", fmt.Errorf("%w: empty input", ErrInvalidCredentials)
	}

	if strings.HasPrefix(text, "{") {
		var pair models.APIKeyPair
		if err := json.Unmarshal([]byte(text), &pair); err != nil {
			return models.Credentials{}, "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		var missing []string
		if pair.Key == "" {
			missing = append(missing, "key")
		}
		if pair.Secret == "" {
			missing = append(missing, "secret")
		}
		if pair.Passphrase == "" {
			missing = append(missing, "passphrase")
		}
		if len(missing) > 0 {
			return models.Credentials{}, "", fmt.Errorf("%w: missing %s", ErrInvalidCredentials, strings.Join(missing, ", "))
		}
		return models.Credentials{APIKey: &pair}, pair.WalletAddress, nil
	}

	if utils.IsHexPrivateKey(text) {
		address, err := AddressFromPrivateKey(text)
		if err != nil {
			return models.Credentials{}, "", err
		}
		return models.Credentials{PrivateKey: text}, address, nil
	}

	return models.Credentials{}, "", fmt.Errorf("%w: expected API key JSON or hex private key", ErrInvalidCredentials)
}

// AddressFromPrivateKey вычисляет Ethereum адрес (EIP-55) по приватному ключу
func AddressFromPrivateKey(hexKey string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
