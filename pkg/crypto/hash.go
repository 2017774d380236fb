package crypto

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки проверки токенов
var (
	ErrEmptyToken    = errors.New("token cannot be empty")
	ErrTokenMismatch = errors.New("token does not match")
	ErrTokenTooLong  = errors.New("token exceeds maximum length of 72 bytes")
)

// MaxTokenLength - ограничение bcrypt на длину входа
const MaxTokenLength = 72

// HashToken хеширует административный токен через bcrypt
func HashToken(token string, cost int) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if len(token) > MaxTokenLength {
		return "", ErrTokenTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// IsBcryptHash возвращает true если значение похоже на bcrypt хеш ($2a$, $2b$, $2y$)
func IsBcryptHash(s string) bool {
	return len(s) == 60 && strings.HasPrefix(s, "$2")
}

// VerifyToken сравнивает предъявленный токен с ожидаемым.
// expected может быть открытым значением или bcrypt хешем.
func VerifyToken(presented, expected string) error {
	if presented == "" || expected == "" {
		return ErrEmptyToken
	}
	if IsBcryptHash(expected) {
		if err := bcrypt.CompareHashAndPassword([]byte(expected), []byte(presented)); err != nil {
			return ErrTokenMismatch
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
		return ErrTokenMismatch
	}
	return nil
}
