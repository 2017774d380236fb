package utils

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxAccountNameLength - ограничение на длину названия аккаунта
const MaxAccountNameLength = 64

var (
	ErrEmptyAccountName   = errors.New("account name cannot be empty")
	ErrAccountNameTooLong = errors.New("account name is too long")
	ErrInvalidIndex       = errors.New("index must be a non-negative integer")
)

// ValidateAccountName проверяет название аккаунта и возвращает его без пробелов по краям
func ValidateAccountName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyAccountName
	}
	if utf8.RuneCountInString(name) > MaxAccountNameLength {
		return "", ErrAccountNameTooLong
	}
	return name, nil
}

// ParseIndex разбирает неотрицательный индекс из текста пользователя
func ParseIndex(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, ErrInvalidIndex
	}
	return n, nil
}

// IsHexPrivateKey - поверхностная проверка приватного ключа secp256k1: 64 hex символа, опционально 0x
func IsHexPrivateKey(value string) bool {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if len(value) != 64 {
		return false
	}
	for _, c := range value {
		if !isHexRune(c) {
			return false
		}
	}
	return true
}

func isHexRune(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
