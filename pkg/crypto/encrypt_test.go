package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

// TestSealOpen проверяет базовый цикл шифрования/расшифровки
func TestSealOpen(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	sealer, err := NewSealer(key)
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"пустая строка", ""},
		{"api key bundle", `{"key":"52d4","secret":"vJEf","passphrase":"xMnx"}`},
		{"приватный ключ", "0x" + strings.Repeat("ab", 32)},
		{"unicode", "Привет мир"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := sealer.Seal([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("Seal failed: %v", err)
			}
			if _, err := base64.StdEncoding.DecodeString(sealed); err != nil {
				t.Errorf("результат не base64: %v", err)
			}
			opened, err := sealer.Open(sealed)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if string(opened) != tt.plaintext {
				t.Errorf("got %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestSealDifferentNonces(t *testing.T) {
	sealer, _ := NewSealerFromPassphrase("short passphrase")
	a, _ := sealer.Seal([]byte("same"))
	b, _ := sealer.Seal([]byte("same"))
	if a == b {
		t.Error("одинаковый plaintext должен давать разный шифротекст")
	}
}

func TestNewSealerInvalidKey(t *testing.T) {
	if _, err := NewSealer([]byte("short")); !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("ожидалась ErrInvalidKeyLength, got %v", err)
	}
	if _, err := NewSealerFromPassphrase(""); !errors.Is(err, ErrEmptyPassphrase) {
		t.Errorf("ожидалась ErrEmptyPassphrase, got %v", err)
	}
}

func TestDeriveKey(t *testing.T) {
	exact := strings.Repeat("k", KeySize)
	key, err := DeriveKey(exact)
	if err != nil || string(key) != exact {
		t.Errorf("32-байтный ключ должен использоваться как есть")
	}

	k1, _ := DeriveKey("passphrase")
	k2, _ := DeriveKey("passphrase")
	k3, _ := DeriveKey("other")
	if len(k1) != KeySize {
		t.Fatalf("длина производного ключа %d", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Error("вывод ключа должен быть детерминированным")
	}
	if bytes.Equal(k1, k3) {
		t.Error("разные фразы должны давать разные ключи")
	}
}

func TestOpenErrors(t *testing.T) {
	sealer, _ := NewSealerFromPassphrase("passphrase")
	other, _ := NewSealerFromPassphrase("another")
	sealed, _ := sealer.Seal([]byte("data"))

	tests := []struct {
		name    string
		sealer  *Sealer
		input   string
		wantErr error
	}{
		{"не base64", sealer, "!!!", ErrInvalidCiphertext},
		{"слишком короткий", sealer, base64.StdEncoding.EncodeToString([]byte("abc")), ErrCiphertextTooShort},
		{"чужой ключ", other, sealed, ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.sealer.Open(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
