package repository

import (
	"context"
	"sync"
)

// ============ Mock Storage ============

type MockStorage struct {
	mu      sync.Mutex
	docs    map[string][]byte
	saves   int
	loadErr error
	saveErr error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{docs: make(map[string][]byte)}
}

func (m *MockStorage) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.docs[name]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MockStorage) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs[name] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *MockStorage) Put(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = []byte(content)
}

func (m *MockStorage) Get(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.docs[name])
}

// ============ Mock Sealer ============

// MockSealer "шифрует" разворотом строки, чтобы тесты видели отличие от открытого текста
type MockSealer struct {
	openErr error
}

func (s *MockSealer) Seal(plaintext []byte) (string, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[len(plaintext)-1-i] = b
	}
	return "sealed:" + string(out), nil
}

func (s *MockSealer) Open(encoded string) ([]byte, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	raw := []byte(encoded[len("sealed:"):])
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[len(raw)-1-i] = b
	}
	return out, nil
}
