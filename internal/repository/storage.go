package repository

import (
	"bytes"
	"context"
	stdjson "encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Имена документов хранилища
const (
	AccountsDocument  = "accounts.json"
	SchedulesDocument = "schedules.json"
)

var (
	// ErrDocumentNotFound - документ еще ни разу не сохранялся
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCorruptDocument - документ есть, но не разбирается
	ErrCorruptDocument = errors.New("document is corrupt")
)

// json - совместимый со стандартной библиотекой jsoniter с сортировкой ключей карт
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Storage - key-value хранилище JSON документов целиком
type Storage interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// FileStorage хранит каждый документ отдельным файлом в каталоге
type FileStorage struct {
	dir string
}

var _ Storage = (*FileStorage)(nil)

// NewFileStorage создает файловое хранилище в dir
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Dir возвращает каталог хранилища
func (s *FileStorage) Dir() string {
	return s.dir
}

// Load читает документ, ErrDocumentNotFound если файла нет
func (s *FileStorage) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Save атомарно заменяет документ: запись во временный файл и rename
func (s *FileStorage) Save(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

// encodeDocument сериализует документ с отступом в 2 пробела; отступы ставит encoding/json
func encodeDocument(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := stdjson.Indent(&buf, data, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// loadDocument читает и разбирает документ; отсутствие документа не ошибка
func loadDocument(ctx context.Context, storage Storage, name string, v interface{}) (bool, error) {
	data, err := storage.Load(ctx, name)
	if errors.Is(err, ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrCorruptDocument, name, err)
	}
	return true, nil
}
