package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// DefaultDocumentsTable - таблица документов по умолчанию
const DefaultDocumentsTable = "documents"

// PostgresStorage хранит документы в таблице name -> body (JSONB)
type PostgresStorage struct {
	db    *sql.DB
	table string
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage создает хранилище поверх открытого *sql.DB
func NewPostgresStorage(db *sql.DB, table string) *PostgresStorage {
	if table == "" {
		table = DefaultDocumentsTable
	}
	return &PostgresStorage{db: db, table: pq.QuoteIdentifier(table)}
}

// OpenPostgres открывает пул соединений и проверяет подключение
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// EnsureSchema создает таблицу документов если ее нет
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
		name TEXT PRIMARY KEY,
		body JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Load читает документ по имени
func (s *PostgresStorage) Load(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	query := `SELECT body FROM ` + s.table + ` WHERE name = $1`
	err := s.db.QueryRowContext(ctx, query, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, describePQ(err))
	}
	return body, nil
}

// Save вставляет или заменяет документ
func (s *PostgresStorage) Save(ctx context.Context, name string, data []byte) error {
	query := `INSERT INTO ` + s.table + ` (name, body, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, name, data); err != nil {
		return fmt.Errorf("save %s: %w", name, describePQ(err))
	}
	return nil
}

// describePQ добавляет код ошибки Postgres к сообщению
func describePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fmt.Errorf("%w (sqlstate %s)", err, pqErr.Code)
	}
	return err
}
