package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore implements DocumentStore over a single documents table
// (collection, id, data JSONB). Every read carries a bounded timeout so a
// database outage degrades to an error instead of hanging the request.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
}

// PostgresConfig holds document store connection configuration
type PostgresConfig struct {
	URL      string
	MaxConns int
	Timeout  time.Duration
}

// NewPostgresStore opens the document store connection pool and verifies it
func NewPostgresStore(config PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
		db.SetMaxIdleConns(config.MaxConns / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresStore{db: db, timeout: timeout}, nil
}

// NewPostgresStoreWithDB wraps an existing connection (used by tests)
func NewPostgresStoreWithDB(db *sql.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// DB exposes the underlying pool for health checks
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get loads one document from its collection
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var data []byte
	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	err := s.db.QueryRowContext(ctx, query, collection, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s/%s: %w", collection, id, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
	}
	return doc, nil
}
