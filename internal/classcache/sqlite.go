package classcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dvloznov/finance-wrapped/internal/pipeline"
)

// SQLiteStore persists merchant classifications across runs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the cache database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteStore: open database: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSQLiteStore: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get looks up a merchant key.
func (s *SQLiteStore) Get(ctx context.Context, merchant string) (pipeline.Classification, bool, error) {
	var c pipeline.Classification
	err := s.db.QueryRowContext(ctx,
		`SELECT category, reasoning FROM merchant_classifications WHERE merchant_key = ?`,
		merchant,
	).Scan(&c.Category, &c.Reasoning)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Classification{}, false, nil
	}
	if err != nil {
		return pipeline.Classification{}, false, fmt.Errorf("Get: query %q: %w", merchant, err)
	}
	return c, true, nil
}

// Put upserts a merchant classification.
func (s *SQLiteStore) Put(ctx context.Context, merchant string, c pipeline.Classification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchant_classifications (merchant_key, category, reasoning, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(merchant_key) DO UPDATE SET
			category = excluded.category,
			reasoning = excluded.reasoning,
			updated_at = CURRENT_TIMESTAMP`,
		merchant, c.Category, c.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("Put: upsert %q: %w", merchant, err)
	}
	return nil
}

// Len reports how many merchants are cached.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM merchant_classifications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Len: %w", err)
	}
	return n, nil
}
