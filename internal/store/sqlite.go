// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Persists URL caches and the delivery ledger with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so TEXT timestamps sort chronologically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: pragmas below are per-connection, each :memory:
	// connection would be a separate database, and the relay's writes are
	// small enough to serialize.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Feeds are processed concurrently; wait for the writer instead of failing
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS url_caches (
			location   TEXT PRIMARY KEY,
			entries    TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS deliveries (
			id         TEXT PRIMARY KEY,
			run_id     TEXT NOT NULL,
			chat_id    TEXT NOT NULL,
			feed_url   TEXT NOT NULL,
			item_url   TEXT NOT NULL,
			identity   TEXT NOT NULL,
			status     TEXT NOT NULL,
			error      TEXT,
			created_at TEXT NOT NULL,

			CHECK (status IN ('delivered', 'failed'))
		);

		CREATE INDEX IF NOT EXISTS idx_deliveries_feed_created
			ON deliveries(feed_url, created_at);
		CREATE INDEX IF NOT EXISTS idx_deliveries_run ON deliveries(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Location returns the row key for a (chat, feed) pair.
func (s *SQLiteStore) Location(chatID, feedURL string) string {
	return CacheKey(chatID, feedURL)
}

// Read returns the serialized cache stored at location.
// A missing row yields an error matching both ErrNotFound and fs.ErrNotExist.
func (s *SQLiteStore) Read(ctx context.Context, location string) ([]byte, error) {
	var entries string
	err := s.db.QueryRowContext(ctx,
		`SELECT entries FROM url_caches WHERE location = ?`, location,
	).Scan(&entries)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cacheNotFound(location)
	}
	if err != nil {
		return nil, fmt.Errorf("querying url cache: %w", err)
	}
	return []byte(entries), nil
}

// Write replaces the serialized cache stored at location in one statement.
func (s *SQLiteStore) Write(ctx context.Context, location string, data []byte) error {
	query := `
		INSERT INTO url_caches (location, entries, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET
			entries = excluded.entries,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, location, string(data), time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("upserting url cache: %w", err)
	}
	return nil
}

// RecordDelivery appends a delivery attempt to the ledger.
// ID and CreatedAt are filled in when empty.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, d *Delivery) error {
	newDeliveryDefaults(d, uuid.NewString)

	query := `
		INSERT INTO deliveries (id, run_id, chat_id, feed_url, item_url, identity, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var errText sql.NullString
	if d.Error != "" {
		errText = sql.NullString{String: d.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.RunID, d.ChatID, d.FeedURL, d.ItemURL, d.Identity, d.Status, errText,
		d.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent delivery attempts for a feed,
// newest first. A limit of zero or less returns all of them.
func (s *SQLiteStore) ListDeliveries(ctx context.Context, feedURL string, limit int) ([]*Delivery, error) {
	query := `
		SELECT id, run_id, chat_id, feed_url, item_url, identity, status, error, created_at
		FROM deliveries
		WHERE feed_url = ?
		ORDER BY created_at DESC, rowid DESC
	`
	args := []any{feedURL}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var d Delivery
		var errText sql.NullString
		var createdAt string
		if err := rows.Scan(&d.ID, &d.RunID, &d.ChatID, &d.FeedURL, &d.ItemURL, &d.Identity, &d.Status, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning delivery: %w", err)
		}
		d.Error = errText.String
		d.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		deliveries = append(deliveries, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating deliveries: %w", err)
	}
	return deliveries, nil
}

// Compile-time check that SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
