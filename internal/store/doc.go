// Package store provides SQLite persistence for coven-feeds.
//
// # Architecture
//
// Two small interfaces cover what the relay needs:
//
//   - CacheStore: serialized URL caches, one blob per (chat, feed) pair.
//     It has the same shape as urlcache.Storage, so a SQLiteStore can back
//     caches directly instead of the file backend.
//   - DeliveryLog: an append-only ledger of delivery attempts.
//
// SQLiteStore implements both in a single struct.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode so the CLI can inspect the ledger
// while the relay is running:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// The schema is created on open.
//
// # Error Handling
//
// Reading a cache that was never written returns an error matching both
// ErrNotFound and fs.ErrNotExist; urlcache treats the latter as an empty
// cache.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore on a temp path for
// integration tests.
package store
