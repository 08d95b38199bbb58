// ABOUTME: Store interfaces and data types for coven-feeds persistence
// ABOUTME: Defines URL cache blob storage and the delivery ledger

package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/2389/coven-feeds/internal/urlcache"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Delivery status constants
const (
	DeliveryDelivered = "delivered" // Message accepted by the destination
	DeliveryFailed    = "failed"    // Destination rejected the message or was unreachable
)

// Delivery records one attempt to post a feed item to a chat.
type Delivery struct {
	ID        string
	RunID     string // Identifies the polling pass that produced this attempt
	ChatID    string
	FeedURL   string
	ItemURL   string
	Identity  string // Canonical identity used for deduplication
	Status    string // "delivered" or "failed"
	Error     string
	CreatedAt time.Time
}

// CacheStore persists serialized URL caches, one blob per (chat, feed) pair.
// It satisfies urlcache.Storage.
type CacheStore interface {
	Location(chatID, feedURL string) string
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, data []byte) error
}

// DeliveryLog records delivery attempts for auditing.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, feedURL string, limit int) ([]*Delivery, error)
}

// Store combines all persistence operations.
type Store interface {
	CacheStore
	DeliveryLog
	Close() error
}

// CacheKey derives the storage key for a (chat, feed) pair. It matches the
// file name used by urlcache.FileStorage without the directory and extension.
func CacheKey(chatID, feedURL string) string {
	return chatID + "-" + urlcache.FormEncode(feedURL)
}

// cacheNotFound reports a missing cache in a way urlcache treats as empty.
func cacheNotFound(location string) error {
	return fmt.Errorf("url cache %q %w: %w", location, ErrNotFound, fs.ErrNotExist)
}

// newDeliveryDefaults fills in ID and timestamp for a new ledger row.
func newDeliveryDefaults(d *Delivery, newID func() string) {
	if d.ID == "" {
		d.ID = newID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
}
