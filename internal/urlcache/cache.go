// ABOUTME: Bounded, persistent cache of canonical item URLs for one (chat, feed) pair
// ABOUTME: Decides whether an item was already posted and survives restarts via Storage

package urlcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/2389/coven-feeds/internal/dedupe"
)

type cacheState int

const (
	stateNew cacheState = iota
	stateLoaded
	stateInserting
	stateSaved
)

// Cache tracks the canonical identities of items already posted from one
// feed to one chat. The intended sequence per processing cycle is
// Load, any number of Insert calls, then Save. Calling Insert without Load
// starts from an empty cache. Any other order returns ErrCacheState.
//
// A Cache is owned by a single goroutine.
type Cache struct {
	storage  Storage
	location string
	entries  *dedupe.Set
	state    cacheState
}

// New creates an empty cache bound to the storage location of (chatID, feedURL).
// At most capacity identities are retained; a capacity of zero retains none.
func New(storage Storage, chatID, feedURL string, capacity int) *Cache {
	return &Cache{
		storage:  storage,
		location: storage.Location(chatID, feedURL),
		entries:  dedupe.New(capacity),
	}
}

// Location returns the storage location this cache reads and writes.
func (c *Cache) Location() string {
	return c.location
}

// Len returns the number of identities currently retained.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Entries returns the retained identities, oldest first.
func (c *Cache) Entries() []string {
	return c.entries.Keys()
}

// Load populates the cache from storage. A missing location is an empty
// cache. If more identities are stored than the capacity allows (for example
// after the limit was lowered), only the newest ones are kept.
func (c *Cache) Load(ctx context.Context) error {
	if c.state != stateNew {
		return fmt.Errorf("%w: load after use", ErrCacheState)
	}

	data, err := c.storage.Read(ctx, c.location)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w %s: %w", ErrStorageRead, c.location, err)
	}

	lines := parseEntries(data)
	if capacity := c.entries.Cap(); len(lines) > capacity {
		lines = lines[len(lines)-capacity:]
	}
	c.entries.Reset(lines)
	c.state = stateLoaded
	return nil
}

// Insert normalizes rawURL and records it. It returns true if the item was
// not seen before and should be posted, false if it is a duplicate.
// Normalization errors are returned unchanged and leave the cache untouched.
func (c *Cache) Insert(rawURL string) (bool, error) {
	if c.state == stateSaved {
		return false, fmt.Errorf("%w: insert after save", ErrCacheState)
	}

	identity, err := Normalize(rawURL)
	if err != nil {
		return false, err
	}

	c.state = stateInserting
	return c.entries.Add(identity), nil
}

// Save writes the retained identities, oldest first, one per line,
// replacing whatever was stored before. An empty cache writes an empty file.
func (c *Cache) Save(ctx context.Context) error {
	if c.state == stateSaved {
		return fmt.Errorf("%w: saved twice", ErrCacheState)
	}

	data := []byte(strings.Join(c.entries.Keys(), "\n"))
	if err := c.storage.Write(ctx, c.location, data); err != nil {
		return fmt.Errorf("%w %s: %w", ErrStorageWrite, c.location, err)
	}
	c.state = stateSaved
	return nil
}

// parseEntries splits stored data into identities, dropping empty lines.
func parseEntries(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	entries := lines[:0]
	for _, line := range lines {
		if line != "" {
			entries = append(entries, line)
		}
	}
	return entries
}
