// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu         sync.RWMutex
	caches     map[string][]byte // keyed by location
	deliveries []*Delivery       // in insertion order

	// ReadErr and WriteErr, when set, are returned by Read and Write.
	ReadErr  error
	WriteErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		caches: make(map[string][]byte),
	}
}

// Location returns the key for a (chat, feed) pair.
func (m *MockStore) Location(chatID, feedURL string) string {
	return CacheKey(chatID, feedURL)
}

// Read returns a copy of the blob stored at location.
func (m *MockStore) Read(ctx context.Context, location string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	data, ok := m.caches[location]
	if !ok {
		return nil, cacheNotFound(location)
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data at location.
func (m *MockStore) Write(ctx context.Context, location string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.caches[location] = append([]byte(nil), data...)
	return nil
}

// RecordDelivery appends a copy of d to the ledger.
func (m *MockStore) RecordDelivery(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newDeliveryDefaults(d, uuid.NewString)
	c := *d
	m.deliveries = append(m.deliveries, &c)
	return nil
}

// ListDeliveries returns deliveries for feedURL, newest first.
func (m *MockStore) ListDeliveries(ctx context.Context, feedURL string, limit int) ([]*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Delivery
	for i := len(m.deliveries) - 1; i >= 0; i-- {
		if m.deliveries[i].FeedURL == feedURL {
			c := *m.deliveries[i]
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Deliveries returns every recorded delivery in insertion order.
func (m *MockStore) Deliveries() []*Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Delivery, len(m.deliveries))
	for i, d := range m.deliveries {
		c := *d
		result[i] = &c
	}
	return result
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Compile-time check that MockStore implements Store
var _ Store = (*MockStore)(nil)
