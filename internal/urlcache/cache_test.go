// ABOUTME: Tests for the persistent URL cache
// ABOUTME: Validates dedup, FIFO bounds, load truncation, round-trips and failure handling

package urlcache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testChat = "!news:example.org"
	testFeed = "https://example.com/rss.xml"
)

// failingStorage returns fixed errors from Read and Write.
type failingStorage struct {
	readErr  error
	writeErr error
}

func (s *failingStorage) Location(chatID, feedURL string) string {
	return chatID + "|" + feedURL
}

func (s *failingStorage) Read(context.Context, string) ([]byte, error) {
	return nil, s.readErr
}

func (s *failingStorage) Write(context.Context, string, []byte) error {
	return s.writeErr
}

func newFileCache(t *testing.T, dir string, capacity int) *Cache {
	t.Helper()
	return New(NewFileStorage(dir), testChat, testFeed, capacity)
}

func TestCache_Scenario(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 2)
	require.NoError(t, cache.Load(context.Background()))

	for _, u := range []string{"http://a.com/1", "http://a.com/2", "http://a.com/3"} {
		isNew, err := cache.Insert(u)
		require.NoError(t, err)
		assert.True(t, isNew, u)
	}
	assert.Equal(t, []string{"a.com/2", "a.com/3"}, cache.Entries())

	isNew, err := cache.Insert("http://www.a.com/2.html")
	require.NoError(t, err)
	assert.False(t, isNew, "variant of a retained URL must be a duplicate")

	isNew, err = cache.Insert("http://a.com/1")
	require.NoError(t, err)
	assert.True(t, isNew, "evicted URL is new again")
}

func TestCache_InsertDuplicate(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 100)
	require.NoError(t, cache.Load(context.Background()))

	urls := []string{
		"https://example.com/post/1",
		"https://example.com/post/1/",
		"https://www.example.com/post/1.html",
		"http://example.com/post/1?utm_source=feed",
	}
	isNew, err := cache.Insert(urls[0])
	require.NoError(t, err)
	assert.True(t, isNew)

	for _, u := range urls {
		isNew, err := cache.Insert(u)
		require.NoError(t, err)
		assert.False(t, isNew, u)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCache_BoundedSize(t *testing.T) {
	const capacity = 5
	cache := newFileCache(t, t.TempDir(), capacity)
	require.NoError(t, cache.Load(context.Background()))

	for i := 0; i < capacity+7; i++ {
		_, err := cache.Insert(fmt.Sprintf("https://example.com/%d", i))
		require.NoError(t, err)
		assert.LessOrEqual(t, cache.Len(), capacity)
	}

	assert.Equal(t, []string{
		"example.com/7", "example.com/8", "example.com/9", "example.com/10", "example.com/11",
	}, cache.Entries())
}

func TestCache_ZeroCapacity(t *testing.T) {
	dir := t.TempDir()
	cache := newFileCache(t, dir, 0)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx))

	for i := 0; i < 3; i++ {
		isNew, err := cache.Insert("https://example.com/same")
		require.NoError(t, err)
		assert.True(t, isNew, "a zero-capacity cache never remembers anything")
	}
	require.NoError(t, cache.Save(ctx))

	data, err := os.ReadFile(cache.Location())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCache_InsertErrorLeavesStateUnchanged(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 3)
	require.NoError(t, cache.Load(context.Background()))
	_, err := cache.Insert("https://example.com/1")
	require.NoError(t, err)

	_, err = cache.Insert("not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = cache.Insert("mailto:x@example.com")
	assert.ErrorIs(t, err, ErrNoDomain)

	assert.Equal(t, []string{"example.com/1"}, cache.Entries())
}

func TestCache_InsertWithoutLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(NewFileStorage(dir).Location(testChat, testFeed), []byte("a.com/1"), 0644))

	cache := newFileCache(t, dir, 10)
	isNew, err := cache.Insert("http://a.com/1")
	require.NoError(t, err)
	assert.True(t, isNew, "without Load the cache starts empty")
}

func TestCache_LoadSmallFileLargeCapacity(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(NewFileStorage(dir).Location(testChat, testFeed), []byte("a.com/1\n"), 0644))
	cache := newFileCache(t, dir, 20_000_000)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	require.NoError(t, cache.Load(context.Background()))
	runtime.ReadMemStats(&after)

	assert.Equal(t, []string{"a.com/1"}, cache.Entries())
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20), "load should allocate for stored entries only")
}

func TestCache_LoadMissingFile(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 10)

	require.NoError(t, cache.Load(context.Background()))
	assert.Equal(t, 0, cache.Len())
}

func TestCache_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := newFileCache(t, dir, 4)
	require.NoError(t, first.Load(ctx))
	for _, u := range []string{"https://a.com/1", "https://b.com/?p=2", "https://c.com/x/y", "https://a.com/4", "https://a.com/5"} {
		_, err := first.Insert(u)
		require.NoError(t, err)
	}
	require.NoError(t, first.Save(ctx))

	second := newFileCache(t, dir, 4)
	require.NoError(t, second.Load(ctx))
	assert.Equal(t, first.Entries(), second.Entries())

	for _, u := range []string{"https://b.com/?p=2", "https://c.com/x/y/", "https://a.com/4", "https://a.com/5"} {
		isNew, err := second.Insert(u)
		require.NoError(t, err)
		assert.False(t, isNew, u)
	}
}

func TestCache_SaveFormat(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 10)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx))
	_, _ = cache.Insert("https://a.com/1")
	_, _ = cache.Insert("https://a.com/2")
	require.NoError(t, cache.Save(ctx))

	data, err := os.ReadFile(cache.Location())
	require.NoError(t, err)
	assert.Equal(t, "a.com/1\na.com/2", string(data))
}

func TestCache_LoadTruncatesToNewest(t *testing.T) {
	dir := t.TempDir()
	loc := NewFileStorage(dir).Location(testChat, testFeed)
	require.NoError(t, os.WriteFile(loc, []byte("a.com/1\na.com/2\na.com/3\na.com/4\na.com/5\n"), 0644))

	cache := newFileCache(t, dir, 3)
	require.NoError(t, cache.Load(context.Background()))

	assert.Equal(t, []string{"a.com/3", "a.com/4", "a.com/5"}, cache.Entries())
	isNew, err := cache.Insert("http://a.com/1")
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestCache_LoadDropsEmptyLines(t *testing.T) {
	dir := t.TempDir()
	loc := NewFileStorage(dir).Location(testChat, testFeed)
	require.NoError(t, os.WriteFile(loc, []byte("\na.com/1\n\n\na.com/2\n"), 0644))

	cache := newFileCache(t, dir, 10)
	require.NoError(t, cache.Load(context.Background()))

	assert.Equal(t, []string{"a.com/1", "a.com/2"}, cache.Entries())
}

func TestCache_LoadStoredEntriesAreNotRenormalized(t *testing.T) {
	dir := t.TempDir()
	loc := NewFileStorage(dir).Location(testChat, testFeed)
	require.NoError(t, os.WriteFile(loc, []byte("www.a.com/1.html"), 0644))

	cache := newFileCache(t, dir, 10)
	require.NoError(t, cache.Load(context.Background()))

	assert.Equal(t, []string{"www.a.com/1.html"}, cache.Entries())
}

func TestCache_LoadReadError(t *testing.T) {
	storage := &failingStorage{readErr: fs.ErrPermission}
	cache := New(storage, testChat, testFeed, 10)

	err := cache.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageRead)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Contains(t, err.Error(), cache.Location())
}

func TestCache_LoadUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	loc := NewFileStorage(dir).Location(testChat, testFeed)
	require.NoError(t, os.Mkdir(loc, 0755)) // a directory where the file should be

	cache := newFileCache(t, dir, 10)
	err := cache.Load(context.Background())
	assert.ErrorIs(t, err, ErrStorageRead)
}

func TestCache_SaveWriteError(t *testing.T) {
	cache := newFileCache(t, filepath.Join(t.TempDir(), "missing"), 10)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx))
	_, err := cache.Insert("https://a.com/1")
	require.NoError(t, err)

	err = cache.Save(ctx)
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.Contains(t, err.Error(), cache.Location())
}

func TestCache_SaveWriteErrorWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	cache := New(&failingStorage{writeErr: cause}, testChat, testFeed, 10)

	err := cache.Save(context.Background())
	assert.ErrorIs(t, err, ErrStorageWrite)
	assert.ErrorIs(t, err, cause)
}

func TestCache_SaveEmpty(t *testing.T) {
	cache := newFileCache(t, t.TempDir(), 10)
	ctx := context.Background()
	require.NoError(t, cache.Load(ctx))

	require.NoError(t, cache.Save(ctx))

	data, err := os.ReadFile(cache.Location())
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestCache_OutOfOrderCalls(t *testing.T) {
	ctx := context.Background()

	t.Run("load twice", func(t *testing.T) {
		cache := newFileCache(t, t.TempDir(), 10)
		require.NoError(t, cache.Load(ctx))
		assert.ErrorIs(t, cache.Load(ctx), ErrCacheState)
	})

	t.Run("load after insert", func(t *testing.T) {
		cache := newFileCache(t, t.TempDir(), 10)
		_, err := cache.Insert("https://a.com/1")
		require.NoError(t, err)
		assert.ErrorIs(t, cache.Load(ctx), ErrCacheState)
	})

	t.Run("insert after save", func(t *testing.T) {
		cache := newFileCache(t, t.TempDir(), 10)
		require.NoError(t, cache.Save(ctx))
		_, err := cache.Insert("https://a.com/1")
		assert.ErrorIs(t, err, ErrCacheState)
	})

	t.Run("save twice", func(t *testing.T) {
		cache := newFileCache(t, t.TempDir(), 10)
		require.NoError(t, cache.Save(ctx))
		assert.ErrorIs(t, cache.Save(ctx), ErrCacheState)
	})
}

func TestCache_IndependentLocations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	storage := NewFileStorage(dir)

	a := New(storage, "chat-a", testFeed, 10)
	require.NoError(t, a.Load(ctx))
	_, err := a.Insert("https://a.com/1")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx))

	b := New(storage, "chat-b", testFeed, 10)
	require.NoError(t, b.Load(ctx))
	isNew, err := b.Insert("https://a.com/1")
	require.NoError(t, err)
	assert.True(t, isNew, "caches for different chats must not share state")
}
