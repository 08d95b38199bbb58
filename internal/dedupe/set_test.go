// ABOUTME: Tests for the bounded FIFO set backing the URL cache.
// ABOUTME: Validates membership, capacity limits, eviction order and reset.

package dedupe

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Contains_NotSeen(t *testing.T) {
	set := New(100)

	assert.False(t, set.Contains("never-seen-key"))
}

func TestSet_Add(t *testing.T) {
	set := New(100)

	assert.True(t, set.Add("key-1"))
	assert.True(t, set.Add("key-2"))
	assert.True(t, set.Add("key-3"))

	assert.True(t, set.Contains("key-1"))
	assert.True(t, set.Contains("key-2"))
	assert.True(t, set.Contains("key-3"))
	assert.False(t, set.Contains("key-4"))
	assert.Equal(t, 3, set.Len())
}

func TestSet_Add_Duplicate(t *testing.T) {
	set := New(100)

	assert.True(t, set.Add("dup"))
	assert.False(t, set.Add("dup"), "second Add of the same key should report not new")
	assert.Equal(t, 1, set.Len())
}

func TestSet_Add_DuplicateKeepsPosition(t *testing.T) {
	set := New(3)

	set.Add("first")
	set.Add("second")
	set.Add("first") // no refresh, still the oldest
	set.Add("third")
	set.Add("fourth")

	assert.False(t, set.Contains("first"), "re-adding must not move a key to the back")
	assert.Equal(t, []string{"second", "third", "fourth"}, set.Keys())
}

func TestSet_EvictionOrder(t *testing.T) {
	set := New(3)

	set.Add("first")
	set.Add("second")
	set.Add("third")

	set.Add("fourth")
	assert.False(t, set.Contains("first"), "first should be evicted")
	assert.True(t, set.Contains("second"))
	assert.True(t, set.Contains("third"))
	assert.True(t, set.Contains("fourth"))

	set.Add("fifth")
	assert.False(t, set.Contains("second"), "second should be evicted")
	assert.Equal(t, []string{"third", "fourth", "fifth"}, set.Keys())
}

func TestSet_NeverExceedsCapacity(t *testing.T) {
	const capacity = 10
	set := New(capacity)

	for i := 0; i < 250; i++ {
		set.Add(fmt.Sprintf("key-%d", i))
		assert.LessOrEqual(t, set.Len(), capacity)
		assert.Equal(t, len(set.Keys()), len(set.seen), "order and membership must agree")
	}

	want := make([]string, 0, capacity)
	for i := 240; i < 250; i++ {
		want = append(want, fmt.Sprintf("key-%d", i))
	}
	assert.Equal(t, want, set.Keys())
}

func TestSet_ZeroCapacity(t *testing.T) {
	set := New(0)

	assert.True(t, set.Add("a"), "a key is always new in a zero-capacity set")
	assert.True(t, set.Add("a"))
	assert.False(t, set.Contains("a"))
	assert.Equal(t, 0, set.Len())
	assert.Empty(t, set.Keys())
}

func TestSet_NegativeCapacity(t *testing.T) {
	set := New(-5)

	assert.Equal(t, 0, set.Cap())
	set.Add("a")
	assert.Equal(t, 0, set.Len())
}

func TestSet_Reset(t *testing.T) {
	set := New(3)
	set.Add("stale")

	set.Reset([]string{"a", "b", "c", "d", "e"})

	assert.False(t, set.Contains("stale"))
	assert.Equal(t, []string{"c", "d", "e"}, set.Keys())
	assert.True(t, set.Contains("e"))
	assert.False(t, set.Contains("a"))
}

func TestSet_Reset_AllocatesForKeysNotCapacity(t *testing.T) {
	set := New(20_000_000)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	set.Reset([]string{"a.com/1"})
	runtime.ReadMemStats(&after)

	assert.Equal(t, 1, set.Len())
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))
}

func TestSet_Reset_Empty(t *testing.T) {
	set := New(3)
	set.Add("a")

	set.Reset(nil)

	assert.Equal(t, 0, set.Len())
	assert.True(t, set.Add("a"))
}
