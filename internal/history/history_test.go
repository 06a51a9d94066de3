package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlmtrace/internal/trace"
)

func finished(id string) *trace.Execution {
	return &trace.Execution{ID: id, Status: trace.StatusCompleted}
}

func TestAddAndGet(t *testing.T) {
	store, err := New(4)
	require.NoError(t, err)

	store.Add(finished("e1"))
	store.Add(finished("e2"))

	got, ok := store.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "e1", got.ID)

	_, ok = store.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())
}

func TestAddIgnoresUnusableSnapshots(t *testing.T) {
	store, err := New(4)
	require.NoError(t, err)

	store.Add(nil)
	store.Add(&trace.Execution{Status: trace.StatusFailed})
	assert.Equal(t, 0, store.Len())
}

func TestAddSameIDReplaces(t *testing.T) {
	store, err := New(4)
	require.NoError(t, err)

	store.Add(finished("e1"))
	updated := finished("e1")
	updated.FinalAnswer = "42"
	store.Add(updated)

	require.Equal(t, 1, store.Len())
	got, ok := store.Get("e1")
	require.True(t, ok)
	assert.Equal(t, "42", got.FinalAnswer)
}

func TestListMostRecentFirst(t *testing.T) {
	store, err := New(8)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		store.Add(finished(fmt.Sprintf("e%d", i)))
	}

	list := store.List()
	require.Len(t, list, 3)
	assert.Equal(t, "e3", list[0].ID)
	assert.Equal(t, "e2", list[1].ID)
	assert.Equal(t, "e1", list[2].ID)
}

func TestEvictionKeepsNewest(t *testing.T) {
	store, err := New(2)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		store.Add(finished(fmt.Sprintf("e%d", i)))
	}

	assert.Equal(t, 2, store.Len())
	_, ok := store.Get("e1")
	assert.False(t, ok, "oldest run should be evicted")
	_, ok = store.Get("e3")
	assert.True(t, ok, "newest run should survive")
}

func TestDefaultSizeFloor(t *testing.T) {
	store, err := New(0)
	require.NoError(t, err)
	for i := 0; i < DefaultSize+1; i++ {
		store.Add(finished(fmt.Sprintf("e%d", i)))
	}
	assert.Equal(t, DefaultSize, store.Len())
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *Store
	store.Add(finished("e1"))
	assert.Equal(t, 0, store.Len())
	_, ok := store.Get("e1")
	assert.False(t, ok)
	assert.Nil(t, store.List())
}
