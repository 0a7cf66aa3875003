package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	TabID string `json:"tabId"`
	Code  string `json:"code"`
	Seq   int    `json:"seq"`
}

func TestStorage_PutAndGet(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	in := testRecord{TabID: "tab-1", Code: "print(1)", Seq: 7}
	require.NoError(t, s.Put(ctx, []string{"tabstate", "tab-1"}, in))

	var out testRecord
	require.NoError(t, s.Get(ctx, []string{"tabstate", "tab-1"}, &out))
	assert.Equal(t, in, out)
}

func TestStorage_GetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var out testRecord
	err := s.Get(context.Background(), []string{"tabstate", "missing"}, &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_Delete(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, []string{"history", "tab-1"}, testRecord{TabID: "tab-1"}))
	require.NoError(t, s.Delete(ctx, []string{"history", "tab-1"}))

	var out testRecord
	assert.ErrorIs(t, s.Get(ctx, []string{"history", "tab-1"}, &out), ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete(ctx, []string{"history", "tab-1"}))
}

func TestStorage_List(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, []string{"tabstate", id}, testRecord{TabID: id}))
	}

	items, err := s.List(ctx, []string{"tabstate"})
	require.NoError(t, err)
	assert.Len(t, items, 3)

	empty, err := s.List(ctx, []string{"nothing"})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorage_Scan(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	want := map[string]testRecord{
		"t1": {TabID: "t1", Seq: 1},
		"t2": {TabID: "t2", Seq: 2},
	}
	for id, rec := range want {
		require.NoError(t, s.Put(ctx, []string{"tabstate", id}, rec))
	}

	got := make(map[string]testRecord)
	err := s.Scan(ctx, []string{"tabstate"}, func(key string, data json.RawMessage) error {
		var rec testRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		got[key] = rec
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStorage_Exists(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	assert.False(t, s.Exists(ctx, []string{"settings"}))
	require.NoError(t, s.Put(ctx, []string{"settings"}, testRecord{}))
	assert.True(t, s.Exists(ctx, []string{"settings"}))
}

func TestStorage_ConcurrentWrites(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, []string{"tabstate", "shared"}, testRecord{TabID: "shared", Seq: seq}))
		}(i)
	}
	wg.Wait()

	var out testRecord
	require.NoError(t, s.Get(ctx, []string{"tabstate", "shared"}, &out))
	assert.Equal(t, "shared", out.TabID)
}

func TestStorage_AtomicWrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	require.NoError(t, s.Put(context.Background(), []string{"tabstate", "t"}, testRecord{TabID: "t"}))

	// No tmp file left behind after the rename.
	_, err := os.Stat(filepath.Join(dir, "tabstate", "t.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}
