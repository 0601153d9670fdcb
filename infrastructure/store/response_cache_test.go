package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tourney/internal/ports"
)

func openTestCache(t *testing.T) *ResponseCache {
	t.Helper()
	c, err := OpenResponseCache(context.Background(), filepath.Join(t.TempDir(), "responses.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestResponseCache_GetPut(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	_, ok, err := c.Get(ctx, "fp:openai/a")
	require.NoError(t, err)
	assert.False(t, ok, "empty cache misses")

	require.NoError(t, c.Put(ctx, "fp:openai/a", "first analysis"))
	got, ok, err := c.Get(ctx, "fp:openai/a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "first analysis", got)

	require.NoError(t, c.Put(ctx, "fp:openai/a", "second analysis"))
	got, _, err = c.Get(ctx, "fp:openai/a")
	require.NoError(t, err)
	assert.Equal(t, "second analysis", got, "put overwrites")

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResponseCache_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "responses.sqlite")

	c, err := OpenResponseCache(ctx, path)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "k", "v"))
	require.NoError(t, c.Close())

	reopened, err := OpenResponseCache(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestResponseCache_CorruptFile(t *testing.T) {
	// Given a cache path holding something that is not a SQLite database
	path := filepath.Join(t.TempDir(), "responses.sqlite")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 512)), 0o644))

	// When opening it
	_, err := OpenResponseCache(context.Background(), path)

	// Then the failure is reported as a corrupted cache
	var ce *ports.CacheError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ports.ErrCacheCorrupted)
}

func TestResponseCache_ConcurrentPuts(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Put(ctx, fmt.Sprintf("key-%d", i), "response"))
		}()
	}
	wg.Wait()

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}
