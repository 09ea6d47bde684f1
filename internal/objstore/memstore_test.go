package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_PutGetStat(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Stat(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	ref, err := store.Put(ctx, "k", bytes.NewReader([]byte("abc")), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), ref.Size)

	body, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "abc", string(data))
}

func TestMemStore_OverwriteProtection(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	_, err := store.Put(ctx, "k", bytes.NewReader([]byte("first")), false)
	require.NoError(t, err)

	_, err = store.Put(ctx, "k", bytes.NewReader([]byte("second")), false)
	assert.ErrorIs(t, err, ErrConflict)

	body, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	data, _ := io.ReadAll(body)
	_ = body.Close()
	assert.Equal(t, "first", string(data))
}

func TestMemStore_ListCompleteness(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		store.Seed(fmt.Sprintf("pre/part-%03d", i), []byte("x"))
	}
	store.Seed("zzz/outside", []byte("x"))

	// Any page size must return exactly n items, in order, no duplicates
	for _, pageSize := range []int{1, 3, 7, 25, 100} {
		seen := make(map[string]bool)
		var ordered []string
		token := ""
		for {
			page, err := store.List(ctx, "pre/", pageSize, token)
			require.NoError(t, err)

			for _, ref := range page.Objects {
				assert.False(t, seen[ref.Key], "duplicate key %s at page size %d", ref.Key, pageSize)
				seen[ref.Key] = true
				ordered = append(ordered, ref.Key)
			}
			if page.NextToken == "" {
				break
			}
			token = page.NextToken
		}

		assert.Len(t, seen, n, "page size %d", pageSize)
	}
}

func TestMemStore_Sign(t *testing.T) {
	store := NewMemStore()

	signed, err := store.Sign(context.Background(), "a/b", 5*time.Minute, SignModeRead)
	require.NoError(t, err)
	assert.Contains(t, signed.URL, "mode=read")
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), signed.ExpiresAt, 2*time.Second)
}

func TestMemStore_ContextCancelled(t *testing.T) {
	store := NewMemStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx, "", 10, "")
	assert.Error(t, err)
}
