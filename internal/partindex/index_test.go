package partindex

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

const testLayout = "processed/timeframe={timeframe}/exchange={exchange}/symbol={symbol}/year={year}/month={month}/day={day}"

func newTestIndex(t *testing.T, opts Options) (*Index, *objstore.MemStore) {
	t.Helper()

	template, err := pathcodec.Parse(testLayout, []string{"1m", "15m", "1d"})
	require.NoError(t, err)

	store := objstore.NewMemStore()
	idx, err := New(store, template, opts, nil)
	require.NoError(t, err)
	t.Cleanup(idx.Close)

	return idx, store
}

func seedPartition(store *objstore.MemStore, tf, symbol string, year, month, day int) string {
	key := fmt.Sprintf("processed/timeframe=%s/exchange=NSE/symbol=%s/year=%04d/month=%02d/day=%02d/part-00000.parquet",
		tf, symbol, year, month, day)
	store.Seed(key, []byte("parquet-bytes"))
	return key
}

func TestIndex_ListPartitions(t *testing.T) {
	idx, store := newTestIndex(t, Options{})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)
	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 4)
	seedPartition(store, "1d", "NSE_INFY-EQ", 2025, 11, 3)
	seedPartition(store, "15m", "NSE_CIPLA-EQ", 2025, 11, 3)

	page, err := idx.ListPartitions(ctx, pathcodec.Coordinate{Timeframe: "1d"}, 100, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Partitions, 3)
	assert.Empty(t, page.NextToken)

	for _, p := range page.Partitions {
		assert.Equal(t, "1d", p.Coordinate.Timeframe)
		assert.NotEmpty(t, p.Key)
		assert.Positive(t, p.Size)
	}
}

func TestIndex_ListPartitions_PostDecodeFilter(t *testing.T) {
	idx, store := newTestIndex(t, Options{})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)
	seedPartition(store, "15m", "NSE_CIPLA-EQ", 2025, 11, 3)
	seedPartition(store, "1d", "NSE_INFY-EQ", 2025, 11, 3)

	// Symbol without timeframe cannot narrow the prefix; the filter applies
	// after decoding instead.
	page, err := idx.ListPartitions(ctx, pathcodec.Coordinate{Symbol: "NSE_CIPLA-EQ"}, 100, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Partitions, 2)
	for _, p := range page.Partitions {
		assert.Equal(t, "NSE_CIPLA-EQ", p.Coordinate.Symbol)
	}
}

func TestIndex_ListPartitions_SkipsForeignKeys(t *testing.T) {
	idx, store := newTestIndex(t, Options{})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)
	store.Seed("processed/timeframe=1d/_manifest.json", []byte("{}"))
	store.Seed("processed/README.md", []byte("docs"))

	page, err := idx.ListPartitions(ctx, pathcodec.Coordinate{}, 100, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Partitions, 1)
}

func TestIndex_CacheServesRepeatQueries(t *testing.T) {
	idx, store := newTestIndex(t, Options{TTL: time.Minute})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)

	filter := pathcodec.Coordinate{Timeframe: "1d"}
	_, err := idx.ListPartitions(ctx, filter, 100, "", false)
	require.NoError(t, err)
	calls := store.ListCalls()

	for i := 0; i < 5; i++ {
		_, err := idx.ListPartitions(ctx, filter, 100, "", false)
		require.NoError(t, err)
	}
	assert.Equal(t, calls, store.ListCalls(), "repeat queries within TTL must not hit the store")

	// fresh bypasses the cache
	_, err = idx.ListPartitions(ctx, filter, 100, "", true)
	require.NoError(t, err)
	assert.Equal(t, calls+1, store.ListCalls())
}

func TestIndex_SingleflightCollapsesConcurrentMisses(t *testing.T) {
	idx, store := newTestIndex(t, Options{TTL: time.Minute})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)

	// Hold the first listing open until all goroutines have started, so every
	// concurrent miss observes the same in-flight call.
	const workers = 8
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.OnList = func(string) {
		once.Do(func() {
			close(started)
			<-release
		})
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	filter := pathcodec.Coordinate{Timeframe: "1d"}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = idx.ListPartitions(ctx, filter, 100, "", false)
	}()
	<-started

	for i := 1; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = idx.ListPartitions(ctx, filter, 100, "", false)
		}(i)
	}

	// Give the followers a moment to reach the registry, then let the leader
	// finish.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}
	assert.Equal(t, int64(1), store.ListCalls(), "concurrent misses must share one store round trip")
}

func TestIndex_InvalidateWithinTTL(t *testing.T) {
	idx, store := newTestIndex(t, Options{TTL: time.Hour})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)

	filter := pathcodec.Coordinate{Timeframe: "1d"}
	page, err := idx.ListPartitions(ctx, filter, 100, "", false)
	require.NoError(t, err)
	require.Len(t, page.Partitions, 1)

	// New partition arrives and the writer invalidates its key. The cached
	// broad listing must be dropped even though the TTL has not elapsed.
	key := seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 4)
	idx.Invalidate(key)

	page, err = idx.ListPartitions(ctx, filter, 100, "", false)
	require.NoError(t, err)
	assert.Len(t, page.Partitions, 2)
}

func TestIndex_ListSymbols(t *testing.T) {
	idx, store := newTestIndex(t, Options{TTL: time.Hour, PageSize: 2})
	ctx := context.Background()

	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)
	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 4)
	seedPartition(store, "15m", "NSE_INFY-EQ", 2025, 11, 3)
	seedPartition(store, "1m", "NSE_TCS-EQ", 2025, 11, 3)
	store.Seed("processed/stray.txt", []byte("x"))

	symbols, err := idx.ListSymbols(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"NSE_CIPLA-EQ", "NSE_INFY-EQ", "NSE_TCS-EQ"}, symbols)

	// Cached on repeat
	calls := store.ListCalls()
	_, err = idx.ListSymbols(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, calls, store.ListCalls())

	// A write invalidates the symbol enumeration too
	key := seedPartition(store, "1d", "NSE_HDFC-EQ", 2025, 11, 3)
	idx.Invalidate(key)

	symbols, err = idx.ListSymbols(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, symbols, "NSE_HDFC-EQ")
}

func TestIndex_ListSymbols_ScanBound(t *testing.T) {
	idx, store := newTestIndex(t, Options{MaxScanObjects: 5, PageSize: 2})
	ctx := context.Background()

	for day := 1; day <= 10; day++ {
		seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, day)
	}

	_, err := idx.ListSymbols(ctx, false)
	assert.Error(t, err)
}

func TestIndex_Pagination(t *testing.T) {
	idx, store := newTestIndex(t, Options{})
	ctx := context.Background()

	for day := 1; day <= 7; day++ {
		seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, day)
	}

	filter := pathcodec.Coordinate{Timeframe: "1d", Exchange: "NSE", Symbol: "NSE_CIPLA-EQ"}
	var all []Partition
	token := ""
	for {
		page, err := idx.ListPartitions(ctx, filter, 3, token, false)
		require.NoError(t, err)
		all = append(all, page.Partitions...)
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	assert.Len(t, all, 7)
}

func TestNew_Validation(t *testing.T) {
	template, err := pathcodec.Parse(testLayout, []string{"1d"})
	require.NoError(t, err)

	_, err = New(nil, template, Options{}, nil)
	assert.Error(t, err)

	_, err = New(objstore.NewMemStore(), nil, Options{}, nil)
	assert.Error(t, err)
}

func TestIndex_InvalidateDuringFetch(t *testing.T) {
	idx, store := newTestIndex(t, Options{TTL: time.Hour})
	ctx := context.Background()

	key := seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 3)

	// A write lands while the listing is already in flight; the fetched page
	// predates it and must not be written back into the cache.
	var once sync.Once
	store.OnList = func(string) {
		once.Do(func() { idx.Invalidate(key) })
	}

	_, err := idx.ListPartitions(ctx, pathcodec.Coordinate{Timeframe: "1d"}, 100, "", false)
	require.NoError(t, err)

	store.OnList = nil
	seedPartition(store, "1d", "NSE_CIPLA-EQ", 2025, 11, 4)

	calls := store.ListCalls()
	page, err := idx.ListPartitions(ctx, pathcodec.Coordinate{Timeframe: "1d"}, 100, "", false)
	require.NoError(t, err)
	assert.Equal(t, calls+1, store.ListCalls(), "racing page served from cache")
	assert.Len(t, page.Partitions, 2)
}
