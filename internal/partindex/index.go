// Package partindex maintains a cached, queryable view of which partitions
// exist in the object store. It is purely derived state: the store listing is
// the source of truth and every cached page can be rebuilt from it.
package partindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

// Partition is one decoded partition object.
type Partition struct {
	Coordinate   pathcodec.Coordinate `json:"coordinate"`
	Key          string               `json:"key"`
	Size         int64                `json:"size"`
	LastModified time.Time            `json:"last_modified"`
}

// PartitionPage is one page of partition listings.
type PartitionPage struct {
	Partitions []Partition `json:"partitions"`
	NextToken  string      `json:"next_token,omitempty"`
}

// Options tunes the index. Zero values fall back to safe defaults.
type Options struct {
	TTL             time.Duration // page cache lifetime
	CleanupInterval time.Duration // expired-entry sweep interval
	PageSize        int           // store page size for internal scans
	MaxScanObjects  int           // symbol-scan safety bound
}

// Index answers partition and symbol queries against the store through a TTL
// page cache. Concurrent misses for the same page collapse into a single
// store round trip.
type Index struct {
	store    objstore.Store
	template *pathcodec.Template
	cache    *pageCache
	logger   *logging.Logger

	pageSize       int
	maxScanObjects int

	mu       sync.Mutex
	inflight map[string]*listCall
}

// listCall tracks one in-flight store listing shared by concurrent callers.
type listCall struct {
	wg   sync.WaitGroup
	page PartitionPage
	err  error
}

// New creates a partition index over the store.
func New(store objstore.Store, template *pathcodec.Template, opts Options, logger *logging.Logger) (*Index, error) {
	if store == nil {
		return nil, errors.New("partindex: store is required")
	}
	if template == nil {
		return nil, errors.New("partindex: template is required")
	}
	if logger == nil {
		logger = logging.Global()
	}

	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.PageSize < 1 || opts.PageSize > 1000 {
		opts.PageSize = 1000
	}
	if opts.MaxScanObjects <= 0 {
		opts.MaxScanObjects = 100000
	}

	return &Index{
		store:          store,
		template:       template,
		cache:          newPageCache(opts.TTL, opts.CleanupInterval),
		logger:         logger,
		pageSize:       opts.PageSize,
		maxScanObjects: opts.MaxScanObjects,
		inflight:       make(map[string]*listCall),
	}, nil
}

// Close stops the cache maintenance goroutine.
func (idx *Index) Close() {
	idx.cache.Stop()
}

// ListPartitions returns one page of partitions matching the filter
// coordinate. Wildcard fields narrow the listing prefix as far as key order
// allows; remaining set fields are applied after decoding. fresh bypasses
// the cache and repopulates it.
func (idx *Index) ListPartitions(ctx context.Context, filter pathcodec.Coordinate, pageSize int, token string, fresh bool) (PartitionPage, error) {
	prefix, err := idx.template.Prefix(filter)
	if err != nil {
		return PartitionPage{}, err
	}

	if pageSize < 1 || pageSize > idx.pageSize {
		pageSize = idx.pageSize
	}

	cacheKey := prefix + "\x00" + token + "\x00" + strconv.Itoa(pageSize)

	if !fresh {
		if page, ok := idx.cache.Get(cacheKey); ok {
			return filterPage(filter, page), nil
		}
	}

	page, err := idx.listOnce(ctx, cacheKey, prefix, pageSize, token)
	if err != nil {
		return PartitionPage{}, err
	}

	return filterPage(filter, page), nil
}

// listOnce performs the store listing for a cache key, collapsing concurrent
// callers onto a single round trip. The registry lock is held only around
// registry mutation, never across store I/O.
func (idx *Index) listOnce(ctx context.Context, cacheKey, prefix string, pageSize int, token string) (PartitionPage, error) {
	idx.mu.Lock()
	if call, ok := idx.inflight[cacheKey]; ok {
		idx.mu.Unlock()
		call.wg.Wait()
		return call.page, call.err
	}

	call := &listCall{}
	call.wg.Add(1)
	idx.inflight[cacheKey] = call
	idx.mu.Unlock()

	// Observe the invalidation epoch before the fetch so a write racing the
	// listing keeps the stale page out of the cache.
	gen := idx.cache.Generation()
	call.page, call.err = idx.fetch(ctx, prefix, pageSize, token)
	if call.err == nil {
		idx.cache.SetIfCurrent(cacheKey, call.page, gen)
	}

	idx.mu.Lock()
	delete(idx.inflight, cacheKey)
	idx.mu.Unlock()
	call.wg.Done()

	return call.page, call.err
}

// fetch lists one store page and decodes it. Keys from a foreign layout are
// skipped, not treated as failures.
func (idx *Index) fetch(ctx context.Context, prefix string, pageSize int, token string) (PartitionPage, error) {
	storePage, err := idx.store.List(ctx, prefix, pageSize, token)
	if err != nil {
		return PartitionPage{}, fmt.Errorf("partindex: list %q: %w", prefix, err)
	}

	page := PartitionPage{
		Partitions: make([]Partition, 0, len(storePage.Objects)),
		NextToken:  storePage.NextToken,
	}
	for _, ref := range storePage.Objects {
		coord, err := idx.template.Decode(ref.Key)
		if err != nil {
			idx.logger.Debug("Skipping object outside layout convention",
				"key", ref.Key, "error", err)
			continue
		}
		page.Partitions = append(page.Partitions, Partition{
			Coordinate:   coord,
			Key:          ref.Key,
			Size:         ref.Size,
			LastModified: ref.LastModified,
		})
	}

	return page, nil
}

// filterPage applies the non-prefix filter fields after decoding.
func filterPage(filter pathcodec.Coordinate, page PartitionPage) PartitionPage {
	out := PartitionPage{
		Partitions: make([]Partition, 0, len(page.Partitions)),
		NextToken:  page.NextToken,
	}
	for _, p := range page.Partitions {
		if filter.Matches(p.Coordinate) {
			out.Partitions = append(out.Partitions, p)
		}
	}
	return out
}

// symbolsCacheKey keys the symbol enumeration under the template root so
// prefix invalidation anywhere in the tree clears it too.
func (idx *Index) symbolsCacheKey() string {
	return idx.template.Root() + "\x00symbols"
}

// ListSymbols enumerates the distinct symbols present in the store, sorted.
// The scan walks every page under the template root, so the result is cached
// aggressively and rebuilt at most once per TTL.
func (idx *Index) ListSymbols(ctx context.Context, fresh bool) ([]string, error) {
	cacheKey := idx.symbolsCacheKey()

	if !fresh {
		if page, ok := idx.cache.Get(cacheKey); ok {
			return symbolsFromPage(page), nil
		}
	}

	page, err := idx.scanSymbolsOnce(ctx, cacheKey)
	if err != nil {
		return nil, err
	}

	return symbolsFromPage(page), nil
}

// scanSymbolsOnce walks the full root scan under singleflight, reusing the
// in-flight registry so concurrent cold callers share one scan.
func (idx *Index) scanSymbolsOnce(ctx context.Context, cacheKey string) (PartitionPage, error) {
	idx.mu.Lock()
	if call, ok := idx.inflight[cacheKey]; ok {
		idx.mu.Unlock()
		call.wg.Wait()
		return call.page, call.err
	}

	call := &listCall{}
	call.wg.Add(1)
	idx.inflight[cacheKey] = call
	idx.mu.Unlock()

	gen := idx.cache.Generation()
	call.page, call.err = idx.scanSymbols(ctx)
	if call.err == nil {
		idx.cache.SetIfCurrent(cacheKey, call.page, gen)
	}

	idx.mu.Lock()
	delete(idx.inflight, cacheKey)
	idx.mu.Unlock()
	call.wg.Done()

	return call.page, call.err
}

// scanSymbols lists the full template root and keeps one partition per
// distinct symbol.
func (idx *Index) scanSymbols(ctx context.Context) (PartitionPage, error) {
	root := idx.template.Root()
	seen := make(map[string]Partition)

	token := ""
	scanned := 0
	for {
		storePage, err := idx.store.List(ctx, root, idx.pageSize, token)
		if err != nil {
			return PartitionPage{}, fmt.Errorf("partindex: symbol scan: %w", err)
		}

		for _, ref := range storePage.Objects {
			coord, err := idx.template.Decode(ref.Key)
			if err != nil {
				continue
			}
			if _, ok := seen[coord.Symbol]; !ok {
				seen[coord.Symbol] = Partition{
					Coordinate:   coord,
					Key:          ref.Key,
					Size:         ref.Size,
					LastModified: ref.LastModified,
				}
			}
		}

		scanned += len(storePage.Objects)
		if scanned > idx.maxScanObjects {
			return PartitionPage{}, fmt.Errorf("partindex: symbol scan exceeded %d objects", idx.maxScanObjects)
		}

		if storePage.NextToken == "" {
			break
		}
		token = storePage.NextToken
	}

	page := PartitionPage{Partitions: make([]Partition, 0, len(seen))}
	for _, p := range seen {
		page.Partitions = append(page.Partitions, p)
	}
	sort.Slice(page.Partitions, func(i, j int) bool {
		return page.Partitions[i].Coordinate.Symbol < page.Partitions[j].Coordinate.Symbol
	})

	return page, nil
}

// symbolsFromPage extracts the sorted symbol names from a cached scan page.
func symbolsFromPage(page PartitionPage) []string {
	symbols := make([]string, 0, len(page.Partitions))
	for _, p := range page.Partitions {
		symbols = append(symbols, p.Coordinate.Symbol)
	}
	return symbols
}

// Invalidate drops every cached page whose listing could contain the given
// object key, plus the symbol enumeration. Writers call it after a
// successful upload so the next read observes the new partition regardless
// of TTL.
func (idx *Index) Invalidate(key string) {
	idx.cache.DeleteAncestors(key)
	idx.cache.DeletePrefix(idx.symbolsCacheKey())
}
