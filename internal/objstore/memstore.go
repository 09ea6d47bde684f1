package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore is a map-backed Store for tests and local development. Listing is
// ordered by key and paginated with an opaque "resume after" cursor, mirroring
// the backend behavior the index depends on.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	mtimes  map[string]time.Time

	listCalls atomic.Int64

	// OnList, when set, runs at the start of every List call. Tests use it
	// to hold listings open while concurrent callers pile up.
	OnList func(prefix string)
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string][]byte),
		mtimes:  make(map[string]time.Time),
	}
}

// Seed inserts an object directly, bypassing overwrite checks. Test helper.
func (m *MemStore) Seed(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = append([]byte(nil), data...)
	m.mtimes[key] = time.Now().UTC()
}

// ListCalls reports how many List round trips have been made.
func (m *MemStore) ListCalls() int64 {
	return m.listCalls.Load()
}

// List implements Store.
func (m *MemStore) List(ctx context.Context, prefix string, pageSize int, token string) (Page, error) {
	m.listCalls.Add(1)
	if m.OnList != nil {
		m.OnList(prefix)
	}

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.objects))
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)

	// Resume strictly after the cursor key
	start := 0
	if token != "" {
		start = sort.SearchStrings(keys, token)
		if start < len(keys) && keys[start] == token {
			start++
		}
	}

	if pageSize < 1 {
		pageSize = 1000
	}
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}

	page := Page{Objects: make([]ObjectRef, 0, end-start)}
	m.mu.RLock()
	for _, key := range keys[start:end] {
		page.Objects = append(page.Objects, ObjectRef{
			Key:          key,
			Size:         int64(len(m.objects[key])),
			LastModified: m.mtimes[key],
		})
	}
	m.mu.RUnlock()

	if end < len(keys) {
		page.NextToken = keys[end-1]
	}

	return page, nil
}

// Get implements Store.
func (m *MemStore) Get(ctx context.Context, key string) (io.ReadCloser, ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectRef{}, err
	}

	m.mu.RLock()
	data, exists := m.objects[key]
	mtime := m.mtimes[key]
	m.mu.RUnlock()

	if !exists {
		return nil, ObjectRef{}, ErrNotFound
	}

	ref := ObjectRef{Key: key, Size: int64(len(data)), LastModified: mtime}
	return io.NopCloser(bytes.NewReader(data)), ref, nil
}

// Stat implements Store.
func (m *MemStore) Stat(ctx context.Context, key string) (ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return ObjectRef{}, err
	}

	m.mu.RLock()
	data, exists := m.objects[key]
	mtime := m.mtimes[key]
	m.mu.RUnlock()

	if !exists {
		return ObjectRef{}, ErrNotFound
	}

	return ObjectRef{Key: key, Size: int64(len(data)), LastModified: mtime}, nil
}

// Put implements Store.
func (m *MemStore) Put(ctx context.Context, key string, body io.Reader, overwrite bool) (ObjectRef, error) {
	if err := ctx.Err(); err != nil {
		return ObjectRef{}, err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("memstore: reading upload body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[key]; exists && !overwrite {
		return ObjectRef{}, ErrConflict
	}

	now := time.Now().UTC()
	m.objects[key] = data
	m.mtimes[key] = now

	return ObjectRef{Key: key, Size: int64(len(data)), LastModified: now}, nil
}

// Sign implements Store. URLs are synthetic but carry the same shape as a
// presigned backend URL, which is enough for handler and mediator tests.
func (m *MemStore) Sign(_ context.Context, key string, expiresIn time.Duration, mode SignMode) (SignedURL, error) {
	expiresAt := time.Now().UTC().Add(expiresIn)

	return SignedURL{
		URL: fmt.Sprintf("memory://bucket/%s?mode=%s&expires=%d",
			url.PathEscape(key), mode, expiresAt.Unix()),
		ExpiresAt: expiresAt,
		Fields:    map[string]string{},
	}, nil
}
