// Package objstore defines the narrow object-store capability boundary the
// gateway is built on: prefix listing, reads, writes, and time-limited URL
// signing. Any backend satisfying Store is interchangeable without touching
// partition or access logic.
package objstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound indicates no object exists at the requested key.
	ErrNotFound = errors.New("objstore: object not found")

	// ErrConflict indicates a write collided with an existing object while
	// overwrite was not permitted.
	ErrConflict = errors.New("objstore: object already exists")

	// ErrTimeout indicates a store round trip exceeded its deadline.
	// Safe to retry with backoff; the store itself performs no retries.
	ErrTimeout = errors.New("objstore: store request timed out")
)

// SignMode selects the capability granted by a signed URL.
type SignMode string

const (
	SignModeRead  SignMode = "read"
	SignModeWrite SignMode = "write"
)

// ObjectRef is an immutable snapshot of a stored object. It is produced by
// enumeration and never mutated afterward; it is not a live handle.
type ObjectRef struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Page is one bounded slice of a listing. NextToken is opaque; an empty
// token means the listing is exhausted.
type Page struct {
	Objects   []ObjectRef
	NextToken string
}

// SignedURL is a time-limited credential for one key. Never persisted.
// Fields carries backend-required form fields for uploads (empty for S3 PUT).
type SignedURL struct {
	URL       string
	ExpiresAt time.Time
	Fields    map[string]string
}

// Store is the four-capability interface the gateway consumes. Every round
// trip honors the context; implementations surface deadline expiry as
// ErrTimeout.
type Store interface {
	// List returns one page of keys under prefix, at most pageSize entries,
	// resuming from token. One backend round trip per call.
	List(ctx context.Context, prefix string, pageSize int, token string) (Page, error)

	// Get opens a byte stream for the object at key. The caller must close
	// the returned reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectRef, error)

	// Stat returns the object snapshot without fetching its bytes.
	Stat(ctx context.Context, key string) (ObjectRef, error)

	// Put writes body to key. With overwrite false an existing object makes
	// the write fail with ErrConflict; the original bytes are untouched.
	Put(ctx context.Context, key string, body io.Reader, overwrite bool) (ObjectRef, error)

	// Sign produces a time-limited URL scoped to exactly one key. A pure
	// local computation for backends that support it; no store round trip.
	Sign(ctx context.Context, key string, expiresIn time.Duration, mode SignMode) (SignedURL, error)
}
