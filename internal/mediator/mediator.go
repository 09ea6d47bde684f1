// Package mediator resolves logical coordinates to deliverables: streamed
// object bytes or time-limited presigned URLs. It owns the policy around
// expiry bounds, stream size limits, and overwrite protection; handlers only
// translate its results to HTTP.
package mediator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quantlake/ohlcv-gateway/internal/config"
	"github.com/quantlake/ohlcv-gateway/internal/events"
	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/objstore"
	"github.com/quantlake/ohlcv-gateway/internal/partindex"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

var (
	// ErrAmbiguousCoordinate indicates a coordinate that resolves to more
	// than one object. The caller must address the object by key instead.
	ErrAmbiguousCoordinate = errors.New("mediator: coordinate matches more than one object")

	// ErrInvalidExpiry indicates a requested expiry outside the configured
	// bounds.
	ErrInvalidExpiry = errors.New("mediator: requested expiry outside allowed bounds")

	// ErrTooLarge indicates a direct upload exceeding the configured limit.
	ErrTooLarge = errors.New("mediator: upload exceeds size limit")
)

// GrantMode distinguishes the two deliverable shapes.
type GrantMode string

const (
	// GrantStream carries the object bytes in Body.
	GrantStream GrantMode = "stream"
	// GrantRedirect carries a presigned URL the client fetches itself.
	GrantRedirect GrantMode = "redirect"
)

// Grant is the result of a read or write resolution. Exactly one shape is
// populated, selected by Mode. A stream grant's Body must be closed by the
// caller.
type Grant struct {
	Mode GrantMode

	// Stream shape
	Body io.ReadCloser
	Ref  objstore.ObjectRef

	// Redirect shape
	URL       string
	ExpiresAt time.Time
	Fields    map[string]string
}

// Mediator coordinates store access under the configured access policy.
type Mediator struct {
	store    objstore.Store
	template *pathcodec.Template
	index    *partindex.Index
	notifier *events.Notifier
	cfg      config.AccessConfig
	maxBytes int64
	logger   *logging.Logger
}

// New creates a mediator. notifier may be nil when event publishing is
// disabled; maxUploadBytes <= 0 disables the direct-upload size limit.
func New(store objstore.Store, template *pathcodec.Template, index *partindex.Index,
	notifier *events.Notifier, cfg config.AccessConfig, maxUploadBytes int64,
	logger *logging.Logger) (*Mediator, error) {

	if store == nil {
		return nil, errors.New("mediator: store is required")
	}
	if template == nil {
		return nil, errors.New("mediator: template is required")
	}
	if index == nil {
		return nil, errors.New("mediator: index is required")
	}
	if logger == nil {
		logger = logging.Global()
	}

	return &Mediator{
		store:    store,
		template: template,
		index:    index,
		notifier: notifier,
		cfg:      cfg,
		maxBytes: maxUploadBytes,
		logger:   logger,
	}, nil
}

// DefaultExpiry returns the expiry used when the caller does not request one.
func (m *Mediator) DefaultExpiry() time.Duration {
	return m.cfg.DefaultExpiry
}

// checkExpiry validates a requested expiry against the configured bounds.
// Boundary values are accepted.
func (m *Mediator) checkExpiry(expiresIn time.Duration) error {
	if expiresIn < m.cfg.MinExpiry || expiresIn > m.cfg.MaxExpiry {
		return fmt.Errorf("%w: %s not in [%s, %s]",
			ErrInvalidExpiry, expiresIn, m.cfg.MinExpiry, m.cfg.MaxExpiry)
	}
	return nil
}

// ResolveKey resolves a coordinate to exactly one object key. The encoded
// prefix is listed with a page size of two: zero matches is ErrNotFound, two
// or more is ErrAmbiguousCoordinate.
func (m *Mediator) ResolveKey(ctx context.Context, coord pathcodec.Coordinate) (objstore.ObjectRef, error) {
	prefix, err := m.template.Encode(coord)
	if err != nil {
		return objstore.ObjectRef{}, err
	}

	page, err := m.store.List(ctx, prefix, 2, "")
	if err != nil {
		return objstore.ObjectRef{}, err
	}

	switch {
	case len(page.Objects) == 0:
		return objstore.ObjectRef{}, fmt.Errorf("no object under %q: %w", prefix, objstore.ErrNotFound)
	case len(page.Objects) > 1 || page.NextToken != "":
		return objstore.ObjectRef{}, fmt.Errorf("%w: prefix %q", ErrAmbiguousCoordinate, prefix)
	}

	return page.Objects[0], nil
}

// ResolveForRead resolves a coordinate and grants read access. wantStream
// requests the bytes inline; objects above the stream size limit fall back
// to a redirect grant so one oversized partition cannot pin gateway memory.
func (m *Mediator) ResolveForRead(ctx context.Context, coord pathcodec.Coordinate, wantStream bool, expiresIn time.Duration) (Grant, error) {
	ref, err := m.ResolveKey(ctx, coord)
	if err != nil {
		return Grant{}, err
	}

	return m.grantRead(ctx, ref, wantStream, expiresIn)
}

// ReadByKey grants read access to an explicitly named key.
func (m *Mediator) ReadByKey(ctx context.Context, key string, wantStream bool, expiresIn time.Duration) (Grant, error) {
	ref, err := m.store.Stat(ctx, key)
	if err != nil {
		return Grant{}, err
	}

	return m.grantRead(ctx, ref, wantStream, expiresIn)
}

// grantRead builds the read grant for a resolved object.
func (m *Mediator) grantRead(ctx context.Context, ref objstore.ObjectRef, wantStream bool, expiresIn time.Duration) (Grant, error) {
	if wantStream && (m.cfg.MaxStreamBytes <= 0 || ref.Size <= m.cfg.MaxStreamBytes) {
		body, ref, err := m.store.Get(ctx, ref.Key)
		if err != nil {
			return Grant{}, err
		}
		return Grant{Mode: GrantStream, Body: body, Ref: ref}, nil
	}

	if err := m.checkExpiry(expiresIn); err != nil {
		return Grant{}, err
	}

	signed, err := m.store.Sign(ctx, ref.Key, expiresIn, objstore.SignModeRead)
	if err != nil {
		return Grant{}, err
	}

	return Grant{
		Mode:      GrantRedirect,
		Ref:       ref,
		URL:       signed.URL,
		ExpiresAt: signed.ExpiresAt,
		Fields:    signed.Fields,
	}, nil
}

// ResolveForWrite grants a write-capable presigned URL for exactly one key.
// Unless overwrites are allowed, an existing object at the key is a conflict
// up front, since a presigned PUT cannot carry the conditional header.
func (m *Mediator) ResolveForWrite(ctx context.Context, key string, expiresIn time.Duration) (Grant, error) {
	if err := m.checkExpiry(expiresIn); err != nil {
		return Grant{}, err
	}

	if !m.cfg.AllowOverwrite {
		_, err := m.store.Stat(ctx, key)
		switch {
		case err == nil:
			return Grant{}, fmt.Errorf("object exists at %q: %w", key, objstore.ErrConflict)
		case !errors.Is(err, objstore.ErrNotFound):
			return Grant{}, err
		}
	}

	signed, err := m.store.Sign(ctx, key, expiresIn, objstore.SignModeWrite)
	if err != nil {
		return Grant{}, err
	}

	return Grant{
		Mode:      GrantRedirect,
		Ref:       objstore.ObjectRef{Key: key},
		URL:       signed.URL,
		ExpiresAt: signed.ExpiresAt,
		Fields:    signed.Fields,
	}, nil
}

// UploadDirect writes object bytes through the gateway. On success the
// partition index is invalidated for the written key and an ingest event is
// published, so a subsequent listing observes the new partition immediately.
func (m *Mediator) UploadDirect(ctx context.Context, key string, body io.Reader) (objstore.ObjectRef, error) {
	if m.maxBytes > 0 {
		body = &limitReader{r: body, remaining: m.maxBytes}
	}

	ref, err := m.store.Put(ctx, key, body, m.cfg.AllowOverwrite)
	if err != nil {
		return objstore.ObjectRef{}, err
	}

	m.index.Invalidate(key)

	event := events.IngestEvent{Key: ref.Key, Size: ref.Size}
	if coord, err := m.template.Decode(ref.Key); err == nil {
		event.Coordinate = coord
	}
	m.notifier.PartitionWritten(ctx, event)

	m.logger.Info("Partition written", "key", ref.Key, "size", ref.Size)

	return ref, nil
}

// limitReader fails with ErrTooLarge once more than the limit has been read,
// instead of silently truncating like io.LimitReader.
type limitReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}

	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return 0, ErrTooLarge
	}
	return n, err
}
