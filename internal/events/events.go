// Package events publishes ingest notifications after partition writes.
// Downstream consumers (indexers, backfill checkers) subscribe on their own;
// the gateway only produces.
package events

import (
	"context"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/quantlake/ohlcv-gateway/internal/logging"
	"github.com/quantlake/ohlcv-gateway/internal/pathcodec"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// IngestEvent announces a newly written partition object.
type IngestEvent struct {
	Key        string               `json:"key"`
	Size       int64                `json:"size"`
	Coordinate pathcodec.Coordinate `json:"coordinate"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Publisher publishes messages to a broker subject/topic.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Notifier serializes ingest events onto a Publisher. Event delivery is
// best effort: a broker failure is logged and never fails the upload that
// triggered it.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *logging.Logger
}

// NewNotifier creates a notifier. A nil publisher yields a disabled notifier
// whose methods are no-ops.
func NewNotifier(pub Publisher, subject string, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Global()
	}
	if subject == "" {
		subject = "ohlcv.ingest"
	}

	return &Notifier{pub: pub, subject: subject, logger: logger}
}

// PartitionWritten publishes an ingest event for a freshly written object.
func (n *Notifier) PartitionWritten(ctx context.Context, event IngestEvent) {
	if n == nil || n.pub == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		n.logger.Error("Failed to encode ingest event", "key", event.Key, "error", err)
		return
	}

	if err := n.pub.Publish(ctx, n.subject, data); err != nil {
		n.logger.Warn("Failed to publish ingest event",
			"key", event.Key, "subject", n.subject, "error", err)
		return
	}

	n.logger.Debug("Published ingest event", "key", event.Key, "subject", n.subject)
}

// Close releases the underlying publisher.
func (n *Notifier) Close() error {
	if n == nil || n.pub == nil {
		return nil
	}
	return n.pub.Close()
}
