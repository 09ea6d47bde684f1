package events

import (
	"context"
	"errors"
	"sync"
)

// MemoryPublisher records published messages in memory. It backs local
// development and tests that assert on event delivery.
type MemoryPublisher struct {
	mu       sync.RWMutex
	messages map[string][][]byte
	closed   bool
}

// newMemoryPublisher creates an empty in-memory publisher.
func newMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{messages: make(map[string][][]byte)}
}

// NewMemoryPublisher is the exported constructor for tests and local setups.
func NewMemoryPublisher() *MemoryPublisher {
	return newMemoryPublisher()
}

// Publish records a message under its subject.
func (p *MemoryPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("events: publisher closed")
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	p.messages[subject] = append(p.messages[subject], dataCopy)

	return nil
}

// Messages returns the messages recorded for a subject, in publish order.
func (p *MemoryPublisher) Messages(subject string) [][]byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	msgs := p.messages[subject]
	out := make([][]byte, len(msgs))
	copy(out, msgs)
	return out
}

// Close marks the publisher closed; further publishes fail.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	return nil
}
