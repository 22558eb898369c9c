package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrNotConfigured is returned when no queue backend is available.
var ErrNotConfigured = errors.New("job queue not configured")

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// MemoryClient records sent messages in memory. It has no consumer, so it
// only backs tests of enqueue callers.
type MemoryClient struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

// Send stores msg, or returns Err when set.
func (c *MemoryClient) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.sent = append(c.sent, msg)
	return nil
}

// Sent returns a copy of the messages sent so far.
func (c *MemoryClient) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.sent))
	copy(out, c.sent)
	return out
}

var _ Client = (*MemoryClient)(nil)
