package taskqueue

import (
	"context"
	"fmt"
	"sync"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

type memoryQueue struct {
	ch        chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemory(capacity int) Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &memoryQueue{ch: make(chan *Message, capacity), done: make(chan struct{})}
}

func (q *memoryQueue) Enqueue(ctx context.Context, msg *Message) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return fmt.Errorf("memory queue full: %w", appErr.ErrCapacityExceeded)
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*Message, error) {
	select {
	case msg := <-q.ch:
		return msg, nil
	case <-q.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryQueue) Depth(ctx context.Context) (int, error) {
	return len(q.ch), nil
}

func (q *memoryQueue) Ping(ctx context.Context) error {
	return nil
}

func (q *memoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
	})
	return nil
}
