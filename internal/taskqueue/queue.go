// Package taskqueue moves ingestion work off the request path.
package taskqueue

import (
	"context"
	"errors"

	"github.com/xxxsen/ragkb/internal/model"
)

var ErrClosed = errors.New("queue closed")

// Message is one queued ingestion. The file is already in the tree under Key.
type Message struct {
	TaskID    string         `json:"task_id"`
	Key       string         `json:"key"`
	Filename  string         `json:"filename"`
	Category  model.Category `json:"category"`
	SessionID string         `json:"session_id"`
}

type Queue interface {
	Enqueue(ctx context.Context, msg *Message) error
	// Dequeue blocks until a message arrives, the context ends or the queue closes.
	Dequeue(ctx context.Context) (*Message, error)
	// Depth is the number of messages waiting to be picked up.
	Depth(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
