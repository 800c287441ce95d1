package taskqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

// Handler runs one attempt of a message and is told the final outcome once.
type Handler interface {
	Handle(ctx context.Context, msg *Message, attempt int) error
	Finish(ctx context.Context, msg *Message, attempts int, err error)
}

type PoolConfig struct {
	Workers        int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type Pool struct {
	queue   Queue
	handler Handler
	cfg     PoolConfig

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewPool(queue Queue, handler Handler, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 10 * time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff * 8
	}
	return &Pool{queue: queue, handler: handler, cfg: cfg}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight messages to return.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) loop(ctx context.Context, idx int) {
	defer p.wg.Done()
	logger := logutil.GetLogger(ctx).With(zap.Int("worker", idx))
	for {
		msg, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		p.Process(ctx, msg)
	}
}

// Process runs msg through the handler with bounded exponential retries.
func (p *Pool) Process(ctx context.Context, msg *Message) {
	logger := logutil.GetLogger(ctx).With(zap.String("task_id", msg.TaskID), zap.String("filename", msg.Filename))
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.InitialBackoff
	exp.MaxInterval = p.cfg.MaxBackoff
	exp.Multiplier = 2

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := p.handler.Handle(ctx, msg, attempts)
		if err != nil && !appErr.IsRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(p.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("ingest attempt failed, retrying", zap.Int("attempt", attempts), zap.Duration("next", next), zap.Error(err))
		}),
	)
	if err != nil {
		logger.Error("ingest task failed", zap.Int("attempts", attempts), zap.Error(err))
	}
	p.handler.Finish(ctx, msg, attempts, err)
}
