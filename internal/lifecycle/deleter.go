package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const defaultVectorDeleteTimeout = time.Minute

type SessionDeleter interface {
	Delete(ctx context.Context, sessionID string) error
}

// Deleter handles user initiated session deletion. Registry rows go synchronously,
// vectors are removed in the background and uploaded files stay for the reaper.
type Deleter struct {
	registry SessionDeleter
	vectors  VectorIndex
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDeleter(registry SessionDeleter, vectors VectorIndex, timeout time.Duration) *Deleter {
	if timeout <= 0 {
		timeout = defaultVectorDeleteTimeout
	}
	return &Deleter{registry: registry, vectors: vectors, timeout: timeout}
}

func (d *Deleter) DeleteSession(ctx context.Context, sessionID string) error {
	if err := d.registry.Delete(ctx, sessionID); err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID))
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		vctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.vectors.DeleteBySession(vctx, sessionID); err != nil {
			logger.Warn("background vector delete failed", zap.Error(err))
			return
		}
		logger.Debug("background vector delete finished")
	}()
	return nil
}

// Wait blocks until background vector deletes have returned.
func (d *Deleter) Wait() {
	d.wg.Wait()
}
