package taskqueue

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
)

type DepthProber interface {
	Depth(ctx context.Context) (int, error)
}

// Gate sheds new uploads when the backlog is too deep. A failed depth probe admits.
type Gate struct {
	prober     DepthProber
	maxPending int
}

func NewGate(prober DepthProber, maxPending int) *Gate {
	return &Gate{prober: prober, maxPending: maxPending}
}

func (g *Gate) Admit(ctx context.Context) error {
	depth, err := g.prober.Depth(ctx)
	if err != nil {
		logutil.GetLogger(ctx).Warn("queue depth probe failed, admitting upload", zap.Error(err))
		return nil
	}
	if depth > g.maxPending {
		return fmt.Errorf("%d tasks pending: %w", depth, appErr.ErrCapacityExceeded)
	}
	return nil
}
