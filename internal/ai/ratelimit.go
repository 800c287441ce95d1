package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// WrapRateLimitedEmbedder caps embedding calls at qps. A non-positive qps disables the limit.
func WrapRateLimitedEmbedder(e IEmbedder, qps float64) IEmbedder {
	if e == nil || qps <= 0 {
		return e
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedEmbedder{next: e, limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

type rateLimitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (r *rateLimitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text, taskType)
}

func (r *rateLimitedEmbedder) ModelName() string {
	return r.next.ModelName()
}
