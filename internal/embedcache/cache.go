// Package embedcache puts a read-through cache in front of an embedder.
// Lookups go memory first, then the persistent store, then the model.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/ragkb/internal/ai"
	"github.com/xxxsen/ragkb/internal/model"
)

// Store is the persistent tier; *repo.EmbeddingCacheRepo satisfies it.
type Store interface {
	Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.CachedEmbedding) error
}

type Stats struct {
	MemoryHits int64
	StoreHits  int64
	Misses     int64
}

type Option func(*Cache)

// WithLRU enables the in-process tier. Non-positive size or ttl leaves it off.
func WithLRU(size int, ttl time.Duration) Option {
	return func(c *Cache) {
		if size > 0 && ttl > 0 {
			c.lru = expirable.NewLRU[string, []float32](size, nil, ttl)
		}
	}
}

func WithStore(store Store) Option {
	return func(c *Cache) {
		c.store = store
	}
}

// WithDimension drops cached vectors whose length does not match the index.
func WithDimension(dim int) Option {
	return func(c *Cache) {
		c.dim = dim
	}
}

func withClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

type Cache struct {
	next  ai.IEmbedder
	lru   *expirable.LRU[string, []float32]
	store Store
	dim   int
	now   func() time.Time

	memoryHits atomic.Int64
	storeHits  atomic.Int64
	misses     atomic.Int64
}

// New wraps next. With no tier enabled it returns next unchanged.
func New(next ai.IEmbedder, opts ...Option) ai.IEmbedder {
	if next == nil {
		return nil
	}
	c := &Cache{next: next, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.lru == nil && c.store == nil {
		return next
	}
	return c
}

func (c *Cache) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	k := newKey(c.next.ModelName(), taskType, text)
	logger := logutil.GetLogger(ctx).With(zap.String("task_type", taskType))
	if c.lru != nil {
		if v, ok := c.lru.Get(k.memory()); ok && c.fits(v) {
			c.memoryHits.Add(1)
			return clone(v), nil
		}
	}
	if c.store != nil {
		v, ok, err := c.store.Get(ctx, k.model, taskType, k.hash)
		switch {
		case err != nil:
			logger.Warn("embedding store lookup failed", zap.Error(err))
		case ok && c.fits(v):
			c.storeHits.Add(1)
			c.remember(k, v)
			return v, nil
		case ok:
			logger.Warn("cached embedding has wrong dimension, recomputing",
				zap.Int("got", len(v)), zap.Int("want", c.dim))
		}
	}
	c.misses.Add(1)
	v, err := c.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	c.remember(k, v)
	if c.store != nil {
		if err := c.store.Save(ctx, &model.CachedEmbedding{
			Model:       k.model,
			TaskType:    taskType,
			ContentHash: k.hash,
			Vector:      v,
			Ctime:       c.now().Unix(),
		}); err != nil {
			logger.Warn("persist embedding failed", zap.Error(err))
		}
	}
	return v, nil
}

func (c *Cache) ModelName() string {
	return c.next.ModelName()
}

func (c *Cache) Stats() Stats {
	return Stats{
		MemoryHits: c.memoryHits.Load(),
		StoreHits:  c.storeHits.Load(),
		Misses:     c.misses.Load(),
	}
}

func (c *Cache) fits(v []float32) bool {
	return len(v) > 0 && (c.dim <= 0 || len(v) == c.dim)
}

func (c *Cache) remember(k key, v []float32) {
	if c.lru != nil {
		c.lru.Add(k.memory(), clone(v))
	}
}

type key struct {
	model    string
	taskType string
	hash     string
}

func newKey(modelName, taskType, text string) key {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	sum := sha256.Sum256([]byte(text))
	return key{model: modelName, taskType: taskType, hash: hex.EncodeToString(sum[:])}
}

func (k key) memory() string {
	return k.model + "\x00" + k.taskType + "\x00" + k.hash
}

func clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
