package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/model"
	appErr "github.com/xxxsen/ragkb/internal/pkg/errors"
	"github.com/xxxsen/ragkb/internal/visibility"
)

// Store is the vector index. Search never runs without a visibility predicate.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, chunks []model.Chunk) error
	Search(ctx context.Context, vector []float32, topK int, pred visibility.Predicate) ([]model.ChunkHit, error)
	DeleteBySession(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

type Deps struct {
	DB     *sql.DB
	Driver string
}

type Factory func(cfg config.VectorStoreConfig, deps Deps) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.VectorStoreConfig, deps Deps) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg, deps)
}

func checkSearch(vector []float32, dimension int, pred visibility.Predicate) error {
	if pred.IsZero() {
		return fmt.Errorf("search without visibility filter: %w", appErr.ErrInvalid)
	}
	if dimension > 0 && len(vector) != dimension {
		return fmt.Errorf("query vector has %d dims, want %d: %w", len(vector), dimension, appErr.ErrInvalid)
	}
	return nil
}

func checkChunks(chunks []model.Chunk, dimension int) error {
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			return fmt.Errorf("chunk id is required: %w", appErr.ErrInvalid)
		}
		if c.Category == model.CategoryUser && c.SessionID == "" {
			return fmt.Errorf("user chunk %s has no session: %w", c.ID, appErr.ErrInvalid)
		}
		if dimension > 0 && len(c.Embedding) != dimension {
			return fmt.Errorf("chunk %s has %d dims, want %d: %w", c.ID, len(c.Embedding), dimension, appErr.ErrInvalid)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
