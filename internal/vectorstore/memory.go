package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/xxxsen/ragkb/internal/config"
	"github.com/xxxsen/ragkb/internal/model"
	"github.com/xxxsen/ragkb/internal/visibility"
)

// memoryStore is a brute-force cosine index for single-node runs and tests.
type memoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]model.Chunk
	order     []string
}

func init() {
	Register("memory", func(cfg config.VectorStoreConfig, deps Deps) (Store, error) {
		return NewMemory(cfg.Dimension), nil
	})
}

func NewMemory(dimension int) Store {
	return &memoryStore{dimension: dimension, chunks: make(map[string]model.Chunk)}
}

func (s *memoryStore) EnsureCollection(ctx context.Context) error {
	return nil
}

func (s *memoryStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if err := checkChunks(chunks, s.dimension); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if _, ok := s.chunks[c.ID]; !ok {
			s.order = append(s.order, c.ID)
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *memoryStore) Search(ctx context.Context, vector []float32, topK int, pred visibility.Predicate) ([]model.ChunkHit, error) {
	if err := checkSearch(vector, s.dimension, pred); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}
	s.mu.RLock()
	hits := make([]model.ChunkHit, 0, len(s.chunks))
	for _, id := range s.order {
		c := s.chunks[id]
		if !pred.MatchChunk(&c) {
			continue
		}
		hit := c
		hit.Embedding = nil
		hits = append(hits, model.ChunkHit{Chunk: hit, Score: cosine(c.Embedding, vector)})
	}
	s.mu.RUnlock()
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *memoryStore) DeleteBySession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if s.chunks[id].SessionID == sessionID {
			delete(s.chunks, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return nil
}
