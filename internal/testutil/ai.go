package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"

	"github.com/xxxsen/ragkb/internal/ai"
)

// HashEmbedder maps each lower-cased token into a fixed bucket, so texts sharing
// words land close together.
type HashEmbedder struct {
	Dim  int
	Fail error

	mu    sync.Mutex
	calls int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	h.mu.Lock()
	h.calls++
	fail := h.Fail
	h.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	vec := make([]float32, h.Dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok == "" {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		vec[int(f.Sum32())%h.Dim]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func (h *HashEmbedder) ModelName() string {
	return "hash/test"
}

func (h *HashEmbedder) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// ScriptedGenerator replies with a fixed text and records prompts.
type ScriptedGenerator struct {
	Reply string
	Err   error
	Usage ai.Usage

	mu      sync.Mutex
	prompts []string
}

func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string) (*ai.Generation, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	return &ai.Generation{Text: g.Reply, Usage: g.Usage}, nil
}

func (g *ScriptedGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
