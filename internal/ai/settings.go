package ai

import (
	"fmt"

	"github.com/xxxsen/ragkb/internal/config"
)

// Settings is the per-call model configuration handed to ingestion and retrieval.
type Settings struct {
	Embedder  IEmbedder
	Generator IGenerator
	TopK      int
}

func (s Settings) EmbedderConfigured() bool {
	return s.Embedder != nil
}

// Build resolves the configured providers into a generator chain and an embedder.
// Either may be nil when the config leaves it out.
func Build(cfg config.AIConfig) (IGenerator, IEmbedder, error) {
	providers := make(map[string]IProvider, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := NewProvider(pc.Type, pc.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("init ai provider %s: %w", pc.Name, err)
		}
		providers[pc.Name] = p
	}
	entries := make([]GeneratorEntry, 0, len(cfg.Generator))
	for _, ref := range cfg.Generator {
		p, ok := providers[ref.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("unknown generator provider: %s", ref.Provider)
		}
		entries = append(entries, GeneratorEntry{Name: ref.Provider + "/" + ref.Model, Generator: NewGenerator(p, ref.Model)})
	}
	gen := NewGroupGenerator(entries)
	var emb IEmbedder
	if ref := cfg.Embedder; ref.Provider != "" {
		p, ok := providers[ref.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("unknown embedder provider: %s", ref.Provider)
		}
		emb = NewEmbedder(p, ref.Model)
	}
	return gen, emb, nil
}
