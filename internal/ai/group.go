package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

// failoverGenerator tries each configured model in order until one answers.
type failoverGenerator struct {
	items []GeneratorEntry
}

// NewGroupGenerator chains generators for failover. Nil entries are dropped and an
// empty chain yields nil so callers see the generator as unconfigured.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	kept := make([]GeneratorEntry, 0, len(items))
	for _, item := range items {
		if item.Generator != nil {
			kept = append(kept, item)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0].Generator
	}
	return &failoverGenerator{items: kept}
}

func (g *failoverGenerator) Generate(ctx context.Context, prompt string) (*Generation, error) {
	errs := make([]error, 0, len(g.items))
	for _, item := range g.items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		logutil.GetLogger(ctx).Warn("generator failed, trying next",
			zap.String("model", item.Name), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", item.Name, err))
	}
	return nil, fmt.Errorf("all %d generators failed: %w: %w", len(g.items), ErrUnavailable, errors.Join(errs...))
}
