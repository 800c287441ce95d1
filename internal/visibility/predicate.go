package visibility

import (
	"strings"

	"github.com/xxxsen/ragkb/internal/model"
)

type Op string

const (
	OpEq    Op = "eq"
	OpEmpty Op = "empty"
)

type Condition struct {
	Field string
	Op    Op
	Value string
}

func (c Condition) Match(meta map[string]string) bool {
	v := meta[c.Field]
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpEmpty:
		return v == ""
	}
	return false
}

// Predicate matches a chunk when any condition holds.
type Predicate struct {
	Any []Condition
}

func (p Predicate) IsZero() bool {
	return len(p.Any) == 0
}

func (p Predicate) Match(meta map[string]string) bool {
	for _, c := range p.Any {
		if c.Match(meta) {
			return true
		}
	}
	return false
}

func (p Predicate) MatchChunk(chunk *model.Chunk) bool {
	return p.Match(Meta(chunk))
}

// Build returns the retrieval filter for a caller. Every search must carry one.
func Build(sessionID string) Predicate {
	staticOnly := Condition{Field: FieldCategory, Op: OpEq, Value: string(model.CategoryStatic)}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Predicate{Any: []Condition{staticOnly}}
	}
	return Predicate{Any: []Condition{
		staticOnly,
		{Field: FieldSessionID, Op: OpEq, Value: sessionID},
		{Field: FieldSessionID, Op: OpEmpty},
	}}
}
