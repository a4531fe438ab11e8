package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/ports"
)

// Mask replaces redacted property values.
const Mask = "***"

type redactionMiddleware struct {
	next     ports.DocumentStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks operator property
// values whose keys match any pattern, e.g. "(?i)token|password", before
// they reach the store. Nested maps are masked too.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.DocumentStore) ports.DocumentStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, doc *domain.Document) error {
	// Copy so the caller's document keeps its real values.
	cloned := *doc
	cloned.Blueprints = make([]domain.Blueprint, len(doc.Blueprints))
	for i, bp := range doc.Blueprints {
		bp.Operators = append([]domain.Operator(nil), bp.Operators...)
		for j := range bp.Operators {
			if bp.Operators[j].Properties == nil {
				continue
			}
			props := deepCopyMap(bp.Operators[j].Properties)
			maskMap(props, m.patterns)
			bp.Operators[j].Properties = props
		}
		cloned.Blueprints[i] = bp
	}
	return m.next.Save(ctx, &cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, id string) (*domain.Document, error) {
	return m.next.Load(ctx, id)
}

func (m *redactionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
