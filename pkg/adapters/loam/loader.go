package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
)

// Loader adapts a Loam repository to the LibraryLoader interface.
// Every Markdown, YAML or JSON document whose frontmatter describes a
// definition becomes one entry; a Markdown body serves as the description.
type Loader struct {
	Repo *loam.TypedRepository[DefinitionMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DefinitionMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only repository at path and wraps it.
func Open(path string) (*Loader, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DefinitionMetadata](repo)), nil
}

// Definitions lists the repository and decodes every definition document.
func (l *Loader) Definitions(ctx context.Context) ([]domain.Definition, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	defs := make([]domain.Definition, 0, len(docs))

	for _, doc := range docs {
		meta := doc.Data
		if meta.Kind != "" && meta.Kind != KindDefinition {
			continue
		}

		name := meta.Name
		if name == "" {
			name = trimExtension(doc.ID)
		}

		// doc.ID is the path relative to the repository root.
		if existingPath, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: definition '%s' is defined in both '%s' and '%s'", name, existingPath, doc.ID)
		}
		seen[name] = doc.ID

		def, err := decodeDefinition(name, meta, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("definition %s (%s): %w", name, doc.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func decodeDefinition(name string, meta DefinitionMetadata, content string) (domain.Definition, error) {
	raw := map[string]any{
		"name":        name,
		"category":    meta.Category,
		"description": meta.Description,
	}
	if meta.Description == "" {
		raw["description"] = strings.TrimSpace(content)
	}
	if meta.In != nil {
		raw["in"] = meta.In
	}
	if meta.Out != nil {
		raw["out"] = meta.Out
	}
	if len(meta.Delegates) > 0 {
		raw["delegates"] = normalize(meta.Delegates)
	}
	if len(meta.Generics) > 0 {
		raw["generics"] = meta.Generics
	}
	if len(meta.Properties) > 0 {
		raw["properties"] = meta.Properties
	}
	return document.DecodeDefinition(normalize(raw).(map[string]any))
}

// normalize turns map[any]any left by some YAML decoders into map[string]any
// so the schema hook recognizes structured types.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[k] = normalize(sub)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, sub := range val {
			out[fmt.Sprint(k)] = normalize(sub)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, sub := range val {
			out[i] = normalize(sub)
		}
		return out
	}
	return v
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

// Watch implements ports.Watchable.
func (l *Loader) Watch(ctx context.Context) (<-chan struct{}, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan struct{}, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				// Coalesce bursts: one pending reload is enough.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}()

	return ch, nil
}
