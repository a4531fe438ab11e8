package main

import (
	"fmt"
	"os"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
)

// readDocument loads a document file, YAML or JSON by extension.
func readDocument(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := document.Unmarshal(data, document.FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// writeDocument replaces a document file, keeping its format.
func writeDocument(path string, doc *domain.Document) error {
	data, err := document.Marshal(doc, document.FormatOf(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// pickBlueprint returns the named blueprint, or the first one when name is
// empty.
func pickBlueprint(g *flow.Graph, doc *domain.Document, name string) (*flow.Blackbox, error) {
	if name == "" {
		if len(doc.Blueprints) == 0 {
			return nil, fmt.Errorf("document has no blueprints")
		}
		name = doc.Blueprints[0].Name
	}
	bp, ok := g.Blueprint(name)
	if !ok {
		return nil, fmt.Errorf("blueprint %q: %w", name, flow.ErrNotFound)
	}
	return bp, nil
}
