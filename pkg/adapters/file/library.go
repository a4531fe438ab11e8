package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Library implements ports.LibraryLoader over a directory of definition
// files. A file holds either one definition or a list of them.
type Library struct {
	Dir string
}

// NewLibrary creates a loader reading definitions from dir.
func NewLibrary(dir string) *Library {
	return &Library{Dir: dir}
}

// Definitions parses every .yaml, .yml and .json file of the directory.
func (l *Library) Definitions(ctx context.Context) ([]domain.Definition, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
			if !entry.IsDir() {
				names = append(names, entry.Name())
			}
		}
	}
	sort.Strings(names)

	var defs []domain.Definition
	for _, name := range names {
		path := filepath.Join(l.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		parsed, err := parseDefinitions(data, document.FormatOf(path))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		defs = append(defs, parsed...)
	}
	return defs, nil
}

// parseDefinitions decodes with the format's own decoder so that map port
// types keep the key order written in the file.
func parseDefinitions(data []byte, f document.Format) ([]domain.Definition, error) {
	var defs []domain.Definition
	if f == document.FormatYAML {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, err
		}
		if len(node.Content) == 0 {
			return nil, nil
		}
		root := node.Content[0]
		switch root.Kind {
		case yaml.SequenceNode:
			if err := root.Decode(&defs); err != nil {
				return nil, err
			}
		case yaml.MappingNode:
			var def domain.Definition
			if err := root.Decode(&def); err != nil {
				return nil, err
			}
			defs = append(defs, def)
		default:
			return nil, fmt.Errorf("expected a definition or a list of definitions")
		}
	} else {
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &defs); err != nil {
				return nil, err
			}
		} else {
			var def domain.Definition
			if err := json.Unmarshal(trimmed, &def); err != nil {
				return nil, err
			}
			defs = append(defs, def)
		}
	}

	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("item %d: definition name is required", i)
		}
	}
	return defs, nil
}
