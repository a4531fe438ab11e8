// Package registry keeps the operator definitions available to documents.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/aretw0/loom/pkg/domain"
)

// Registry manages the available operator definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]domain.Definition
}

// NewRegistry creates a new registry holding defs.
func NewRegistry(defs ...domain.Definition) *Registry {
	r := &Registry{defs: make(map[string]domain.Definition)}
	for _, def := range defs {
		r.defs[def.Name] = def
	}
	return r
}

// Register adds a definition to the registry.
// If a definition with the same name exists, it is overwritten.
func (r *Registry) Register(def domain.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("definition name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Replace swaps the whole content for defs and reports what changed.
func (r *Registry) Replace(defs []domain.Definition) domain.LibraryDiff {
	next := make(map[string]domain.Definition, len(defs))
	for _, def := range defs {
		next[def.Name] = def
	}

	r.mu.Lock()
	old := sortedValues(r.defs)
	r.defs = next
	r.mu.Unlock()

	return domain.DiffDefinitions(old, sortedValues(next))
}

// Get looks up a definition by name. The error suggests the closest known
// name when there is one.
func (r *Registry) Get(name string) (domain.Definition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()

	if !ok {
		if hint, found := r.Suggest(name); found {
			return domain.Definition{}, fmt.Errorf("%w: %q (did you mean %q?)", domain.ErrDefinitionNotFound, name, hint)
		}
		return domain.Definition{}, fmt.Errorf("%w: %q", domain.ErrDefinitionNotFound, name)
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []domain.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedValues(r.defs)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Suggest returns the registered name closest to name.
func (r *Registry) Suggest(name string) (string, bool) {
	return Closest(name, r.Names())
}

// Closest returns the candidate with the smallest edit distance to name,
// provided the distance stays within a third of the name's length (at
// least two edits). Ties go to the candidate listed first.
func Closest(name string, candidates []string) (string, bool) {
	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if c == name {
			return c, true
		}
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, best != ""
}

func sortedValues(m map[string]domain.Definition) []domain.Definition {
	out := make([]domain.Definition, 0, len(m))
	for _, def := range m {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
