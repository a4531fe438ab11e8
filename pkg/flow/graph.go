// Package flow is the typed core of the editor: blackboxes owning ports,
// the stream nesting graph, per-blackbox generic registries and the
// connection checker.
//
// Everything hangs off a Graph. Blueprints are created on the graph,
// operators inside blueprints, and ports and delegates are derived from each
// blackbox's Template:
//
//	g := flow.New()
//	bp, _ := g.AddBlueprint("main", flow.Template{In: schema.MustParse("{text: string}")})
//	op, _ := bp.AddOperator("upper", flow.Template{
//	    In:  schema.MustParse("{value: string}"),
//	    Out: schema.MustParse("{value: string}"),
//	}, nil)
//	err := bp.ConnectPaths("in.text", "upper.in.value", false)
//
// The package is single-threaded: every mutation, and every event handler it
// triggers, runs synchronously inside the calling goroutine. Callers sharing a
// Graph across goroutines must serialize access.
package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/nodetree"
)

// element is the value stored in every tree node: a blackbox or a port.
type element interface {
	node() nodetree.ID
	asBlackbox() *Blackbox
	asPort() *Port
	teardown()
}

// Graph owns the node arena and the event bus.
type Graph struct {
	tree    *nodetree.Tree[element]
	root    nodetree.ID
	logger  *slog.Logger
	checker *Checker

	resolving bool
	pending   []genericKey
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.NewNop()
	}
	g.tree = nodetree.New(nodetree.WithFinalizer(func(_ nodetree.ID, v element) {
		if v != nil {
			v.teardown()
		}
	}))
	g.root = g.tree.NewRoot("", nil)
	g.checker = &Checker{g: g}
	return g
}

// Checker returns the graph's connection checker.
func (g *Graph) Checker() *Checker { return g.checker }

// Logger returns the graph's logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// Len returns the number of live blackboxes and ports.
func (g *Graph) Len() int { return g.tree.Len() - 1 }

// AddBlueprint creates a top-level blueprint.
func (g *Graph) AddBlueprint(name string, tpl Template) (*Blackbox, error) {
	if name == "" {
		return nil, invalid("graph", "add blueprint", fmt.Errorf("blueprint name is required"))
	}
	return g.newBlackbox(g.root, name, KindBlueprint, tpl, nil)
}

// Blueprint returns the blueprint registered under name.
func (g *Graph) Blueprint(name string) (*Blackbox, bool) {
	id, ok := g.tree.Child(g.root, name)
	if !ok {
		return nil, false
	}
	return g.blackboxAt(id), true
}

// Blueprints returns all blueprints in creation order.
func (g *Graph) Blueprints() []*Blackbox {
	var out []*Blackbox
	for _, id := range g.tree.Children(g.root) {
		if b := g.blackboxAt(id); b != nil {
			out = append(out, b)
		}
	}
	return out
}

// RemoveBlueprint destroys the named blueprint and everything it owns.
func (g *Graph) RemoveBlueprint(name string) error {
	b, ok := g.Blueprint(name)
	if !ok {
		return fmt.Errorf("blueprint %q: %w", name, ErrNotFound)
	}
	b.Destroy()
	return nil
}

// FindPort resolves an absolute dot-path such as "main.op1.in.a".
func (g *Graph) FindPort(path string) (*Port, error) {
	id, err := g.tree.Find(g.root, path)
	if err != nil {
		return nil, fmt.Errorf("port %q: %w", path, ErrNotFound)
	}
	p := g.portAt(id)
	if p == nil {
		return nil, fmt.Errorf("%q is not a port: %w", path, ErrNotFound)
	}
	return p, nil
}

// FindBlackbox resolves an absolute dot-path such as "main.op1".
func (g *Graph) FindBlackbox(path string) (*Blackbox, error) {
	id, err := g.tree.Find(g.root, path)
	if err != nil {
		return nil, fmt.Errorf("blackbox %q: %w", path, ErrNotFound)
	}
	b := g.blackboxAt(id)
	if b == nil {
		return nil, fmt.Errorf("%q is not a blackbox: %w", path, ErrNotFound)
	}
	return b, nil
}

func (g *Graph) value(id nodetree.ID) element {
	v, ok := g.tree.Value(id)
	if !ok {
		return nil
	}
	return v
}

func (g *Graph) portAt(id nodetree.ID) *Port {
	if v := g.value(id); v != nil {
		return v.asPort()
	}
	return nil
}

func (g *Graph) blackboxAt(id nodetree.ID) *Blackbox {
	if v := g.value(id); v != nil {
		return v.asBlackbox()
	}
	return nil
}

// relPath returns the path of id relative to the node at base.
func (g *Graph) relPath(base, id nodetree.ID) string {
	prefix := g.tree.Path(base)
	full := g.tree.Path(id)
	if prefix != "" && strings.HasPrefix(full, prefix+nodetree.Separator) {
		return strings.TrimPrefix(full, prefix+nodetree.Separator)
	}
	return full
}
