// Package document moves documents in and out of live graphs.
//
// Import builds a flow.Graph from a domain.Document using only the public
// construction API of package flow, collecting one error per unresolved
// item instead of stopping at the first. Export reads a graph back into a
// document.
package document

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/registry"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/google/uuid"
)

// Library resolves operator definitions by name.
type Library interface {
	Get(name string) (domain.Definition, error)
	Names() []string
}

type importer struct {
	library Library
	logger  *slog.Logger
}

// Option configures Import.
type Option func(*importer)

// WithLibrary sets the definitions operators may reference.
func WithLibrary(lib Library) Option {
	return func(im *importer) {
		im.library = lib
	}
}

// WithLogger sets the logger handed to the graph.
func WithLogger(logger *slog.Logger) Option {
	return func(im *importer) {
		im.logger = logger
	}
}

// Import builds a graph from doc. Items that cannot be resolved are skipped
// and reported together as a *schema.AggregateError; the returned graph holds
// everything else.
func Import(doc *domain.Document, opts ...Option) (*flow.Graph, error) {
	im := &importer{library: registry.NewRegistry()}
	for _, opt := range opts {
		opt(im)
	}
	if im.logger == nil {
		im.logger = logging.NewNop()
	}

	g := flow.New(flow.WithLogger(im.logger))
	var errs []error

	var created []domain.Blueprint
	for i, bp := range doc.Blueprints {
		key := fmt.Sprintf("blueprints[%d]", i)
		if bp.Name == "" {
			errs = append(errs, &schema.ValidationError{Key: key, Reason: "name is required"})
			continue
		}
		if _, dup := g.Blueprint(bp.Name); dup {
			errs = append(errs, &schema.ValidationError{Key: bp.Name, Reason: "duplicate blueprint"})
			continue
		}
		if _, err := g.AddBlueprint(bp.Name, BlueprintTemplate(bp)); err != nil {
			errs = append(errs, &schema.ValidationError{Key: bp.Name, Reason: "cannot build blueprint", Err: err})
			continue
		}
		created = append(created, bp)
	}

	for _, bp := range created {
		live, _ := g.Blueprint(bp.Name)
		errs = append(errs, im.operators(doc, bp, live)...)
	}
	for _, bp := range created {
		live, _ := g.Blueprint(bp.Name)
		errs = append(errs, im.connections(bp, live)...)
	}

	if len(errs) > 0 {
		im.logger.Debug("document imported with errors", "document", doc.ID, "errors", len(errs))
	}
	return g, schema.Collect(errs)
}

func (im *importer) operators(doc *domain.Document, bp domain.Blueprint, live *flow.Blackbox) []error {
	var errs []error
	for i, op := range bp.Operators {
		key := fmt.Sprintf("%s.operators[%d]", bp.Name, i)
		if op.ID != "" {
			key = bp.Name + "." + op.ID
		}
		if op.ID != "" {
			if _, dup := live.Operator(op.ID); dup {
				errs = append(errs, &schema.ValidationError{Key: key, Reason: "duplicate operator id"})
				continue
			}
		}

		tpl, err := im.template(doc, op)
		if err != nil {
			errs = append(errs, withKey(key, err))
			continue
		}
		if _, err := live.AddOperator(op.ID, tpl, op.Properties); err != nil {
			errs = append(errs, &schema.ValidationError{Key: key, Reason: "cannot build operator", Err: err})
		}
	}
	return errs
}

func (im *importer) template(doc *domain.Document, op domain.Operator) (flow.Template, error) {
	switch {
	case op.Definition != "" && op.Blueprint != "":
		return flow.Template{}, &schema.ValidationError{Reason: "definition and blueprint are mutually exclusive"}
	case op.Definition != "":
		def, err := im.library.Get(op.Definition)
		if err != nil {
			ve := &schema.ValidationError{Reason: "unknown definition", Value: op.Definition, Err: err}
			if hint, ok := registry.Closest(op.Definition, im.library.Names()); ok {
				ve.Hint = hint
			}
			return flow.Template{}, ve
		}
		return TemplateOf(def), nil
	case op.Blueprint != "":
		ref, ok := doc.Blueprint(op.Blueprint)
		if !ok {
			ve := &schema.ValidationError{Reason: "unknown blueprint", Value: op.Blueprint}
			if hint, found := registry.Closest(op.Blueprint, blueprintNames(doc)); found {
				ve.Hint = hint
			}
			return flow.Template{}, ve
		}
		return BlueprintTemplate(*ref), nil
	default:
		return InlineTemplate(op), nil
	}
}

func (im *importer) connections(bp domain.Blueprint, live *flow.Blackbox) []error {
	var errs []error
	for i, c := range bp.Connections {
		key := fmt.Sprintf("%s.connections[%d]", bp.Name, i)
		src, err := ResolvePort(live, c.From, c.Expand)
		if err != nil {
			errs = append(errs, withKey(key, err))
			continue
		}
		dst, err := ResolvePort(live, c.To, c.Expand)
		if err != nil {
			errs = append(errs, withKey(key, err))
			continue
		}
		if err := src.Connect(dst, c.Expand); err != nil {
			errs = append(errs, &schema.ValidationError{Key: key, Reason: "cannot connect " + c.From + " -> " + c.To, Err: err})
		}
	}
	return errs
}

// ResolvePort finds path inside the blueprint. With expand, a missing last
// segment under a generic map resolves to that map's ghost port so that
// exported expansions can be replayed.
func ResolvePort(bp *flow.Blackbox, path string, expand bool) (*flow.Port, error) {
	p, err := bp.FindPort(path)
	if err == nil {
		return p, nil
	}
	if i := strings.LastIndex(path, "."); i > 0 {
		parent, perr := bp.FindPort(path[:i])
		if perr == nil && (expand || path[i+1:] == flow.GhostKey) && parent.Bound() && parent.Shape() == schema.KindMap {
			return parent.Ghost()
		}
	}
	ve := &schema.ValidationError{Reason: "unknown port", Value: path, Err: err}
	if hint, ok := registry.Closest(path, portPaths(bp)); ok {
		ve.Hint = hint
	}
	return nil, ve
}

func portPaths(bp *flow.Blackbox) []string {
	var out []string
	var walk func(p *flow.Port)
	walk = func(p *flow.Port) {
		out = append(out, bp.Rel(p))
		for _, c := range p.Children() {
			walk(c)
		}
	}
	var owners func(b *flow.Blackbox)
	owners = func(b *flow.Blackbox) {
		for _, p := range b.Ports() {
			walk(p)
		}
		for _, d := range b.Delegates() {
			owners(d)
		}
		for _, op := range b.Operators() {
			owners(op)
		}
	}
	owners(bp)
	return out
}

func blueprintNames(doc *domain.Document) []string {
	names := make([]string, 0, len(doc.Blueprints))
	for _, bp := range doc.Blueprints {
		names = append(names, bp.Name)
	}
	return names
}

// withKey fills in the key of a validation error raised without one.
func withKey(key string, err error) error {
	if ve, ok := err.(*schema.ValidationError); ok && ve.Key == "" {
		ve.Key = key
		return ve
	}
	return &schema.ValidationError{Key: key, Reason: err.Error(), Err: err}
}

// EnsureID assigns a random ID to documents that have none and returns it.
func EnsureID(doc *domain.Document) string {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return doc.ID
}

// TemplateOf converts a library definition into a flow template.
func TemplateOf(def domain.Definition) flow.Template {
	tpl := flow.Template{
		Name:       def.Name,
		In:         def.In.Type,
		Out:        def.Out.Type,
		Generics:   generics(def.Generics),
		Properties: def.Properties,
	}
	for _, d := range def.Delegates {
		tpl.Delegates = append(tpl.Delegates, flow.DelegateTemplate{Name: d.Name, In: d.In.Type, Out: d.Out.Type})
	}
	return tpl
}

// BlueprintTemplate is the template of a blueprint and of every operator
// instantiating it.
func BlueprintTemplate(bp domain.Blueprint) flow.Template {
	return flow.Template{
		Name:       bp.Name,
		Instance:   true,
		In:         bp.In.Type,
		Out:        bp.Out.Type,
		Generics:   generics(bp.Generics),
		Properties: bp.Properties,
	}
}

// InlineTemplate is the template of an operator declaring its own ports.
func InlineTemplate(op domain.Operator) flow.Template {
	tpl := flow.Template{
		In:       op.In.Type,
		Out:      op.Out.Type,
		Generics: generics(op.Generics),
	}
	for _, d := range op.Delegates {
		tpl.Delegates = append(tpl.Delegates, flow.DelegateTemplate{Name: d.Name, In: d.In.Type, Out: d.Out.Type})
	}
	return tpl
}

func generics(in map[string]schema.Expr) map[string]schema.Type {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]schema.Type, len(in))
	for id, e := range in {
		out[id] = e.Type
	}
	return out
}
