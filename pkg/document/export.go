package document

import (
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/schema"
)

// Export reads g back into a document. Declared types come from the
// templates, so generic ports export as written; the live type of each
// generic is reported in Operator.Resolved.
func Export(g *flow.Graph, id string) *domain.Document {
	doc := &domain.Document{ID: id}
	for _, bp := range g.Blueprints() {
		doc.Blueprints = append(doc.Blueprints, exportBlueprint(bp))
	}
	return doc
}

func exportBlueprint(bp *flow.Blackbox) domain.Blueprint {
	tpl := bp.Template()
	out := domain.Blueprint{
		Name:       bp.Key(),
		In:         schema.ExprOf(tpl.In),
		Out:        schema.ExprOf(tpl.Out),
		Generics:   exprs(tpl.Generics),
		Properties: tpl.Properties,
	}

	for _, op := range bp.Operators() {
		out.Operators = append(out.Operators, exportOperator(op))
	}
	for _, c := range bp.Connections() {
		out.Connections = append(out.Connections, domain.Connection{
			From:   bp.Rel(c.From),
			To:     bp.Rel(c.To),
			Expand: c.From.Bound() || c.To.Bound(),
		})
	}
	return out
}

func exportOperator(op *flow.Blackbox) domain.Operator {
	tpl := op.Template()
	out := domain.Operator{ID: op.Key()}
	if props := op.Properties(); len(props) > 0 {
		out.Properties = props
	}

	switch {
	case tpl.Instance:
		out.Blueprint = tpl.Name
	case tpl.Name != "":
		out.Definition = tpl.Name
	default:
		out.In = schema.ExprOf(tpl.In)
		out.Out = schema.ExprOf(tpl.Out)
		out.Generics = exprs(tpl.Generics)
		for _, d := range tpl.Delegates {
			out.Delegates = append(out.Delegates, domain.DelegateDefinition{
				Name: d.Name,
				In:   schema.ExprOf(d.In),
				Out:  schema.ExprOf(d.Out),
			})
		}
	}

	reg := op.Generics()
	for _, id := range reg.Identifiers() {
		t := reg.Type(id)
		if t == nil || schema.Equal(t, schema.Generic(id)) {
			continue
		}
		if out.Resolved == nil {
			out.Resolved = make(map[string]schema.Expr)
		}
		out.Resolved[id] = schema.ExprOf(t)
	}
	return out
}

func exprs(in map[string]schema.Type) map[string]schema.Expr {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]schema.Expr, len(in))
	for id, t := range in {
		out[id] = schema.ExprOf(t)
	}
	return out
}

// Refresh exports g as a new version of base. Fields the live graph does
// not hold, such as names and descriptions, are carried over from base.
func Refresh(g *flow.Graph, base *domain.Document) *domain.Document {
	doc := Export(g, base.ID)
	doc.Name = base.Name
	doc.Description = base.Description
	for i := range doc.Blueprints {
		if prev, ok := base.Blueprint(doc.Blueprints[i].Name); ok {
			doc.Blueprints[i].Description = prev.Description
		}
	}
	return doc
}
