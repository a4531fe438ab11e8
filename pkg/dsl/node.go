package dsl

import (
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
)

// BlueprintBuilder provides a fluent API for configuring a blueprint.
type BlueprintBuilder struct {
	bp        domain.Blueprint
	operators []*OperatorBuilder
	builder   *Builder
}

// In declares the blueprint in-port type.
func (bb *BlueprintBuilder) In(expr string) *BlueprintBuilder {
	bb.bp.In = bb.builder.parse(bb.bp.Name+".in", expr)
	return bb
}

// Out declares the blueprint out-port type.
func (bb *BlueprintBuilder) Out(expr string) *BlueprintBuilder {
	bb.bp.Out = bb.builder.parse(bb.bp.Name+".out", expr)
	return bb
}

// Property declares a property operators instantiating the blueprint accept.
func (bb *BlueprintBuilder) Property(name, expr string) *BlueprintBuilder {
	e := bb.builder.parse(bb.bp.Name+".properties."+name, expr)
	if e.Type == nil {
		return bb
	}
	if bb.bp.Properties == nil {
		bb.bp.Properties = make(schema.Schema)
	}
	bb.bp.Properties[name] = e.Type
	return bb
}

// Operator adds an operator to the blueprint.
// If the operator already exists, it returns the existing builder.
func (bb *BlueprintBuilder) Operator(id string) *OperatorBuilder {
	for _, ob := range bb.operators {
		if ob.op.ID == id {
			return ob
		}
	}
	ob := &OperatorBuilder{op: domain.Operator{ID: id}, blueprint: bb}
	bb.operators = append(bb.operators, ob)
	return ob
}

// Connect links two ports given by blueprint-relative paths.
func (bb *BlueprintBuilder) Connect(from, to string) *BlueprintBuilder {
	bb.bp.Connections = append(bb.bp.Connections, domain.Connection{From: from, To: to})
	return bb
}

// Expand links two ports allowing generic expansion of the destination.
func (bb *BlueprintBuilder) Expand(from, to string) *BlueprintBuilder {
	bb.bp.Connections = append(bb.bp.Connections, domain.Connection{From: from, To: to, Expand: true})
	return bb
}

func (bb *BlueprintBuilder) build() domain.Blueprint {
	bp := bb.bp
	bp.Operators = make([]domain.Operator, 0, len(bb.operators))
	for _, ob := range bb.operators {
		bp.Operators = append(bp.Operators, ob.op)
	}
	return bp
}

// OperatorBuilder provides a fluent API for configuring an operator.
type OperatorBuilder struct {
	op        domain.Operator
	blueprint *BlueprintBuilder
}

func (ob *OperatorBuilder) where(field string) string {
	return ob.blueprint.bp.Name + "." + ob.op.ID + "." + field
}

// Uses instantiates a library definition.
func (ob *OperatorBuilder) Uses(definition string) *OperatorBuilder {
	ob.op.Definition = definition
	ob.op.Blueprint = ""
	return ob
}

// Instance instantiates another blueprint of the same document.
func (ob *OperatorBuilder) Instance(blueprint string) *OperatorBuilder {
	ob.op.Blueprint = blueprint
	ob.op.Definition = ""
	return ob
}

// Ports declares inline port types. An empty expression leaves the port out.
func (ob *OperatorBuilder) Ports(in, out string) *OperatorBuilder {
	ob.op.In = ob.blueprint.builder.parse(ob.where("in"), in)
	ob.op.Out = ob.blueprint.builder.parse(ob.where("out"), out)
	return ob
}

// Generic fixes part of an inline generic.
func (ob *OperatorBuilder) Generic(id, fixed string) *OperatorBuilder {
	if ob.op.Generics == nil {
		ob.op.Generics = make(map[string]schema.Expr)
	}
	ob.op.Generics[id] = ob.blueprint.builder.parse(ob.where("generics."+id), fixed)
	return ob
}

// Delegate declares an inline delegate.
func (ob *OperatorBuilder) Delegate(name, in, out string) *OperatorBuilder {
	ob.op.Delegates = append(ob.op.Delegates, domain.DelegateDefinition{
		Name: name,
		In:   ob.blueprint.builder.parse(ob.where(name+".in"), in),
		Out:  ob.blueprint.builder.parse(ob.where(name+".out"), out),
	})
	return ob
}

// Set assigns a property value.
func (ob *OperatorBuilder) Set(name string, value any) *OperatorBuilder {
	if ob.op.Properties == nil {
		ob.op.Properties = make(map[string]any)
	}
	ob.op.Properties[name] = value
	return ob
}

// Build returns the underlying domain.Operator.
// This is primarily used by the Builder, but exposed for advanced usage.
func (ob *OperatorBuilder) Build() domain.Operator {
	return ob.op
}
