package domain

import (
	"github.com/aretw0/loom/pkg/schema"
)

// Document groups the blueprints edited together.
type Document struct {
	ID          string      `json:"id" yaml:"id" mapstructure:"id"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty" mapstructure:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Blueprints  []Blueprint `json:"blueprints" yaml:"blueprints" mapstructure:"blueprints"`
}

// Blueprint returns the blueprint with the given name.
func (d *Document) Blueprint(name string) (*Blueprint, bool) {
	for i := range d.Blueprints {
		if d.Blueprints[i].Name == name {
			return &d.Blueprints[i], true
		}
	}
	return nil, false
}

// Blueprint is one editable graph. Its in-port feeds the operators placed in
// it and its out-port collects their results.
type Blueprint struct {
	Name        string                 `json:"name" yaml:"name" mapstructure:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	In          schema.Expr            `json:"in,omitzero" yaml:"in,omitempty" mapstructure:"in"`
	Out         schema.Expr            `json:"out,omitzero" yaml:"out,omitempty" mapstructure:"out"`
	Generics    map[string]schema.Expr `json:"generics,omitempty" yaml:"generics,omitempty" mapstructure:"generics"`
	Properties  schema.Schema          `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`
	Operators   []Operator             `json:"operators,omitempty" yaml:"operators,omitempty" mapstructure:"operators"`
	Connections []Connection           `json:"connections,omitempty" yaml:"connections,omitempty" mapstructure:"connections"`
}

// Operator returns the operator with the given id.
func (b *Blueprint) Operator(id string) (*Operator, bool) {
	for i := range b.Operators {
		if b.Operators[i].ID == id {
			return &b.Operators[i], true
		}
	}
	return nil, false
}

// Operator is a node placed inside a blueprint.
//
// Exactly one source describes its ports: a library Definition, another
// Blueprint of the same document, or the inline In/Out/Delegates fields.
type Operator struct {
	ID         string         `json:"id" yaml:"id" mapstructure:"id"`
	Definition string         `json:"definition,omitempty" yaml:"definition,omitempty" mapstructure:"definition"`
	Blueprint  string         `json:"blueprint,omitempty" yaml:"blueprint,omitempty" mapstructure:"blueprint"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`

	In        schema.Expr            `json:"in,omitzero" yaml:"in,omitempty" mapstructure:"in"`
	Out       schema.Expr            `json:"out,omitzero" yaml:"out,omitempty" mapstructure:"out"`
	Delegates []DelegateDefinition   `json:"delegates,omitempty" yaml:"delegates,omitempty" mapstructure:"delegates"`
	Generics  map[string]schema.Expr `json:"generics,omitempty" yaml:"generics,omitempty" mapstructure:"generics"`

	// Resolved reports the current type of each generic. It is written on
	// export and ignored on import.
	Resolved map[string]schema.Expr `json:"resolved,omitempty" yaml:"resolved,omitempty" mapstructure:"-"`
}

// Inline reports whether the operator declares its own ports.
func (o *Operator) Inline() bool {
	return o.Definition == "" && o.Blueprint == ""
}

// Connection links two ports. Paths are relative to the blueprint, e.g.
// "in.text" or "upper.out.value". Expand allows generic ports to adopt the
// peer's type, including growing a map entry through the ghost port ("~").
type Connection struct {
	From   string `json:"from" yaml:"from" mapstructure:"from"`
	To     string `json:"to" yaml:"to" mapstructure:"to"`
	Expand bool   `json:"expand,omitempty" yaml:"expand,omitempty" mapstructure:"expand"`
}
