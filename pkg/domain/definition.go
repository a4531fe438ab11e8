package domain

import (
	"github.com/aretw0/loom/pkg/schema"
)

// Definition is a reusable operator template. Port keys and delegate names
// may contain "{property}" placeholders expanded from the operator's
// property values.
type Definition struct {
	Name        string                 `json:"name" yaml:"name" mapstructure:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Category    string                 `json:"category,omitempty" yaml:"category,omitempty" mapstructure:"category"`
	In          schema.Expr            `json:"in,omitzero" yaml:"in,omitempty" mapstructure:"in"`
	Out         schema.Expr            `json:"out,omitzero" yaml:"out,omitempty" mapstructure:"out"`
	Delegates   []DelegateDefinition   `json:"delegates,omitempty" yaml:"delegates,omitempty" mapstructure:"delegates"`
	Generics    map[string]schema.Expr `json:"generics,omitempty" yaml:"generics,omitempty" mapstructure:"generics"`
	Properties  schema.Schema          `json:"properties,omitempty" yaml:"properties,omitempty" mapstructure:"properties"`
}

// DelegateDefinition declares an auxiliary in/out pair of an operator.
type DelegateDefinition struct {
	Name string      `json:"name" yaml:"name" mapstructure:"name"`
	In   schema.Expr `json:"in,omitzero" yaml:"in,omitempty" mapstructure:"in"`
	Out  schema.Expr `json:"out,omitzero" yaml:"out,omitempty" mapstructure:"out"`
}
