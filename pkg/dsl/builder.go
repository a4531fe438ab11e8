package dsl

import (
	"fmt"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/schema"
)

// Builder manages the document construction.
type Builder struct {
	doc        domain.Document
	blueprints []*BlueprintBuilder
	errs       []error
}

// New creates a new document builder.
func New(name string) *Builder {
	return &Builder{doc: domain.Document{Name: name}}
}

// ID sets the document id. Build assigns a random one otherwise.
func (b *Builder) ID(id string) *Builder {
	b.doc.ID = id
	return b
}

// Describe sets the document description.
func (b *Builder) Describe(text string) *Builder {
	b.doc.Description = text
	return b
}

// Blueprint adds a blueprint to the document.
// If the blueprint already exists, it returns the existing builder.
func (b *Builder) Blueprint(name string) *BlueprintBuilder {
	for _, bb := range b.blueprints {
		if bb.bp.Name == name {
			return bb
		}
	}
	bb := &BlueprintBuilder{bp: domain.Blueprint{Name: name}, builder: b}
	b.blueprints = append(b.blueprints, bb)
	return bb
}

// parse records type errors so that chains never break.
func (b *Builder) parse(where, expr string) schema.Expr {
	if expr == "" {
		return schema.Expr{}
	}
	t, err := schema.ParseType(expr)
	if err != nil {
		b.errs = append(b.errs, &schema.ValidationError{Key: where, Reason: "invalid type", Value: expr, Err: err})
		return schema.Expr{}
	}
	return schema.ExprOf(t)
}

// Build assembles the document. Type expressions that failed to parse are
// reported together.
func (b *Builder) Build() (*domain.Document, error) {
	if err := schema.Collect(b.errs); err != nil {
		return nil, fmt.Errorf("failed to build document %q: %w", b.doc.Name, err)
	}
	doc := b.doc
	doc.Blueprints = make([]domain.Blueprint, 0, len(b.blueprints))
	for _, bb := range b.blueprints {
		doc.Blueprints = append(doc.Blueprints, bb.build())
	}
	document.EnsureID(&doc)
	return &doc, nil
}

// Graph builds the document and imports it into a live graph.
func (b *Builder) Graph(opts ...document.Option) (*flow.Graph, error) {
	doc, err := b.Build()
	if err != nil {
		return nil, err
	}
	return document.Import(doc, opts...)
}
