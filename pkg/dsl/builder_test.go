package dsl

import (
	"errors"
	"testing"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/registry"
	"github.com/aretw0/loom/pkg/schema"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	// 1. Build the document using DSL
	b := New("pipeline").ID("doc-1")

	main := b.Blueprint("main").
		In("{text: string}").
		Out("{result: string}")

	main.Operator("upper").Uses("uppercase")
	main.Operator("trim").Ports("{value: string}", "{value: string}")

	main.Connect("in.text", "upper.in.value").
		Connect("upper.out.value", "trim.in.value").
		Connect("trim.out.value", "out.result")

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}

	// 2. Verify the document
	if doc.ID != "doc-1" || doc.Name != "pipeline" {
		t.Errorf("Unexpected header: %+v", doc)
	}
	bp, ok := doc.Blueprint("main")
	if !ok {
		t.Fatalf("Blueprint 'main' missing")
	}
	if bp.In.String() != "{text: string}" {
		t.Errorf("Expected in '{text: string}', got '%s'", bp.In)
	}
	if len(bp.Operators) != 2 {
		t.Fatalf("Expected 2 operators, got %d", len(bp.Operators))
	}
	if bp.Operators[0].Definition != "uppercase" {
		t.Errorf("Expected definition 'uppercase', got '%s'", bp.Operators[0].Definition)
	}
	if !bp.Operators[1].Inline() {
		t.Error("Expected trim to declare its own ports")
	}
	if len(bp.Connections) != 3 {
		t.Errorf("Expected 3 connections, got %d", len(bp.Connections))
	}

	// 3. Import into a live graph
	lib := registry.NewRegistry(domain.Definition{
		Name: "uppercase",
		In:   schema.ExprOf(schema.MustParse("{value: string}")),
		Out:  schema.ExprOf(schema.MustParse("{value: string}")),
	})
	g, err := b.Graph(document.WithLibrary(lib))
	if err != nil {
		t.Fatalf("Graph() failed: %v", err)
	}
	live, ok := g.Blueprint("main")
	if !ok {
		t.Fatalf("Live blueprint 'main' missing")
	}
	if n := len(live.Connections()); n != 3 {
		t.Errorf("Expected 3 live connections, got %d", n)
	}
}

func TestBuilder_GenericsAndDelegates(t *testing.T) {
	b := New("generics")
	main := b.Blueprint("main").In("{name: string}")

	main.Operator("collect").
		Ports("<item>", "").
		Generic("item", "{}")
	main.Operator("each").
		Ports("[<T>]", "[<T>]").
		Delegate("body", "<T>", "<T>").
		Set("parallel", true)
	main.Expand("in.name", "collect.in.name")

	doc, err := b.Build()
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	if doc.ID == "" {
		t.Error("Expected a generated id")
	}

	each := doc.Blueprints[0].Operators[1]
	if len(each.Delegates) != 1 || each.Delegates[0].Name != "body" {
		t.Errorf("Expected delegate 'body', got %+v", each.Delegates)
	}
	if each.Properties["parallel"] != true {
		t.Errorf("Expected property parallel=true, got %v", each.Properties)
	}
	if !doc.Blueprints[0].Connections[0].Expand {
		t.Error("Expected an expanding connection")
	}

	g, err := b.Graph()
	if err != nil {
		t.Fatalf("Graph() failed: %v", err)
	}
	live, _ := g.Blueprint("main")
	collect, _ := live.Operator("collect")
	if got := collect.Generics().Type("item").String(); got != "{name: string}" {
		t.Errorf("Expected item '{name: string}', got '%s'", got)
	}
}

func TestBuilder_InvalidTypes(t *testing.T) {
	b := New("broken")
	b.Blueprint("main").In("{text: ").Out("{ok: string}")
	b.Blueprint("main").Operator("x").Ports("<", "")

	_, err := b.Build()
	if err == nil {
		t.Fatal("Expected Build() to fail")
	}
	if n := len(schema.ValidationErrors(err)); n != 2 {
		t.Errorf("Expected 2 errors, got %d: %v", n, err)
	}
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Key != "main.in" {
		t.Errorf("Expected first error on 'main.in', got %v", ve)
	}
}
