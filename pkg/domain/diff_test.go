package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/aretw0/loom/pkg/schema"
)

func sampleBlueprint() Blueprint {
	return Blueprint{
		Name: "main",
		In:   schema.ExprOf(schema.MustParse("{text: string}")),
		Operators: []Operator{
			{ID: "upper", Definition: "uppercase"},
			{ID: "log", Definition: "print", Properties: map[string]any{"level": "info"}},
		},
		Connections: []Connection{
			{From: "in.text", To: "upper.in.value"},
		},
	}
}

func TestDiffDocuments(t *testing.T) {
	renamed := "renamed"

	tests := []struct {
		name     string
		old      *Document
		new      *Document
		wantDiff *DocumentDiff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			wantDiff: &DocumentDiff{
				DocumentID: "doc-1",
				Added:      []string{"main"},
			},
		},
		{
			name:     "No Changes",
			old:      &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			new:      &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			wantDiff: nil,
		},
		{
			name: "Rename and Blueprint Removed",
			old:  &Document{ID: "doc-1", Name: "before", Blueprints: []Blueprint{sampleBlueprint(), {Name: "extra"}}},
			new:  &Document{ID: "doc-1", Name: "renamed", Blueprints: []Blueprint{sampleBlueprint()}},
			wantDiff: &DocumentDiff{
				DocumentID: "doc-1",
				Name:       &renamed,
				Removed:    []string{"extra"},
			},
		},
		{
			name: "Operators and Connections",
			old:  &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			new: func() *Document {
				bp := sampleBlueprint()
				bp.Operators[1].Properties = map[string]any{"level": "debug"}
				bp.Operators = append(bp.Operators[1:], Operator{ID: "count", Definition: "count"})
				bp.Connections = []Connection{{From: "in.text", To: "log.in.value"}}
				return &Document{ID: "doc-1", Blueprints: []Blueprint{bp}}
			}(),
			wantDiff: &DocumentDiff{
				DocumentID: "doc-1",
				Changed: []BlueprintDiff{{
					Name:               "main",
					OperatorsAdded:     []string{"count"},
					OperatorsRemoved:   []string{"upper"},
					OperatorsChanged:   []string{"log"},
					ConnectionsAdded:   []Connection{{From: "in.text", To: "log.in.value"}},
					ConnectionsRemoved: []Connection{{From: "in.text", To: "upper.in.value"}},
				}},
			},
		},
		{
			name: "Port Declarations",
			old:  &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			new: func() *Document {
				bp := sampleBlueprint()
				bp.In = schema.ExprOf(schema.MustParse("{text: string, count: number}"))
				return &Document{ID: "doc-1", Blueprints: []Blueprint{bp}}
			}(),
			wantDiff: &DocumentDiff{
				DocumentID: "doc-1",
				Changed:    []BlueprintDiff{{Name: "main", Ports: true}},
			},
		},
		{
			name: "Resolved Generics Are Ignored",
			old:  &Document{ID: "doc-1", Blueprints: []Blueprint{sampleBlueprint()}},
			new: func() *Document {
				bp := sampleBlueprint()
				bp.Operators[0].Resolved = map[string]schema.Expr{"T": schema.ExprOf(schema.String())}
				return &Document{ID: "doc-1", Blueprints: []Blueprint{bp}}
			}(),
			wantDiff: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiffDocuments(tt.old, tt.new)

			if tt.wantDiff == nil {
				if got != nil && !got.IsEmpty() {
					t.Errorf("Expected no diff, got %+v", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Expected diff, got nil")
			}
			if !reflect.DeepEqual(got, tt.wantDiff) {
				t.Errorf("Diff mismatch.\nGot:  %+v\nWant: %+v", got, tt.wantDiff)
			}
		})
	}
}

func TestDocumentDiff_JSONSerialization(t *testing.T) {
	diff := &DocumentDiff{
		DocumentID: "doc-1",
		Changed:    []BlueprintDiff{{Name: "main", OperatorsAdded: []string{"count"}}},
	}

	data, err := json.Marshal(diff)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	s := string(data)
	if !strings.Contains(s, `"document_id":"doc-1"`) {
		t.Errorf("JSON missing document_id: %s", s)
	}
	if !strings.Contains(s, `"operators_added":["count"]`) {
		t.Errorf("JSON missing operators_added: %s", s)
	}
	if strings.Contains(s, `"removed"`) {
		t.Errorf("JSON should omit empty removed: %s", s)
	}
}

func TestDiffDefinitions(t *testing.T) {
	old := []Definition{
		{Name: "upper", In: schema.ExprOf(schema.String())},
		{Name: "gone"},
	}
	new := []Definition{
		{Name: "upper", In: schema.ExprOf(schema.Number())},
		{Name: "fresh"},
	}

	got := DiffDefinitions(old, new)
	want := LibraryDiff{Added: []string{"fresh"}, Removed: []string{"gone"}, Changed: []string{"upper"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !DiffDefinitions(old, old).IsEmpty() {
		t.Error("identical snapshots should not differ")
	}
}

func TestDocument_JSONOmitsAbsentPorts(t *testing.T) {
	doc := Document{ID: "doc-1", Blueprints: []Blueprint{{Name: "main"}}}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), `"in"`) {
		t.Errorf("absent in-port should be omitted: %s", data)
	}
}
