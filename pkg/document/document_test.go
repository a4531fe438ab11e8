package document_test

import (
	"testing"

	"github.com/aretw0/loom/pkg/document"
	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/registry"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
id: doc-1
name: sample
blueprints:
  - name: main
    in: "{name: string, text: string}"
    out: "{result: string}"
    operators:
      - id: upper
        definition: uppercase
      - id: collect
        in: <itemType>
        generics:
          itemType: "{}"
    connections:
      - from: in.text
        to: upper.in.value
      - from: upper.out.value
        to: out.result
      - from: in.name
        to: collect.in.name
        expand: true
`

func library() *registry.Registry {
	return registry.NewRegistry(domain.Definition{
		Name: "uppercase",
		In:   schema.ExprOf(schema.MustParse("{value: string}")),
		Out:  schema.ExprOf(schema.MustParse("{value: string}")),
	})
}

func TestImport(t *testing.T) {
	doc, err := document.Unmarshal([]byte(sampleYAML), document.FormatYAML)
	require.NoError(t, err)

	g, err := document.Import(doc, document.WithLibrary(library()))
	require.NoError(t, err)

	main, ok := g.Blueprint("main")
	require.True(t, ok)
	assert.Len(t, main.Operators(), 2)
	assert.Len(t, main.Connections(), 3)

	collect, ok := main.Operator("collect")
	require.True(t, ok)
	assert.Equal(t, "{name: string}", collect.Generics().Type("itemType").String())

	upper, _ := main.Operator("upper")
	assert.Equal(t, "uppercase", upper.Name())
}

func TestExport_RoundTrip(t *testing.T) {
	doc, err := document.Unmarshal([]byte(sampleYAML), document.FormatYAML)
	require.NoError(t, err)
	g, err := document.Import(doc, document.WithLibrary(library()))
	require.NoError(t, err)

	out := document.Export(g, doc.ID)
	require.Len(t, out.Blueprints, 1)
	bp := out.Blueprints[0]
	assert.Equal(t, "main", bp.Name)
	assert.Equal(t, "{name: string, text: string}", bp.In.String())
	assert.ElementsMatch(t, doc.Blueprints[0].Connections, bp.Connections)

	collect, ok := bp.Operator("collect")
	require.True(t, ok)
	assert.True(t, collect.Inline())
	assert.Equal(t, "<itemType>", collect.In.String())
	assert.Equal(t, "{name: string}", collect.Resolved["itemType"].String())

	upper, ok := bp.Operator("upper")
	require.True(t, ok)
	assert.Equal(t, "uppercase", upper.Definition)
	assert.Nil(t, upper.Resolved)

	// Exporting the re-imported graph yields the same document.
	g2, err := document.Import(out, document.WithLibrary(library()))
	require.NoError(t, err)
	first, err := document.Marshal(out, document.FormatJSON)
	require.NoError(t, err)
	second, err := document.Marshal(document.Export(g2, doc.ID), document.FormatJSON)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))

	// Nothing but resolved generics differs from the source document.
	out.Name = doc.Name
	assert.Nil(t, domain.DiffDocuments(doc, out))
}

func TestImport_CollectsErrors(t *testing.T) {
	doc := &domain.Document{
		ID: "doc-1",
		Blueprints: []domain.Blueprint{{
			Name: "main",
			In:   schema.ExprOf(schema.MustParse("{text: string}")),
			Operators: []domain.Operator{
				{ID: "upper", Definition: "upercase"},
				{ID: "ok", Definition: "uppercase"},
				{ID: "nested", Blueprint: "mian"},
			},
			Connections: []domain.Connection{
				{From: "in.text", To: "ok.in.value"},
				{From: "in.txt", To: "ok.in.value"},
			},
		}},
	}

	g, err := document.Import(doc, document.WithLibrary(library()))
	require.Error(t, err)

	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 3)

	var ve *schema.ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, "main.upper", ve.Key)
	assert.Equal(t, "uppercase", ve.Hint)
	assert.ErrorIs(t, errs[0], domain.ErrDefinitionNotFound)

	require.ErrorAs(t, errs[1], &ve)
	assert.Equal(t, "main", ve.Hint)

	require.ErrorAs(t, errs[2], &ve)
	assert.Equal(t, "main.connections[1]", ve.Key)
	assert.Equal(t, "in.text", ve.Hint)

	// Everything that resolved is still there.
	main, _ := g.Blueprint("main")
	assert.Len(t, main.Operators(), 1)
	assert.Len(t, main.Connections(), 1)
}

func TestImport_RejectedConnection(t *testing.T) {
	doc := &domain.Document{
		ID: "doc-1",
		Blueprints: []domain.Blueprint{{
			Name:      "main",
			In:        schema.ExprOf(schema.MustParse("{n: number}")),
			Operators: []domain.Operator{{ID: "ok", Definition: "uppercase"}},
			Connections: []domain.Connection{
				{From: "in.n", To: "ok.in.value"},
			},
		}},
	}

	_, err := document.Import(doc, document.WithLibrary(library()))
	errs := schema.ValidationErrors(err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "cannot connect in.n -> ok.in.value")
}

func TestEnsureID(t *testing.T) {
	doc := &domain.Document{}
	id := document.EnsureID(doc)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, document.EnsureID(doc))
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path string
		want document.Format
	}{
		{"flow.yaml", document.FormatYAML},
		{"flow.YML", document.FormatYAML},
		{"flow.json", document.FormatJSON},
		{"flow", document.FormatJSON},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, document.FormatOf(tt.path), tt.path)
	}
}

func TestDecodeDefinition(t *testing.T) {
	def, err := document.DecodeDefinition(map[string]any{
		"name":     "split",
		"category": "text",
		"in":       "{text: string}",
		"out":      map[string]any{"parts": []any{"string"}},
		"delegates": []any{
			map[string]any{"name": "each", "in": "string", "out": "string"},
		},
		"properties": map[string]any{"separator": "string"},
	})
	require.NoError(t, err)

	assert.Equal(t, "split", def.Name)
	assert.Equal(t, "{text: string}", def.In.String())
	assert.Equal(t, "{parts: [string]}", def.Out.String())
	require.Len(t, def.Delegates, 1)
	assert.Equal(t, "string", def.Delegates[0].In.String())
	assert.Equal(t, "string", def.Properties["separator"].String())
}

func TestIssues(t *testing.T) {
	doc := &domain.Document{
		ID: "doc-1",
		Blueprints: []domain.Blueprint{{
			Name:      "main",
			Operators: []domain.Operator{{ID: "upper", Definition: "upercase"}},
		}},
	}
	_, err := document.Import(doc, document.WithLibrary(library()))
	issues := document.Issues(err)
	require.Len(t, issues, 1)
	assert.Equal(t, domain.SeverityError, issues[0].Severity)
	assert.Equal(t, "main.upper", issues[0].Path)
	assert.Equal(t, "uppercase", issues[0].Hint)
	assert.Contains(t, issues[0].Message, `unknown definition "upercase"`)

	assert.Nil(t, document.Issues(nil))
}
