package property_test

import (
	"testing"

	"github.com/aretw0/loom/pkg/property"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	assignments := property.Assignments{
		{Name: "variables", Type: schema.Stream(schema.String()), Value: []any{"a", "b"}},
		{Name: "axis", Type: schema.Stream(schema.String()), Value: []string{"x", "y"}},
		{Name: "prefix", Type: schema.String(), Value: "in_"},
		{Name: "limit", Type: schema.Number(), Value: 3},
		{Name: "escaped", Type: schema.String(), Value: "$later"},
		{Name: "none", Type: schema.Stream(schema.String()), Value: []any{}},
	}

	tests := []struct {
		name     string
		template string
		want     []string
	}{
		{name: "no placeholder", template: "value", want: []string{"value"}},
		{name: "scalar", template: "{prefix}value", want: []string{"in_value"}},
		{name: "number", template: "top{limit}", want: []string{"top3"}},
		{name: "stream multiplies", template: "{variables}", want: []string{"a", "b"}},
		{name: "stream with literal", template: "{prefix}{variables}_v", want: []string{"in_a_v", "in_b_v"}},
		{name: "cartesian", template: "{variables}{axis}", want: []string{"ax", "ay", "bx", "by"}},
		{name: "escape re-wraps", template: "{escaped}", want: []string{"{later}"}},
		{name: "unknown untouched", template: "{missing}-{prefix}", want: []string{"{missing}-in_"}},
		{name: "unterminated", template: "{prefix", want: []string{"{prefix"}},
		{name: "empty stream", template: "{none}", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, property.Expand(tt.template, assignments))
		})
	}
}

func TestExpandType_FansOutTemplatedKeys(t *testing.T) {
	assignments := property.Assignments{
		{Name: "variables", Type: schema.Stream(schema.String()), Value: []any{"a", "b"}},
	}
	decl := schema.MustParse(`{"{variables}": number, fixed: string}`)

	got := property.ExpandType(decl, assignments)

	assert.Equal(t, "{a: number, b: number, fixed: string}", got.String())
	assert.Equal(t, `{"{variables}": number, fixed: string}`, decl.String(), "declaration must not change")
}

func TestExpandType_Nested(t *testing.T) {
	assignments := property.Assignments{
		{Name: "field", Type: schema.String(), Value: "id"},
	}

	got := property.ExpandType(schema.MustParse(`{outer: {"{field}": <T>}, list: [{"{field}": string}]}`), assignments)
	assert.Equal(t, `{outer: {id: <T>}, list: [{"{field}": string}]}`, got.String())
}

func TestExpandType_Duplicates(t *testing.T) {
	assignments := property.Assignments{
		{Name: "keys", Type: schema.Stream(schema.String()), Value: []any{"a", "a", "b"}},
	}
	got := property.ExpandType(schema.MustParse(`{"{keys}": boolean}`), assignments)
	assert.Equal(t, "{a: boolean, b: boolean}", got.String())
}

func TestBind(t *testing.T) {
	decl := schema.Schema{"variables": schema.Stream(schema.String()), "limit": schema.Number()}
	got := property.Bind(decl, map[string]any{"variables": []any{"a"}, "extra": true})

	v, ok := got.Lookup("variables")
	assert.True(t, ok)
	assert.Equal(t, "[string]", v.Type.String())

	extra, ok := got.Lookup("extra")
	assert.True(t, ok)
	assert.Equal(t, schema.KindUnspecified, extra.Type.Kind())

	_, ok = got.Lookup("limit")
	assert.False(t, ok)

	assert.Equal(t, map[string]any{"variables": []any{"a"}, "extra": true}, got.Values())
}
