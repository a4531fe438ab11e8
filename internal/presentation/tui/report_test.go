package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuesMarkdown(t *testing.T) {
	md := IssuesMarkdown("doc.yaml", []domain.Issue{
		{Severity: domain.SeverityError, Path: "main.upper", Message: "unknown definition \"upercase\"", Hint: "uppercase"},
		{Severity: domain.SeverityWarning, Path: "main.out.result", Message: "output is never written"},
	})

	assert.Contains(t, md, "# doc.yaml")
	assert.Contains(t, md, "**1 error(s)**, **1 warning(s)**")
	assert.Contains(t, md, "(did you mean `uppercase`?)")
	assert.Contains(t, md, "- **warning** `main.out.result`: output is never written\n")

	assert.Contains(t, IssuesMarkdown("ok", nil), "No issues found.")
}

func TestPortMarkdown(t *testing.T) {
	md := PortMarkdown(domain.PortInfo{
		Path:      "collect.in",
		Direction: "in",
		Type:      "{name: string}",
		Generic:   "T",
		Children: []domain.PortInfo{
			{Path: "collect.in.name", Direction: "in", Type: "string", Connections: []string{"in.name"}},
		},
	})

	assert.Contains(t, md, "# Port `collect.in`")
	assert.Contains(t, md, "- `collect.in` **{name: string}** in, destination, generic `<T>`\n")
	assert.Contains(t, md, "  - `collect.in.name` **string** in, destination\n")
	assert.Contains(t, md, "    - ↔ `in.name`\n")
}

func TestDefinitionsMarkdown(t *testing.T) {
	md := DefinitionsMarkdown([]domain.Definition{
		{Name: "uppercase", Category: "text", In: schema.ExprOf(schema.MustParse("{value: string}")), Description: "Capitals.\nMore detail."},
		{Name: "noop"},
	})

	assert.Contains(t, md, "## text")
	assert.Contains(t, md, "- **uppercase** in `{value: string}`: Capitals.\n")
	assert.NotContains(t, md, "More detail.")
	assert.Contains(t, md, "## uncategorized")
}

func TestStatusAndBanner(t *testing.T) {
	var buf bytes.Buffer
	out := NewOutput(&buf, false)

	assert.Equal(t, "✔ allowed", Status(out, true, ""))
	assert.Equal(t, "✘ rejected (fan-in)", Status(out, false, "fan-in"))

	PrintBanner(out)
	assert.Contains(t, buf.String(), "|_|\\___/")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestRenderer_Plain(t *testing.T) {
	render := NewRenderer(false)
	got, err := render("# Title")
	require.NoError(t, err)
	assert.Equal(t, "# Title", got)
}
