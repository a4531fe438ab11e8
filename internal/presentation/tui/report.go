package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// IssuesMarkdown lists validation issues as a Markdown report.
func IssuesMarkdown(title string, issues []domain.Issue) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)

	if len(issues) == 0 {
		sb.WriteString("No issues found.\n")
		return sb.String()
	}

	var errs, warnings int
	for _, issue := range issues {
		if issue.Severity == domain.SeverityError {
			errs++
		} else {
			warnings++
		}
	}
	fmt.Fprintf(&sb, "**%d error(s)**, **%d warning(s)**\n\n", errs, warnings)

	for _, issue := range issues {
		path := issue.Path
		if path == "" {
			path = "document"
		}
		fmt.Fprintf(&sb, "- **%s** `%s`: %s", issue.Severity, path, issue.Message)
		if issue.Hint != "" {
			fmt.Fprintf(&sb, " (did you mean `%s`?)", issue.Hint)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// PortMarkdown describes a port and its children as a Markdown report.
func PortMarkdown(info domain.PortInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Port `%s`\n\n", info.Path)
	writePort(&sb, info, 0)
	return sb.String()
}

func writePort(sb *strings.Builder, info domain.PortInfo, depth int) {
	indent := strings.Repeat("  ", depth)
	role := "destination"
	if info.Source {
		role = "source"
	}
	fmt.Fprintf(sb, "%s- `%s` **%s** %s, %s", indent, info.Path, info.Type, info.Direction, role)
	if info.ConnectedType != "" {
		fmt.Fprintf(sb, ", connected as `%s`", info.ConnectedType)
	}
	if info.Generic != "" {
		fmt.Fprintf(sb, ", generic `<%s>`", info.Generic)
	}
	if info.StreamDepth > 0 {
		fmt.Fprintf(sb, ", stream depth %d", info.StreamDepth)
	}
	sb.WriteString("\n")
	for _, c := range info.Connections {
		fmt.Fprintf(sb, "%s  - ↔ `%s`\n", indent, c)
	}
	for _, child := range info.Children {
		writePort(sb, child, depth+1)
	}
}

// DefinitionsMarkdown lists the operator library grouped by category.
func DefinitionsMarkdown(defs []domain.Definition) string {
	var sb strings.Builder
	sb.WriteString("# Operator Library\n\n")
	if len(defs) == 0 {
		sb.WriteString("The library is empty.\n")
		return sb.String()
	}

	var order []string
	groups := make(map[string][]domain.Definition)
	for _, d := range defs {
		c := d.Category
		if c == "" {
			c = "uncategorized"
		}
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], d)
	}

	for _, c := range order {
		fmt.Fprintf(&sb, "## %s\n\n", c)
		for _, d := range groups[c] {
			fmt.Fprintf(&sb, "- **%s**", d.Name)
			if !d.In.IsZero() {
				fmt.Fprintf(&sb, " in `%s`", d.In)
			}
			if !d.Out.IsZero() {
				fmt.Fprintf(&sb, " out `%s`", d.Out)
			}
			if d.Description != "" {
				fmt.Fprintf(&sb, ": %s", firstLine(d.Description))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
