package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/loom/pkg/domain"
)

// GraphOverlay marks operators to highlight on the graph, keyed by
// operator ID.
type GraphOverlay struct {
	Warnings []string
	Errors   []string
}

// OverlayFromIssues highlights the operators that issues point at. Issue
// paths look like "blueprint.operator..." and only those under bp count.
func OverlayFromIssues(bp string, issues []domain.Issue) *GraphOverlay {
	overlay := &GraphOverlay{}
	prefix := bp + "."
	for _, issue := range issues {
		rest, ok := strings.CutPrefix(issue.Path, prefix)
		if !ok {
			continue
		}
		id, _, _ := strings.Cut(rest, ".")
		if id == "in" || id == "out" || strings.HasPrefix(id, "connections[") {
			continue
		}
		if issue.Severity == domain.SeverityError {
			overlay.Errors = append(overlay.Errors, id)
		} else {
			overlay.Warnings = append(overlay.Warnings, id)
		}
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart of one blueprint.
// It applies semantic styling:
// - Blueprint in/out: (["Stadium"])
// - Library operator: [Rectangle]
// - Blueprint instance: [[Subroutine]]
// - Inline operator: [/Parallelogram/]
// Each connection is an edge labeled with the port keys it joins.
func GenerateMermaid(bp domain.Blueprint, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	inID := sanitizeMermaidID(bp.Name + ".in")
	outID := sanitizeMermaidID(bp.Name + ".out")
	if !bp.In.IsZero() {
		sb.WriteString(fmt.Sprintf("    %s([\"in\"])\n", inID))
	}
	if !bp.Out.IsZero() {
		sb.WriteString(fmt.Sprintf("    %s([\"out\"])\n", outID))
	}

	for _, op := range bp.Operators {
		opener, closer := "[", "]"
		label := op.ID
		switch {
		case op.Blueprint != "":
			opener, closer = "[[", "]]"
			label = op.ID + "<br/>" + op.Blueprint
		case op.Definition != "":
			label = op.ID + "<br/>" + op.Definition
		default:
			opener, closer = "[/", "/]"
		}
		for _, id := range slices.Sorted(maps.Keys(op.Resolved)) {
			label += fmt.Sprintf("<br/>%s = %s", id, escape(op.Resolved[id].String()))
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", nodeID(bp.Name, op.ID), opener, label, closer))
	}

	for _, c := range bp.Connections {
		from, fromKey := endpoint(bp.Name, c.From)
		to, toKey := endpoint(bp.Name, c.To)
		arrow := "-->"
		if c.Expand {
			arrow = "-.->"
		}
		edge := fmt.Sprintf("    %s %s|\"%s → %s\"| %s\n", from, arrow, escape(fromKey), escape(toKey), to)
		sb.WriteString(edge)
	}

	if overlay != nil && (len(overlay.Warnings) > 0 || len(overlay.Errors) > 0) {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef warning fill:#fff3e0,stroke:#e65100,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef error fill:#ffebee,stroke:#b71c1c,stroke-width:3px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Errors {
			if !seen[id] {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s error;\n", nodeID(bp.Name, id)))
			}
		}
		for _, id := range overlay.Warnings {
			if !seen[id] {
				seen[id] = true
				sb.WriteString(fmt.Sprintf("    class %s warning;\n", nodeID(bp.Name, id)))
			}
		}
	}

	return sb.String()
}

// endpoint splits a blueprint-relative port path into the node drawing it
// and the key shown on the edge.
func endpoint(bp, path string) (string, string) {
	head, rest, _ := strings.Cut(path, ".")
	if head == "in" || head == "out" {
		return sanitizeMermaidID(bp + "." + head), rest
	}
	if key, ok := strings.CutPrefix(rest, "in."); ok {
		rest = key
	} else if key, ok := strings.CutPrefix(rest, "out."); ok {
		rest = key
	}
	return nodeID(bp, head), rest
}

func nodeID(bp, op string) string {
	return sanitizeMermaidID(bp + ".op." + op)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "~", "_")
	return s
}
