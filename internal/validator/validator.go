// Package validator lints live graphs for problems that import accepts
// but that usually mean the document is unfinished.
package validator

import (
	"fmt"
	"sort"

	"github.com/aretw0/loom/pkg/domain"
	"github.com/aretw0/loom/pkg/flow"
	"github.com/aretw0/loom/pkg/schema"
)

// Lint checks every blueprint of g. All findings are warnings.
func Lint(g *flow.Graph) []domain.Issue {
	var issues []domain.Issue
	for _, bp := range g.Blueprints() {
		issues = append(issues, unreachable(bp)...)
		issues = append(issues, unresolved(bp)...)
		issues = append(issues, unwritten(bp)...)
	}
	return issues
}

// unreachable crawls connections from the blueprint input and from
// operators that take no input, and reports operators never reached.
func unreachable(bp *flow.Blackbox) []domain.Issue {
	visited := make(map[*flow.Blackbox]bool)
	queue := []*flow.Blackbox{bp}
	for _, op := range bp.Operators() {
		if !hasInputs(op) {
			queue = append(queue, op)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		for _, p := range sources(current) {
			for _, peer := range p.Connections() {
				target := operatorOf(bp, peer.Owner())
				if target != nil && !visited[target] {
					queue = append(queue, target)
				}
			}
		}
	}

	var issues []domain.Issue
	for _, op := range bp.Operators() {
		if !visited[op] {
			issues = append(issues, domain.Issue{
				Severity: domain.SeverityWarning,
				Path:     bp.Key() + "." + op.Key(),
				Message:  "operator is unreachable from the blueprint input",
				Hint:     "connect one of its inputs",
			})
		}
	}
	return issues
}

// unresolved reports generics that no connection has pinned down yet.
func unresolved(bp *flow.Blackbox) []domain.Issue {
	var issues []domain.Issue
	for _, op := range bp.Operators() {
		reg := op.Generics()
		ids := reg.Identifiers()
		sort.Strings(ids)
		for _, id := range ids {
			if schema.IsConcrete(reg.Type(id)) {
				continue
			}
			issues = append(issues, domain.Issue{
				Severity: domain.SeverityWarning,
				Path:     bp.Key() + "." + op.Key(),
				Message:  fmt.Sprintf("generic %q is unresolved", id),
			})
		}
	}
	return issues
}

// unwritten reports leaves of the blueprint output that nothing feeds.
func unwritten(bp *flow.Blackbox) []domain.Issue {
	out := bp.Out()
	if out == nil {
		return nil
	}
	var issues []domain.Issue
	var walk func(p *flow.Port, fed bool)
	walk = func(p *flow.Port, fed bool) {
		fed = fed || p.Connected()
		children := p.Children()
		if len(children) == 0 {
			if !fed && p != out {
				issues = append(issues, domain.Issue{
					Severity: domain.SeverityWarning,
					Path:     bp.Key() + "." + bp.Rel(p),
					Message:  "output is never written",
				})
			}
			return
		}
		for _, c := range children {
			walk(c, fed)
		}
	}
	walk(out, false)
	return issues
}

// sources lists every port through which data leaves b, including those
// of its delegates.
func sources(b *flow.Blackbox) []*flow.Port {
	var out []*flow.Port
	var walk func(p *flow.Port)
	walk = func(p *flow.Port) {
		if p.IsSource() {
			out = append(out, p)
		}
		for _, c := range p.Children() {
			walk(c)
		}
	}
	for _, p := range b.Ports() {
		walk(p)
	}
	for _, d := range b.Delegates() {
		out = append(out, sources(d)...)
	}
	return out
}

func hasInputs(op *flow.Blackbox) bool {
	in := op.In()
	if in == nil {
		return false
	}
	_, generic := in.Generic()
	return generic || len(in.Children()) > 0 || in.Shape() != schema.KindMap
}

// operatorOf climbs from b to the operator placed directly in bp. It
// returns nil for the blueprint itself.
func operatorOf(bp, b *flow.Blackbox) *flow.Blackbox {
	for cur := b; cur != nil; cur = cur.Parent() {
		if cur.Parent() == bp {
			return cur
		}
	}
	return nil
}
