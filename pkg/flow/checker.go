package flow

import (
	"fmt"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/schema"
)

// Checker decides whether two ports may be connected. It never mutates the
// graph.
type Checker struct {
	g *Graph
}

// CanConnect reports whether Check accepts the pair.
func (c *Checker) CanConnect(src, dst *Port, allowGenericExpansion bool) bool {
	return c.Check(src, dst, allowGenericExpansion) == nil
}

// Check returns a *RejectionError naming the first rule the pair violates.
func (c *Checker) Check(src, dst *Port, allowGenericExpansion bool) error {
	if src == nil || dst == nil {
		return &RejectionError{Reason: ReasonDestroyed, Detail: "missing port"}
	}
	reject := func(reason Reason, format string, args ...any) error {
		return &RejectionError{Reason: reason, From: src.Path(), To: dst.Path(), Detail: fmt.Sprintf(format, args...)}
	}

	if !src.Alive() || !dst.Alive() || c.g.tree.TearingDown(src.id) || c.g.tree.TearingDown(dst.id) {
		return reject(ReasonDestroyed, "port no longer exists")
	}
	if !src.IsSource() || dst.IsSource() {
		return reject(ReasonDirection, "data must flow from a source into a destination")
	}
	if s, d := src.owner.Scope(), dst.owner.Scope(); s == nil || s != d {
		return reject(ReasonScope, "ports belong to different blueprints")
	}

	if src.ghost && dst.ghost {
		return reject(ReasonGhost, "two ghost ports cannot be connected")
	}
	if (src.ghost || dst.ghost) && !allowGenericExpansion {
		return reject(ReasonGhost, "ghost ports require generic expansion")
	}

	if !dst.ghost && hasIncoming(dst) {
		return reject(ReasonFanIn, "destination already has a source")
	}

	if c.createsCycle(src.owner, dst.owner) {
		return reject(ReasonCycle, "%s is upstream of %s", dst.owner.Path(), src.owner.Path())
	}

	if owner, ok := c.nestedDelegate(src, dst); ok {
		return reject(ReasonDelegate, "stream of %s would feed itself through a delegate", owner.Path())
	}

	st, dt := src.Type(), dst.Type()
	concrete := schema.IsConcrete(st) && schema.IsConcrete(dt)

	// An expanding link grows the generic instead of matching its current
	// resolution, so the union decides.
	if dst.shape != schema.KindTrigger && expands(src, dst, allowGenericExpansion) {
		if rej := unionConflict(src, dst); rej != nil {
			return rej
		}
		if concrete {
			if err := c.checkStream(src, dst); err != nil {
				return reject(ReasonStream, "%v", err)
			}
		}
		return nil
	}

	if concrete {
		if !schema.Compatible(st, dt) {
			return reject(ReasonType, "%s is not compatible with %s", st, dt)
		}
		if dst.shape != schema.KindTrigger {
			if err := c.checkStream(src, dst); err != nil {
				return reject(ReasonStream, "%v", err)
			}
		}
		return nil
	}

	// A side still resolving a generic is accepted; its type follows the
	// connection.
	return nil
}

// createsCycle walks upstream from src through operator in-ports and
// reports whether dst is reached. Stream sources end the walk.
func (c *Checker) createsCycle(src, dst *Blackbox) bool {
	if src.kind.StreamSource() || dst.kind.StreamSource() {
		return false
	}
	if src == dst {
		return true
	}
	seen := map[*Blackbox]bool{src: true}
	queue := []*Blackbox{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		in := cur.destinationPort()
		if in == nil {
			continue
		}
		for _, up := range upstreamOwners(c.g, in) {
			if up == dst {
				return true
			}
			if seen[up] || up.kind.StreamSource() {
				continue
			}
			seen[up] = true
			queue = append(queue, up)
		}
	}
	return false
}

func upstreamOwners(g *Graph, in *Port) []*Blackbox {
	var out []*Blackbox
	g.tree.Walk(in.id, func(id nodetree.ID) bool {
		if p := g.portAt(id); p != nil {
			for _, q := range p.peers {
				out = append(out, q.owner)
			}
		}
		return true
	})
	return out
}

// ancestry lists the operators whose delegates anchor the stream chain of
// the port, innermost first.
func (c *Checker) ancestry(p *Port) []*Blackbox {
	var out []*Blackbox
	seen := make(map[*Blackbox]bool)
	origin := c.g.nodeOf(p).Origin()
	for origin != nil && origin.kind == KindDelegate {
		op := origin.Parent()
		if op == nil || seen[op] {
			break
		}
		seen[op] = true
		out = append(out, op)
		origin = op.BaseStream().Origin()
	}
	return out
}

// nestedDelegate rejects links that would let an operator's stream run back
// into itself through one of its own delegates.
func (c *Checker) nestedDelegate(src, dst *Port) (*Blackbox, bool) {
	srcAnc := c.ancestry(src)
	dstAnc := c.ancestry(dst)
	for _, op := range srcAnc {
		if op == dst.owner {
			return op, true
		}
	}
	for _, op := range dstAnc {
		if op == src.owner {
			return op, true
		}
	}
	if len(srcAnc) == 0 {
		return nil, false
	}
	below := make(map[*Blackbox]bool)
	for _, o := range c.g.downstream(dst.owner) {
		below[o] = true
	}
	for _, op := range srcAnc {
		if below[op] {
			return op, true
		}
	}
	return nil, false
}

// checkStream verifies that the stream src offers can be observed at dst and
// lines up with the stream dst's owner already lives in.
func (c *Checker) checkStream(src, dst *Port) error {
	obs, err := observe(dst, c.g.nodeOf(src))
	if err != nil {
		return err
	}
	if dst.owner.kind.StreamSource() {
		return nil
	}
	current := dst.owner.BaseStream()
	if StreamStep(obs, current) < 0 {
		return fmt.Errorf("stream of %s is misplaced relative to %s", src.Path(), dst.owner.Path())
	}
	return nil
}
