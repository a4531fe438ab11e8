package flow

import (
	"fmt"
	"strings"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/schema"
)

// StreamNode is one level of repetition. A node anchored at a stream port is
// fixed; a node without a source is the placeholder root of a stream source
// or of an unconnected operator.
type StreamNode struct {
	source *Port
	base   *StreamNode
	origin *Blackbox
}

// Source returns the stream port anchoring the node, or nil for a placeholder.
func (n *StreamNode) Source() *Port { return n.source }

// Base returns the enclosing level, or nil at the root.
func (n *StreamNode) Base() *StreamNode { return n.base }

// Origin returns the blackbox a root node belongs to.
func (n *StreamNode) Origin() *Blackbox { return n.Root().origin }

// IsPlaceholder reports whether the node has no anchoring source.
func (n *StreamNode) IsPlaceholder() bool { return n.source == nil }

// Depth is 1 at the root and grows by one per level.
func (n *StreamNode) Depth() int {
	d := 0
	for cur := n; cur != nil; cur = cur.base {
		d++
	}
	return d
}

// FixedDepth weighs every fixed node of the chain by 2^level, level counted
// upward from n. It breaks depth ties in favour of shallower anchors.
func (n *StreamNode) FixedDepth() int {
	sum, weight := 0, 1
	for cur := n; cur != nil; cur = cur.base {
		if cur.source != nil {
			sum += weight
		}
		weight <<= 1
	}
	return sum
}

// Root returns the outermost level.
func (n *StreamNode) Root() *StreamNode {
	cur := n
	for cur.base != nil {
		cur = cur.base
	}
	return cur
}

func (n *StreamNode) contains(m *StreamNode) bool {
	for cur := n; cur != nil; cur = cur.base {
		if cur == m {
			return true
		}
	}
	return false
}

func (n *StreamNode) lowestFixed() *StreamNode {
	for cur := n; cur != nil; cur = cur.base {
		if cur.source != nil {
			return cur
		}
	}
	return nil
}

func (n *StreamNode) signature() string {
	var parts []string
	for cur := n; cur != nil; cur = cur.base {
		if cur.source != nil {
			parts = append(parts, cur.source.Path())
		} else if cur.origin != nil {
			parts = append(parts, "root:"+cur.origin.Path())
		}
	}
	return strings.Join(parts, " / ")
}

// mergeStreams keeps the deeper stream; on a tie the one with the greater
// fixed depth wins.
func mergeStreams(old, next *StreamNode) *StreamNode {
	switch {
	case old == nil:
		return next
	case next == nil || old == next:
		return old
	}
	if od, nd := old.Depth(), next.Depth(); nd != od {
		if nd > od {
			return next
		}
		return old
	}
	if next.FixedDepth() > old.FixedDepth() {
		return next
	}
	return old
}

// StreamStep returns how many wrapper levels separate a and b: 0 for the
// same node, -1 when both are anchored on unrelated streams, 0 when a side
// without any anchor is no deeper than the other, else the depth difference.
func StreamStep(a, b *StreamNode) int {
	if a == b {
		return 0
	}
	fa, fb := a.lowestFixed(), b.lowestFixed()
	if fa != nil && fb != nil && !a.contains(fb) && !b.contains(fa) {
		return -1
	}
	da, db := a.Depth(), b.Depth()
	if (fa == nil && da <= db) || (fb == nil && db <= da) {
		return 0
	}
	if da > db {
		return da - db
	}
	return db - da
}

// Stream returns the stream context of the port.
func (p *Port) Stream() (*StreamNode, error) {
	if !p.Alive() {
		return nil, fatal("port", "stream", ErrDestroyed)
	}
	return p.g.nodeOf(p), nil
}

// nodeOf returns the cached stream node of p. Map entries share their
// parent's node; stream elements get a node anchored at the stream port.
func (g *Graph) nodeOf(p *Port) *StreamNode {
	if p.stream != nil {
		return p.stream
	}
	var n *StreamNode
	switch parent := p.Parent(); {
	case parent == nil:
		n = p.owner.BaseStream()
	case parent.shape == schema.KindStream:
		n = &StreamNode{source: parent, base: g.nodeOf(parent)}
	default:
		n = g.nodeOf(parent)
	}
	p.stream = n
	return n
}

// observe translates the node a peer offers into the receiving port's base
// context, peeling one level per stream enclosing q.
func observe(q *Port, n *StreamNode) (*StreamNode, error) {
	for parent := q.Parent(); parent != nil; parent = parent.Parent() {
		if parent.shape != schema.KindStream {
			continue
		}
		if n.base == nil {
			return nil, fmt.Errorf("%w at %s", ErrStreamDepth, q.Path())
		}
		n = n.base
	}
	return n, nil
}

func (b *Blackbox) rootNode() *StreamNode {
	if b.root == nil {
		b.root = &StreamNode{origin: b}
	}
	return b.root
}

// BaseStream returns the stream context the blackbox's ports live in.
// Stream sources use their own root. Operators merge what their in-port
// observes and fall back to their own root while unconnected.
func (b *Blackbox) BaseStream() *StreamNode {
	if b.base != nil {
		return b.base
	}
	if b.kind.StreamSource() {
		b.base = b.rootNode()
		return b.base
	}
	if b.computing {
		return b.rootNode()
	}
	b.computing = true
	defer func() { b.computing = false }()

	var merged *StreamNode
	if in := b.In(); in != nil {
		b.g.tree.Walk(in.id, func(id nodetree.ID) bool {
			q := b.g.portAt(id)
			if q == nil {
				return true
			}
			for _, peer := range q.peers {
				obs, err := observe(q, b.g.nodeOf(peer))
				if err != nil {
					b.g.logger.Debug("stream observation skipped", "port", q.Path(), "error", err)
					continue
				}
				merged = mergeStreams(merged, obs)
			}
			return true
		})
	}
	if merged == nil {
		merged = b.rootNode()
	}
	b.base = merged
	return merged
}

// downstream collects b and every owner whose stream context depends on it.
// Stream sources are collected but not walked through.
func (g *Graph) downstream(b *Blackbox) []*Blackbox {
	seen := map[*Blackbox]bool{b: true}
	out := []*Blackbox{b}
	queue := []*Blackbox{b}
	visit := func(o *Blackbox, expand bool) {
		if o == nil || seen[o] || !o.Alive() {
			return
		}
		seen[o] = true
		out = append(out, o)
		if expand {
			queue = append(queue, o)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		src := cur.sourcePort()
		if src == nil {
			continue
		}
		g.tree.Walk(src.id, func(id nodetree.ID) bool {
			if p := g.portAt(id); p != nil {
				for _, q := range p.peers {
					visit(q.owner, !q.owner.kind.StreamSource())
				}
			}
			return true
		})
	}
	return out
}

// ResetStreams rebuilds the stream contexts of b and everything downstream
// of it. Owners move Stable -> Resetting -> Repropagating -> Stable and raise
// StreamTypeChanged once if their context changed. Calls for an owner that
// is already resetting are folded into the running reset.
func (g *Graph) ResetStreams(b *Blackbox) {
	if b == nil || !b.Alive() || g.tree.TearingDown(b.id) || b.state != StreamStable {
		return
	}
	owners := g.downstream(b)
	before := make(map[*Blackbox]string, len(owners))
	for _, o := range owners {
		before[o] = o.BaseStream().signature()
		o.state = StreamResetting
	}
	for _, o := range owners {
		o.base = nil
		if o == b && o.kind.StreamSource() {
			o.root = nil
		}
		g.clearStreamCaches(o)
	}
	for _, o := range owners {
		o.state = StreamRepropagating
	}
	for _, o := range owners {
		o.BaseStream()
	}
	for _, o := range owners {
		o.state = StreamStable
	}
	for _, o := range owners {
		if after := o.BaseStream().signature(); after != before[o] {
			g.logger.Debug("stream context changed", "owner", o.Path(), "stream", after)
			g.emit(TopicStreamTypeChanged, o.id, nodetree.None, after)
		}
	}
}

func (g *Graph) clearStreamCaches(o *Blackbox) {
	for _, p := range o.Ports() {
		g.tree.Walk(p.id, func(id nodetree.ID) bool {
			if q := g.portAt(id); q != nil {
				q.stream = nil
			}
			return true
		})
	}
}
