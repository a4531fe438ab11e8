package flow

import (
	"fmt"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/schema"
)

// Connect links the source port p to dst. With allowGenericExpansion a
// generic-bound side adopts the other side's type instead of the connection
// descending structurally; connecting to a ghost grows a named entry.
func (p *Port) Connect(dst *Port, allowGenericExpansion bool) error {
	if err := p.g.checker.Check(p, dst, allowGenericExpansion); err != nil {
		return invalid("port", "connect", err)
	}
	return p.g.connect(p, dst, allowGenericExpansion)
}

// Entry returns the named entry of a map port.
func (p *Port) Entry(key string) (*Port, error) {
	if p.shape != schema.KindMap {
		return nil, fatal("port", "entry", fmt.Errorf("%w: %s is %s", ErrShape, p.Path(), p.shape))
	}
	c, ok := p.Child(key)
	if !ok {
		return nil, fmt.Errorf("entry %q of %s: %w", key, p.Path(), ErrNotFound)
	}
	return c, nil
}

// expands reports whether a link adopts types through a generic instead of
// descending structurally.
func expands(src, dst *Port, allowGenericExpansion bool) bool {
	return allowGenericExpansion && (src.boundAncestor() != nil || dst.boundAncestor() != nil)
}

func (g *Graph) connect(src, dst *Port, expand bool) error {
	direct := dst.shape == schema.KindTrigger || expands(src, dst, expand)
	if !direct {
		pairs := descend(src, dst)
		touched := make([]*Port, 0, 2*len(pairs))
		for _, pair := range pairs {
			g.link(pair[0], pair[1])
			touched = append(touched, pair[0], pair[1])
		}
		g.settle(touched)
		return nil
	}

	var err error
	if dst.ghost {
		if dst, err = g.expandGhost(dst, src); err != nil {
			return err
		}
	}
	if src.ghost {
		if src, err = g.expandGhost(src, dst); err != nil {
			return err
		}
	}
	g.link(src, dst)
	g.settle([]*Port{src, dst})
	return nil
}

// descend pairs up sub-ports: maps by key, streams sub to sub. Anything that
// cannot be paired further is linked where it stands.
func descend(src, dst *Port) [][2]*Port {
	switch {
	case src.shape == schema.KindMap && dst.shape == schema.KindMap:
		var pairs [][2]*Port
		for _, d := range dst.Children() {
			if s, ok := src.Child(d.Key()); ok {
				pairs = append(pairs, descend(s, d)...)
			}
		}
		if len(pairs) > 0 {
			return pairs
		}
	case src.shape == schema.KindStream && dst.shape == schema.KindStream:
		if s, d := src.Sub(), dst.Sub(); s != nil && d != nil {
			return descend(s, d)
		}
	}
	return [][2]*Port{{src, dst}}
}

// unionConflict reports the first generic touched by an expanding link
// that cannot absorb the other side's type.
func unionConflict(src, dst *Port) *RejectionError {
	for _, side := range [][2]*Port{{src, dst}, {dst, src}} {
		at, other := side[0], side[1]
		bound := at.boundAncestor()
		if bound == nil {
			continue
		}
		t := prune(other.Type())
		if at.ghost {
			if t == nil {
				t = schema.Unspecified()
			}
			t = schema.Map(schema.E(entryName(other), t))
			at = at.Parent()
		}
		if t == nil {
			continue
		}
		t = contribution(bound, at, t)
		reg, id := bound.binding.reg, bound.binding.id
		if _, err := schema.Union(reg.UnifiedType(id), t); err != nil {
			return &RejectionError{
				Reason: ReasonGeneric,
				From:   src.Path(),
				To:     dst.Path(),
				Detail: fmt.Sprintf("<%s>: %v", id, err),
			}
		}
	}
	return nil
}

// contribution wraps t in the shapes between at and its bound ancestor.
func contribution(bound, at *Port, t schema.Type) schema.Type {
	for at != bound {
		parent := at.Parent()
		if parent == nil {
			break
		}
		if parent.shape == schema.KindStream {
			t = schema.Stream(t)
		} else {
			t = schema.Map(schema.E(at.Key(), t))
		}
		at = parent
	}
	return t
}

// entryName is the key a ghost expansion uses for a peer: its own key, or
// the key of the nearest non-stream ancestor for stream elements.
func entryName(p *Port) string {
	for cur := p; cur != nil; cur = cur.Parent() {
		if k := cur.Key(); k != SubKey {
			return k
		}
	}
	return p.Key()
}

func (g *Graph) expandGhost(ghost, peer *Port) (*Port, error) {
	parent := ghost.Parent()
	name := entryName(peer)
	if existing, ok := parent.Child(name); ok {
		if !existing.IsSource() && hasIncoming(existing) {
			return nil, invalid("port", "connect", &RejectionError{
				Reason: ReasonFanIn,
				From:   peer.Path(),
				To:     existing.Path(),
				Detail: "entry already has a source",
			})
		}
		return existing, nil
	}
	t := prune(peer.Type())
	if t == nil {
		t = schema.Unspecified()
	}
	entry, err := g.createPort(parent.id, parent.owner, name, parent.dir, t, true)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("ghost expanded", "port", parent.Path(), "entry", name)
	return entry, nil
}

func (g *Graph) link(a, b *Port) {
	if a.ConnectedTo(b) {
		return
	}
	a.peers = append(a.peers, b)
	b.peers = append(b.peers, a)
	g.logger.Debug("ports connected", "from", a.Path(), "to", b.Path())
	g.emit(TopicConnected, a.id, b.id, "")
	g.emit(TopicConnected, b.id, a.id, "")
}

func (g *Graph) unlink(a, b *Port) {
	if !a.ConnectedTo(b) {
		return
	}
	a.peers = remove(a.peers, b)
	b.peers = remove(b.peers, a)
	g.logger.Debug("ports disconnected", "from", a.Path(), "to", b.Path())
	g.emit(TopicDisconnected, a.id, b.id, "")
	g.emit(TopicDisconnected, b.id, a.id, "")
}

func remove(ports []*Port, p *Port) []*Port {
	for i, q := range ports {
		if q == p {
			return append(ports[:i], ports[i+1:]...)
		}
	}
	return ports
}

// settle refreshes the generics bound above the touched ports and resets the
// streams of every destination owner among them.
func (g *Graph) settle(touched []*Port) {
	type key struct {
		reg *Generics
		id  string
	}
	seen := make(map[key]bool)
	for _, p := range touched {
		if !p.Alive() {
			continue
		}
		if bound := p.boundAncestor(); bound != nil {
			k := key{bound.binding.reg, bound.binding.id}
			if !seen[k] {
				seen[k] = true
				k.reg.refresh(k.id)
			}
		}
	}
	reset := make(map[*Blackbox]bool)
	for _, p := range touched {
		if !p.Alive() || p.IsSource() || reset[p.owner] {
			continue
		}
		reset[p.owner] = true
		g.ResetStreams(p.owner)
	}
}

// DisconnectFrom removes the link between p and q, if any.
func (p *Port) DisconnectFrom(q *Port) {
	if !p.ConnectedTo(q) {
		return
	}
	p.g.unlink(p, q)
	p.g.settle([]*Port{p, q})
}

// DisconnectAll removes every link of p and of its sub-ports.
func (p *Port) DisconnectAll() {
	var touched []*Port
	p.g.tree.Walk(p.id, func(id nodetree.ID) bool {
		port := p.g.portAt(id)
		if port == nil {
			return true
		}
		for _, q := range append([]*Port(nil), port.peers...) {
			p.g.unlink(port, q)
			touched = append(touched, port, q)
		}
		return true
	})
	p.g.settle(touched)
}

// hasIncoming reports whether p, one of its ancestors or one of its
// descendants already receives a connection.
func hasIncoming(p *Port) bool {
	for cur := p; cur != nil; cur = cur.Parent() {
		if len(cur.peers) > 0 {
			return true
		}
	}
	found := false
	p.g.tree.Walk(p.id, func(id nodetree.ID) bool {
		if q := p.g.portAt(id); q != nil && len(q.peers) > 0 {
			found = true
		}
		return !found
	})
	return found
}
