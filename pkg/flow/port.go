package flow

import (
	"fmt"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/schema"
)

// Direction is the side of a blackbox a port sits on.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

const (
	// SubKey is the local key of the single sub-port of a stream port.
	SubKey = "[]"
	// GhostKey is the local key of the placeholder entry of a generic map port.
	GhostKey = "~"
)

type binding struct {
	reg *Generics
	id  string
}

// Port is a typed connection point. Map and stream ports own sub-ports;
// every other shape is a leaf.
type Port struct {
	g     *Graph
	id    nodetree.ID
	owner *Blackbox
	dir   Direction
	shape schema.Kind
	leaf  schema.Type
	ghost bool

	binding *binding
	peers   []*Port
	stream  *StreamNode
}

func (p *Port) node() nodetree.ID     { return p.id }
func (p *Port) asBlackbox() *Blackbox { return nil }
func (p *Port) asPort() *Port         { return p }

func (g *Graph) createPort(parent nodetree.ID, owner *Blackbox, key string, dir Direction, t schema.Type, propagated bool) (*Port, error) {
	p := &Port{g: g, owner: owner, dir: dir, shape: schema.KindUnspecified, leaf: schema.Unspecified()}
	id, err := g.tree.CreateChild(parent, key, p)
	if err != nil {
		return nil, invalid("port", "create", err)
	}
	p.id = id
	if err := p.reconstruct(t, dir, propagated); err != nil {
		g.tree.Destroy(id)
		return nil, err
	}
	return p, nil
}

// Key returns the local key of the port.
func (p *Port) Key() string { return p.g.tree.Key(p.id) }

// Path returns the absolute dot-path of the port.
func (p *Port) Path() string { return p.g.tree.Path(p.id) }

// Direction returns whether the port is an in- or out-port.
func (p *Port) Direction() Direction { return p.dir }

// Owner returns the blackbox the port belongs to.
func (p *Port) Owner() *Blackbox { return p.owner }

// Shape returns the kind of the port's current type.
func (p *Port) Shape() schema.Kind { return p.shape }

// IsGhost reports whether the port is the placeholder entry of a generic map.
func (p *Port) IsGhost() bool { return p.ghost }

// Alive reports whether the port has not been destroyed.
func (p *Port) Alive() bool { return p.g.tree.Alive(p.id) }

// Parent returns the enclosing port, or nil for a top-level port.
func (p *Port) Parent() *Port { return p.g.portAt(p.g.tree.Parent(p.id)) }

func (p *Port) top() *Port {
	cur := p
	for {
		parent := cur.Parent()
		if parent == nil {
			return cur
		}
		cur = parent
	}
}

// IsSource reports whether data leaves through the port. Stream sources
// invert the usual rule: their in-port feeds their own contents.
func (p *Port) IsSource() bool {
	return p.owner.kind.StreamSource() != (p.top().dir == Out)
}

// Children returns the sub-ports in creation order, without the ghost.
func (p *Port) Children() []*Port {
	var out []*Port
	for _, c := range p.allChildren() {
		if !c.ghost {
			out = append(out, c)
		}
	}
	return out
}

func (p *Port) allChildren() []*Port {
	ids := p.g.tree.Children(p.id)
	out := make([]*Port, 0, len(ids))
	for _, id := range ids {
		if c := p.g.portAt(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the sub-port with the given key.
func (p *Port) Child(key string) (*Port, bool) {
	id, ok := p.g.tree.Child(p.id, key)
	if !ok {
		return nil, false
	}
	c := p.g.portAt(id)
	return c, c != nil
}

// Sub returns the element port of a stream port, or nil.
func (p *Port) Sub() *Port {
	if p.shape != schema.KindStream {
		return nil
	}
	c, _ := p.Child(SubKey)
	return c
}

// Connections returns the ports this port is linked to.
func (p *Port) Connections() []*Port {
	return append([]*Port(nil), p.peers...)
}

// Connected reports whether the port has at least one link.
func (p *Port) Connected() bool { return len(p.peers) > 0 }

// ConnectedTo reports whether p and q are linked.
func (p *Port) ConnectedTo(q *Port) bool {
	for _, peer := range p.peers {
		if peer == q {
			return true
		}
	}
	return false
}

// Generic returns the identifier the port is bound to, if any.
func (p *Port) Generic() (string, bool) {
	if p.binding == nil {
		return "", false
	}
	return p.binding.id, true
}

// Bound reports whether the port or one of its enclosing ports is bound to
// a generic.
func (p *Port) Bound() bool { return p.boundAncestor() != nil }

func (p *Port) boundAncestor() *Port {
	for cur := p; cur != nil; cur = cur.Parent() {
		if cur.binding != nil {
			return cur
		}
	}
	return nil
}

// Type returns the port's current type, rebuilt from its sub-ports.
func (p *Port) Type() schema.Type {
	switch p.shape {
	case schema.KindMap:
		m := &schema.MapType{}
		for _, c := range p.Children() {
			m.Entries = append(m.Entries, schema.E(c.Key(), c.Type()))
		}
		return m
	case schema.KindStream:
		if sub := p.Sub(); sub != nil {
			return schema.Stream(sub.Type())
		}
		return schema.Stream(schema.Unspecified())
	default:
		return schema.Clone(p.leaf)
	}
}

// ConnectedType is the type the port's connections imply. A port under a
// generic reports only what its peers carry, never its own derived type;
// any other port reports its own type when concrete. Unresolved generics
// carry nothing. Unconnected leaves have none; maps and streams report only
// their connected parts.
func (p *Port) ConnectedType() schema.Type {
	if p.boundAncestor() != nil {
		return p.g.observe(p, nil, true)
	}
	if len(p.peers) > 0 {
		if t := p.Type(); schema.IsConcrete(t) {
			return t
		}
		return prune(p.peers[0].Type())
	}
	switch p.shape {
	case schema.KindMap:
		m := &schema.MapType{}
		for _, c := range p.Children() {
			if ct := c.ConnectedType(); ct != nil {
				m.Entries = append(m.Entries, schema.E(c.Key(), ct))
			}
		}
		if len(m.Entries) == 0 {
			return nil
		}
		return m
	case schema.KindStream:
		if sub := p.Sub(); sub != nil {
			if ct := sub.ConnectedType(); ct != nil {
				return schema.Stream(ct)
			}
		}
	}
	return nil
}

// Ghost returns the placeholder entry of a generic map port, creating it on
// first use. Connecting to it with generic expansion adds a named entry.
func (p *Port) Ghost() (*Port, error) {
	if !p.Alive() {
		return nil, fatal("port", "ghost", ErrDestroyed)
	}
	if p.shape != schema.KindMap || p.boundAncestor() == nil {
		return nil, invalid("port", "ghost", fmt.Errorf("%w: %s is not a generic map", ErrShape, p.Path()))
	}
	if id, ok := p.g.tree.Child(p.id, GhostKey); ok {
		return p.g.portAt(id), nil
	}
	ghost := &Port{g: p.g, owner: p.owner, dir: p.dir, shape: schema.KindUnspecified, leaf: schema.Unspecified(), ghost: true}
	id, err := p.g.tree.CreateChild(p.id, GhostKey, ghost)
	if err != nil {
		return nil, fatal("port", "ghost", err)
	}
	ghost.id = id
	return ghost, nil
}

// reconstruct brings the port in line with t. Propagated calls come from a
// generic registry and never change the binding.
func (p *Port) reconstruct(t schema.Type, dir Direction, propagated bool) error {
	if !p.Alive() || p.g.tree.TearingDown(p.id) {
		return nil
	}
	if t == nil {
		t = schema.Unspecified()
	}
	if !propagated && p.binding != nil && schema.IsConcrete(p.Type()) {
		return nil
	}

	top := p.top()
	before := top.Type().String()

	if !propagated {
		if gt, ok := t.(*schema.GenericType); ok {
			if err := p.bind(gt.ID); err != nil {
				return err
			}
			if cur := p.binding.reg.Type(gt.ID); cur != nil {
				t = cur
			}
		} else if p.binding != nil {
			p.unbind()
		}
	}

	p.dir = dir
	if err := p.rebuild(t, dir, propagated); err != nil {
		return err
	}

	if top == p || (propagated && p.binding != nil) {
		if after := top.Type().String(); after != before {
			p.g.emit(TopicTypeChanged, top.id, nodetree.None, after)
		}
	}
	return nil
}

func (p *Port) rebuild(t schema.Type, dir Direction, propagated bool) error {
	if t.Kind() != p.shape {
		for _, c := range p.allChildren() {
			p.g.tree.Destroy(c.id)
		}
		p.shape = t.Kind()
		p.leaf = nil
		switch tt := t.(type) {
		case *schema.MapType:
			for _, e := range tt.Entries {
				if _, err := p.g.createPort(p.id, p.owner, e.Key, dir, e.Type, propagated); err != nil {
					return err
				}
			}
		case *schema.StreamType:
			if _, err := p.g.createPort(p.id, p.owner, SubKey, dir, tt.Sub, propagated); err != nil {
				return err
			}
		default:
			p.leaf = schema.Clone(t)
		}
		return nil
	}

	switch tt := t.(type) {
	case *schema.MapType:
		want := make(map[string]bool, len(tt.Entries))
		for _, e := range tt.Entries {
			want[e.Key] = true
		}
		for _, c := range p.Children() {
			if !want[c.Key()] {
				p.g.tree.Destroy(c.id)
			}
		}
		for _, e := range tt.Entries {
			if c, ok := p.Child(e.Key); ok {
				if err := c.reconstruct(e.Type, dir, propagated); err != nil {
					return err
				}
				continue
			}
			if _, err := p.g.createPort(p.id, p.owner, e.Key, dir, e.Type, propagated); err != nil {
				return err
			}
		}
	case *schema.StreamType:
		if sub := p.Sub(); sub != nil {
			return sub.reconstruct(tt.Sub, dir, propagated)
		}
		_, err := p.g.createPort(p.id, p.owner, SubKey, dir, tt.Sub, propagated)
		return err
	default:
		p.leaf = schema.Clone(t)
	}
	return nil
}

func (p *Port) bind(id string) error {
	reg := p.owner.Generics()
	if reg == nil || !reg.Declared(id) {
		return fatal("port", "bind", fmt.Errorf("%w: %q at %s", ErrUnknownGeneric, id, p.Path()))
	}
	if p.binding != nil {
		if p.binding.id == id {
			return nil
		}
		p.unbind()
	}
	reg.register(id, p)
	p.binding = &binding{reg: reg, id: id}
	return nil
}

func (p *Port) unbind() {
	b := p.binding
	if b == nil {
		return
	}
	p.binding = nil
	b.reg.unregister(b.id, p)
}

func (p *Port) teardown() {
	peers := append([]*Port(nil), p.peers...)
	for _, q := range peers {
		p.g.unlink(p, q)
	}
	for _, q := range peers {
		if !q.Alive() || p.g.tree.TearingDown(q.id) {
			continue
		}
		p.g.settle([]*Port{q})
	}
	if b := p.binding; b != nil {
		p.unbind()
		if !p.g.tree.TearingDown(p.owner.id) {
			b.reg.refresh(b.id)
		}
	}
	p.stream = nil
}
