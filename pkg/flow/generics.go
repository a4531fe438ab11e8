package flow

import (
	"fmt"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/schema"
)

// maxRefreshPasses bounds how often a resolution re-runs after the ports it
// rebuilt asked for another one.
const maxRefreshPasses = 8

type genericEntry struct {
	fixed   schema.Type
	current schema.Type
	ports   []*Port
}

// genericKey names one identifier of one registry.
type genericKey struct {
	reg *Generics
	id  string
}

// Generics unifies the type of each generic identifier of a blackbox across
// every port bound to it.
type Generics struct {
	owner   *Blackbox
	entries map[string]*genericEntry
	order   []string
}

func newGenerics(owner *Blackbox) *Generics {
	return &Generics{owner: owner, entries: make(map[string]*genericEntry)}
}

// Declare registers id with an optional fixed part. Redeclaring keeps the
// existing entry.
func (r *Generics) Declare(id string, fixed schema.Type) {
	if _, ok := r.entries[id]; ok {
		return
	}
	r.entries[id] = &genericEntry{fixed: schema.Clone(fixed), current: schema.Clone(fixed)}
	r.order = append(r.order, id)
}

// Declared reports whether id is known to the registry.
func (r *Generics) Declared(id string) bool {
	_, ok := r.entries[id]
	return ok
}

// Identifiers returns the declared identifiers in declaration order.
func (r *Generics) Identifiers() []string {
	return append([]string(nil), r.order...)
}

// Fixed returns the fixed part of id, or nil.
func (r *Generics) Fixed(id string) schema.Type {
	if e, ok := r.entries[id]; ok {
		return schema.Clone(e.fixed)
	}
	return nil
}

// Type returns the last published type of id, or nil while unresolved.
func (r *Generics) Type(id string) schema.Type {
	if e, ok := r.entries[id]; ok {
		return schema.Clone(e.current)
	}
	return nil
}

// Ports returns the ports bound to id.
func (r *Generics) Ports(id string) []*Port {
	if e, ok := r.entries[id]; ok {
		return append([]*Port(nil), e.ports...)
	}
	return nil
}

// UnifiedType merges the fixed part of id with the connected type of every
// bound port. Observations that cannot be merged are skipped.
func (r *Generics) UnifiedType(id string) schema.Type {
	if _, ok := r.entries[id]; !ok {
		return nil
	}
	return r.unify(id, nil)
}

// unify folds the observations of id's ports into its fixed part. With a
// view, peers bound to generics are read from the view instead of their
// live ports.
func (r *Generics) unify(id string, view map[genericKey]schema.Type) schema.Type {
	e := r.entries[id]
	t := schema.Clone(e.fixed)
	for _, p := range e.ports {
		obs := r.owner.g.observe(p, view, true)
		if obs == nil {
			continue
		}
		u, err := schema.Union(t, obs)
		if err != nil {
			r.owner.g.logger.Warn("generic observation skipped", "generic", id, "port", p.Path(), "error", err)
			continue
		}
		t = u
	}
	return t
}

// Specify publishes t as the type of id. Bound ports are reconstructed and a
// GenericsChanged event is raised on the owner, but only when t differs from
// the current type.
func (r *Generics) Specify(id string, t schema.Type) error {
	e, ok := r.entries[id]
	if !ok {
		return fatal("generics", "specify", fmt.Errorf("%w: %q", ErrUnknownGeneric, id))
	}
	if schema.Equal(e.current, t) {
		return nil
	}
	e.current = schema.Clone(t)

	target := t
	if target == nil {
		target = schema.Generic(id)
	}
	for _, p := range append([]*Port(nil), e.ports...) {
		before := p.Type().String()
		if err := p.reconstruct(target, p.dir, true); err != nil {
			return err
		}
		if p.Type().String() != before {
			r.refreshPeers(p)
		}
	}

	r.owner.g.logger.Debug("generic specified", "owner", r.owner.Path(), "generic", id, "type", describe(t))
	r.owner.g.emit(TopicGenericsChanged, r.owner.id, nodetree.None, id)
	return nil
}

// refresh re-derives id together with every generic linked to it.
func (r *Generics) refresh(id string) {
	if _, ok := r.entries[id]; !ok {
		return
	}
	r.owner.g.resolve([]genericKey{{r, id}})
}

// RefreshAll re-derives every identifier.
func (r *Generics) RefreshAll() {
	keys := make([]genericKey, 0, len(r.order))
	for _, id := range r.order {
		keys = append(keys, genericKey{r, id})
	}
	r.owner.g.resolve(keys)
}

// refreshPeers lets the registries on the far side of p's links observe
// p's new type.
func (r *Generics) refreshPeers(p *Port) {
	g := r.owner.g
	var keys []genericKey
	g.tree.Walk(p.id, func(id nodetree.ID) bool {
		if q := g.portAt(id); q != nil {
			for _, peer := range q.peers {
				if peer.Alive() {
					keys = append(keys, boundKeys(g, peer)...)
				}
			}
		}
		return true
	})
	if len(keys) > 0 {
		g.resolve(keys)
	}
}

func (r *Generics) register(id string, p *Port) {
	if e, ok := r.entries[id]; ok {
		e.ports = append(e.ports, p)
	}
}

func (r *Generics) unregister(id string, p *Port) {
	if e, ok := r.entries[id]; ok {
		e.ports = remove(e.ports, p)
	}
}

// resolve recomputes the generics linked to keys from their fixed parts.
// Only types entering the linked group from ports outside any generic count
// as evidence, so generics of chained operators cannot keep each other
// resolved. Requests raised while publishing are queued and resolved in a
// further pass.
func (g *Graph) resolve(keys []genericKey) {
	if g.resolving {
		g.pending = append(g.pending, keys...)
		return
	}
	g.resolving = true
	defer func() {
		g.resolving = false
		g.pending = nil
	}()

	for pass := 0; len(keys) > 0; pass++ {
		if pass == maxRefreshPasses {
			g.logger.Warn("generic resolution did not settle", "pending", len(keys))
			return
		}
		group := g.linkedGenerics(keys)
		types := g.fixpoint(group)
		for _, k := range group {
			if !k.reg.owner.Alive() || g.tree.TearingDown(k.reg.owner.id) {
				continue
			}
			if err := k.reg.Specify(k.id, types[k]); err != nil {
				g.logger.Error("generic refresh failed", "owner", k.reg.owner.Path(), "generic", k.id, "error", err)
			}
		}
		keys, g.pending = g.pending, nil
	}
}

// linkedGenerics returns keys plus every generic reachable from them through
// links between bound ports.
func (g *Graph) linkedGenerics(keys []genericKey) []genericKey {
	seen := make(map[genericKey]bool)
	var out []genericKey
	queue := append([]genericKey(nil), keys...)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		e, ok := k.reg.entries[k.id]
		if !ok || seen[k] || !k.reg.owner.Alive() {
			continue
		}
		seen[k] = true
		out = append(out, k)
		for _, p := range e.ports {
			g.tree.Walk(p.id, func(id nodetree.ID) bool {
				if q := g.portAt(id); q != nil {
					for _, peer := range q.peers {
						queue = append(queue, boundKeys(g, peer)...)
					}
				}
				return true
			})
		}
	}
	return out
}

// fixpoint grows every generic of group from its fixed part until no
// observation adds anything.
func (g *Graph) fixpoint(group []genericKey) map[genericKey]schema.Type {
	types := make(map[genericKey]schema.Type, len(group))
	for _, k := range group {
		types[k] = k.reg.Fixed(k.id)
	}
	for pass := 0; pass < maxRefreshPasses+len(group); pass++ {
		changed := false
		for _, k := range group {
			t := k.reg.unify(k.id, types)
			if !schema.Equal(t, types[k]) {
				types[k] = t
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return types
}

// observe is what p's links say about a port under a generic. Connected
// entries without evidence still report unspecified so that they survive
// the rebuild; at the top nothing is reported instead.
func (g *Graph) observe(p *Port, view map[genericKey]schema.Type, top bool) schema.Type {
	if len(p.peers) > 0 {
		var t schema.Type
		for _, q := range p.peers {
			ev := g.evidence(q, view)
			if ev == nil {
				continue
			}
			if u, err := schema.Union(t, ev); err == nil {
				t = u
			}
		}
		if t == nil && !top {
			return schema.Unspecified()
		}
		return t
	}
	var t schema.Type
	switch p.shape {
	case schema.KindMap:
		m := &schema.MapType{}
		for _, c := range p.Children() {
			if ct := g.observe(c, view, false); ct != nil {
				m.Entries = append(m.Entries, schema.E(c.Key(), ct))
			}
		}
		if len(m.Entries) > 0 {
			t = m
		}
	case schema.KindStream:
		if sub := p.Sub(); sub != nil {
			if ct := g.observe(sub, view, false); ct != nil {
				t = schema.Stream(ct)
			}
		}
	}
	if top && vacant(t) {
		return nil
	}
	return t
}

// evidence is the part of q's type that does not depend on an unresolved
// generic.
func (g *Graph) evidence(q *Port, view map[genericKey]schema.Type) schema.Type {
	if !q.Alive() {
		return nil
	}
	return prune(g.viewType(q, view))
}

// viewType is q's type with every bound part taken from view.
func (g *Graph) viewType(q *Port, view map[genericKey]schema.Type) schema.Type {
	if view == nil {
		return q.Type()
	}
	if b := q.boundAncestor(); b != nil {
		if t, ok := view[genericKey{b.binding.reg, b.binding.id}]; ok {
			return typeAt(t, relKeys(b, q))
		}
	}
	switch q.shape {
	case schema.KindMap:
		m := &schema.MapType{}
		for _, c := range q.Children() {
			if ct := g.viewType(c, view); ct != nil {
				m.Entries = append(m.Entries, schema.E(c.Key(), ct))
			}
		}
		return m
	case schema.KindStream:
		if sub := q.Sub(); sub != nil {
			if st := g.viewType(sub, view); st != nil {
				return schema.Stream(st)
			}
		}
		return nil
	}
	return q.Type()
}

// boundKeys lists the generics q takes part in: the one above it and any
// bound inside it.
func boundKeys(g *Graph, q *Port) []genericKey {
	var keys []genericKey
	if b := q.boundAncestor(); b != nil {
		keys = append(keys, genericKey{b.binding.reg, b.binding.id})
	}
	g.tree.Walk(q.id, func(id nodetree.ID) bool {
		if d := g.portAt(id); d != nil && d != q && d.binding != nil {
			keys = append(keys, genericKey{d.binding.reg, d.binding.id})
		}
		return true
	})
	return keys
}

func relKeys(from, to *Port) []string {
	var keys []string
	for cur := to; cur != nil && cur != from; cur = cur.Parent() {
		keys = append([]string{cur.Key()}, keys...)
	}
	return keys
}

func typeAt(t schema.Type, keys []string) schema.Type {
	for _, k := range keys {
		switch tt := t.(type) {
		case *schema.StreamType:
			if k != SubKey {
				return nil
			}
			t = tt.Sub
		case *schema.MapType:
			sub, ok := tt.Get(k)
			if !ok {
				return nil
			}
			t = sub
		default:
			return nil
		}
	}
	return t
}

// prune drops unspecified and generic parts. Maps survive with whatever
// entries remain; other shapes vanish with their contents.
func prune(t schema.Type) schema.Type {
	switch tt := t.(type) {
	case nil, *schema.UnspecifiedType, *schema.GenericType:
		return nil
	case *schema.StreamType:
		if sub := prune(tt.Sub); sub != nil {
			return schema.Stream(sub)
		}
		return nil
	case *schema.MapType:
		m := &schema.MapType{}
		for _, e := range tt.Entries {
			if sub := prune(e.Type); sub != nil {
				m.Entries = append(m.Entries, schema.E(e.Key, sub))
			}
		}
		return m
	}
	return schema.Clone(t)
}

func vacant(t schema.Type) bool {
	switch tt := t.(type) {
	case nil, *schema.UnspecifiedType:
		return true
	case *schema.StreamType:
		return vacant(tt.Sub)
	}
	return false
}

func describe(t schema.Type) string {
	if t == nil {
		return "unresolved"
	}
	return t.String()
}
