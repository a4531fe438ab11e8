package flow

import (
	"fmt"

	"github.com/aretw0/loom/pkg/nodetree"
	"github.com/aretw0/loom/pkg/property"
	"github.com/aretw0/loom/pkg/schema"
)

// Kind distinguishes the three blackbox roles.
type Kind int

const (
	KindBlueprint Kind = iota
	KindOperator
	KindDelegate
)

func (k Kind) String() string {
	switch k {
	case KindBlueprint:
		return "blueprint"
	case KindOperator:
		return "operator"
	case KindDelegate:
		return "delegate"
	default:
		return "unknown"
	}
}

// StreamSource reports whether blackboxes of this kind start their own stream
// context. For them the in-port is a source and the out-port a destination.
func (k Kind) StreamSource() bool { return k != KindOperator }

// DelegateTemplate describes one delegate of an operator.
// Name may contain property placeholders.
type DelegateTemplate struct {
	Name string
	In   schema.Type
	Out  schema.Type
}

// Template describes the ports of a blackbox before property expansion.
type Template struct {
	// Name is the definition the blackbox was built from, if any.
	Name string
	// Instance marks Name as a blueprint of the same graph rather than a
	// library definition.
	Instance  bool
	In        schema.Type
	Out       schema.Type
	Delegates []DelegateTemplate
	// Generics holds the fixed part of each generic; nil means fully open.
	Generics   map[string]schema.Type
	Properties schema.Schema
}

// StreamState is the position of a blackbox in the stream reset protocol.
type StreamState int

const (
	StreamStable StreamState = iota
	StreamResetting
	StreamRepropagating
)

func (s StreamState) String() string {
	switch s {
	case StreamResetting:
		return "resetting"
	case StreamRepropagating:
		return "repropagating"
	default:
		return "stable"
	}
}

// Connection is one link between a source and a destination port.
type Connection struct {
	From *Port
	To   *Port
}

// Blackbox is a node owning ports and, for operators, delegates.
type Blackbox struct {
	g        *Graph
	id       nodetree.ID
	kind     Kind
	tpl      Template
	props    map[string]any
	generics *Generics

	state     StreamState
	base      *StreamNode
	root      *StreamNode
	computing bool
}

func (b *Blackbox) node() nodetree.ID     { return b.id }
func (b *Blackbox) asBlackbox() *Blackbox { return b }
func (b *Blackbox) asPort() *Port         { return nil }

func (b *Blackbox) teardown() {
	b.base, b.root = nil, nil
	b.g.logger.Debug("blackbox destroyed", "path", b.Path(), "kind", b.kind)
}

func (g *Graph) newBlackbox(parent nodetree.ID, key string, kind Kind, tpl Template, props map[string]any) (*Blackbox, error) {
	b := &Blackbox{g: g, kind: kind, tpl: tpl}
	if kind != KindDelegate {
		b.generics = newGenerics(b)
	}
	id, err := g.tree.CreateChild(parent, key, b)
	if err != nil {
		return nil, invalid(kind.String(), "create", err)
	}
	b.id = id
	if err := b.ReconstructPorts(props); err != nil {
		g.tree.Destroy(id)
		return nil, err
	}
	g.logger.Debug("blackbox created", "path", b.Path(), "kind", kind, "definition", tpl.Name)
	return b, nil
}

// Kind returns the blackbox role.
func (b *Blackbox) Kind() Kind { return b.kind }

// Key returns the local id of the blackbox.
func (b *Blackbox) Key() string { return b.g.tree.Key(b.id) }

// Path returns the absolute dot-path of the blackbox.
func (b *Blackbox) Path() string { return b.g.tree.Path(b.id) }

// Name returns the definition name from the template.
func (b *Blackbox) Name() string { return b.tpl.Name }

// Template returns the template the blackbox was built from.
func (b *Blackbox) Template() Template { return b.tpl }

// Graph returns the owning graph.
func (b *Blackbox) Graph() *Graph { return b.g }

// Alive reports whether the blackbox has not been destroyed.
func (b *Blackbox) Alive() bool { return b.g.tree.Alive(b.id) }

// StreamState returns the current reset protocol state.
func (b *Blackbox) StreamState() StreamState { return b.state }

// Properties returns a copy of the current property values.
func (b *Blackbox) Properties() map[string]any {
	out := make(map[string]any, len(b.props))
	for k, v := range b.props {
		out[k] = v
	}
	return out
}

// In returns the in-port, or nil.
func (b *Blackbox) In() *Port { return b.port("in") }

// Out returns the out-port, or nil.
func (b *Blackbox) Out() *Port { return b.port("out") }

func (b *Blackbox) port(key string) *Port {
	id, ok := b.g.tree.Child(b.id, key)
	if !ok {
		return nil
	}
	return b.g.portAt(id)
}

// Ports returns the in- and out-port that exist.
func (b *Blackbox) Ports() []*Port {
	var out []*Port
	for _, p := range []*Port{b.In(), b.Out()} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Parent returns the enclosing blackbox: the blueprint of an operator or the
// operator of a delegate. Blueprints have none.
func (b *Blackbox) Parent() *Blackbox {
	return b.g.blackboxAt(b.g.tree.Parent(b.id))
}

// Scope returns the blueprint whose connections this blackbox takes part in.
func (b *Blackbox) Scope() *Blackbox {
	for cur := b; cur != nil; cur = cur.Parent() {
		if cur.kind == KindBlueprint {
			return cur
		}
	}
	return nil
}

// Generics returns the registry of the blackbox. Delegates share the
// registry of their operator.
func (b *Blackbox) Generics() *Generics {
	if b.kind == KindDelegate {
		if p := b.Parent(); p != nil {
			return p.Generics()
		}
	}
	return b.generics
}

// Delegates returns the delegates of an operator in creation order.
func (b *Blackbox) Delegates() []*Blackbox { return b.childBlackboxes(KindDelegate) }

// Delegate returns the named delegate.
func (b *Blackbox) Delegate(name string) (*Blackbox, bool) {
	id, ok := b.g.tree.Child(b.id, name)
	if !ok {
		return nil, false
	}
	d := b.g.blackboxAt(id)
	return d, d != nil && d.kind == KindDelegate
}

// Operators returns the operators of a blueprint in creation order.
func (b *Blackbox) Operators() []*Blackbox { return b.childBlackboxes(KindOperator) }

// Operator returns the operator with the given key.
func (b *Blackbox) Operator(key string) (*Blackbox, bool) {
	id, ok := b.g.tree.Child(b.id, key)
	if !ok {
		return nil, false
	}
	o := b.g.blackboxAt(id)
	return o, o != nil && o.kind == KindOperator
}

func (b *Blackbox) childBlackboxes(kind Kind) []*Blackbox {
	var out []*Blackbox
	for _, id := range b.g.tree.Children(b.id) {
		if c := b.g.blackboxAt(id); c != nil && c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// AddOperator creates an operator inside a blueprint. An empty key gets the
// next numeric local id.
func (b *Blackbox) AddOperator(key string, tpl Template, props map[string]any) (*Blackbox, error) {
	if b.kind != KindBlueprint {
		return nil, invalid(b.kind.String(), "add operator", fmt.Errorf("%w: operators live in blueprints", ErrShape))
	}
	if key == "in" || key == "out" {
		return nil, invalid(b.kind.String(), "add operator", fmt.Errorf("key %q is reserved", key))
	}
	if !b.Alive() {
		return nil, fatal(b.kind.String(), "add operator", ErrDestroyed)
	}
	return b.g.newBlackbox(b.id, key, KindOperator, tpl, props)
}

// Destroy removes the blackbox, its ports and its delegates, disconnecting
// everything attached to them.
func (b *Blackbox) Destroy() {
	b.g.tree.Destroy(b.id)
}

// SetProperties replaces the property values and rebuilds the ports.
func (b *Blackbox) SetProperties(props map[string]any) error {
	return b.ReconstructPorts(props)
}

// ReconstructPorts expands the template with props, reconstructs ports and
// delegates that still exist, destroys the ones that no longer do and creates
// the missing ones.
func (b *Blackbox) ReconstructPorts(props map[string]any) error {
	if !b.Alive() {
		return fatal(b.kind.String(), "reconstruct", ErrDestroyed)
	}
	if len(b.tpl.Properties) > 0 {
		if err := schema.Validate(b.tpl.Properties, props); err != nil {
			return invalid(b.kind.String(), "reconstruct", err)
		}
	}
	assignments := property.Bind(b.tpl.Properties, props)

	if err := b.declareGenerics(); err != nil {
		return err
	}
	if err := b.syncPort("in", In, b.tpl.In, assignments); err != nil {
		return err
	}
	if err := b.syncPort("out", Out, b.tpl.Out, assignments); err != nil {
		return err
	}
	if b.kind == KindOperator {
		if err := b.syncDelegates(assignments); err != nil {
			return err
		}
	}
	b.props = props

	if reg := b.Generics(); reg != nil {
		reg.RefreshAll()
	}
	b.g.ResetStreams(b)
	return nil
}

func (b *Blackbox) declareGenerics() error {
	reg := b.Generics()
	if reg == nil {
		return fatal(b.kind.String(), "declare generics", fmt.Errorf("%w: no registry", ErrUnknownGeneric))
	}
	for id, fixed := range b.tpl.Generics {
		reg.Declare(id, fixed)
	}
	types := []schema.Type{b.tpl.In, b.tpl.Out}
	for _, d := range b.tpl.Delegates {
		types = append(types, d.In, d.Out)
	}
	for _, t := range types {
		for _, id := range schema.Generics(t) {
			reg.Declare(id, nil)
		}
	}
	return nil
}

func (b *Blackbox) syncPort(key string, dir Direction, decl schema.Type, assignments property.Assignments) error {
	existing := b.port(key)
	if decl == nil {
		if existing != nil {
			b.g.tree.Destroy(existing.id)
		}
		return nil
	}
	t := property.ExpandType(decl, assignments)
	if existing != nil {
		return existing.reconstruct(t, dir, false)
	}
	_, err := b.g.createPort(b.id, b, key, dir, t, false)
	return err
}

func (b *Blackbox) syncDelegates(assignments property.Assignments) error {
	wanted := make(map[string]DelegateTemplate)
	var order []string
	for _, d := range b.tpl.Delegates {
		for _, name := range property.Expand(d.Name, assignments) {
			if name == "in" || name == "out" {
				return invalid(b.kind.String(), "reconstruct", fmt.Errorf("delegate name %q is reserved", name))
			}
			if _, dup := wanted[name]; !dup {
				order = append(order, name)
			}
			wanted[name] = DelegateTemplate{
				Name: name,
				In:   property.ExpandType(d.In, assignments),
				Out:  property.ExpandType(d.Out, assignments),
			}
		}
	}

	for _, d := range b.Delegates() {
		if _, keep := wanted[d.Key()]; !keep {
			d.Destroy()
		}
	}

	for _, name := range order {
		tpl := wanted[name]
		if d, ok := b.Delegate(name); ok {
			d.tpl.In, d.tpl.Out = tpl.In, tpl.Out
			if err := d.ReconstructPorts(nil); err != nil {
				return err
			}
			continue
		}
		if _, err := b.g.newBlackbox(b.id, name, KindDelegate, Template{Name: name, In: tpl.In, Out: tpl.Out}, nil); err != nil {
			return err
		}
	}
	return nil
}

// FindPort resolves a port path relative to the blackbox, e.g. "op1.in.a"
// from a blueprint or "in.a" from an operator.
func (b *Blackbox) FindPort(path string) (*Port, error) {
	id, err := b.g.tree.Find(b.id, path)
	if err != nil {
		return nil, fmt.Errorf("port %q in %q: %w", path, b.Path(), ErrNotFound)
	}
	p := b.g.portAt(id)
	if p == nil {
		return nil, fmt.Errorf("%q in %q is not a port: %w", path, b.Path(), ErrNotFound)
	}
	return p, nil
}

// ConnectPaths connects two ports given by paths relative to the blackbox.
func (b *Blackbox) ConnectPaths(from, to string, allowGenericExpansion bool) error {
	src, err := b.FindPort(from)
	if err != nil {
		return err
	}
	dst, err := b.FindPort(to)
	if err != nil {
		return err
	}
	return src.Connect(dst, allowGenericExpansion)
}

// DisconnectPaths removes the link between two ports given by relative paths.
func (b *Blackbox) DisconnectPaths(from, to string) error {
	src, err := b.FindPort(from)
	if err != nil {
		return err
	}
	dst, err := b.FindPort(to)
	if err != nil {
		return err
	}
	src.DisconnectFrom(dst)
	return nil
}

// Rel returns the path of p relative to the blackbox.
func (b *Blackbox) Rel(p *Port) string { return b.g.relPath(b.id, p.id) }

// Connections lists every link whose source port lies inside the blackbox,
// in tree order. For a blueprint this is every connection of its scope.
func (b *Blackbox) Connections() []Connection {
	var out []Connection
	b.g.tree.Walk(b.id, func(id nodetree.ID) bool {
		p := b.g.portAt(id)
		if p == nil || !p.IsSource() {
			return true
		}
		for _, peer := range p.peers {
			out = append(out, Connection{From: p, To: peer})
		}
		return true
	})
	return out
}

// Subscribe receives events raised by the blackbox or anything it owns.
func (b *Blackbox) Subscribe(topic Topic, h Handler) func() {
	return b.g.subscribe(b.id, topic, h)
}

// sourcePort is the port data leaves through; destinationPort the one it
// arrives through.
func (b *Blackbox) sourcePort() *Port {
	if b.kind.StreamSource() {
		return b.In()
	}
	return b.Out()
}

func (b *Blackbox) destinationPort() *Port {
	if b.kind.StreamSource() {
		return b.Out()
	}
	return b.In()
}
