// Package nodetree implements an arena-indexed ownership tree.
//
// Nodes are addressed by ID, an index into the arena that is never reused, so
// a stale ID of a destroyed node stays safe to query. Each node has a local id
// (a key, or the next value of its parent's monotonic counter) and a dot-path
// identity built from the local ids of its ancestors.
//
// The tree owns a single event bus. Subscriptions are anchored on a node and
// receive every event raised by that node or any of its descendants: Emit
// walks up the parent index at emit time, so creating descendants never
// installs new subscriptions.
package nodetree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ID indexes a node in the arena.
type ID int

// None is the parent of root nodes.
const None ID = -1

var (
	// ErrNotFound is returned when a path or ID does not resolve to a live node.
	ErrNotFound = errors.New("node not found")
	// ErrDestroyed is returned when mutating a destroyed or tearing-down node.
	ErrDestroyed = errors.New("node destroyed")
	// ErrDuplicateKey is returned when a live sibling already uses a key.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidKey is returned for keys containing the path separator.
	ErrInvalidKey = errors.New("invalid key")
)

// Separator joins local ids into a path.
const Separator = "."

type record[T any] struct {
	local      string
	parent     ID
	children   []ID
	counter    int
	value      T
	destroying bool
	destroyed  bool
}

// Tree is an arena of nodes carrying values of type T.
// It is not safe for concurrent use.
type Tree[T any] struct {
	nodes     []*record[T]
	subs      map[ID][]*subscription
	nextSub   int
	finalizer func(ID, T)
}

// Option configures a Tree.
type Option[T any] func(*Tree[T])

// WithFinalizer registers fn to run for every destroyed node, after its
// children are gone and before its Destroyed event.
func WithFinalizer[T any](fn func(ID, T)) Option[T] {
	return func(t *Tree[T]) {
		t.finalizer = fn
	}
}

// New creates an empty tree.
func New[T any](opts ...Option[T]) *Tree[T] {
	t := &Tree[T]{subs: make(map[ID][]*subscription)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewRoot adds a parentless node.
func (t *Tree[T]) NewRoot(key string, value T) ID {
	id := ID(len(t.nodes))
	t.nodes = append(t.nodes, &record[T]{local: key, parent: None, value: value})
	return id
}

// CreateChild allocates a node under parent. An empty key is replaced by the
// parent's next counter value not used by a live sibling. The counter
// advances on every creation.
func (t *Tree[T]) CreateChild(parent ID, key string, value T) (ID, error) {
	p := t.rec(parent)
	if p == nil {
		return None, fmt.Errorf("%w: parent %d", ErrNotFound, parent)
	}
	if p.destroyed || p.destroying {
		return None, fmt.Errorf("%w: parent %q", ErrDestroyed, t.Path(parent))
	}
	if strings.Contains(key, Separator) {
		return None, fmt.Errorf("%w: %q contains %q", ErrInvalidKey, key, Separator)
	}

	p.counter++
	if key == "" {
		key = strconv.Itoa(p.counter)
		for _, taken := t.Child(parent, key); taken; _, taken = t.Child(parent, key) {
			p.counter++
			key = strconv.Itoa(p.counter)
		}
	}
	if _, taken := t.Child(parent, key); taken {
		return None, fmt.Errorf("%w: %q under %q", ErrDuplicateKey, key, t.Path(parent))
	}

	id := ID(len(t.nodes))
	t.nodes = append(t.nodes, &record[T]{local: key, parent: parent, value: value})
	p.children = append(p.children, id)

	t.Emit(Event{Topic: ChildCreated, Origin: id, Parent: parent})
	return id, nil
}

// Destroy tears down id and its descendants depth-first. Calling it again,
// or on a node already being torn down, does nothing.
func (t *Tree[T]) Destroy(id ID) {
	r := t.rec(id)
	if r == nil || r.destroyed || r.destroying {
		return
	}
	r.destroying = true

	children := append([]ID(nil), r.children...)
	for i := len(children) - 1; i >= 0; i-- {
		t.Destroy(children[i])
	}

	if t.finalizer != nil {
		t.finalizer(id, r.value)
	}
	t.Emit(Event{Topic: Destroyed, Origin: id, Parent: r.parent})

	r.destroying = false
	r.destroyed = true
	if p := t.rec(r.parent); p != nil {
		for i, c := range p.children {
			if c == id {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	delete(t.subs, id)
}

// Alive reports whether id refers to a node that has not been destroyed.
func (t *Tree[T]) Alive(id ID) bool {
	r := t.rec(id)
	return r != nil && !r.destroyed
}

// TearingDown reports whether id or one of its ancestors is being destroyed.
func (t *Tree[T]) TearingDown(id ID) bool {
	for cur := id; cur != None; {
		r := t.rec(cur)
		if r == nil {
			return false
		}
		if r.destroying || r.destroyed {
			return true
		}
		cur = r.parent
	}
	return false
}

// Value returns the value stored at id.
func (t *Tree[T]) Value(id ID) (T, bool) {
	r := t.rec(id)
	if r == nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Parent returns the parent of id, or None.
func (t *Tree[T]) Parent(id ID) ID {
	if r := t.rec(id); r != nil {
		return r.parent
	}
	return None
}

// Key returns the local id of a node.
func (t *Tree[T]) Key(id ID) string {
	if r := t.rec(id); r != nil {
		return r.local
	}
	return ""
}

// Children returns the live children of id in creation order.
func (t *Tree[T]) Children(id ID) []ID {
	r := t.rec(id)
	if r == nil {
		return nil
	}
	return append([]ID(nil), r.children...)
}

// Child returns the live child of id with the given local id.
func (t *Tree[T]) Child(id ID, key string) (ID, bool) {
	r := t.rec(id)
	if r == nil {
		return None, false
	}
	for _, c := range r.children {
		if t.nodes[c].local == key && !t.nodes[c].destroyed {
			return c, true
		}
	}
	return None, false
}

// Path returns the dot-path identity of id.
func (t *Tree[T]) Path(id ID) string {
	var parts []string
	for cur := id; cur != None; {
		r := t.rec(cur)
		if r == nil {
			break
		}
		if r.local != "" {
			parts = append(parts, r.local)
		}
		cur = r.parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, Separator)
}

// Find resolves a dot-path relative to from. A path that starts with the
// identity of from is accepted as well.
func (t *Tree[T]) Find(from ID, path string) (ID, error) {
	if !t.Alive(from) {
		return None, fmt.Errorf("%w: %d", ErrNotFound, from)
	}
	own := t.Path(from)
	switch {
	case path == "" || path == own:
		return from, nil
	case own != "" && strings.HasPrefix(path, own+Separator):
		path = strings.TrimPrefix(path, own+Separator)
	}

	cur := from
	for _, seg := range strings.Split(path, Separator) {
		next, ok := t.Child(cur, seg)
		if !ok {
			return None, fmt.Errorf("%w: %q under %q", ErrNotFound, seg, t.Path(cur))
		}
		cur = next
	}
	return cur, nil
}

// WalkUp calls fn for id and each of its ancestors until fn returns false.
func (t *Tree[T]) WalkUp(id ID, fn func(ID) bool) {
	for cur := id; cur != None; {
		r := t.rec(cur)
		if r == nil || !fn(cur) {
			return
		}
		cur = r.parent
	}
}

// Walk calls fn for id and its live descendants, depth-first pre-order.
// Returning false skips the node's subtree.
func (t *Tree[T]) Walk(id ID, fn func(ID) bool) {
	r := t.rec(id)
	if r == nil || r.destroyed || !fn(id) {
		return
	}
	for _, c := range append([]ID(nil), r.children...) {
		t.Walk(c, fn)
	}
}

// Len returns the number of live nodes.
func (t *Tree[T]) Len() int {
	n := 0
	for _, r := range t.nodes {
		if !r.destroyed {
			n++
		}
	}
	return n
}

func (t *Tree[T]) rec(id ID) *record[T] {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}
