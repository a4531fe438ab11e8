package schema

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of a Type.
type Kind int

const (
	KindUnspecified Kind = iota
	KindPrimitive
	KindTrigger
	KindGeneric
	KindStream
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindUnspecified:
		return "unspecified"
	case KindPrimitive:
		return "primitive"
	case KindTrigger:
		return "trigger"
	case KindGeneric:
		return "generic"
	case KindStream:
		return "stream"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PrimitiveKind narrows a primitive type. AnyPrimitive accepts every other kind.
type PrimitiveKind int

const (
	AnyPrimitive PrimitiveKind = iota
	StringKind
	NumberKind
	BooleanKind
)

func (p PrimitiveKind) String() string {
	switch p {
	case StringKind:
		return "string"
	case NumberKind:
		return "number"
	case BooleanKind:
		return "boolean"
	default:
		return "primitive"
	}
}

// Type defines the contract shared by every port type.
// The set of implementations is closed: UnspecifiedType, PrimitiveType,
// TriggerType, GenericType, StreamType and MapType.
type Type interface {
	// Kind returns the shape tag of the type.
	Kind() Kind
	// String returns the textual form accepted by Parse.
	String() string

	sealed()
}

// --- Variants ---

// UnspecifiedType is the type of a port nobody has described yet.
type UnspecifiedType struct{}

func (t *UnspecifiedType) Kind() Kind     { return KindUnspecified }
func (t *UnspecifiedType) String() string { return "unspecified" }
func (t *UnspecifiedType) sealed()        {}

// PrimitiveType is a scalar value.
type PrimitiveType struct {
	Of PrimitiveKind
}

func (t *PrimitiveType) Kind() Kind     { return KindPrimitive }
func (t *PrimitiveType) String() string { return t.Of.String() }
func (t *PrimitiveType) sealed()        {}

// TriggerType carries no value, only the fact that something happened.
type TriggerType struct{}

func (t *TriggerType) Kind() Kind     { return KindTrigger }
func (t *TriggerType) String() string { return "trigger" }
func (t *TriggerType) sealed()        {}

// GenericType is a placeholder resolved per blackbox from connection usage.
type GenericType struct {
	ID string
}

func (t *GenericType) Kind() Kind     { return KindGeneric }
func (t *GenericType) String() string { return "<" + t.ID + ">" }
func (t *GenericType) sealed()        {}

// StreamType is a repetition of Sub.
type StreamType struct {
	Sub Type
}

func (t *StreamType) Kind() Kind { return KindStream }

func (t *StreamType) String() string {
	if t.Sub == nil {
		return "[unspecified]"
	}
	return "[" + t.Sub.String() + "]"
}

func (t *StreamType) sealed() {}

// Entry is one named member of a MapType.
type Entry struct {
	Key  string
	Type Type
}

// MapType is a record of named members. Entry order is preserved.
type MapType struct {
	Entries []Entry
}

func (t *MapType) Kind() Kind { return KindMap }

func (t *MapType) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range t.Entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatKey(e.Key))
		sb.WriteString(": ")
		if e.Type == nil {
			sb.WriteString("unspecified")
		} else {
			sb.WriteString(e.Type.String())
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

func (t *MapType) sealed() {}

// Get returns the type stored under key.
func (t *MapType) Get(key string) (Type, bool) {
	for _, e := range t.Entries {
		if e.Key == key {
			return e.Type, true
		}
	}
	return nil, false
}

// Keys returns the entry keys in declaration order.
func (t *MapType) Keys() []string {
	keys := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		keys[i] = e.Key
	}
	return keys
}

// --- Factory Functions ---

// Unspecified creates the unspecified type.
func Unspecified() Type { return &UnspecifiedType{} }

// Primitive creates a primitive type accepting any scalar.
func Primitive() Type { return &PrimitiveType{Of: AnyPrimitive} }

// String creates a string type.
func String() Type { return &PrimitiveType{Of: StringKind} }

// Number creates a number type.
func Number() Type { return &PrimitiveType{Of: NumberKind} }

// Boolean creates a boolean type.
func Boolean() Type { return &PrimitiveType{Of: BooleanKind} }

// Trigger creates a trigger type.
func Trigger() Type { return &TriggerType{} }

// Generic creates a generic placeholder with the given identifier.
func Generic(id string) Type { return &GenericType{ID: id} }

// Stream creates a stream of sub.
func Stream(sub Type) Type { return &StreamType{Sub: sub} }

// Map creates a map type from entries, keeping their order.
func Map(entries ...Entry) Type {
	return &MapType{Entries: append([]Entry(nil), entries...)}
}

// E is shorthand for an Entry literal.
func E(key string, t Type) Entry { return Entry{Key: key, Type: t} }

// --- Structural helpers ---

// Equal reports whether a and b describe the same type. Map entry order matters.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch at := a.(type) {
	case *UnspecifiedType:
		_, ok := b.(*UnspecifiedType)
		return ok
	case *TriggerType:
		_, ok := b.(*TriggerType)
		return ok
	case *PrimitiveType:
		bt, ok := b.(*PrimitiveType)
		return ok && at.Of == bt.Of
	case *GenericType:
		bt, ok := b.(*GenericType)
		return ok && at.ID == bt.ID
	case *StreamType:
		bt, ok := b.(*StreamType)
		return ok && Equal(at.Sub, bt.Sub)
	case *MapType:
		bt, ok := b.(*MapType)
		if !ok || len(at.Entries) != len(bt.Entries) {
			return false
		}
		for i := range at.Entries {
			if at.Entries[i].Key != bt.Entries[i].Key || !Equal(at.Entries[i].Type, bt.Entries[i].Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy of t.
func Clone(t Type) Type {
	switch tt := t.(type) {
	case nil:
		return nil
	case *UnspecifiedType:
		return Unspecified()
	case *TriggerType:
		return Trigger()
	case *PrimitiveType:
		return &PrimitiveType{Of: tt.Of}
	case *GenericType:
		return Generic(tt.ID)
	case *StreamType:
		return Stream(Clone(tt.Sub))
	case *MapType:
		entries := make([]Entry, len(tt.Entries))
		for i, e := range tt.Entries {
			entries[i] = Entry{Key: e.Key, Type: Clone(e.Type)}
		}
		return &MapType{Entries: entries}
	}
	panic(fmt.Sprintf("schema: unknown type %T", t))
}

// IsConcrete reports whether t contains neither generics nor unspecified parts.
func IsConcrete(t Type) bool {
	switch tt := t.(type) {
	case nil, *UnspecifiedType, *GenericType:
		return false
	case *StreamType:
		return IsConcrete(tt.Sub)
	case *MapType:
		for _, e := range tt.Entries {
			if !IsConcrete(e.Type) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Generics returns the generic identifiers referenced by t, in first-seen order.
func Generics(t Type) []string {
	var ids []string
	seen := make(map[string]bool)
	var walk func(Type)
	walk = func(t Type) {
		switch tt := t.(type) {
		case *GenericType:
			if !seen[tt.ID] {
				seen[tt.ID] = true
				ids = append(ids, tt.ID)
			}
		case *StreamType:
			walk(tt.Sub)
		case *MapType:
			for _, e := range tt.Entries {
				walk(e.Type)
			}
		}
	}
	walk(t)
	return ids
}

// Compatible reports whether a value of type src may flow into dst.
// Trigger destinations accept anything; primitives match within their family;
// every destination map key must exist in the source with a compatible type.
func Compatible(src, dst Type) bool {
	if src == nil || dst == nil {
		return false
	}
	switch d := dst.(type) {
	case *TriggerType:
		return true
	case *PrimitiveType:
		s, ok := src.(*PrimitiveType)
		if !ok {
			return false
		}
		return d.Of == AnyPrimitive || s.Of == AnyPrimitive || d.Of == s.Of
	case *MapType:
		s, ok := src.(*MapType)
		if !ok {
			return false
		}
		for _, e := range d.Entries {
			st, ok := s.Get(e.Key)
			if !ok || !Compatible(st, e.Type) {
				return false
			}
		}
		return true
	case *StreamType:
		s, ok := src.(*StreamType)
		return ok && Compatible(s.Sub, d.Sub)
	case *GenericType:
		s, ok := src.(*GenericType)
		return ok && s.ID == d.ID
	case *UnspecifiedType:
		_, ok := src.(*UnspecifiedType)
		return ok
	}
	return false
}

// Equivalent is like Equal but ignores map entry order.
func Equivalent(a, b Type) bool {
	am, aok := a.(*MapType)
	bm, bok := b.(*MapType)
	if !aok || !bok {
		as, asok := a.(*StreamType)
		bs, bsok := b.(*StreamType)
		if asok && bsok {
			return Equivalent(as.Sub, bs.Sub)
		}
		return Equal(a, b)
	}
	if len(am.Entries) != len(bm.Entries) {
		return false
	}
	for _, e := range am.Entries {
		other, ok := bm.Get(e.Key)
		if !ok || !Equivalent(e.Type, other) {
			return false
		}
	}
	return true
}
