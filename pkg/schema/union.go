package schema

import (
	"errors"
	"fmt"
)

// ErrIncompatible is returned by Union when two types cannot be unified.
var ErrIncompatible = errors.New("incompatible types")

// Union merges two observations of the same generic.
// nil and unspecified are identities. Maps merge by key, streams merge their subs,
// generics must share an identifier and everything else must match exactly.
func Union(a, b Type) (Type, error) {
	if a == nil {
		return Clone(b), nil
	}
	if b == nil {
		return Clone(a), nil
	}
	if a.Kind() == KindUnspecified {
		return Clone(b), nil
	}
	if b.Kind() == KindUnspecified {
		return Clone(a), nil
	}

	switch at := a.(type) {
	case *MapType:
		bt, ok := b.(*MapType)
		if !ok {
			break
		}
		out := &MapType{}
		index := make(map[string]int)
		for _, e := range at.Entries {
			if e.Type == nil {
				continue
			}
			index[e.Key] = len(out.Entries)
			out.Entries = append(out.Entries, Entry{Key: e.Key, Type: Clone(e.Type)})
		}
		for _, e := range bt.Entries {
			if e.Type == nil {
				continue
			}
			i, exists := index[e.Key]
			if !exists {
				index[e.Key] = len(out.Entries)
				out.Entries = append(out.Entries, Entry{Key: e.Key, Type: Clone(e.Type)})
				continue
			}
			merged, err := Union(out.Entries[i].Type, e.Type)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", e.Key, err)
			}
			out.Entries[i].Type = merged
		}
		return out, nil
	case *StreamType:
		bt, ok := b.(*StreamType)
		if !ok {
			break
		}
		sub, err := Union(at.Sub, bt.Sub)
		if err != nil {
			return nil, err
		}
		return Stream(sub), nil
	case *GenericType:
		bt, ok := b.(*GenericType)
		if ok && at.ID == bt.ID {
			return Generic(at.ID), nil
		}
	default:
		if Equal(a, b) {
			return Clone(a), nil
		}
	}
	return nil, fmt.Errorf("%w: %s and %s", ErrIncompatible, a, b)
}

// UnionAll folds Union over ts. The result does not depend on the order of ts
// except for map entry order.
func UnionAll(ts ...Type) (Type, error) {
	var acc Type
	for _, t := range ts {
		var err error
		if acc, err = Union(acc, t); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
