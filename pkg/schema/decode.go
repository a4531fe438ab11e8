package schema

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/mitchellh/mapstructure"
)

var (
	exprType   = reflect.TypeOf(Expr{})
	schemaType = reflect.TypeOf(Schema{})
)

// DecodeHook lets mapstructure fill Expr and Schema fields from loosely typed
// data such as YAML frontmatter. Map keys arriving as a Go map lose their
// original order and are sorted.
func DecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		switch to {
		case exprType:
			t, err := typeFromAny(data)
			if err != nil {
				return nil, err
			}
			return Expr{Type: t}, nil
		case schemaType:
			raw, ok := data.(map[string]any)
			if !ok {
				return data, nil
			}
			out := make(Schema, len(raw))
			for key, v := range raw {
				t, err := typeFromAny(v)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", key, err)
				}
				if t == nil {
					t = Unspecified()
				}
				out[key] = t
			}
			return out, nil
		}
		return data, nil
	}
}

func typeFromAny(data any) (Type, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case Expr:
		return v.Type, nil
	case string:
		return ParseType(v)
	case []any:
		if len(v) != 1 {
			return nil, fmt.Errorf("stream: expected exactly one element type, got %d", len(v))
		}
		sub, err := typeFromAny(v[0])
		if err != nil {
			return nil, err
		}
		return Stream(sub), nil
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := &MapType{}
		for _, k := range keys {
			sub, err := typeFromAny(v[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			if sub == nil {
				sub = Unspecified()
			}
			m.Entries = append(m.Entries, Entry{Key: k, Type: sub})
		}
		return m, nil
	}
	return nil, fmt.Errorf("cannot decode type from %T", data)
}
