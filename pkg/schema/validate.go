package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Schema maps property names to their declared types.
// Example: {"variables": Stream(String()), "limit": Number()}
type Schema map[string]Type

// Names returns the declared property names, sorted.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks if data conforms to the schema.
// Returns an error with all validation failures found.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []error

	for _, name := range schema.Names() {
		value, exists := data[name]
		if !exists {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: "required",
			})
			continue
		}

		if err := CheckValue(schema[name], value); err != nil {
			errs = append(errs, &ValidationError{
				Key:    name,
				Reason: err.Error(),
				Value:  value,
			})
		}
	}

	for key := range data {
		if _, declared := schema[key]; !declared {
			errs = append(errs, &ValidationError{
				Key:    key,
				Reason: "not declared",
				Value:  data[key],
			})
		}
	}

	return Collect(errs)
}

// CheckValue reports whether value can be assigned to a property of type t.
// Generic, trigger and unspecified properties accept any value.
func CheckValue(t Type, value any) error {
	switch tt := t.(type) {
	case *PrimitiveType:
		return checkPrimitive(tt.Of, value)
	case *StreamType:
		rv := reflect.ValueOf(value)
		if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return fmt.Errorf("expected list, got %T", value)
		}
		for i := 0; i < rv.Len(); i++ {
			if err := CheckValue(tt.Sub, rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		return nil
	case *MapType:
		m, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("expected map, got %T", value)
		}
		for _, e := range tt.Entries {
			v, ok := m[e.Key]
			if !ok {
				return fmt.Errorf("key %q: required", e.Key)
			}
			if err := CheckValue(e.Type, v); err != nil {
				return fmt.Errorf("key %q: %w", e.Key, err)
			}
		}
		return nil
	default:
		return nil
	}
}

func checkPrimitive(kind PrimitiveKind, value any) error {
	switch value.(type) {
	case string:
		if kind == StringKind || kind == AnyPrimitive {
			return nil
		}
	case bool:
		if kind == BooleanKind || kind == AnyPrimitive {
			return nil
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		if kind == NumberKind || kind == AnyPrimitive {
			return nil
		}
	}
	return fmt.Errorf("expected %s, got %T", kind, value)
}
