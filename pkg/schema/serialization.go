package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Expr carries a Type through JSON and YAML documents.
// It is written in the textual form and read from either the textual form
// or a structured form where a mapping is a Map and a one-element list is a Stream.
type Expr struct {
	Type Type
}

// ExprOf wraps t.
func ExprOf(t Type) Expr { return Expr{Type: t} }

// IsZero reports whether no type is set. It lets omitzero and omitempty
// drop absent port declarations.
func (e Expr) IsZero() bool { return e.Type == nil }

func (e Expr) String() string {
	if e.Type == nil {
		return ""
	}
	return e.Type.String()
}

// MarshalJSON writes the textual form.
func (e Expr) MarshalJSON() ([]byte, error) {
	if e.Type == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Type.String())
}

// UnmarshalJSON reads the textual or structured form, keeping map key order.
func (e *Expr) UnmarshalJSON(data []byte) error {
	if e == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}
	if string(bytes.TrimSpace(data)) == "null" {
		e.Type = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := decodeJSONType(dec)
	if err != nil {
		return err
	}
	e.Type = t
	return nil
}

func decodeJSONType(dec *json.Decoder) (Type, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case string:
		return ParseType(v)
	case json.Delim:
		switch v {
		case '{':
			m := &MapType{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("map key: expected string, got %T", keyTok)
				}
				sub, err := decodeJSONType(dec)
				if err != nil {
					return nil, fmt.Errorf("key %q: %w", key, err)
				}
				m.Entries = append(m.Entries, Entry{Key: key, Type: sub})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return m, nil
		case '[':
			if !dec.More() {
				return nil, fmt.Errorf("stream: expected exactly one element type")
			}
			sub, err := decodeJSONType(dec)
			if err != nil {
				return nil, err
			}
			if dec.More() {
				return nil, fmt.Errorf("stream: expected exactly one element type")
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return Stream(sub), nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v in type", tok)
}

// MarshalYAML writes the textual form.
func (e Expr) MarshalYAML() (any, error) {
	if e.Type == nil {
		return nil, nil
	}
	return e.Type.String(), nil
}

// UnmarshalYAML reads the textual or structured form, keeping map key order.
func (e *Expr) UnmarshalYAML(node *yaml.Node) error {
	t, err := decodeYAMLType(node)
	if err != nil {
		return err
	}
	e.Type = t
	return nil
}

func decodeYAMLType(node *yaml.Node) (Type, error) {
	switch node.Kind {
	case yaml.AliasNode:
		return decodeYAMLType(node.Alias)
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return ParseType(node.Value)
	case yaml.SequenceNode:
		if len(node.Content) != 1 {
			return nil, fmt.Errorf("line %d: stream: expected exactly one element type", node.Line)
		}
		sub, err := decodeYAMLType(node.Content[0])
		if err != nil {
			return nil, err
		}
		return Stream(sub), nil
	case yaml.MappingNode:
		m := &MapType{}
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			sub, err := decodeYAMLType(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			m.Entries = append(m.Entries, Entry{Key: key, Type: sub})
		}
		return m, nil
	}
	return nil, fmt.Errorf("line %d: unsupported type node", node.Line)
}

// MarshalJSON serializes the schema as a map of property names to type strings.
func (s Schema) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}

	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.String()
	}

	return json.Marshal(raw)
}

// UnmarshalJSON deserializes the schema from a map of property names to types.
func (s *Schema) UnmarshalJSON(data []byte) error {
	if s == nil {
		return fmt.Errorf("schema: UnmarshalJSON on nil pointer")
	}

	if string(data) == "null" {
		*s = nil
		return nil
	}

	var raw map[string]Expr
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = fromExprs(raw)
	return nil
}

// MarshalYAML serializes the schema as a map of property names to type strings.
func (s Schema) MarshalYAML() (any, error) {
	if s == nil {
		return nil, nil
	}
	raw := make(map[string]string, len(s))
	for key, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("field %s: type is nil", key)
		}
		raw[key] = typ.String()
	}
	return raw, nil
}

// UnmarshalYAML deserializes the schema from a map of property names to types.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]Expr
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*s = fromExprs(raw)
	return nil
}

func fromExprs(raw map[string]Expr) Schema {
	out := make(Schema, len(raw))
	for key, expr := range raw {
		if expr.Type == nil {
			out[key] = Unspecified()
			continue
		}
		out[key] = expr.Type
	}
	return out
}
