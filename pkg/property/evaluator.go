// Package property expands property-parameterized templates.
//
// Operator definitions may name their ports after the operator's properties:
// a map key "{variables}" combined with the assignment variables=["a","b"]
// becomes the two keys "a" and "b". Expand works on plain strings and
// ExpandType applies it to every map key of a port type.
package property

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/loom/pkg/schema"
)

// EscapePrefix marks a value that must stay an unresolved placeholder.
// The value "$x" expands to "{x}".
const EscapePrefix = "$"

// Assignment binds a value to a declared property.
type Assignment struct {
	Name  string
	Type  schema.Type
	Value any
}

// Assignments is an ordered set of property assignments.
type Assignments []Assignment

// Lookup returns the assignment for name.
func (a Assignments) Lookup(name string) (Assignment, bool) {
	for _, as := range a {
		if as.Name == name {
			return as, true
		}
	}
	return Assignment{}, false
}

// Values returns the assignments as a name/value map.
func (a Assignments) Values() map[string]any {
	out := make(map[string]any, len(a))
	for _, as := range a {
		out[as.Name] = as.Value
	}
	return out
}

// Bind pairs declared property types with raw values.
// Values without a declaration are bound with an unspecified type.
func Bind(decl schema.Schema, values map[string]any) Assignments {
	var out Assignments
	for _, name := range decl.Names() {
		if v, ok := values[name]; ok {
			out = append(out, Assignment{Name: name, Type: decl[name], Value: v})
		}
	}
	for name, v := range values {
		if _, declared := decl[name]; !declared {
			out = append(out, Assignment{Name: name, Type: schema.Unspecified(), Value: v})
		}
	}
	return out
}

// Expand resolves the {name} placeholders of template.
// A stream-valued property multiplies the template once per element, several
// of them multiply as a cartesian product. Placeholders without an assignment
// are left untouched.
func Expand(template string, assignments Assignments) []string {
	results := []string{""}
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		end += open

		name := rest[open+1 : end]
		literal := rest[:open]
		rest = rest[end+1:]

		as, ok := assignments.Lookup(name)
		if !ok {
			results = appendAll(results, literal+"{"+name+"}")
			continue
		}

		values := render(as.Value)
		next := make([]string, 0, len(results)*len(values))
		for _, r := range results {
			for _, v := range values {
				next = append(next, r+literal+v)
			}
		}
		results = next
	}
	return appendAll(results, rest)
}

// ExpandType clones t, expanding every map key with Expand.
// A templated key that fans out into N keys produces N entries sharing the
// declared sub-type. Later duplicates of a key are dropped. Streams and
// generics are cloned unchanged.
func ExpandType(t schema.Type, assignments Assignments) schema.Type {
	m, ok := t.(*schema.MapType)
	if !ok {
		return schema.Clone(t)
	}

	out := &schema.MapType{}
	seen := make(map[string]bool)
	for _, e := range m.Entries {
		for _, key := range Expand(e.Key, assignments) {
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Entries = append(out.Entries, schema.Entry{Key: key, Type: ExpandType(e.Type, assignments)})
		}
	}
	return out
}

func render(v any) []string {
	rv := reflect.ValueOf(v)
	if v != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, scalar(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{scalar(v)}
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		if strings.HasPrefix(x, EscapePrefix) {
			return "{" + strings.TrimPrefix(x, EscapePrefix) + "}"
		}
		return x
	default:
		return fmt.Sprint(x)
	}
}

func appendAll(results []string, suffix string) []string {
	for i := range results {
		results[i] += suffix
	}
	return results
}
