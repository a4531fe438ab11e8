package domain

import (
	"reflect"
)

// DocumentDiff describes the changes between two versions of a document.
// It is serialized to JSON for partial updates on clients.
type DocumentDiff struct {
	// DocumentID is always present to identify the target.
	DocumentID string `json:"document_id"`

	// Name is set when the document name changed.
	Name *string `json:"name,omitempty"`

	Added   []string        `json:"added,omitempty"`
	Removed []string        `json:"removed,omitempty"`
	Changed []BlueprintDiff `json:"changed,omitempty"`
}

// BlueprintDiff lists what changed inside one blueprint.
type BlueprintDiff struct {
	Name string `json:"name"`

	// Ports is true when the blueprint's own in/out, generics or property
	// declarations changed.
	Ports bool `json:"ports,omitempty"`

	OperatorsAdded   []string `json:"operators_added,omitempty"`
	OperatorsRemoved []string `json:"operators_removed,omitempty"`
	OperatorsChanged []string `json:"operators_changed,omitempty"`

	ConnectionsAdded   []Connection `json:"connections_added,omitempty"`
	ConnectionsRemoved []Connection `json:"connections_removed,omitempty"`
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *DocumentDiff) IsEmpty() bool {
	return d.Name == nil &&
		len(d.Added) == 0 &&
		len(d.Removed) == 0 &&
		len(d.Changed) == 0
}

// DiffDocuments calculates the difference between oldDoc and newDoc.
// If oldDoc is nil, every blueprint of newDoc is reported as added (initial load).
// It returns nil when nothing changed.
func DiffDocuments(oldDoc, newDoc *Document) *DocumentDiff {
	if newDoc == nil {
		return nil
	}

	diff := &DocumentDiff{DocumentID: newDoc.ID}

	if oldDoc == nil {
		for _, bp := range newDoc.Blueprints {
			diff.Added = append(diff.Added, bp.Name)
		}
		if diff.IsEmpty() {
			return nil
		}
		return diff
	}

	if oldDoc.Name != newDoc.Name {
		diff.Name = &newDoc.Name
	}

	for _, bp := range newDoc.Blueprints {
		old, exists := oldDoc.Blueprint(bp.Name)
		if !exists {
			diff.Added = append(diff.Added, bp.Name)
			continue
		}
		if bd := diffBlueprint(old, &bp); bd != nil {
			diff.Changed = append(diff.Changed, *bd)
		}
	}
	for _, bp := range oldDoc.Blueprints {
		if _, exists := newDoc.Blueprint(bp.Name); !exists {
			diff.Removed = append(diff.Removed, bp.Name)
		}
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffBlueprint(old, new *Blueprint) *BlueprintDiff {
	d := &BlueprintDiff{Name: new.Name}

	d.Ports = !reflect.DeepEqual(old.In, new.In) ||
		!reflect.DeepEqual(old.Out, new.Out) ||
		!reflect.DeepEqual(old.Generics, new.Generics) ||
		!reflect.DeepEqual(old.Properties, new.Properties)

	// Check for Added or Modified
	for _, op := range new.Operators {
		oldOp, exists := old.Operator(op.ID)
		if !exists {
			d.OperatorsAdded = append(d.OperatorsAdded, op.ID)
		} else if !sameOperator(oldOp, &op) {
			d.OperatorsChanged = append(d.OperatorsChanged, op.ID)
		}
	}

	// Check for Deletions
	for _, op := range old.Operators {
		if _, exists := new.Operator(op.ID); !exists {
			d.OperatorsRemoved = append(d.OperatorsRemoved, op.ID)
		}
	}

	d.ConnectionsAdded = missing(new.Connections, old.Connections)
	d.ConnectionsRemoved = missing(old.Connections, new.Connections)

	if !d.Ports &&
		len(d.OperatorsAdded) == 0 &&
		len(d.OperatorsRemoved) == 0 &&
		len(d.OperatorsChanged) == 0 &&
		len(d.ConnectionsAdded) == 0 &&
		len(d.ConnectionsRemoved) == 0 {
		return nil
	}
	return d
}

// sameOperator ignores Resolved, which only reflects the live graph.
func sameOperator(a, b *Operator) bool {
	x, y := *a, *b
	x.Resolved, y.Resolved = nil, nil
	return reflect.DeepEqual(x, y)
}

// missing returns the connections of a that are not in b.
func missing(a, b []Connection) []Connection {
	index := make(map[Connection]bool, len(b))
	for _, c := range b {
		index[c] = true
	}
	var out []Connection
	for _, c := range a {
		if !index[c] {
			out = append(out, c)
		}
	}
	return out
}

// LibraryDiff lists definition names that appeared, disappeared or changed
// between two snapshots of an operator library.
type LibraryDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// IsEmpty reports whether the two snapshots were identical.
func (d LibraryDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffDefinitions compares two library snapshots by definition name.
func DiffDefinitions(old, new []Definition) LibraryDiff {
	before := make(map[string]Definition, len(old))
	for _, def := range old {
		before[def.Name] = def
	}
	var d LibraryDiff
	seen := make(map[string]bool, len(new))
	for _, def := range new {
		seen[def.Name] = true
		prev, exists := before[def.Name]
		switch {
		case !exists:
			d.Added = append(d.Added, def.Name)
		case !reflect.DeepEqual(prev, def):
			d.Changed = append(d.Changed, def.Name)
		}
	}
	for _, def := range old {
		if !seen[def.Name] {
			d.Removed = append(d.Removed, def.Name)
		}
	}
	return d
}
