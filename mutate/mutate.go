// Package mutate implements structural edits over immutable configuration
// trees.
//
// Every operation is a pure function from an existing root plus a resolved
// location to a new root. Ancestors along the edit path are rebuilt
// copy-on-write; identity tokens are preserved by the node derivation
// methods, so untouched logical nodes keep their identity across edits.
// Each operation also produces a Change descriptor for the notification
// collaborator; this package holds no listener state.
package mutate

import (
	"github.com/treeconf/treeconf/node"
	"github.com/treeconf/treeconf/resolve"
)

// Op is the kind of a structural change.
type Op int

const (
	// OpSet indicates a value or attribute was set or replaced.
	OpSet Op = iota

	// OpAdd indicates a node or attribute was added.
	OpAdd

	// OpRemove indicates a node, value, or attribute was removed.
	OpRemove

	// OpClear indicates a node was emptied in place.
	OpClear

	// OpReplace indicates a whole subtree was replaced.
	OpReplace
)

// String returns the operation name.
func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpClear:
		return "clear"
	case OpReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Change describes one applied mutation.
type Change struct {
	// Op is the kind of change.
	Op Op

	// Key is the canonical key of the affected location.
	Key string

	// OldValue is the previous value at the location (nil if none).
	OldValue any

	// NewValue is the new value (nil for removals).
	NewValue any
}

// splice replaces the node at loc and rebuilds the ancestor chain. A location
// with no steps replaces the root itself.
func splice(loc resolve.Location, updated *node.Node) *node.Node {
	for i := len(loc.Steps) - 1; i >= 0; i-- {
		step := loc.Steps[i]
		updated = step.Parent.ReplaceChild(step.Index, updated)
	}
	return updated
}

// SetValue replaces the value at the location. Attribute locations update the
// attribute on the owning node.
func SetValue(root *node.Node, loc resolve.Location, value any) (*node.Node, Change) {
	ch := Change{Op: OpSet, Key: resolve.KeyFor(loc), OldValue: loc.Value(), NewValue: value}
	var updated *node.Node
	if loc.IsAttribute() {
		updated = loc.Node.WithAttribute(loc.Attribute, value)
	} else {
		updated = loc.Node.WithValue(value)
	}
	return splice(loc, updated), ch
}

// ClearValue drops the value at the location, keeping the node in place.
// Attribute locations remove the attribute entirely.
func ClearValue(root *node.Node, loc resolve.Location) (*node.Node, Change) {
	ch := Change{Op: OpRemove, Key: resolve.KeyFor(loc), OldValue: loc.Value()}
	var updated *node.Node
	if loc.IsAttribute() {
		updated = loc.Node.WithoutAttribute(loc.Attribute)
	} else {
		updated = loc.Node.WithValue(nil)
	}
	return splice(loc, updated), ch
}

// Add attaches a new node or attribute per the resolved add data, synthesizing
// intermediate path nodes as needed.
func Add(root *node.Node, data resolve.AddData, value any) (*node.Node, Change) {
	ch := Change{Op: OpAdd, Key: addKey(data), NewValue: value}
	attach := data.Parent.Node

	var updated *node.Node
	switch {
	case data.Attribute && len(data.PathNames) == 0:
		updated = attach.WithAttribute(data.Name, value)
	case data.Attribute:
		last := len(data.PathNames) - 1
		inner := node.New(data.PathNames[last]).WithAttribute(data.Name, value)
		updated = attach.AppendChild(wrap(data.PathNames[:last], inner))
	default:
		updated = attach.AppendChild(wrap(data.PathNames, node.NewWithValue(data.Name, value)))
	}
	return splice(data.Parent, updated), ch
}

// AddSubtree attaches an existing node (with its descendants) as a new child,
// synthesizing intermediate path nodes as needed. Attribute add data is not
// valid here.
func AddSubtree(root *node.Node, data resolve.AddData, child *node.Node) (*node.Node, Change) {
	ch := Change{Op: OpAdd, Key: addKey(data)}
	updated := data.Parent.Node.AppendChild(wrap(data.PathNames, child.WithName(data.Name)))
	return splice(data.Parent, updated), ch
}

// AppendChildren appends nodes under the located node.
func AppendChildren(root *node.Node, loc resolve.Location, children []*node.Node) (*node.Node, Change) {
	ch := Change{Op: OpAdd, Key: resolve.KeyFor(loc)}
	updated := loc.Node
	for _, c := range children {
		updated = updated.AppendChild(c)
	}
	return splice(loc, updated), ch
}

// wrap nests inner under a chain of freshly created path nodes, outermost
// name first.
func wrap(names []string, inner *node.Node) *node.Node {
	for i := len(names) - 1; i >= 0; i-- {
		inner = node.New(names[i]).AppendChild(inner)
	}
	return inner
}

// addKey renders the canonical key of an add target.
func addKey(data resolve.AddData) string {
	key := resolve.KeyFor(data.Parent)
	for _, name := range data.PathNames {
		if key != "" {
			key += "."
		}
		key += name
	}
	if data.Attribute {
		return key + "[@" + data.Name + "]"
	}
	if key != "" {
		key += "."
	}
	return key + data.Name
}

// Remove detaches the located subtree. Removing an attribute location drops
// the attribute; removing the root clears it in place.
func Remove(root *node.Node, loc resolve.Location) (*node.Node, Change) {
	ch := Change{Op: OpRemove, Key: resolve.KeyFor(loc), OldValue: loc.Value()}
	if loc.IsAttribute() {
		return splice(loc, loc.Node.WithoutAttribute(loc.Attribute)), ch
	}
	if len(loc.Steps) == 0 {
		return root.Cleared(), ch
	}
	last := loc.Steps[len(loc.Steps)-1]
	parent := resolve.Location{Steps: loc.Steps[:len(loc.Steps)-1], Node: last.Parent}
	return splice(parent, last.Parent.RemoveChild(last.Index)), ch
}

// ClearNode empties the located node in place: value, children, and
// attributes are dropped while name and identity are preserved.
func ClearNode(root *node.Node, loc resolve.Location) (*node.Node, Change) {
	ch := Change{Op: OpClear, Key: resolve.KeyFor(loc), OldValue: loc.Value()}
	return splice(loc, loc.Node.Cleared()), ch
}

// ReplaceSubtree splices a replacement subtree at the location.
func ReplaceSubtree(root *node.Node, loc resolve.Location, sub *node.Node) (*node.Node, Change) {
	ch := Change{Op: OpReplace, Key: resolve.KeyFor(loc)}
	return splice(loc, sub), ch
}
