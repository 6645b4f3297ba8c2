// Package resolve maps parsed keys to locations in a configuration tree.
//
// A Location records the full path from the root to the target, so a
// mutation can rebuild the ancestor chain copy-on-write without re-resolving
// the key. Resolution of a key with unindexed repeated names expands to every
// combination of matching siblings, in depth-first document order, so the
// result order is deterministic for an unchanged tree.
package resolve

import (
	"errors"
	"fmt"

	"github.com/treeconf/treeconf/keyexpr"
	"github.com/treeconf/treeconf/node"
)

// Errors surfaced by single-result resolution.
var (
	// ErrKeyNotFound indicates a key that resolved to no node.
	ErrKeyNotFound = errors.New("key not found")

	// ErrAmbiguousKey indicates a key that resolved to more than one node
	// where exactly one was required.
	ErrAmbiguousKey = errors.New("ambiguous key")
)

// Step is one hop of a resolved path: the parent node and the position of
// the selected child within it.
type Step struct {
	Parent *node.Node
	Index  int
}

// Location is a resolved path from a root node to a target.
//
// For an element location, Node is the target node and Attribute is empty.
// For an attribute location, Node is the node owning the attribute and
// Attribute holds the attribute name; Steps lead to that owning node.
type Location struct {
	Steps     []Step
	Node      *node.Node
	Attribute string
}

// IsAttribute reports whether the location addresses an attribute.
func (l Location) IsAttribute() bool { return l.Attribute != "" }

// Value returns the value at the location: the attribute value for attribute
// locations, the node value otherwise.
func (l Location) Value() any {
	if l.IsAttribute() {
		v, _ := l.Node.Attribute(l.Attribute)
		return v
	}
	return l.Node.Value()
}

// Resolve returns all locations matching the key, in document order. A key
// with no segments resolves to the root itself. Out-of-range indexes and the
// append sentinel match nothing.
func Resolve(root *node.Node, segs []keyexpr.Segment) []Location {
	var out []Location
	walk(Location{Node: root}, segs, &out)
	return out
}

func walk(loc Location, segs []keyexpr.Segment, out *[]Location) {
	if len(segs) == 0 {
		*out = append(*out, loc)
		return
	}
	seg := segs[0]
	rest := segs[1:]

	if seg.Attribute {
		// attributes terminate descent
		if len(rest) > 0 {
			return
		}
		if _, ok := loc.Node.Attribute(seg.Name); ok {
			loc.Attribute = seg.Name
			*out = append(*out, loc)
		}
		return
	}

	n := 0
	for i, child := range loc.Node.Children() {
		if child.Name() != seg.Name {
			continue
		}
		if !seg.HasIndex || seg.Index == n {
			steps := make([]Step, len(loc.Steps), len(loc.Steps)+1)
			copy(steps, loc.Steps)
			next := Location{
				Steps: append(steps, Step{Parent: loc.Node, Index: i}),
				Node:  child,
			}
			walk(next, rest, out)
		}
		n++
	}
}

// ResolveOne applies the single-result policy: exactly one match is required.
func ResolveOne(root *node.Node, segs []keyexpr.Segment) (Location, error) {
	locs := Resolve(root, segs)
	switch len(locs) {
	case 0:
		return Location{}, fmt.Errorf("%w: %q", ErrKeyNotFound, keyexpr.Render(segs))
	case 1:
		return locs[0], nil
	default:
		return Location{}, fmt.Errorf("%w: %q matches %d nodes", ErrAmbiguousKey, keyexpr.Render(segs), len(locs))
	}
}

// AddData describes where an add operation attaches new data.
type AddData struct {
	// Parent is the location of the deepest existing node the new data
	// hangs below.
	Parent Location

	// PathNames are intermediate element names to synthesize between the
	// parent and the new node (auto-vivification), outermost first.
	PathNames []string

	// Name is the name of the new node or attribute.
	Name string

	// Attribute reports whether the target is an attribute of the node
	// addressed by Parent+PathNames rather than a new child element.
	Attribute bool
}

// ResolveAdd computes the attach point for an add operation. The last segment
// names the node or attribute to create. Walking the leading segments, an
// indexed segment selects that sibling, an unindexed segment with existing
// matches selects the last one, and the append sentinel or a missing name
// switches to synthesizing new path nodes from that point on.
func ResolveAdd(root *node.Node, segs []keyexpr.Segment) (AddData, error) {
	if len(segs) == 0 {
		return AddData{}, fmt.Errorf("%w: empty key in add operation", keyexpr.ErrMalformedKey)
	}
	last := segs[len(segs)-1]
	if last.HasIndex && last.Index != keyexpr.AppendIndex {
		return AddData{}, fmt.Errorf("%w: add key %q must not end with an explicit index", keyexpr.ErrMalformedKey, keyexpr.Render(segs))
	}

	data := AddData{
		Parent:    Location{Node: root},
		Name:      last.Name,
		Attribute: last.Attribute,
	}

	for _, seg := range segs[:len(segs)-1] {
		if seg.Attribute {
			return AddData{}, fmt.Errorf("%w: attribute %q in the middle of add key %q", keyexpr.ErrMalformedKey, seg.Name, keyexpr.Render(segs))
		}
		if len(data.PathNames) > 0 || (seg.HasIndex && seg.Index == keyexpr.AppendIndex) {
			// past the existing part of the tree
			data.PathNames = append(data.PathNames, seg.Name)
			continue
		}
		next, idx := selectAddChild(data.Parent.Node, seg)
		if next == nil {
			data.PathNames = append(data.PathNames, seg.Name)
			continue
		}
		data.Parent.Steps = append(data.Parent.Steps, Step{Parent: data.Parent.Node, Index: idx})
		data.Parent.Node = next
	}
	return data, nil
}

// selectAddChild picks the child an add path descends into: the indexed match
// if an index is given, otherwise the last same-named sibling.
func selectAddChild(parent *node.Node, seg keyexpr.Segment) (*node.Node, int) {
	n := 0
	lastIdx := -1
	for i, child := range parent.Children() {
		if child.Name() != seg.Name {
			continue
		}
		if seg.HasIndex && seg.Index == n {
			return child, i
		}
		lastIdx = i
		n++
	}
	if seg.HasIndex {
		return nil, -1
	}
	if lastIdx < 0 {
		return nil, -1
	}
	return parent.Child(lastIdx), lastIdx
}

// FindByID locates a node by its identity token. It reports false if the
// token is no longer present in the tree.
func FindByID(root *node.Node, id string) (Location, bool) {
	if root.ID() == id {
		return Location{Node: root}, true
	}
	return findByID(Location{Node: root}, id)
}

func findByID(loc Location, id string) (Location, bool) {
	for i, child := range loc.Node.Children() {
		steps := make([]Step, len(loc.Steps), len(loc.Steps)+1)
		copy(steps, loc.Steps)
		next := Location{
			Steps: append(steps, Step{Parent: loc.Node, Index: i}),
			Node:  child,
		}
		if child.ID() == id {
			return next, true
		}
		if found, ok := findByID(next, id); ok {
			return found, true
		}
	}
	return Location{}, false
}

// KeyFor renders the canonical key of a location relative to the root its
// steps start from. Indexes are emitted only where a node has same-named
// siblings.
func KeyFor(loc Location) string {
	var segs []keyexpr.Segment
	for _, step := range loc.Steps {
		child := step.Parent.Child(step.Index)
		seg := keyexpr.Segment{Name: child.Name()}
		if len(step.Parent.ChildrenNamed(child.Name())) > 1 {
			seg.HasIndex = true
			for i := 0; i < step.Index; i++ {
				if step.Parent.Child(i).Name() == child.Name() {
					seg.Index++
				}
			}
		}
		segs = append(segs, seg)
	}
	if loc.IsAttribute() {
		segs = append(segs, keyexpr.Segment{Name: loc.Attribute, Attribute: true})
	}
	return keyexpr.Render(segs)
}
