// Package node provides the immutable tree that backs a hierarchical
// configuration.
//
// A Node is a value object: name, optional value, ordered children, and a
// name-unique attribute map. Trees are never mutated in place. Structural
// change is expressed through derivation methods that return new instances,
// rebuilding only the ancestor chain along the edit path.
//
// Every node carries an identity token assigned at construction. Derivation
// methods preserve the token, so a copy-on-write rebuild keeps the logical
// identity of every untouched-in-meaning node. Views anchor themselves to
// these tokens rather than to key strings, which go stale as siblings are
// added or removed.
package node

import (
	"sort"

	"github.com/google/uuid"
)

// Node is one element of a configuration tree. The zero value is not usable;
// construct nodes with New or a Builder.
type Node struct {
	name       string
	value      any
	children   []*Node
	attributes map[string]any
	id         string
}

// New creates a leaf node with the given name and no value.
func New(name string) *Node {
	return &Node{name: name, id: newID()}
}

// NewWithValue creates a leaf node carrying a value.
func NewWithValue(name string, value any) *Node {
	return &Node{name: name, value: value, id: newID()}
}

func newID() string {
	return uuid.NewString()
}

// Name returns the node name. The root of a tree may have an empty name.
func (n *Node) Name() string { return n.name }

// Value returns the node value, or nil if the node carries none.
func (n *Node) Value() any { return n.value }

// ID returns the identity token assigned when the node was first created.
// Derived copies share the token; deep copies do not.
func (n *Node) ID() string { return n.id }

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the child at position i.
func (n *Node) Child(i int) *Node { return n.children[i] }

// Children returns the ordered child list. The returned slice must not be
// modified.
func (n *Node) Children() []*Node { return n.children }

// ChildrenNamed returns all children with the given name, in tree order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var result []*Node
	for _, c := range n.children {
		if c.name == name {
			result = append(result, c)
		}
	}
	return result
}

// IndexOf returns the position of child among all children, or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// Attribute returns the attribute value for name.
func (n *Node) Attribute(name string) (any, bool) {
	v, ok := n.attributes[name]
	return v, ok
}

// AttributeCount returns the number of attributes.
func (n *Node) AttributeCount() int { return len(n.attributes) }

// AttributeNames returns the attribute names in sorted order.
func (n *Node) AttributeNames() []string {
	if len(n.attributes) == 0 {
		return nil
	}
	names := make([]string, 0, len(n.attributes))
	for name := range n.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.children) == 0 }

// shallow returns a copy sharing children, attributes, and identity.
func (n *Node) shallow() *Node {
	c := *n
	return &c
}

// WithValue returns a copy of the node with the value replaced.
func (n *Node) WithValue(value any) *Node {
	c := n.shallow()
	c.value = value
	return c
}

// WithName returns a copy of the node with the name replaced.
func (n *Node) WithName(name string) *Node {
	c := n.shallow()
	c.name = name
	return c
}

// WithChildren returns a copy of the node with the child list replaced.
func (n *Node) WithChildren(children []*Node) *Node {
	c := n.shallow()
	c.children = children
	return c
}

// ReplaceChild returns a copy with the child at position i replaced.
func (n *Node) ReplaceChild(i int, child *Node) *Node {
	children := make([]*Node, len(n.children))
	copy(children, n.children)
	children[i] = child
	return n.WithChildren(children)
}

// AppendChild returns a copy with child appended as the last sibling.
func (n *Node) AppendChild(child *Node) *Node {
	children := make([]*Node, len(n.children), len(n.children)+1)
	copy(children, n.children)
	return n.WithChildren(append(children, child))
}

// RemoveChild returns a copy with the child at position i removed.
func (n *Node) RemoveChild(i int) *Node {
	children := make([]*Node, 0, len(n.children)-1)
	children = append(children, n.children[:i]...)
	children = append(children, n.children[i+1:]...)
	return n.WithChildren(children)
}

// WithAttribute returns a copy with the attribute set.
func (n *Node) WithAttribute(name string, value any) *Node {
	c := n.shallow()
	attrs := make(map[string]any, len(n.attributes)+1)
	for k, v := range n.attributes {
		attrs[k] = v
	}
	attrs[name] = value
	c.attributes = attrs
	return c
}

// WithoutAttribute returns a copy with the attribute removed.
func (n *Node) WithoutAttribute(name string) *Node {
	if _, ok := n.attributes[name]; !ok {
		return n
	}
	c := n.shallow()
	attrs := make(map[string]any, len(n.attributes)-1)
	for k, v := range n.attributes {
		if k != name {
			attrs[k] = v
		}
	}
	c.attributes = attrs
	return c
}

// Cleared returns a copy with value, children, and attributes removed while
// keeping the name and identity of the node itself.
func (n *Node) Cleared() *Node {
	return &Node{name: n.name, id: n.id}
}

// Copy returns a deep copy of the subtree with fresh identity tokens
// throughout. The result shares nothing with the receiver.
func (n *Node) Copy() *Node {
	c := &Node{name: n.name, value: n.value, id: newID()}
	if len(n.children) > 0 {
		c.children = make([]*Node, len(n.children))
		for i, child := range n.children {
			c.children[i] = child.Copy()
		}
	}
	if len(n.attributes) > 0 {
		c.attributes = make(map[string]any, len(n.attributes))
		for k, v := range n.attributes {
			c.attributes[k] = v
		}
	}
	return c
}

// Walk visits the subtree rooted at n in depth-first document order. The
// visitor returns false to skip the children of the visited node.
func (n *Node) Walk(visit func(*Node) bool) {
	if !visit(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(visit)
	}
}
