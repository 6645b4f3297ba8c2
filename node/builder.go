package node

// Builder assembles an immutable Node. Builders are cheap, single-use value
// factories; Create may be called once per builder.
type Builder struct {
	node *Node
}

// NewBuilder starts building a node with the given name.
func NewBuilder(name string) *Builder {
	return &Builder{node: New(name)}
}

// Value sets the node value.
func (b *Builder) Value(value any) *Builder {
	b.node.value = value
	return b
}

// Attribute sets an attribute.
func (b *Builder) Attribute(name string, value any) *Builder {
	if b.node.attributes == nil {
		b.node.attributes = make(map[string]any)
	}
	b.node.attributes[name] = value
	return b
}

// AddChild appends a child node.
func (b *Builder) AddChild(child *Node) *Builder {
	b.node.children = append(b.node.children, child)
	return b
}

// AddChildren appends several children in order.
func (b *Builder) AddChildren(children ...*Node) *Builder {
	b.node.children = append(b.node.children, children...)
	return b
}

// Create finalizes the node. The builder must not be reused afterwards.
func (b *Builder) Create() *Node {
	n := b.node
	b.node = nil
	return n
}
