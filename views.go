package treeconf

import (
	"fmt"
	"sync"

	"github.com/treeconf/treeconf/interp"
	"github.com/treeconf/treeconf/keyexpr"
	"github.com/treeconf/treeconf/mutate"
	"github.com/treeconf/treeconf/node"
	"github.com/treeconf/treeconf/notify"
	"github.com/treeconf/treeconf/resolve"
)

// subModel anchors a live view to a node in its owner's tree by identity
// token. Every access re-locates the anchor in the owner's current snapshot,
// so the view stays correct while siblings are added or removed around it.
//
// Once the anchor disappears from the owner the view is detached, for good:
// reads see an empty tree, writes land in a private local tree that is never
// merged back.
type subModel struct {
	mu       sync.Mutex
	owner    *Configuration
	anchorID string
	name     string // anchor node name, kept for the detached root
	detached bool
	local    *node.Node
	frozen   bool
}

func (m *subModel) root() *node.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return m.local
	}
	loc, ok := resolve.FindByID(m.owner.model.root(), m.anchorID)
	if !ok {
		m.detach(node.New(m.name))
		return m.local
	}
	return loc.Node
}

func (m *subModel) commit(newRoot *node.Node, ch mutate.Change) error {
	if m.frozen {
		return ErrReadOnly
	}
	m.mu.Lock()
	if m.detached {
		m.local = newRoot
		m.mu.Unlock()
		return nil
	}
	ownerRoot := m.owner.model.root()
	loc, ok := resolve.FindByID(ownerRoot, m.anchorID)
	if !ok {
		m.detach(newRoot)
		m.mu.Unlock()
		return nil
	}
	prefix := resolve.KeyFor(loc)
	m.mu.Unlock()

	merged, _ := mutate.ReplaceSubtree(ownerRoot, loc, newRoot)
	ch.Key = joinKeys(prefix, ch.Key)
	if err := m.owner.model.commit(merged, ch); err != nil {
		return err
	}

	// A whole-tree replacement through the view installs a node with a new
	// identity token; the anchor has to follow it or the view would detach
	// on its next access.
	m.mu.Lock()
	if !m.detached && m.anchorID != newRoot.ID() {
		m.anchorID = newRoot.ID()
		m.name = newRoot.Name()
	}
	m.mu.Unlock()
	return nil
}

func (m *subModel) readOnly() bool { return m.frozen }

// detach flips the view into its permanent detached state. Caller holds mu.
func (m *subModel) detach(local *node.Node) {
	m.detached = true
	m.local = local
}

// clearAndDetach removes the anchored subtree from the owner and detaches.
// The owner commit runs synchronous observers, so the lock is released
// before committing; an observer reading through the view must not block.
func (m *subModel) clearAndDetach() error {
	if m.frozen {
		return ErrReadOnly
	}
	m.mu.Lock()
	if m.detached {
		m.local = node.New(m.name)
		m.mu.Unlock()
		return nil
	}
	ownerRoot := m.owner.model.root()
	loc, ok := resolve.FindByID(ownerRoot, m.anchorID)
	m.detach(node.New(m.name))
	m.mu.Unlock()

	if !ok {
		return nil
	}
	newRoot, ch := mutate.Remove(ownerRoot, loc)
	ch.Key = resolve.KeyFor(loc)
	return m.owner.model.commit(newRoot, ch)
}

// joinKeys concatenates a canonical prefix with a view-relative key.
func joinKeys(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	case key[0] == '[':
		// attribute markers attach without a separator
		return prefix + key
	default:
		return prefix + "." + key
	}
}

// newSubView builds a live view anchored at the given node of c's current
// tree.
func (c *Configuration) newSubView(anchor *node.Node, frozen bool) *Configuration {
	sub := &Configuration{}
	sub.model = &subModel{
		owner:    c,
		anchorID: anchor.ID(),
		name:     anchor.Name(),
		frozen:   frozen,
	}
	sub.interp = interp.New(sub.lookup).WithParent(c.interp)
	return sub
}

// newFrozenView builds a read-only Configuration over a private tree.
func (c *Configuration) newFrozenView(root *node.Node) *Configuration {
	v := &Configuration{notifier: notify.New()}
	v.model = &rootModel{node: root, notifier: v.notifier, frozen: true}
	v.interp = interp.New(v.lookup).WithParent(c.interp)
	return v
}

// Subset returns a new independent Configuration holding copies of all nodes
// matching key, re-parented under a synthetic root. The children and
// attributes of every match are merged into that root. The root carries a
// value only if exactly one match does (so a unique leaf value stays
// retrievable through the empty key). Later edits to either configuration
// are never reflected in the other. No match yields an empty configuration.
//
// Variables unresolvable inside the subset fall back to this configuration,
// so interpolation keeps working across subset layers.
func (c *Configuration) Subset(key string) *Configuration {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return New()
	}

	builder := node.NewBuilder("")
	var rootValue any
	values := 0
	for _, loc := range resolve.Resolve(c.model.root(), segs) {
		if v := loc.Value(); v != nil {
			rootValue = v
			values++
		}
		if loc.IsAttribute() {
			continue
		}
		for _, child := range loc.Node.Children() {
			builder.AddChild(child.Copy())
		}
		for _, name := range loc.Node.AttributeNames() {
			v, _ := loc.Node.Attribute(name)
			builder.Attribute(name, v)
		}
	}
	if values == 1 {
		builder.Value(rootValue)
	}

	sub := NewFromNode(builder.Create())
	sub.interp = interp.New(sub.lookup).WithParent(c.interp)
	return sub
}

// ConfigurationAt returns a live view of the single subtree addressed by
// key. The view shares state with this configuration: writes through the
// view are applied to the owner's tree, and owner edits are visible through
// the view. The anchor is tracked by node identity, so the link survives
// sibling insertions and removals; if the anchored node is removed the view
// detaches permanently.
//
// Fails with ErrKeyNotFound for zero matches and ErrAmbiguousKey for more
// than one.
func (c *Configuration) ConfigurationAt(key string) (*Configuration, error) {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil, err
	}
	loc, err := resolve.ResolveOne(c.model.root(), segs)
	if err != nil {
		return nil, err
	}
	if loc.IsAttribute() {
		return nil, fmt.Errorf("%w: %q addresses an attribute, not a subtree", ErrKeyNotFound, key)
	}
	return c.newSubView(loc.Node, false), nil
}

// ConfigurationsAt returns one live view per node matching key, in
// resolution order. No match yields an empty slice, not an error.
func (c *Configuration) ConfigurationsAt(key string) []*Configuration {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil
	}
	var views []*Configuration
	for _, loc := range resolve.Resolve(c.model.root(), segs) {
		if loc.IsAttribute() {
			continue
		}
		views = append(views, c.newSubView(loc.Node, false))
	}
	return views
}

// ChildConfigurationsAt returns one live view per immediate child of the
// single node addressed by key. Unlike ConfigurationAt, an unresolved or
// ambiguous key yields an empty slice rather than an error; callers relying
// on strictness use ConfigurationAt.
func (c *Configuration) ChildConfigurationsAt(key string) []*Configuration {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil
	}
	locs := resolve.Resolve(c.model.root(), segs)
	if len(locs) != 1 || locs[0].IsAttribute() {
		return nil
	}
	var views []*Configuration
	for _, child := range locs[0].Node.Children() {
		views = append(views, c.newSubView(child, false))
	}
	return views
}

// ImmutableConfigurationAt returns a read-only view of the single subtree
// addressed by key. With supportUpdates false the view is a frozen deep copy:
// later owner edits are invisible. With supportUpdates true the view reads
// through to the owner's current state like a live view (including permanent
// detachment once the anchor disappears) but rejects all writes with
// ErrReadOnly.
func (c *Configuration) ImmutableConfigurationAt(key string, supportUpdates bool) (*Configuration, error) {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil, err
	}
	loc, err := resolve.ResolveOne(c.model.root(), segs)
	if err != nil {
		return nil, err
	}
	if loc.IsAttribute() {
		return nil, fmt.Errorf("%w: %q addresses an attribute, not a subtree", ErrKeyNotFound, key)
	}
	if supportUpdates {
		return c.newSubView(loc.Node, true), nil
	}
	return c.newFrozenView(loc.Node.Copy()), nil
}

// ImmutableConfigurationsAt returns one frozen deep-copy view per node
// matching key, in resolution order.
func (c *Configuration) ImmutableConfigurationsAt(key string) []*Configuration {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil
	}
	var views []*Configuration
	for _, loc := range resolve.Resolve(c.model.root(), segs) {
		if loc.IsAttribute() {
			continue
		}
		views = append(views, c.newFrozenView(loc.Node.Copy()))
	}
	return views
}

// ImmutableChildConfigurationsAt returns one frozen deep-copy view per
// immediate child of the single node addressed by key, with the same lenient
// policy as ChildConfigurationsAt.
func (c *Configuration) ImmutableChildConfigurationsAt(key string) []*Configuration {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil
	}
	locs := resolve.Resolve(c.model.root(), segs)
	if len(locs) != 1 || locs[0].IsAttribute() {
		return nil
	}
	var views []*Configuration
	for _, child := range locs[0].Node.Children() {
		views = append(views, c.newFrozenView(child.Copy()))
	}
	return views
}

// ClearAndDetachFromParent empties this live view, removes its anchored
// subtree from the owner, and permanently detaches the view. Further writes
// stay local and never reach the owner, even if the owner later recreates a
// node at the same path. Calling it on a configuration that is not a live
// view is an error.
func (c *Configuration) ClearAndDetachFromParent() error {
	m, ok := c.model.(*subModel)
	if !ok {
		return fmt.Errorf("configuration is not a live sub-view")
	}
	return m.clearAndDetach()
}

// Detached reports whether a live view has lost (or given up) its anchor in
// the owner. It returns false for configurations that are not live views.
func (c *Configuration) Detached() bool {
	m, ok := c.model.(*subModel)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}

// Copy returns a deep structural copy of the current snapshot. The copy
// shares no nodes with the source, so subsequent mutation of either is fully
// independent. Listener registrations are not copied.
func (c *Configuration) Copy() *Configuration {
	return NewFromNode(c.model.root().Copy())
}
