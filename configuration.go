package treeconf

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/treeconf/treeconf/interp"
	"github.com/treeconf/treeconf/keyexpr"
	"github.com/treeconf/treeconf/mutate"
	"github.com/treeconf/treeconf/node"
	"github.com/treeconf/treeconf/notify"
	"github.com/treeconf/treeconf/resolve"
)

// Configuration provides key-addressed access to a hierarchical node tree.
//
// A Configuration created by New or NewFromNode owns its tree snapshot.
// The views returned by ConfigurationAt, Subset, and their siblings are also
// Configurations; their behavior (independent copy, live window into the
// owner, read-only) is selected at creation time.
//
// The underlying tree is immutable, so readers holding a snapshot never race
// with a writer installing a new one. The library does not serialize
// concurrent writers; callers mutating a shared Configuration from several
// goroutines must synchronize externally.
type Configuration struct {
	model    model
	interp   *interp.Interpolator
	notifier *notify.Notifier
}

// model selects where a Configuration's tree lives and how edits are
// committed.
type model interface {
	// root returns the current tree snapshot.
	root() *node.Node

	// commit installs a new snapshot produced by a mutation.
	commit(newRoot *node.Node, ch mutate.Change) error

	// readOnly reports whether writes are rejected.
	readOnly() bool
}

// Option configures a Configuration.
type Option func(*Configuration)

// WithNotifier installs a pre-built notifier, e.g. one created with
// notify.WithAsync.
func WithNotifier(n *notify.Notifier) Option {
	return func(c *Configuration) {
		c.notifier = n
	}
}

// New creates an empty mutable Configuration.
func New(opts ...Option) *Configuration {
	return NewFromNode(node.New(""), opts...)
}

// NewFromNode creates a Configuration over an existing node tree, typically
// produced by a loader. A nil root yields an empty configuration.
func NewFromNode(root *node.Node, opts ...Option) *Configuration {
	if root == nil {
		root = node.New("")
	}
	c := &Configuration{}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = notify.New()
	}
	c.model = &rootModel{node: root, notifier: c.notifier}
	c.interp = interp.New(c.lookup)
	return c
}

// rootModel owns a tree snapshot directly.
type rootModel struct {
	mu       sync.RWMutex
	node     *node.Node
	notifier *notify.Notifier
	frozen   bool
}

func (m *rootModel) root() *node.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.node
}

func (m *rootModel) commit(newRoot *node.Node, ch mutate.Change) error {
	if m.frozen {
		return ErrReadOnly
	}
	m.mu.Lock()
	m.node = newRoot
	m.mu.Unlock()
	m.notifier.Notify(toNotification(ch))
	return nil
}

func (m *rootModel) readOnly() bool { return m.frozen }

// toNotification maps a mutation descriptor onto a notification event.
func toNotification(ch mutate.Change) notify.Change {
	var t notify.ChangeType
	switch ch.Op {
	case mutate.OpSet:
		t = notify.ChangeSet
	case mutate.OpAdd:
		t = notify.ChangeAdd
	case mutate.OpRemove:
		t = notify.ChangeRemove
	case mutate.OpClear:
		t = notify.ChangeClear
	case mutate.OpReplace:
		t = notify.ChangeReload
	}
	return notify.Change{
		Key:      ch.Key,
		Type:     t,
		OldValue: ch.OldValue,
		NewValue: ch.NewValue,
		Source:   "treeconf",
	}
}

// lookup resolves interpolation variables against this configuration.
func (c *Configuration) lookup(name string) (string, bool) {
	v, err := c.rawScalar(name)
	if err != nil || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// RootNode returns the current tree snapshot.
func (c *Configuration) RootNode() *node.Node {
	return c.model.root()
}

// RootElementName returns the name of the root node.
func (c *Configuration) RootElementName() string {
	return c.model.root().Name()
}

// SetRootNode replaces the whole tree. On a live view this replaces the
// anchored subtree within the owner.
func (c *Configuration) SetRootNode(root *node.Node) error {
	if root == nil {
		root = node.New("")
	}
	return c.model.commit(root, mutate.Change{Op: mutate.OpReplace})
}

// IsEmpty reports whether the tree holds no data at all.
func (c *Configuration) IsEmpty() bool {
	r := c.model.root()
	return r.Value() == nil && r.ChildCount() == 0 && r.AttributeCount() == 0
}

// Property returns the raw data addressed by key without interpolation:
// nil when nothing matches or the key is malformed, the single value when
// exactly one matching location carries one, and a []any with all values in
// resolution order otherwise. The empty key addresses the root node.
func (c *Configuration) Property(key string) any {
	values, err := c.values(key)
	if err != nil {
		return nil
	}
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}

// values collects the non-nil values at every location matching key.
func (c *Configuration) values(key string) ([]any, error) {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return nil, err
	}
	var values []any
	for _, loc := range resolve.Resolve(c.model.root(), segs) {
		if v := loc.Value(); v != nil {
			values = append(values, v)
		}
	}
	return values, nil
}

// rawScalar returns the first value matching key, without interpolation.
func (c *Configuration) rawScalar(key string) (any, error) {
	values, err := c.values(key)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return values[0], nil
}

// List returns all values matching key as a list, in resolution order. A
// single matching value yields a one-element list; a value that is itself a
// list contributes its elements. No match yields an empty list.
func (c *Configuration) List(key string) []any {
	values, err := c.values(key)
	if err != nil {
		return nil
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		if elems, ok := v.([]any); ok {
			out = append(out, elems...)
			continue
		}
		out = append(out, v)
	}
	return out
}

// ContainsKey reports whether key matches at least one location carrying a
// value or attribute.
func (c *Configuration) ContainsKey(key string) bool {
	values, err := c.values(key)
	return err == nil && len(values) > 0
}

// MaxIndex returns the highest index usable with key, i.e. the number of
// matching locations minus one. A key with no matches yields -1.
func (c *Configuration) MaxIndex(key string) int {
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return -1
	}
	return len(resolve.Resolve(c.model.root(), segs)) - 1
}

// Keys returns the canonical keys of every value-bearing node and every
// attribute, in document order.
func (c *Configuration) Keys() []string {
	var keys []string
	collectKeys(c.model.root(), nil, &keys)
	return keys
}

func collectKeys(n *node.Node, segs []keyexpr.Segment, keys *[]string) {
	if n.Value() != nil && len(segs) > 0 {
		*keys = append(*keys, keyexpr.Render(segs))
	}
	for _, name := range n.AttributeNames() {
		attr := append(segs, keyexpr.Segment{Name: name, Attribute: true})
		*keys = append(*keys, keyexpr.Render(attr))
	}
	counts := make(map[string]int)
	for _, child := range n.Children() {
		counts[child.Name()]++
	}
	seen := make(map[string]int)
	for _, child := range n.Children() {
		seg := keyexpr.Segment{Name: child.Name()}
		if counts[child.Name()] > 1 {
			seg.Index = seen[child.Name()]
			seg.HasIndex = true
		}
		seen[child.Name()]++
		collectKeys(child, append(segs[:len(segs):len(segs)], seg), keys)
	}
}

// GetString returns the string value at key, with variables interpolated.
// Multi-valued keys yield their first value. Use RawString to bypass
// interpolation.
func (c *Configuration) GetString(key string) (string, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return "", err
	}
	v = firstOf(v)
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Key: key, Expected: "string", Actual: typeName(v)}
	}
	return c.interp.Interpolate(s), nil
}

// RawString returns the string value at key without interpolation. Internal
// composition (subset construction, copies) uses this path so values are
// never interpolated twice.
func (c *Configuration) RawString(key string) (string, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return "", err
	}
	v = firstOf(v)
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Key: key, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns the integer value at key.
func (c *Configuration) GetInt(key string) (int, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return 0, err
	}
	switch val := firstOf(v).(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		i, convErr := strconv.Atoi(c.interp.Interpolate(val))
		if convErr != nil {
			return 0, &TypeError{Key: key, Expected: "int", Actual: "string"}
		}
		return i, nil
	default:
		return 0, &TypeError{Key: key, Expected: "int", Actual: typeName(val)}
	}
}

// GetInt64 returns the 64-bit integer value at key.
func (c *Configuration) GetInt64(key string) (int64, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return 0, err
	}
	switch val := firstOf(v).(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		return int64(val), nil
	case string:
		i, convErr := strconv.ParseInt(c.interp.Interpolate(val), 10, 64)
		if convErr != nil {
			return 0, &TypeError{Key: key, Expected: "int64", Actual: "string"}
		}
		return i, nil
	default:
		return 0, &TypeError{Key: key, Expected: "int64", Actual: typeName(val)}
	}
}

// GetFloat returns the float64 value at key.
func (c *Configuration) GetFloat(key string) (float64, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return 0, err
	}
	switch val := firstOf(v).(type) {
	case float64:
		return val, nil
	case float32:
		return float64(val), nil
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case string:
		f, convErr := strconv.ParseFloat(c.interp.Interpolate(val), 64)
		if convErr != nil {
			return 0, &TypeError{Key: key, Expected: "float64", Actual: "string"}
		}
		return f, nil
	default:
		return 0, &TypeError{Key: key, Expected: "float64", Actual: typeName(val)}
	}
}

// GetBool returns the boolean value at key.
func (c *Configuration) GetBool(key string) (bool, error) {
	v, err := c.rawScalar(key)
	if err != nil {
		return false, err
	}
	switch val := firstOf(v).(type) {
	case bool:
		return val, nil
	case string:
		b, convErr := strconv.ParseBool(c.interp.Interpolate(val))
		if convErr != nil {
			return false, &TypeError{Key: key, Expected: "bool", Actual: "string"}
		}
		return b, nil
	default:
		return false, &TypeError{Key: key, Expected: "bool", Actual: typeName(val)}
	}
}

// GetStringSlice returns all values at key as strings, interpolated.
func (c *Configuration) GetStringSlice(key string) ([]string, error) {
	values := c.List(key)
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	out := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, &TypeError{Key: key, Expected: "[]string", Actual: typeName(v)}
		}
		out[i] = c.interp.Interpolate(s)
	}
	return out, nil
}

// firstOf unwraps the single-to-list normalization for scalar accessors.
func firstOf(v any) any {
	if list, ok := v.([]any); ok && len(list) > 0 {
		return list[0]
	}
	return v
}

// SetProperty sets the value at key. With multiple matches the first one in
// resolution order is updated; with no match the property is added,
// synthesizing missing intermediate nodes.
func (c *Configuration) SetProperty(key string, value any) error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return err
	}
	root := c.model.root()
	locs := resolve.Resolve(root, segs)
	if len(locs) == 0 {
		return c.addProperty(segs, value)
	}
	newRoot, ch := mutate.SetValue(root, locs[0], value)
	return c.model.commit(newRoot, ch)
}

// AddProperty adds a new node (or attribute) for key carrying value. Missing
// intermediate nodes are synthesized; an explicit (-1) index forces creation
// of a new sibling at that point. A slice value adds one sibling per element.
func (c *Configuration) AddProperty(key string, value any) error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return err
	}
	if elems, ok := value.([]any); ok {
		for _, elem := range elems {
			if err := c.addProperty(segs, elem); err != nil {
				return err
			}
		}
		return nil
	}
	return c.addProperty(segs, value)
}

func (c *Configuration) addProperty(segs []keyexpr.Segment, value any) error {
	root := c.model.root()
	data, err := resolve.ResolveAdd(root, segs)
	if err != nil {
		return err
	}
	newRoot, ch := mutate.Add(root, data, value)
	return c.model.commit(newRoot, ch)
}

// AddNodes attaches the given nodes under key, creating the addressed node
// first if it does not exist yet.
func (c *Configuration) AddNodes(key string, children []*node.Node) error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	if len(children) == 0 {
		return nil
	}
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return err
	}
	root := c.model.root()
	if locs := resolve.Resolve(root, segs); len(locs) == 1 && !locs[0].IsAttribute() {
		newRoot, ch := mutate.AppendChildren(root, locs[0], children)
		return c.model.commit(newRoot, ch)
	}
	data, err := resolve.ResolveAdd(root, segs)
	if err != nil {
		return err
	}
	if data.Attribute {
		return fmt.Errorf("%w: cannot attach nodes to attribute %q", ErrMalformedKey, key)
	}
	parent := node.New(data.Name)
	for _, child := range children {
		parent = parent.AppendChild(child)
	}
	newRoot, ch := mutate.AddSubtree(root, data, parent)
	return c.model.commit(newRoot, ch)
}

// ClearProperty removes the values at every location matching key. Nodes
// left without value, children, and attributes are pruned.
func (c *Configuration) ClearProperty(key string) error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return err
	}
	for {
		root := c.model.root()
		loc, ok := nextValued(resolve.Resolve(root, segs))
		if !ok {
			return nil
		}
		var newRoot *node.Node
		var ch mutate.Change
		if !loc.IsAttribute() && loc.Node.ChildCount() == 0 && loc.Node.AttributeCount() == 0 && len(loc.Steps) > 0 {
			newRoot, ch = mutate.Remove(root, loc)
		} else {
			newRoot, ch = mutate.ClearValue(root, loc)
		}
		if err := c.model.commit(newRoot, ch); err != nil {
			return err
		}
	}
}

// nextValued returns the first location still carrying a value.
func nextValued(locs []resolve.Location) (resolve.Location, bool) {
	for _, loc := range locs {
		if loc.Value() != nil {
			return loc, true
		}
	}
	return resolve.Location{}, false
}

// ClearTree removes every subtree matching key, including descendants.
// Attribute matches remove the attribute.
func (c *Configuration) ClearTree(key string) error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	segs, err := keyexpr.Parse(key)
	if err != nil {
		return err
	}
	for {
		root := c.model.root()
		locs := resolve.Resolve(root, segs)
		if len(locs) == 0 {
			return nil
		}
		if len(locs) == 1 && len(locs[0].Steps) == 0 && !locs[0].IsAttribute() {
			// key addressed the root itself
			newRoot, ch := mutate.ClearNode(root, locs[0])
			return c.model.commit(newRoot, ch)
		}
		newRoot, ch := mutate.Remove(root, locs[0])
		if err := c.model.commit(newRoot, ch); err != nil {
			return err
		}
	}
}

// Clear empties the configuration: value, children, and attributes of the
// root are dropped while the root node itself (and, for a live view, its
// anchoring) is preserved.
func (c *Configuration) Clear() error {
	if c.model.readOnly() {
		return ErrReadOnly
	}
	root := c.model.root()
	newRoot, ch := mutate.ClearNode(root, resolve.Location{Node: root})
	return c.model.commit(newRoot, ch)
}

// Subscribe registers an observer for all changes committed through this
// configuration's owner.
func (c *Configuration) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.Notifier().Subscribe(observer)
}

// SubscribeKey registers an observer for changes at or below key.
func (c *Configuration) SubscribeKey(key string, observer notify.Observer) *notify.Subscription {
	return c.Notifier().SubscribeKey(key, observer)
}

// Notifier returns the notifier changes are delivered through. Live views
// share their owner's notifier.
func (c *Configuration) Notifier() *notify.Notifier {
	switch m := c.model.(type) {
	case *subModel:
		return m.owner.Notifier()
	default:
		return c.notifier
	}
}

// Interpolator returns the interpolator used by the string accessors.
func (c *Configuration) Interpolator() *interp.Interpolator {
	return c.interp
}
