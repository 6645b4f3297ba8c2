package mutate

import (
	"testing"

	"github.com/treeconf/treeconf/keyexpr"
	"github.com/treeconf/treeconf/node"
	"github.com/treeconf/treeconf/resolve"
)

func testTree() *node.Node {
	table := func(name string) *node.Node {
		return node.NewBuilder("table").
			AddChild(node.NewWithValue("name", name)).
			Create()
	}
	return node.NewBuilder("").
		AddChild(node.NewBuilder("tables").
			AddChild(table("users").WithAttribute("sysTab", false)).
			AddChild(table("documents")).
			Create()).
		Create()
}

func locate(t *testing.T, root *node.Node, key string) resolve.Location {
	t.Helper()
	segs, err := keyexpr.Parse(key)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", key, err)
	}
	loc, err := resolve.ResolveOne(root, segs)
	if err != nil {
		t.Fatalf("ResolveOne(%q) error = %v", key, err)
	}
	return loc
}

func value(t *testing.T, root *node.Node, key string) any {
	t.Helper()
	segs, err := keyexpr.Parse(key)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", key, err)
	}
	locs := resolve.Resolve(root, segs)
	if len(locs) == 0 {
		return nil
	}
	return locs[0].Value()
}

func TestSetValue(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(0).name")

	newRoot, ch := SetValue(root, loc, "customers")

	if got := value(t, newRoot, "tables.table(0).name"); got != "customers" {
		t.Errorf("new tree value = %v, want 'customers'", got)
	}
	// The original snapshot is untouched
	if got := value(t, root, "tables.table(0).name"); got != "users" {
		t.Errorf("old tree value = %v, want 'users'", got)
	}

	if ch.Op != OpSet || ch.Key != "tables.table(0).name" {
		t.Errorf("change = %+v, want set of tables.table(0).name", ch)
	}
	if ch.OldValue != "users" || ch.NewValue != "customers" {
		t.Errorf("change values = %v -> %v, want users -> customers", ch.OldValue, ch.NewValue)
	}
}

func TestSetValue_PreservesIdentityAlongPath(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(1).name")

	newRoot, _ := SetValue(root, loc, "docs")

	oldTable := locate(t, root, "tables.table(1)").Node
	newTable := locate(t, newRoot, "tables.table(1)").Node
	if oldTable.ID() != newTable.ID() {
		t.Error("rebuilt ancestor lost its identity token")
	}
	if root.ID() != newRoot.ID() {
		t.Error("rebuilt root lost its identity token")
	}

	// Untouched siblings are shared, not rebuilt
	oldFirst := locate(t, root, "tables.table(0)").Node
	newFirst := locate(t, newRoot, "tables.table(0)").Node
	if oldFirst != newFirst {
		t.Error("untouched sibling was rebuilt")
	}
}

func TestSetValue_Attribute(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(0)[@sysTab]")

	newRoot, ch := SetValue(root, loc, true)

	if got := value(t, newRoot, "tables.table(0)[@sysTab]"); got != true {
		t.Errorf("attribute = %v, want true", got)
	}
	if got := value(t, root, "tables.table(0)[@sysTab]"); got != false {
		t.Errorf("old attribute = %v, want false", got)
	}
	if ch.Key != "tables.table(0)[@sysTab]" {
		t.Errorf("change key = %q", ch.Key)
	}
}

func TestClearValue(t *testing.T) {
	root := testTree()

	newRoot, ch := ClearValue(root, locate(t, root, "tables.table(0).name"))
	if got := value(t, newRoot, "tables.table(0).name"); got != nil {
		t.Errorf("value = %v, want nil", got)
	}
	// The node itself stays in place
	if loc := locate(t, newRoot, "tables.table(0).name"); loc.Node == nil {
		t.Error("node was removed, not cleared")
	}
	if ch.Op != OpRemove || ch.OldValue != "users" {
		t.Errorf("change = %+v", ch)
	}

	// Clearing an attribute location removes the attribute entirely
	newRoot, _ = ClearValue(root, locate(t, root, "tables.table(0)[@sysTab]"))
	if _, ok := locate(t, newRoot, "tables.table(0)").Node.Attribute("sysTab"); ok {
		t.Error("attribute still present after ClearValue")
	}
}

func TestAdd_AutoVivification(t *testing.T) {
	root := testTree()
	segs, _ := keyexpr.Parse("database.connection.pool")
	data, err := resolve.ResolveAdd(root, segs)
	if err != nil {
		t.Fatal(err)
	}

	newRoot, ch := Add(root, data, 10)

	if got := value(t, newRoot, "database.connection.pool"); got != 10 {
		t.Errorf("value = %v, want 10", got)
	}
	if got := value(t, root, "database.connection.pool"); got != nil {
		t.Error("old tree gained the new path")
	}
	if ch.Op != OpAdd || ch.Key != "database.connection.pool" {
		t.Errorf("change = %+v", ch)
	}
}

func TestAdd_Attribute(t *testing.T) {
	root := testTree()

	segs, _ := keyexpr.Parse("tables.table(1)[@sysTab]")
	data, err := resolve.ResolveAdd(root, segs)
	if err != nil {
		t.Fatal(err)
	}
	newRoot, ch := Add(root, data, true)

	if got := value(t, newRoot, "tables.table(1)[@sysTab]"); got != true {
		t.Errorf("attribute = %v, want true", got)
	}
	if ch.Key != "tables.table(1)[@sysTab]" {
		t.Errorf("change key = %q", ch.Key)
	}

	// Attribute on a synthesized path node
	segs, _ = keyexpr.Parse("database.connection[@type]")
	data, err = resolve.ResolveAdd(root, segs)
	if err != nil {
		t.Fatal(err)
	}
	newRoot, _ = Add(root, data, "jdbc")
	if got := value(t, newRoot, "database.connection[@type]"); got != "jdbc" {
		t.Errorf("attribute = %v, want 'jdbc'", got)
	}
}

func TestAddSubtree(t *testing.T) {
	root := testTree()
	segs, _ := keyexpr.Parse("tables.table(-1)")
	data, err := resolve.ResolveAdd(root, segs)
	if err != nil {
		t.Fatal(err)
	}

	sub := node.NewBuilder("ignored").
		AddChild(node.NewWithValue("name", "sessions")).
		Create()
	newRoot, _ := AddSubtree(root, data, sub)

	if got := value(t, newRoot, "tables.table(2).name"); got != "sessions" {
		t.Errorf("value = %v, want 'sessions'", got)
	}
	// The subtree is renamed to the key's target name
	if loc := locate(t, newRoot, "tables.table(2)"); loc.Node.Name() != "table" {
		t.Errorf("name = %q, want 'table'", loc.Node.Name())
	}
}

func TestAppendChildren(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(0)")

	newRoot, ch := AppendChildren(root, loc, []*node.Node{
		node.NewWithValue("comment", "primary"),
		node.New("fields"),
	})

	updated := locate(t, newRoot, "tables.table(0)")
	if updated.Node.ChildCount() != 3 {
		t.Errorf("child count = %d, want 3", updated.Node.ChildCount())
	}
	if ch.Op != OpAdd {
		t.Errorf("change op = %v, want OpAdd", ch.Op)
	}
}

func TestRemove(t *testing.T) {
	root := testTree()

	newRoot, ch := Remove(root, locate(t, root, "tables.table(0)"))

	segs, _ := keyexpr.Parse("tables.table")
	if got := len(resolve.Resolve(newRoot, segs)); got != 1 {
		t.Fatalf("got %d tables after removal, want 1", got)
	}
	// The survivor shifts down to index 0
	if got := value(t, newRoot, "tables.table(0).name"); got != "documents" {
		t.Errorf("value = %v, want 'documents'", got)
	}
	if ch.Op != OpRemove || ch.Key != "tables.table(0)" {
		t.Errorf("change = %+v", ch)
	}
}

func TestRemove_RootClearsInPlace(t *testing.T) {
	root := testTree()

	newRoot, _ := Remove(root, resolve.Location{Node: root})

	if newRoot.ChildCount() != 0 {
		t.Errorf("child count = %d, want 0", newRoot.ChildCount())
	}
	if newRoot.ID() != root.ID() {
		t.Error("root identity lost on clear")
	}
}

func TestClearNode(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(0)")

	newRoot, ch := ClearNode(root, loc)

	cleared := locate(t, newRoot, "tables.table(0)")
	if cleared.Node.ChildCount() != 0 || cleared.Node.AttributeCount() != 0 {
		t.Error("node not emptied")
	}
	if cleared.Node.ID() != loc.Node.ID() {
		t.Error("cleared node lost its identity token")
	}
	if ch.Op != OpClear {
		t.Errorf("change op = %v, want OpClear", ch.Op)
	}
}

func TestReplaceSubtree(t *testing.T) {
	root := testTree()
	loc := locate(t, root, "tables.table(1)")

	replacement := node.NewBuilder("table").
		AddChild(node.NewWithValue("name", "archive")).
		Create()
	newRoot, ch := ReplaceSubtree(root, loc, replacement)

	if got := value(t, newRoot, "tables.table(1).name"); got != "archive" {
		t.Errorf("value = %v, want 'archive'", got)
	}
	if ch.Op != OpReplace || ch.Key != "tables.table(1)" {
		t.Errorf("change = %+v", ch)
	}
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpSet, "set"},
		{OpAdd, "add"},
		{OpRemove, "remove"},
		{OpClear, "clear"},
		{OpReplace, "replace"},
		{Op(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
