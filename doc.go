// Package treeconf provides hierarchical configuration backed by an
// immutable node tree.
//
// Properties are addressed with dot-separated key expressions. A segment may
// carry an index to select one of several same-named siblings, and an
// attribute marker to address node metadata:
//
//	tables.table(0).name
//	tables.table(1)[@type]
//
// Literal separator characters in names are escaped with a backslash.
//
// # Architecture
//
// Every Configuration wraps an immutable snapshot of a node tree. Mutating
// operations build a new tree sharing all untouched nodes with the old one
// and swap it in atomically, so readers always see a consistent state and
// never block behind writers.
//
// Views carve slices out of a configuration:
//
//   - Subset copies the matched subtrees into an independent configuration.
//   - ConfigurationAt returns a live view that shares state with its owner.
//     The view tracks its subtree by node identity, so it survives edits
//     around it and detaches permanently once the subtree is removed.
//   - ImmutableConfigurationAt returns a read-only view, either a frozen
//     snapshot or a read-through over the owner's current state.
//
// # Sub-packages
//
//   - node: immutable tree nodes and the tree builder
//   - keyexpr: key expression parsing and rendering
//   - resolve: key resolution against a tree
//   - mutate: copy-on-write tree edits
//   - notify: change notification and observer pattern
//   - interp: ${variable} interpolation
//   - loader: building trees from TOML, JSON, YAML, maps, and the environment
//   - watcher: file watching for live reload
//
// # Basic Usage
//
//	cfg := treeconf.New()
//	if err := cfg.SetProperty("tables.table.name", "users"); err != nil {
//	    log.Fatal(err)
//	}
//
//	name, err := cfg.GetString("tables.table(0).name")
//
// Load from a file instead:
//
//	root, err := loader.NewTOMLLoader("app.toml").Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := treeconf.NewFromNode(root)
//
// # Error Handling
//
// The package defines sentinel errors callers can test with errors.Is:
//
//   - ErrKeyNotFound: key resolves to nothing where one match is required
//   - ErrAmbiguousKey: key resolves to several nodes where one is required
//   - ErrMalformedKey: key expression cannot be parsed
//   - ErrReadOnly: write attempted through an immutable view
//   - ErrTypeMismatch: stored value cannot be converted to the requested type
//
// Lenient readers without an error return (Property, List, ContainsKey,
// MaxIndex) treat a malformed key like a key with no matches and report
// nil, empty, false, or -1. Typed accessors and all mutators surface
// ErrMalformedKey instead.
package treeconf
