// Package loader builds configuration node trees from external sources.
//
// Loaders are the format adapters in front of the tree core: they parse
// TOML, JSON, YAML, or environment variables into a generic map and convert
// it into an immutable node tree conforming to the tree invariants. The
// core never parses files itself.
package loader

import (
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/treeconf/treeconf/node"
)

// TreeLoader is the interface format adapters implement for the tree core.
type TreeLoader interface {
	// Load reads the source and builds a node tree.
	// Returns nil, nil if the source doesn't exist (not an error).
	Load() (*node.Node, error)
}

// FileLoader is the interface for loaders that read from files.
type FileLoader interface {
	TreeLoader
	// LoadFrom reads a tree from a specific path.
	LoadFrom(path string) (*node.Node, error)
}

// ReaderLoader is the interface for loaders that read from an io.Reader.
type ReaderLoader interface {
	// LoadFromReader reads a tree from a reader.
	LoadFromReader(r io.Reader) (*node.Node, error)
}

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	fs.FS
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// Open implements fs.FS.
func (OSFS) Open(name string) (fs.File, error) {
	return os.Open(name)
}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// DefaultFS returns the default file system (OS).
func DefaultFS() FileSystem {
	return OSFS{}
}

// FromMap converts a generic configuration map into a node tree. Map entries
// become children (sorted by key so the tree order is deterministic), slices
// become repeated same-named siblings in element order, and everything else
// becomes a node value.
func FromMap(m map[string]any) *node.Node {
	b := node.NewBuilder("")
	appendEntries(b, m)
	return b.Create()
}

func appendEntries(b *node.Builder, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		appendValue(b, k, m[k])
	}
}

func appendValue(b *node.Builder, name string, value any) {
	switch v := value.(type) {
	case map[string]any:
		child := node.NewBuilder(name)
		appendEntries(child, v)
		b.AddChild(child.Create())
	case []any:
		for _, elem := range v {
			appendValue(b, name, elem)
		}
	case []string:
		for _, elem := range v {
			b.AddChild(node.NewWithValue(name, elem))
		}
	default:
		b.AddChild(node.NewWithValue(name, v))
	}
}

// ToMap converts a node tree back into a generic map. Repeated same-named
// siblings collapse into a slice; values on non-leaf nodes and attributes
// are dropped, since generic maps cannot express them.
func ToMap(n *node.Node) map[string]any {
	m := make(map[string]any)
	for _, child := range n.Children() {
		var v any
		if child.IsLeaf() {
			v = child.Value()
		} else {
			v = ToMap(child)
		}
		if prev, ok := m[child.Name()]; ok {
			if list, isList := prev.([]any); isList {
				m[child.Name()] = append(list, v)
			} else {
				m[child.Name()] = []any{prev, v}
			}
			continue
		}
		m[child.Name()] = v
	}
	return m
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	if src == nil {
		return dst
	}

	for key, srcVal := range src {
		dstVal, exists := dst[key]
		if !exists {
			dst[key] = srcVal
			continue
		}

		// If both are maps, merge recursively
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dstVal.(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			// Otherwise, src replaces dst
			dst[key] = srcVal
		}
	}

	return dst
}
