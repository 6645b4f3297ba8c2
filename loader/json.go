package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"

	"github.com/treeconf/treeconf/node"
)

// JSONLoader builds node trees from JSON documents. Unlike the map-based
// loaders it walks the document directly, so children keep the key order of
// the source instead of being sorted.
type JSONLoader struct {
	fs   FileSystem
	path string
}

// NewJSONLoader creates a new JSON loader for the given path.
func NewJSONLoader(path string) *JSONLoader {
	return &JSONLoader{
		fs:   DefaultFS(),
		path: path,
	}
}

// NewJSONLoaderWithFS creates a JSON loader with a custom file system.
func NewJSONLoaderWithFS(fs FileSystem, path string) *JSONLoader {
	return &JSONLoader{
		fs:   fs,
		path: path,
	}
}

// Load reads a node tree from the configured path.
func (l *JSONLoader) Load() (*node.Node, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads a node tree from a specific path.
func (l *JSONLoader) LoadFrom(path string) (*node.Node, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // File doesn't exist, not an error
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return l.parse(path, data)
}

// LoadFromReader reads a node tree from an io.Reader.
func (l *JSONLoader) LoadFromReader(r io.Reader) (*node.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return l.parse("<reader>", data)
}

func (l *JSONLoader) parse(source string, data []byte) (*node.Node, error) {
	if !gjson.ValidBytes(data) {
		return nil, &ParseError{Path: source, Message: "invalid JSON document"}
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, &ParseError{Path: source, Message: "top-level JSON value must be an object"}
	}

	b := node.NewBuilder("")
	appendJSON(b, doc)
	return b.Create(), nil
}

// appendJSON adds the members of a JSON object to a node builder.
func appendJSON(b *node.Builder, obj gjson.Result) {
	obj.ForEach(func(key, value gjson.Result) bool {
		appendJSONValue(b, key.String(), value)
		return true
	})
}

func appendJSONValue(b *node.Builder, name string, value gjson.Result) {
	switch {
	case value.IsObject():
		child := node.NewBuilder(name)
		appendJSON(child, value)
		b.AddChild(child.Create())
	case value.IsArray():
		for _, elem := range value.Array() {
			appendJSONValue(b, name, elem)
		}
	case value.Type == gjson.Null:
		b.AddChild(node.New(name))
	default:
		b.AddChild(node.NewWithValue(name, jsonScalar(value)))
	}
}

// jsonScalar converts a JSON scalar to its Go value, keeping whole numbers
// as int64.
func jsonScalar(v gjson.Result) any {
	if v.Type == gjson.Number {
		f := v.Float()
		if i := v.Int(); float64(i) == f {
			return i
		}
		return f
	}
	return v.Value()
}
