package loader

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/treeconf/treeconf/node"
)

// YAMLLoader builds node trees from YAML documents.
type YAMLLoader struct {
	fs   FileSystem
	path string
}

// NewYAMLLoader creates a new YAML loader for the given path.
func NewYAMLLoader(path string) *YAMLLoader {
	return &YAMLLoader{
		fs:   DefaultFS(),
		path: path,
	}
}

// NewYAMLLoaderWithFS creates a YAML loader with a custom file system.
func NewYAMLLoaderWithFS(fs FileSystem, path string) *YAMLLoader {
	return &YAMLLoader{
		fs:   fs,
		path: path,
	}
}

// Load reads a node tree from the configured path.
func (l *YAMLLoader) Load() (*node.Node, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads a node tree from a specific path.
func (l *YAMLLoader) LoadFrom(path string) (*node.Node, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // File doesn't exist, not an error
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	m, err := l.parse(path, data)
	if err != nil {
		return nil, err
	}
	return FromMap(m), nil
}

// LoadFromReader reads a node tree from an io.Reader.
func (l *YAMLLoader) LoadFromReader(r io.Reader) (*node.Node, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	m, err := l.parse("<reader>", data)
	if err != nil {
		return nil, err
	}
	return FromMap(m), nil
}

// parse parses YAML data into a map.
func (l *YAMLLoader) parse(source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &ParseError{
			Path:    source,
			Message: err.Error(),
			Err:     err,
		}
	}

	return config, nil
}
