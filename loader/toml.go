package loader

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/treeconf/treeconf/node"
)

// TOMLLoader builds node trees from TOML files.
type TOMLLoader struct {
	fs   FileSystem
	path string
}

// NewTOMLLoader creates a new TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return &TOMLLoader{
		fs:   DefaultFS(),
		path: path,
	}
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fs FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{
		fs:   fs,
		path: path,
	}
}

// Load reads a node tree from the configured path.
func (l *TOMLLoader) Load() (*node.Node, error) {
	return l.LoadFrom(l.path)
}

// LoadFrom reads a node tree from a specific path.
func (l *TOMLLoader) LoadFrom(path string) (*node.Node, error) {
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
func (l *TOMLLoader) LoadFromReader(r io.Reader) (*node.Node, error) {
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

// parse parses TOML data into a map.
func (l *TOMLLoader) parse(source string, data []byte) (map[string]any, error) {
	var config map[string]any
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, &ParseError{
			Path:    source,
			Message: err.Error(),
			Err:     err,
		}
	}

	return config, nil
}

// LoadWithIncludes loads a TOML file, processes @include directives, and
// builds a node tree from the merged result. The maxDepth parameter limits
// nested includes to prevent infinite loops.
func (l *TOMLLoader) LoadWithIncludes(path string, maxDepth int) (*node.Node, error) {
	m, err := l.loadMapWithIncludes(path, maxDepth)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return FromMap(m), nil
}

func (l *TOMLLoader) loadMapWithIncludes(path string, maxDepth int) (map[string]any, error) {
	if maxDepth <= 0 {
		return nil, fmt.Errorf("include depth exceeded for %s", path)
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	config, err := l.parse(path, data)
	if err != nil {
		return nil, err
	}

	// Process @include directive
	includes, hasIncludes := config["@include"]
	if !hasIncludes {
		return config, nil
	}

	// Remove the @include key from result
	delete(config, "@include")

	// Handle includes
	baseDir := filepath.Dir(path)
	var includeList []string

	switch v := includes.(type) {
	case string:
		includeList = []string{v}
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("@include must be string or array of strings")
			}
			includeList = append(includeList, s)
		}
	case []string:
		includeList = v
	default:
		return nil, fmt.Errorf("@include must be string or array of strings, got %T", includes)
	}

	// Load and merge includes (includes are lower priority than main file)
	for _, inc := range includeList {
		incPath := inc
		if !filepath.IsAbs(inc) {
			incPath = filepath.Join(baseDir, inc)
		}

		incConfig, err := l.loadMapWithIncludes(incPath, maxDepth-1)
		if err != nil {
			return nil, fmt.Errorf("loading include %s: %w", incPath, err)
		}

		// Merge: main file values override include values
		config = DeepMerge(incConfig, config)
	}

	return config, nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
