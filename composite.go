package treeconf

import (
	"fmt"
	"sync"
)

// Composite combines several configurations into one logical view.
//
// Reads consult the children in registration order and the first one that
// defines the key wins. Writes always go to a dedicated in-memory
// configuration that sits in front of every registered child, so the sources
// handed to the composite are never modified through it.
type Composite struct {
	mu       sync.RWMutex
	children []*Configuration
	inMemory *Configuration
}

// NewComposite creates a composite with an empty in-memory configuration in
// front of the given children.
func NewComposite(children ...*Configuration) *Composite {
	return &Composite{
		children: children,
		inMemory: New(),
	}
}

// AddConfiguration appends a configuration with the lowest precedence so far.
func (m *Composite) AddConfiguration(c *Configuration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = append(m.children, c)
}

// RemoveConfiguration removes a previously added configuration. It reports
// whether the configuration was found.
func (m *Composite) RemoveConfiguration(c *Configuration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, child := range m.children {
		if child == c {
			m.children = append(m.children[:i], m.children[i+1:]...)
			return true
		}
	}
	return false
}

// ConfigurationCount returns the number of children, including the in-memory
// configuration.
func (m *Composite) ConfigurationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.children) + 1
}

// Configuration returns the child at position i, with position 0 being the
// in-memory configuration.
func (m *Composite) Configuration(i int) *Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i == 0 {
		return m.inMemory
	}
	if i < 1 || i > len(m.children) {
		return nil
	}
	return m.children[i-1]
}

// InMemory returns the configuration receiving writes.
func (m *Composite) InMemory() *Configuration {
	return m.inMemory
}

// source returns the first child defining key, searching the in-memory
// configuration first.
func (m *Composite) source(key string) *Configuration {
	if m.inMemory.ContainsKey(key) {
		return m.inMemory
	}
	for _, child := range m.children {
		if child.ContainsKey(key) {
			return child
		}
	}
	return nil
}

// Property returns the raw data for key from the first child defining it.
func (m *Composite) Property(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.source(key); c != nil {
		return c.Property(key)
	}
	return nil
}

// ContainsKey reports whether any child defines key.
func (m *Composite) ContainsKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source(key) != nil
}

// WhichConfiguration returns the child that provides key, or nil.
func (m *Composite) WhichConfiguration(key string) *Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.source(key)
}

// GetString returns the interpolated string for key from the first child
// defining it.
func (m *Composite) GetString(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.source(key); c != nil {
		return c.GetString(key)
	}
	return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// GetInt returns the integer value for key from the first child defining it.
func (m *Composite) GetInt(key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.source(key); c != nil {
		return c.GetInt(key)
	}
	return 0, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// GetBool returns the boolean value for key from the first child defining it.
func (m *Composite) GetBool(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c := m.source(key); c != nil {
		return c.GetBool(key)
	}
	return false, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// SetProperty sets key in the in-memory configuration, shadowing every child.
func (m *Composite) SetProperty(key string, value any) error {
	return m.inMemory.SetProperty(key, value)
}

// AddProperty adds key to the in-memory configuration.
func (m *Composite) AddProperty(key string, value any) error {
	return m.inMemory.AddProperty(key, value)
}

// ClearProperty removes key from the in-memory configuration only; values
// provided by children become visible again.
func (m *Composite) ClearProperty(key string) error {
	return m.inMemory.ClearProperty(key)
}

// Clear drops the in-memory configuration and all children.
func (m *Composite) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.children = nil
	m.inMemory = New()
}
