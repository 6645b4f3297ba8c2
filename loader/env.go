package loader

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/treeconf/treeconf/node"
)

// EnvLoader builds node trees from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix (e.g., "MYAPP_")
	mapping map[string]string // Env var -> configuration key
}

// NewEnvLoader creates a new environment variable loader. The prefix should
// include the trailing underscore (e.g., "MYAPP_").
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix}
}

// NewEnvLoaderWithMapping creates a loader with explicit variable mappings in
// addition to the prefix scan.
func NewEnvLoaderWithMapping(prefix string, mapping map[string]string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: mapping,
	}
}

// Load reads environment variables and builds a node tree.
// Note: Empty string values are treated as valid values, not as unset.
func (l *EnvLoader) Load() (*node.Node, error) {
	config := make(map[string]any)

	// First, load explicitly mapped variables
	for env, key := range l.mapping {
		if val, ok := os.LookupEnv(env); ok {
			setByKey(config, key, l.parseValue(val))
		}
	}

	// Then, scan for additional prefixed variables not in mapping
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, l.prefix) {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		name := parts[0]
		value := parts[1]

		// Skip if already mapped
		if _, ok := l.mapping[name]; ok {
			continue
		}

		// Convert MYAPP_DATABASE_MAX_CONNECTIONS to database.maxConnections
		setByKey(config, l.envToKey(name), l.parseValue(value))
	}

	return FromMap(config), nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, key string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = key
}

// RemoveMapping removes an environment variable mapping.
func (l *EnvLoader) RemoveMapping(envVar string) {
	delete(l.mapping, envVar)
}

// envToKey converts MYAPP_DATABASE_MAX_CONNECTIONS to database.maxConnections.
func (l *EnvLoader) envToKey(env string) string {
	// Remove prefix
	name := strings.TrimPrefix(env, l.prefix)

	// Split by underscore
	parts := strings.Split(name, "_")
	if len(parts) == 0 {
		return strings.ToLower(name)
	}

	// Convert to camelCase key
	// First part is section (lowercase)
	// Subsequent parts form the setting name in camelCase
	result := make([]string, 0, 2)

	if len(parts) > 0 {
		result = append(result, strings.ToLower(parts[0]))
	}

	if len(parts) > 1 {
		settingParts := parts[1:]
		settingName := strings.ToLower(settingParts[0])
		for i := 1; i < len(settingParts); i++ {
			part := settingParts[i]
			if len(part) > 0 {
				settingName += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
			}
		}
		result = append(result, settingName)
	}

	return strings.Join(result, ".")
}

// parseValue attempts to parse the string value into an appropriate type.
func (l *EnvLoader) parseValue(s string) any {
	// Empty string
	if s == "" {
		return s
	}

	// Try bool
	lower := strings.ToLower(s)
	if lower == "true" || lower == "yes" || lower == "on" || s == "1" {
		return true
	}
	if lower == "false" || lower == "no" || lower == "off" || s == "0" {
		return false
	}

	// Try int
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	// Try float (only if it contains a decimal point to avoid misinterpreting ints)
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	// Try duration
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	// Try JSON array/object
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		if gjson.Valid(s) {
			return gjson.Parse(s).Value()
		}
	}

	// Default to string
	return s
}

// setByKey sets a value in a nested map using a dot-separated key.
func setByKey(data map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	current := data

	// Navigate/create intermediate maps
	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if next, ok := current[part].(map[string]any); ok {
			current = next
		} else {
			// Create intermediate map
			next := make(map[string]any)
			current[part] = next
			current = next
		}
	}

	// Set the final value
	if len(parts) > 0 {
		current[parts[len(parts)-1]] = value
	}
}
