package treeconf

import (
	"errors"
	"fmt"

	"github.com/treeconf/treeconf/keyexpr"
	"github.com/treeconf/treeconf/resolve"
)

// Errors returned by configuration operations. The parse and resolution
// sentinels are aliases of the ones defined next to the code that produces
// them, so callers can match with errors.Is at either level.
var (
	// ErrMalformedKey indicates an unparsable key expression.
	ErrMalformedKey = keyexpr.ErrMalformedKey

	// ErrKeyNotFound indicates a single-result resolution found no match.
	ErrKeyNotFound = resolve.ErrKeyNotFound

	// ErrAmbiguousKey indicates a single-result resolution found more than
	// one match.
	ErrAmbiguousKey = resolve.ErrAmbiguousKey

	// ErrReadOnly indicates a write was attempted on an immutable view.
	ErrReadOnly = errors.New("configuration is read-only")

	// ErrTypeMismatch indicates the value type doesn't match the expected type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// TypeError is returned when a typed accessor finds a value of the wrong type.
type TypeError struct {
	// Key is the key expression the accessor was given.
	Key string
	// Expected is the expected type name.
	Expected string
	// Actual is the actual type name.
	Actual string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Key, e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	switch v.(type) {
	case string:
		return "string"
	case int, int64:
		return "int"
	case float64:
		return "float64"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	case []any:
		return "[]any"
	default:
		return fmt.Sprintf("%T", v)
	}
}
