// Package keyexpr implements the key expression language used to address
// nodes in a configuration tree.
//
// A key is a sequence of segments separated by dots. A segment may carry a
// parenthesized index selecting one of several same-named siblings, e.g.
// "tables.table(1)". A segment written "[@name]" addresses an attribute of
// the preceding node rather than a child element; the attribute marker
// attaches directly, without a separating dot: "connection[@type]".
// Structural characters (dot, parentheses, brackets) occurring literally in
// a name are escaped with a backslash.
//
// The index -1 is the append sentinel: "table(-1)" in an add operation means
// "create a new table sibling". Read operations never match it.
package keyexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// AppendIndex is the index sentinel denoting "new sibling to be created".
// It is only meaningful to add operations.
const AppendIndex = -1

// ErrMalformedKey indicates a key string that cannot be parsed. No recovery
// is attempted; the error is always surfaced to the caller.
var ErrMalformedKey = errors.New("malformed key")

// Segment is one step of a parsed key.
type Segment struct {
	// Name is the unescaped node or attribute name.
	Name string

	// Index selects one of several same-named siblings. Only meaningful
	// when HasIndex is true.
	Index int

	// HasIndex reports whether an explicit index was given.
	HasIndex bool

	// Attribute marks the segment as addressing an attribute instead of a
	// child element. Attribute segments never carry an index.
	Attribute bool
}

// structural characters that must be escaped inside a name.
const structural = `.()[]\`

// Parse parses a key string into its segments. An empty key yields no
// segments and addresses the root node itself.
func Parse(key string) ([]Segment, error) {
	var segs []Segment
	i := 0
	for i < len(key) {
		if key[i] == '.' {
			i++
			continue
		}
		seg, next, err := parseSegment(key, i)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
		i = next
	}
	return segs, nil
}

// parseSegment parses one segment starting at i and returns it together with
// the position after it.
func parseSegment(key string, i int) (Segment, int, error) {
	if key[i] == '[' {
		return parseAttribute(key, i)
	}

	var name strings.Builder
	for i < len(key) {
		c := key[i]
		switch c {
		case '\\':
			if i+1 >= len(key) {
				return Segment{}, 0, fmt.Errorf("%w: dangling escape at end of %q", ErrMalformedKey, key)
			}
			name.WriteByte(key[i+1])
			i += 2
		case '.':
			return Segment{Name: name.String()}, i + 1, nil
		case '[':
			// attribute marker attaches directly to the name
			return Segment{Name: name.String()}, i, nil
		case '(':
			return parseIndex(key, i+1, name.String())
		case ')', ']':
			return Segment{}, 0, fmt.Errorf("%w: unexpected %q at position %d in %q", ErrMalformedKey, string(c), i, key)
		default:
			name.WriteByte(c)
			i++
		}
	}
	return Segment{Name: name.String()}, i, nil
}

// parseIndex parses "(N)" with i positioned just past the opening paren.
func parseIndex(key string, i int, name string) (Segment, int, error) {
	end := strings.IndexByte(key[i:], ')')
	if end < 0 {
		return Segment{}, 0, fmt.Errorf("%w: unterminated index in %q", ErrMalformedKey, key)
	}
	idx, err := strconv.Atoi(key[i : i+end])
	if err != nil || idx < AppendIndex {
		return Segment{}, 0, fmt.Errorf("%w: invalid index %q in %q", ErrMalformedKey, key[i:i+end], key)
	}
	next := i + end + 1
	if next < len(key) && key[next] != '.' && key[next] != '[' {
		return Segment{}, 0, fmt.Errorf("%w: unexpected %q after index in %q", ErrMalformedKey, string(key[next]), key)
	}
	return Segment{Name: name, Index: idx, HasIndex: true}, next, nil
}

// parseAttribute parses "[@name]" with i positioned at the opening bracket.
func parseAttribute(key string, i int) (Segment, int, error) {
	if i+1 >= len(key) || key[i+1] != '@' {
		return Segment{}, 0, fmt.Errorf("%w: expected \"[@\" at position %d in %q", ErrMalformedKey, i, key)
	}
	var name strings.Builder
	j := i + 2
	for j < len(key) {
		c := key[j]
		switch c {
		case '\\':
			if j+1 >= len(key) {
				return Segment{}, 0, fmt.Errorf("%w: dangling escape at end of %q", ErrMalformedKey, key)
			}
			name.WriteByte(key[j+1])
			j += 2
		case ']':
			if name.Len() == 0 {
				return Segment{}, 0, fmt.Errorf("%w: empty attribute name in %q", ErrMalformedKey, key)
			}
			next := j + 1
			if next < len(key) && key[next] != '.' {
				return Segment{}, 0, fmt.Errorf("%w: unexpected %q after attribute in %q", ErrMalformedKey, string(key[next]), key)
			}
			return Segment{Name: name.String(), Attribute: true}, next, nil
		default:
			name.WriteByte(c)
			j++
		}
	}
	return Segment{}, 0, fmt.Errorf("%w: unterminated attribute bracket in %q", ErrMalformedKey, key)
}

// Render produces the canonical string form of a segment sequence. It is the
// left inverse of Parse: Parse(Render(segs)) returns segs for any sequence
// produced by Parse.
func Render(segs []Segment) string {
	var b strings.Builder
	for i, seg := range segs {
		if seg.Attribute {
			b.WriteString("[@")
			b.WriteString(Escape(seg.Name))
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(Escape(seg.Name))
		if seg.HasIndex {
			b.WriteByte('(')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(')')
		}
	}
	return b.String()
}

// Escape returns raw with all structural characters backslash-escaped, so the
// result can be embedded in a key as a literal name.
func Escape(raw string) string {
	if !strings.ContainsAny(raw, structural) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 2)
	for i := 0; i < len(raw); i++ {
		if strings.IndexByte(structural, raw[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

// Key builds a key string segment by segment, escaping names as it goes.
type Key struct {
	segs []Segment
}

// NewKey returns an empty key builder.
func NewKey() *Key {
	return &Key{}
}

// Append adds a child-element segment.
func (k *Key) Append(name string) *Key {
	k.segs = append(k.segs, Segment{Name: name})
	return k
}

// AppendIndex attaches an index to the last appended segment.
func (k *Key) AppendIndex(index int) *Key {
	if len(k.segs) > 0 {
		k.segs[len(k.segs)-1].Index = index
		k.segs[len(k.segs)-1].HasIndex = true
	}
	return k
}

// AppendAttribute adds an attribute segment.
func (k *Key) AppendAttribute(name string) *Key {
	k.segs = append(k.segs, Segment{Name: name, Attribute: true})
	return k
}

// Segments returns the accumulated segments.
func (k *Key) Segments() []Segment {
	return k.segs
}

// String renders the key in canonical form.
func (k *Key) String() string {
	return Render(k.segs)
}
