// Package interp provides variable interpolation for configuration values.
//
// Interpolation is a pluggable post-processing step: the tree core returns
// raw strings and hands them to an Interpolator before surfacing them to the
// caller. Variables use the ${name} syntax; names are resolved through a
// Lookup, with optional fallback to a parent interpolator so scoped views
// can resolve variables defined in their owner.
package interp

import "strings"

// maxDepth bounds recursive substitution to break reference cycles.
const maxDepth = 16

// Lookup resolves a variable name to its replacement text.
type Lookup func(name string) (string, bool)

// Interpolator substitutes ${name} variables in strings.
type Interpolator struct {
	lookup Lookup
	parent *Interpolator
}

// New creates an interpolator with the given lookup.
func New(lookup Lookup) *Interpolator {
	return &Interpolator{lookup: lookup}
}

// WithParent returns an interpolator that consults the receiver's lookup
// first and falls back to parent for unresolved names.
func (p *Interpolator) WithParent(parent *Interpolator) *Interpolator {
	return &Interpolator{lookup: p.lookup, parent: parent}
}

// Resolve looks up a single variable name, consulting the parent chain.
func (p *Interpolator) Resolve(name string) (string, bool) {
	for ip := p; ip != nil; ip = ip.parent {
		if ip.lookup == nil {
			continue
		}
		if v, ok := ip.lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

// Interpolate substitutes every ${name} occurrence in s. Unresolvable
// variables are left verbatim. Substituted text is itself interpolated,
// up to a fixed depth to tolerate reference cycles.
func (p *Interpolator) Interpolate(s string) string {
	if p == nil {
		return s
	}
	return p.interpolate(s, 0)
}

func (p *Interpolator) interpolate(s string, depth int) string {
	if depth >= maxDepth || !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			return b.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			return b.String()
		}
		end += start
		b.WriteString(s[:start])
		name := s[start+2 : end]
		if v, ok := p.Resolve(name); ok {
			b.WriteString(p.interpolate(v, depth+1))
		} else {
			b.WriteString(s[start : end+1])
		}
		s = s[end+1:]
	}
}
