// Package wildcard matches selector values against node attributes using
// shell-style globs.
//
// Patterns without any of * ? [ { compare by equality. Compiled globs are
// cached since a single evaluation tests the same pattern against every node.
package wildcard

import (
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

const metaChars = "*?[{"

// HasWildcard reports whether pattern contains glob metacharacters.
func HasWildcard(pattern string) bool {
	return strings.ContainsAny(pattern, metaChars)
}

// Matcher matches strings against glob patterns. The zero value is ready to
// use and safe for concurrent use.
type Matcher struct {
	cache sync.Map // pattern -> glob.Glob (nil when the pattern is invalid)
}

// Default is the process-wide matcher.
var Default = &Matcher{}

// Match reports whether s matches pattern.
//
// A pattern that fails to compile is compared by equality instead.
func (m *Matcher) Match(pattern, s string) bool {
	if !HasWildcard(pattern) {
		return pattern == s
	}
	g := m.compile(pattern)
	if g == nil {
		return pattern == s
	}
	return g.Match(s)
}

// MatchAny reports whether any of values matches pattern.
func (m *Matcher) MatchAny(pattern string, values ...string) bool {
	for _, v := range values {
		if m.Match(pattern, v) {
			return true
		}
	}
	return false
}

func (m *Matcher) compile(pattern string) glob.Glob {
	if cached, ok := m.cache.Load(pattern); ok {
		g, _ := cached.(glob.Glob)
		return g
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		m.cache.Store(pattern, nil)
		return nil
	}
	m.cache.Store(pattern, g)
	return g
}

// Match reports whether s matches pattern using the Default matcher.
func Match(pattern, s string) bool {
	return Default.Match(pattern, s)
}

// MatchAny reports whether any value matches pattern using the Default matcher.
func MatchAny(pattern string, values ...string) bool {
	return Default.MatchAny(pattern, values...)
}

// Valid reports whether pattern compiles. Literal patterns are always valid.
func (m *Matcher) Valid(pattern string) bool {
	return !HasWildcard(pattern) || m.compile(pattern) != nil
}

// Valid reports whether pattern compiles using the Default matcher.
func Valid(pattern string) bool {
	return Default.Valid(pattern)
}
