// Package pattern implements literal/regex/glob matching over values extracted
// from an untyped tool-input JSON tree.
package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// Kind is the pattern dialect used by a rule's match entry.
type Kind string

const (
	KindLiteral Kind = "literal"
	KindRegex   Kind = "regex"
	KindGlob    Kind = "glob"
)

// Pattern is a compiled, immutable matcher for a single pattern string.
type Pattern struct {
	Raw  string
	Kind Kind

	re *regexp.Regexp
	gl glob.Glob
}

// Compile validates and compiles a pattern. Regex patterns are compiled
// with a leading (?i), so they match case-insensitively unless the pattern
// itself turns that flag off with an inline (?-i).
func Compile(kind Kind, raw string) (*Pattern, error) {
	p := &Pattern{Raw: raw, Kind: kind}
	switch kind {
	case KindLiteral:
		return p, nil
	case KindRegex:
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, fmt.Errorf("compile regex %q: %w", raw, err)
		}
		p.re = re
		return p, nil
	case KindGlob:
		g, err := glob.Compile(raw, '/')
		if err != nil {
			return nil, fmt.Errorf("compile glob %q: %w", raw, err)
		}
		p.gl = g
		return p, nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %q", kind)
	}
}

// Match reports whether value satisfies the compiled pattern.
func (p *Pattern) Match(value string) bool {
	switch p.Kind {
	case KindLiteral:
		return value == p.Raw
	case KindRegex:
		return p.re.MatchString(value)
	case KindGlob:
		return p.gl.Match(value)
	default:
		return false
	}
}

// Tool inputs are untyped JSON trees: string, float64, bool, nil,
// map[string]interface{} or []interface{}, the shapes encoding/json.Unmarshal
// produces into interface{}. There is no named node type; ExtractField
// operates directly on map[string]interface{} / []interface{}.

// ExtractField resolves a dotted path ("a.b.c") against an untyped JSON tree.
// Any intermediate non-object, or a missing key, yields (nil, false) — field
// absence, never an error.
func ExtractField(input map[string]interface{}, path string) (interface{}, bool) {
	if input == nil {
		return nil, false
	}
	segments := strings.Split(path, ".")
	var cur interface{} = input
	for _, seg := range segments {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// ToMatchString renders an extracted field value into the string form that
// pattern matching operates on. Non-string scalars are rendered with %v;
// objects and arrays never match anything (scalars only).
func ToMatchString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool, float64, int, int64:
		return fmt.Sprintf("%v", t), true
	case nil:
		return "", false
	default:
		return "", false
	}
}
