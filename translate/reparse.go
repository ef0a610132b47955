package translate

import (
	"errors"
	"strings"

	"github.com/hugr-lab/fedquery/filter"
)

// ErrNotComparison is returned by ParseComparison for fragments that are not
// a single rendered comparison.
var ErrNotComparison = errors.New("translate: not a simple comparison")

// Comparison is a comparison recovered from a native fragment.
type Comparison struct {
	// Attribute is the native field name.
	Attribute string
	Operator  filter.ComparisonOperator
	// Literal is the unquoted literal text.
	Literal string
	// Quoted reports whether the literal was a quoted string.
	Quoted bool
}

// ParseComparison splits a fragment rendered for a simple comparison,
// "<native> <symbol> <literal>", back into its parts.
func ParseComparison(caps *Capabilities, fragment string) (Comparison, error) {
	parts := strings.SplitN(strings.TrimSpace(fragment), " ", 3)
	if len(parts) != 3 || parts[0] == "" {
		return Comparison{}, ErrNotComparison
	}

	var op filter.ComparisonOperator
	for candidate, symbol := range caps.Operators {
		if symbol == parts[1] {
			op = candidate
			break
		}
	}
	if op == "" {
		return Comparison{}, ErrNotComparison
	}

	c := Comparison{Attribute: parts[0], Operator: op, Literal: parts[2]}
	if strings.HasPrefix(parts[2], caps.Quote) {
		lit, ok := caps.unquoteLiteral(parts[2])
		if !ok {
			return Comparison{}, ErrNotComparison
		}
		c.Literal, c.Quoted = lit, true
	} else if strings.ContainsRune(parts[2], ' ') {
		return Comparison{}, ErrNotComparison
	}
	return c, nil
}
