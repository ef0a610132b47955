package translate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hugr-lab/fedquery/filter"
)

// quoteLiteral returns a native string literal with proper escaping.
func (c *Capabilities) quoteLiteral(s string) string {
	return c.Quote + c.escape(s) + c.Quote
}

func (c *Capabilities) escape(s string) string {
	if c.QuoteEscape == EscapeDouble {
		return strings.ReplaceAll(s, c.Quote, c.Quote+c.Quote)
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, c.Quote, `\`+c.Quote)
}

// unquoteLiteral reverses quoteLiteral. ok is false if s is not quoted.
func (c *Capabilities) unquoteLiteral(s string) (string, bool) {
	if len(s) < 2 || !strings.HasPrefix(s, c.Quote) || !strings.HasSuffix(s, c.Quote) {
		return "", false
	}
	inner := s[len(c.Quote) : len(s)-len(c.Quote)]
	if c.QuoteEscape == EscapeDouble {
		if strings.Contains(strings.ReplaceAll(inner, c.Quote+c.Quote, ""), c.Quote) {
			return "", false
		}
		return strings.ReplaceAll(inner, c.Quote+c.Quote, c.Quote), true
	}
	var sb strings.Builder
	escaped := false
	for _, r := range inner {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
			continue
		case string(r) == c.Quote:
			return "", false
		}
		sb.WriteRune(r)
	}
	if escaped {
		return "", false
	}
	return sb.String(), true
}

// formatDate renders a time with the backend date layout in UTC, unquoted.
func (c *Capabilities) formatDate(t time.Time) string {
	return t.UTC().Format(c.DateFormat)
}

// formatLiteral renders a comparison literal. Numbers and booleans are
// unquoted; strings and times are quoted.
func (c *Capabilities) formatLiteral(op filter.ComparisonOperator, v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("nil literal")
	case string:
		return c.quoteLiteral(x), nil
	case bool:
		if op != filter.OpEqual && op != filter.OpNotEqual {
			return "", fmt.Errorf("operator %s not applicable to boolean", op)
		}
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", x), nil
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case time.Time:
		if x.IsZero() {
			return "", fmt.Errorf("zero time literal")
		}
		return c.quoteLiteral(c.formatDate(x)), nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}

func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite number %v", f)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// isBlankLiteral reports whether v is a string with no visible characters.
func isBlankLiteral(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// nativePattern rewrites filter wildcards into native ones. With LikeEscape
// set, native wildcard characters and the escape character itself are
// escaped; escaped reports whether any were.
func (c *Capabilities) nativePattern(pattern string) (native string, escaped bool) {
	var sb strings.Builder
	sb.Grow(len(pattern))
	for _, r := range pattern {
		switch {
		case r == filter.Wildcard:
			sb.WriteString(c.Wildcard)
		case r == filter.SingleChar && c.SingleChar != "":
			sb.WriteString(c.SingleChar)
		case c.LikeEscape != "" && c.isLikeSpecial(string(r)):
			sb.WriteString(c.LikeEscape)
			sb.WriteRune(r)
			escaped = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String(), escaped
}

func (c *Capabilities) isLikeSpecial(s string) bool {
	return s == c.Wildcard || (c.SingleChar != "" && s == c.SingleChar) || s == c.LikeEscape
}

// likeFragment renders one text match. contains wraps the pattern in
// native wildcards.
func (c *Capabilities) likeFragment(field, op, pattern string, contains bool) string {
	native, escaped := c.nativePattern(pattern)
	if contains {
		native = c.Wildcard + native + c.Wildcard
	}
	frag := field + " " + op + " " + c.quoteLiteral(native)
	if escaped {
		frag += " ESCAPE " + c.quoteLiteral(c.LikeEscape)
	}
	return frag
}

// onField renders pred against a field. List fields are matched element
// by element through ListPredicate; ok is false when the backend has none.
func (c *Capabilities) onField(native string, support AttributeSupport, pred func(operand string) string) (string, bool) {
	if !support.List {
		return pred(native), true
	}
	if c.ListPredicate == "" {
		return "", false
	}
	return fmt.Sprintf(c.ListPredicate, native, pred(c.ListElement)), true
}

// hasWildcard reports whether a filter pattern uses wildcards the backend
// would interpret. '?' only counts when the backend has a single-char wildcard.
func (c *Capabilities) hasWildcard(pattern string) bool {
	if strings.ContainsRune(pattern, filter.Wildcard) {
		return true
	}
	return c.SingleChar != "" && strings.ContainsRune(pattern, filter.SingleChar)
}

// hasNativeWildcard reports whether a filter pattern literally contains a
// native wildcard character that is not also a filter wildcard and cannot
// be escaped.
func (c *Capabilities) hasNativeWildcard(pattern string) bool {
	if c.LikeEscape != "" {
		return false
	}
	for _, w := range []string{c.Wildcard, c.SingleChar} {
		if w == "" || w == string(filter.Wildcard) || w == string(filter.SingleChar) {
			continue
		}
		if strings.Contains(pattern, w) {
			return true
		}
	}
	return false
}

// onlyWildcards reports whether a non-empty pattern is made of '*' only.
func onlyWildcards(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, r := range pattern {
		if r != filter.Wildcard {
			return false
		}
	}
	return true
}
