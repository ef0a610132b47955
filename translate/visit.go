package translate

import (
	"strings"

	"github.com/hugr-lab/fedquery/filter"
)

// unsupported is the fragment of a node without native representation.
const unsupported = ""

// walker holds the state of one Translate call.
type walker struct {
	t *Translator

	// interest is set once any leaf translates or a discriminator matches.
	interest bool

	// wildcards counts wildcard-only Like leaves outside any Not, others
	// every other non-blank leaf predicate.
	wildcards int
	others    int

	// negated is the number of enclosing Not nodes.
	negated int
}

// visit returns the native fragment for a node, or unsupported.
func (w *walker) visit(node filter.Node) (string, error) {
	switch n := node.(type) {
	case nil:
		return unsupported, argError("", "", "nil node")
	case *filter.AttributeComparison:
		return w.comparison(n)
	case *filter.Like:
		return w.like(n)
	case *filter.AttributeIsNull:
		return w.isNull(n)
	case *filter.TemporalComparison:
		return w.temporal(n)
	case *filter.SpatialComparison:
		return w.spatial(n)
	case *filter.And:
		if n == nil {
			return unsupported, argError(filter.KindAnd, "", "nil node")
		}
		return w.reduce(n.Children, "AND")
	case *filter.Or:
		if n == nil {
			return unsupported, argError(filter.KindOr, "", "nil node")
		}
		return w.reduce(n.Children, "OR")
	case *filter.Not:
		return w.not(n)
	default:
		return unsupported, argError(node.Kind(), "", "unknown node type %T", node)
	}
}

func (w *walker) comparison(n *filter.AttributeComparison) (string, error) {
	if n == nil {
		return unsupported, argError(filter.KindComparison, "", "nil node")
	}
	if strings.TrimSpace(n.Attribute) == "" {
		return unsupported, argError(filter.KindComparison, "", "empty attribute name")
	}
	if !n.Operator.Valid() {
		return unsupported, argError(filter.KindComparison, n.Attribute, "unknown operator %q", n.Operator)
	}
	caps := w.t.caps
	literal, err := caps.formatLiteral(n.Operator, n.Literal)
	if err != nil {
		return unsupported, argError(filter.KindComparison, n.Attribute, "%v", err)
	}
	if n.Operator == filter.OpEqual && w.t.isMarker(n.Attribute, n.Literal) {
		w.interest = true
	}
	if isBlankLiteral(n.Literal) {
		return unsupported, nil
	}
	w.others++

	native, support, ok := w.t.lookup(n.Attribute)
	if !ok || !support.Allows(n.Operator) {
		return unsupported, nil
	}
	symbol, ok := caps.Operators[n.Operator]
	if !ok || symbol == "" {
		return unsupported, nil
	}
	frag, ok := caps.onField(native, support, func(operand string) string {
		return operand + " " + symbol + " " + literal
	})
	if !ok {
		return unsupported, nil
	}
	return w.leaf(frag), nil
}

func (w *walker) like(n *filter.Like) (string, error) {
	if n == nil {
		return unsupported, argError(filter.KindLike, "", "nil node")
	}
	if strings.TrimSpace(n.Attribute) == "" {
		return unsupported, argError(filter.KindLike, "", "empty attribute name")
	}
	if w.t.isMarker(n.Attribute, n.Pattern) {
		w.interest = true
	}
	if strings.TrimSpace(n.Pattern) == "" {
		return unsupported, nil
	}
	if onlyWildcards(strings.TrimSpace(n.Pattern)) && w.negated == 0 {
		w.wildcards++
	} else {
		w.others++
	}

	native, support, ok := w.t.lookup(n.Attribute)
	if !ok || !support.Like {
		return unsupported, nil
	}
	caps := w.t.caps
	if !support.Wildcards && caps.hasWildcard(n.Pattern) {
		return unsupported, nil
	}
	if caps.hasNativeWildcard(n.Pattern) {
		return unsupported, nil
	}
	op := caps.LikeOperator
	if !n.CaseSensitive && caps.CaseInsensitiveLikeOperator != "" {
		op = caps.CaseInsensitiveLikeOperator
	}

	if !w.t.isAnyText(n.Attribute) {
		frag, ok := caps.onField(native, support, func(operand string) string {
			return caps.likeFragment(operand, op, n.Pattern, false)
		})
		if !ok {
			return unsupported, nil
		}
		return w.leaf(frag), nil
	}

	words := strings.Fields(n.Pattern)
	parts := make([]string, 0, len(words))
	for _, word := range words {
		frag, ok := caps.onField(native, support, func(operand string) string {
			return caps.likeFragment(operand, op, word, caps.ContainsTokens)
		})
		if !ok {
			return unsupported, nil
		}
		parts = append(parts, frag)
	}
	return w.leaf(w.group(parts, "OR")), nil
}

func (w *walker) isNull(n *filter.AttributeIsNull) (string, error) {
	if n == nil {
		return unsupported, argError(filter.KindIsNull, "", "nil node")
	}
	if strings.TrimSpace(n.Attribute) == "" {
		return unsupported, argError(filter.KindIsNull, "", "empty attribute name")
	}
	w.others++

	native, support, ok := w.t.lookup(n.Attribute)
	if !ok || !support.Nullable || w.t.caps.NullTest == "" {
		return unsupported, nil
	}
	return w.leaf(native + " " + w.t.caps.NullTest), nil
}

func (w *walker) temporal(n *filter.TemporalComparison) (string, error) {
	if n == nil {
		return unsupported, argError(filter.KindTemporal, "", "nil node")
	}
	if strings.TrimSpace(n.Attribute) == "" {
		return unsupported, argError(filter.KindTemporal, "", "empty attribute name")
	}
	switch n.Operator {
	case filter.OpAfter, filter.OpBefore:
		if n.Instant.IsZero() {
			return unsupported, argError(filter.KindTemporal, n.Attribute, "%s requires an instant", n.Operator)
		}
	case filter.OpDuring:
		if n.Interval == nil || n.Interval.Start.IsZero() || n.Interval.End.IsZero() {
			return unsupported, argError(filter.KindTemporal, n.Attribute, "during requires an interval")
		}
		if n.Interval.Start.After(n.Interval.End) {
			return unsupported, argError(filter.KindTemporal, n.Attribute, "interval starts after it ends")
		}
	default:
		return unsupported, argError(filter.KindTemporal, n.Attribute, "unknown operator %q", n.Operator)
	}
	w.others++

	native, support, ok := w.t.lookup(n.Attribute)
	if !ok || !support.Temporal {
		return unsupported, nil
	}
	caps := w.t.caps
	gt, lt := caps.Operators[filter.OpGreaterThan], caps.Operators[filter.OpLessThan]
	date := func(v any) string {
		s, _ := caps.formatLiteral(filter.OpEqual, v)
		return s
	}

	switch n.Operator {
	case filter.OpAfter:
		if gt == "" {
			return unsupported, nil
		}
		return w.leaf(native + " " + gt + " " + date(n.Instant)), nil
	case filter.OpBefore:
		if lt == "" {
			return unsupported, nil
		}
		return w.leaf(native + " " + lt + " " + date(n.Instant)), nil
	default:
		if gt == "" || lt == "" {
			return unsupported, nil
		}
		return w.leaf(native + " " + gt + " " + date(n.Interval.Start) +
			" AND " + native + " " + lt + " " + date(n.Interval.End)), nil
	}
}

func (w *walker) spatial(n *filter.SpatialComparison) (string, error) {
	if n == nil {
		return unsupported, argError(filter.KindSpatial, "", "nil node")
	}
	if strings.TrimSpace(n.Attribute) == "" {
		return unsupported, argError(filter.KindSpatial, "", "empty attribute name")
	}
	if n.Geometry == nil {
		return unsupported, argError(filter.KindSpatial, n.Attribute, "nil geometry")
	}
	switch n.Operator {
	case filter.OpIntersects, filter.OpContains, filter.OpWithin, filter.OpDisjoint:
	case filter.OpDWithin, filter.OpBeyond:
		if n.Distance < 0 {
			return unsupported, argError(filter.KindSpatial, n.Attribute, "negative distance %v", n.Distance)
		}
	default:
		return unsupported, argError(filter.KindSpatial, n.Attribute, "unknown operator %q", n.Operator)
	}
	w.others++

	native, support, ok := w.t.lookup(n.Attribute)
	if !ok || !support.Spatial || w.t.geometry == nil {
		return unsupported, nil
	}
	frag, ok := w.t.geometry.FormatSpatial(native, n.Operator, n.Geometry, n.Distance)
	if !ok {
		return unsupported, nil
	}
	return w.leaf(frag), nil
}

// not propagates unsupported children: negating an unknown predicate is
// never dropped.
func (w *walker) not(n *filter.Not) (string, error) {
	if n == nil || n.Child == nil {
		return unsupported, argError(filter.KindNot, "", "missing child")
	}
	w.negated++
	child, err := w.visit(n.Child)
	w.negated--
	if err != nil {
		return unsupported, err
	}
	if strings.TrimSpace(child) == "" || w.t.caps.NotKeyword == "" {
		return unsupported, nil
	}
	return w.t.caps.NotKeyword + " " + w.t.caps.GroupOpen + child + w.t.caps.GroupClose, nil
}

// leaf records a translated predicate.
func (w *walker) leaf(fragment string) string {
	if strings.TrimSpace(fragment) != "" {
		w.interest = true
	}
	return fragment
}
