package filter

import (
	"time"

	"github.com/paulmach/orb"
)

// Kind identifies the variant of a filter node.
type Kind string

const (
	KindComparison Kind = "comparison"
	KindIsNull     Kind = "isNull"
	KindTemporal   Kind = "temporal"
	KindSpatial    Kind = "spatial"
	KindLike       Kind = "like"
	KindAnd        Kind = "and"
	KindOr         Kind = "or"
	KindNot        Kind = "not"
)

// ComparisonOperator identifies a binary attribute comparison.
type ComparisonOperator string

const (
	OpEqual          ComparisonOperator = "equal"
	OpNotEqual       ComparisonOperator = "notEqual"
	OpGreaterThan    ComparisonOperator = "greaterThan"
	OpGreaterOrEqual ComparisonOperator = "greaterOrEqual"
	OpLessThan       ComparisonOperator = "lessThan"
	OpLessOrEqual    ComparisonOperator = "lessOrEqual"
)

// ComparisonOperators lists every comparison operator in canonical order.
var ComparisonOperators = []ComparisonOperator{
	OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual,
}

// Valid reports whether op is a known comparison operator.
func (op ComparisonOperator) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return true
	}
	return false
}

// TemporalOperator identifies a comparison against an instant or interval.
type TemporalOperator string

const (
	OpAfter  TemporalOperator = "after"
	OpBefore TemporalOperator = "before"
	OpDuring TemporalOperator = "during"
)

// SpatialOperator identifies a geometric relation.
type SpatialOperator string

const (
	OpIntersects SpatialOperator = "intersects"
	OpContains   SpatialOperator = "contains"
	OpWithin     SpatialOperator = "within"
	OpDisjoint   SpatialOperator = "disjoint"
	OpDWithin    SpatialOperator = "dwithin"
	OpBeyond     SpatialOperator = "beyond"
)

// UsesDistance reports whether the operator takes a distance argument.
func (op SpatialOperator) UsesDistance() bool {
	return op == OpDWithin || op == OpBeyond
}

// Well-known abstract attribute names.
const (
	// AnyText is the pseudo-attribute matching any textual field of a metacard.
	AnyText = "anyText"

	// MetacardTags holds the tags used to discriminate metacard domains.
	MetacardTags = "metacard-tags"

	// Wildcard matches any sequence of characters in Like patterns.
	Wildcard = '*'

	// SingleChar matches exactly one character in Like patterns.
	SingleChar = '?'
)

// Node is the interface implemented by all filter tree variants.
// The set of variants is closed; use a type switch to visit them.
type Node interface {
	// Kind returns the node variant.
	Kind() Kind

	// nodeMarker prevents implementations outside this package.
	nodeMarker()
}

// AttributeComparison compares an attribute with a literal value.
// Literal is a string, bool, integer, float or time.Time.
type AttributeComparison struct {
	Attribute string
	Operator  ComparisonOperator
	Literal   any
}

// AttributeIsNull matches records where the attribute has no value.
type AttributeIsNull struct {
	Attribute string
}

// Interval is a closed time range.
type Interval struct {
	Start time.Time
	End   time.Time
}

// TemporalComparison compares a date attribute with an instant (after, before)
// or an interval (during).
type TemporalComparison struct {
	Attribute string
	Operator  TemporalOperator
	Instant   time.Time
	Interval  *Interval
}

// SpatialComparison relates a geometry attribute to a geometry literal.
// Distance is only meaningful for dwithin and beyond.
type SpatialComparison struct {
	Attribute string
	Operator  SpatialOperator
	Geometry  orb.Geometry
	Distance  float64
}

// Like is a text search on an attribute. Pattern uses '*' and '?' wildcards.
type Like struct {
	Attribute     string
	Pattern       string
	CaseSensitive bool
}

// And matches when all children match.
type And struct {
	Children []Node
}

// Or matches when any child matches.
type Or struct {
	Children []Node
}

// Not negates its child.
type Not struct {
	Child Node
}

func (*AttributeComparison) Kind() Kind { return KindComparison }
func (*AttributeIsNull) Kind() Kind     { return KindIsNull }
func (*TemporalComparison) Kind() Kind  { return KindTemporal }
func (*SpatialComparison) Kind() Kind   { return KindSpatial }
func (*Like) Kind() Kind                { return KindLike }
func (*And) Kind() Kind                 { return KindAnd }
func (*Or) Kind() Kind                  { return KindOr }
func (*Not) Kind() Kind                 { return KindNot }

func (*AttributeComparison) nodeMarker() {}
func (*AttributeIsNull) nodeMarker()     {}
func (*TemporalComparison) nodeMarker()  {}
func (*SpatialComparison) nodeMarker()   {}
func (*Like) nodeMarker()                {}
func (*And) nodeMarker()                 {}
func (*Or) nodeMarker()                  {}
func (*Not) nodeMarker()                 {}

// AttributeName returns the attribute referenced by a leaf node,
// or "" for compound nodes.
func AttributeName(n Node) string {
	switch v := n.(type) {
	case *AttributeComparison:
		return v.Attribute
	case *AttributeIsNull:
		return v.Attribute
	case *TemporalComparison:
		return v.Attribute
	case *SpatialComparison:
		return v.Attribute
	case *Like:
		return v.Attribute
	}
	return ""
}
