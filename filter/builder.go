package filter

import (
	"time"

	"github.com/paulmach/orb"
)

// AttributeBuilder creates leaf nodes for a single attribute.
//
//	f := filter.AllOf(
//	    filter.Attribute("title").Like("report*"),
//	    filter.Attribute("modified").After(since),
//	)
type AttributeBuilder struct {
	name string
}

// Attribute starts a leaf node on the named attribute.
func Attribute(name string) AttributeBuilder {
	return AttributeBuilder{name: name}
}

func (b AttributeBuilder) compare(op ComparisonOperator, literal any) Node {
	return &AttributeComparison{Attribute: b.name, Operator: op, Literal: literal}
}

func (b AttributeBuilder) EqualTo(literal any) Node { return b.compare(OpEqual, literal) }

func (b AttributeBuilder) NotEqualTo(literal any) Node { return b.compare(OpNotEqual, literal) }

func (b AttributeBuilder) GreaterThan(literal any) Node { return b.compare(OpGreaterThan, literal) }

func (b AttributeBuilder) GreaterOrEqual(literal any) Node {
	return b.compare(OpGreaterOrEqual, literal)
}

func (b AttributeBuilder) LessThan(literal any) Node { return b.compare(OpLessThan, literal) }

func (b AttributeBuilder) LessOrEqual(literal any) Node { return b.compare(OpLessOrEqual, literal) }

// Like creates a case-insensitive text search.
func (b AttributeBuilder) Like(pattern string) Node {
	return &Like{Attribute: b.name, Pattern: pattern}
}

// LikeCase creates a case-sensitive text search.
func (b AttributeBuilder) LikeCase(pattern string) Node {
	return &Like{Attribute: b.name, Pattern: pattern, CaseSensitive: true}
}

func (b AttributeBuilder) IsNull() Node { return &AttributeIsNull{Attribute: b.name} }

func (b AttributeBuilder) After(t time.Time) Node {
	return &TemporalComparison{Attribute: b.name, Operator: OpAfter, Instant: t}
}

func (b AttributeBuilder) Before(t time.Time) Node {
	return &TemporalComparison{Attribute: b.name, Operator: OpBefore, Instant: t}
}

func (b AttributeBuilder) During(start, end time.Time) Node {
	return &TemporalComparison{
		Attribute: b.name,
		Operator:  OpDuring,
		Interval:  &Interval{Start: start, End: end},
	}
}

func (b AttributeBuilder) spatial(op SpatialOperator, g orb.Geometry, distance float64) Node {
	return &SpatialComparison{Attribute: b.name, Operator: op, Geometry: g, Distance: distance}
}

func (b AttributeBuilder) Intersects(g orb.Geometry) Node { return b.spatial(OpIntersects, g, 0) }

func (b AttributeBuilder) Contains(g orb.Geometry) Node { return b.spatial(OpContains, g, 0) }

func (b AttributeBuilder) Within(g orb.Geometry) Node { return b.spatial(OpWithin, g, 0) }

func (b AttributeBuilder) Disjoint(g orb.Geometry) Node { return b.spatial(OpDisjoint, g, 0) }

// DWithin matches geometries closer than distance meters to g.
func (b AttributeBuilder) DWithin(g orb.Geometry, distance float64) Node {
	return b.spatial(OpDWithin, g, distance)
}

// Beyond matches geometries farther than distance meters from g.
func (b AttributeBuilder) Beyond(g orb.Geometry, distance float64) Node {
	return b.spatial(OpBeyond, g, distance)
}

// AllOf combines nodes with AND.
func AllOf(children ...Node) Node { return &And{Children: children} }

// AnyOf combines nodes with OR.
func AnyOf(children ...Node) Node { return &Or{Children: children} }

// Negate wraps a node with NOT.
func Negate(child Node) Node { return &Not{Child: child} }
