// Package filter defines the backend-agnostic filter expression tree used to
// query metacards across federated sources.
//
// A filter is a tree of predicates over named metacard attributes. Leaves
// compare one attribute with one literal (comparison, like, null test,
// temporal and spatial relations); And, Or and Not combine them. The set of
// node types is closed, so consumers visit a tree with a type switch:
//
//	switch n := node.(type) {
//	case *filter.AttributeComparison:
//	    ...
//	case *filter.And:
//	    ...
//	}
//
// # Building Filters
//
//	f := filter.AllOf(
//	    filter.Attribute("title").EqualTo("val1"),
//	    filter.Attribute("modified").During(start, end),
//	    filter.Negate(filter.Attribute(filter.AnyText).Like("draft")),
//	)
//
// Trees are immutable once built. Translators only read them.
//
// # JSON Form
//
// Parse and Encode convert trees to and from JSON:
//
//	{"type": "and", "children": [
//	    {"type": "comparison", "attribute": "title", "operator": "equal", "value": "val1"},
//	    {"type": "temporal", "attribute": "modified", "operator": "during",
//	     "start": "2024-01-01T00:00:00Z", "end": "2024-02-01T00:00:00Z"},
//	    {"type": "spatial", "attribute": "location", "operator": "intersects",
//	     "geometry": "POLYGON((0 0,10 0,10 10,0 10,0 0))"}
//	]}
//
// Times use RFC 3339; geometries use WKT.
package filter
