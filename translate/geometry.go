package translate

import (
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/hugr-lab/fedquery/filter"
)

// GeometryFormatter renders spatial predicates for a backend.
// It returns false when the relation cannot be expressed.
type GeometryFormatter interface {
	FormatSpatial(attribute string, op filter.SpatialOperator, g orb.Geometry, distance float64) (string, bool)
}

// OGCFormatter renders OGC CQL text spatial predicates:
//
//	INTERSECTS(location, POLYGON((...)))
//	DWITHIN(location, POINT(1 2), 100, meters)
type OGCFormatter struct {
	// Units for dwithin/beyond distances. Defaults to "meters".
	Units string
}

func (f OGCFormatter) FormatSpatial(attribute string, op filter.SpatialOperator, g orb.Geometry, distance float64) (string, bool) {
	if g == nil {
		return "", false
	}
	geom := wkt.MarshalString(g)

	var fn string
	switch op {
	case filter.OpIntersects:
		fn = "INTERSECTS"
	case filter.OpContains:
		fn = "CONTAINS"
	case filter.OpWithin:
		fn = "WITHIN"
	case filter.OpDisjoint:
		fn = "DISJOINT"
	case filter.OpDWithin, filter.OpBeyond:
		units := f.Units
		if units == "" {
			units = "meters"
		}
		fn = "DWITHIN"
		if op == filter.OpBeyond {
			fn = "BEYOND"
		}
		return fn + "(" + attribute + ", " + geom + ", " + formatDistance(distance) + ", " + units + ")", true
	default:
		return "", false
	}
	return fn + "(" + attribute + ", " + geom + ")", true
}

// DuckDBSpatialFormatter renders predicates for the DuckDB spatial extension.
// Distances are in the units of the column's coordinate system.
type DuckDBSpatialFormatter struct{}

func (DuckDBSpatialFormatter) FormatSpatial(attribute string, op filter.SpatialOperator, g orb.Geometry, distance float64) (string, bool) {
	if g == nil {
		return "", false
	}
	geom := "ST_GeomFromText('" + wkt.MarshalString(g) + "')"

	switch op {
	case filter.OpIntersects:
		return "ST_Intersects(" + attribute + ", " + geom + ")", true
	case filter.OpContains:
		return "ST_Contains(" + attribute + ", " + geom + ")", true
	case filter.OpWithin:
		return "ST_Within(" + attribute + ", " + geom + ")", true
	case filter.OpDisjoint:
		return "ST_Disjoint(" + attribute + ", " + geom + ")", true
	case filter.OpDWithin:
		return "ST_DWithin(" + attribute + ", " + geom + ", " + formatDistance(distance) + ")", true
	case filter.OpBeyond:
		return "NOT ST_DWithin(" + attribute + ", " + geom + ", " + formatDistance(distance) + ")", true
	default:
		return "", false
	}
}

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
