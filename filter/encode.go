package filter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
)

// Encode serializes a filter tree into the JSON form accepted by Parse.
func Encode(n Node) ([]byte, error) {
	v, err := encodeNode(n)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return json.Marshal(v)
}

func encodeNode(n Node) (map[string]any, error) {
	if n == nil {
		return nil, fmt.Errorf("nil node")
	}
	out := map[string]any{"type": string(n.Kind())}

	switch v := n.(type) {
	case *AttributeComparison:
		out["attribute"] = v.Attribute
		out["operator"] = string(v.Operator)
		if t, ok := v.Literal.(time.Time); ok {
			out["value"] = t.Format(time.RFC3339Nano)
			out["value_type"] = "date"
		} else {
			out["value"] = v.Literal
		}
	case *AttributeIsNull:
		out["attribute"] = v.Attribute
	case *TemporalComparison:
		out["attribute"] = v.Attribute
		out["operator"] = string(v.Operator)
		if v.Interval != nil {
			out["start"] = v.Interval.Start.Format(time.RFC3339Nano)
			out["end"] = v.Interval.End.Format(time.RFC3339Nano)
		} else {
			out["instant"] = v.Instant.Format(time.RFC3339Nano)
		}
	case *SpatialComparison:
		if v.Geometry == nil {
			return nil, fmt.Errorf("spatial node on %s without geometry", v.Attribute)
		}
		out["attribute"] = v.Attribute
		out["operator"] = string(v.Operator)
		out["geometry"] = wkt.MarshalString(v.Geometry)
		if v.Operator.UsesDistance() {
			out["distance"] = v.Distance
		}
	case *Like:
		out["attribute"] = v.Attribute
		out["pattern"] = v.Pattern
		if v.CaseSensitive {
			out["case_sensitive"] = true
		}
	case *And:
		children, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		out["children"] = children
	case *Or:
		children, err := encodeChildren(v.Children)
		if err != nil {
			return nil, err
		}
		out["children"] = children
	case *Not:
		child, err := encodeNode(v.Child)
		if err != nil {
			return nil, err
		}
		out["child"] = child
	}
	return out, nil
}

func encodeChildren(children []Node) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(children))
	for _, c := range children {
		enc, err := encodeNode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
	}
	return out, nil
}
