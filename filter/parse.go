package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/encoding/wkt"
)

// Parse parses the JSON form of a filter tree.
// Empty input yields a nil node and no error.
//
// Error conditions:
//   - Invalid JSON syntax
//   - Unknown node type or operator
//   - Malformed time values (RFC 3339 expected) or WKT geometries
func Parse(data []byte) (Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	n, err := parseNode(data)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	return n, nil
}

// rawNode is used for two-phase parsing to determine the node kind.
type rawNode struct {
	Type string `json:"type"`
}

type rawComparison struct {
	Attribute string          `json:"attribute"`
	Operator  string          `json:"operator"`
	Value     json.RawMessage `json:"value"`
	ValueType string          `json:"value_type,omitempty"`
}

type rawIsNull struct {
	Attribute string `json:"attribute"`
}

type rawTemporal struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Instant   string `json:"instant,omitempty"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

type rawSpatial struct {
	Attribute string  `json:"attribute"`
	Operator  string  `json:"operator"`
	Geometry  string  `json:"geometry"`
	Distance  float64 `json:"distance,omitempty"`
}

type rawLike struct {
	Attribute     string `json:"attribute"`
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
}

type rawCompound struct {
	Children []json.RawMessage `json:"children"`
}

type rawNot struct {
	Child json.RawMessage `json:"child"`
}

func parseNode(data json.RawMessage) (Node, error) {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid node: %w", err)
	}

	switch Kind(raw.Type) {
	case KindComparison:
		return parseComparison(data)
	case KindIsNull:
		var r rawIsNull
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid isNull node: %w", err)
		}
		return &AttributeIsNull{Attribute: r.Attribute}, nil
	case KindTemporal:
		return parseTemporal(data)
	case KindSpatial:
		return parseSpatial(data)
	case KindLike:
		var r rawLike
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid like node: %w", err)
		}
		return &Like{Attribute: r.Attribute, Pattern: r.Pattern, CaseSensitive: r.CaseSensitive}, nil
	case KindAnd, KindOr:
		children, err := parseChildren(data, raw.Type)
		if err != nil {
			return nil, err
		}
		if Kind(raw.Type) == KindAnd {
			return &And{Children: children}, nil
		}
		return &Or{Children: children}, nil
	case KindNot:
		var r rawNot
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("invalid not node: %w", err)
		}
		if len(r.Child) == 0 {
			return nil, fmt.Errorf("not node without child")
		}
		child, err := parseNode(r.Child)
		if err != nil {
			return nil, fmt.Errorf("invalid not child: %w", err)
		}
		return &Not{Child: child}, nil
	default:
		return nil, fmt.Errorf("unknown node type %q", raw.Type)
	}
}

func parseChildren(data json.RawMessage, kind string) ([]Node, error) {
	var r rawCompound
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid %s node: %w", kind, err)
	}
	children := make([]Node, 0, len(r.Children))
	for i, rc := range r.Children {
		child, err := parseNode(rc)
		if err != nil {
			return nil, fmt.Errorf("invalid %s child %d: %w", kind, i, err)
		}
		children = append(children, child)
	}
	return children, nil
}

func parseComparison(data json.RawMessage) (*AttributeComparison, error) {
	var r rawComparison
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid comparison node: %w", err)
	}
	op := ComparisonOperator(r.Operator)
	if !op.Valid() {
		return nil, fmt.Errorf("unknown comparison operator %q", r.Operator)
	}
	literal, err := parseLiteral(r.Value, r.ValueType)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", r.Attribute, err)
	}
	return &AttributeComparison{Attribute: r.Attribute, Operator: op, Literal: literal}, nil
}

// parseLiteral decodes a JSON literal. Integers stay int64, other numbers
// become float64. A value_type of "date" parses an RFC 3339 string.
func parseLiteral(data json.RawMessage, valueType string) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return x.Float64()
	case string:
		if valueType == "date" {
			return parseTime(x)
		}
		return x, nil
	case bool, nil:
		return x, nil
	default:
		return nil, fmt.Errorf("unsupported literal %T", v)
	}
}

func parseTemporal(data json.RawMessage) (*TemporalComparison, error) {
	var r rawTemporal
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid temporal node: %w", err)
	}
	n := &TemporalComparison{Attribute: r.Attribute, Operator: TemporalOperator(r.Operator)}
	switch n.Operator {
	case OpAfter, OpBefore:
		t, err := parseTime(r.Instant)
		if err != nil {
			return nil, err
		}
		n.Instant = t
	case OpDuring:
		start, err := parseTime(r.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid interval start: %w", err)
		}
		end, err := parseTime(r.End)
		if err != nil {
			return nil, fmt.Errorf("invalid interval end: %w", err)
		}
		n.Interval = &Interval{Start: start, End: end}
	default:
		return nil, fmt.Errorf("unknown temporal operator %q", r.Operator)
	}
	return n, nil
}

func parseSpatial(data json.RawMessage) (*SpatialComparison, error) {
	var r rawSpatial
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid spatial node: %w", err)
	}
	op := SpatialOperator(r.Operator)
	switch op {
	case OpIntersects, OpContains, OpWithin, OpDisjoint, OpDWithin, OpBeyond:
	default:
		return nil, fmt.Errorf("unknown spatial operator %q", r.Operator)
	}
	g, err := wkt.Unmarshal(r.Geometry)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}
	return &SpatialComparison{Attribute: r.Attribute, Operator: op, Geometry: g, Distance: r.Distance}, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
	}
	return t, nil
}
