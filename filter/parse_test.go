package filter

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
)

func TestParseEmpty(t *testing.T) {
	n, err := Parse(nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != nil {
		t.Errorf("expected nil node, got %T", n)
	}

	n, err = Parse([]byte("  \n"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != nil {
		t.Errorf("expected nil node, got %T", n)
	}
}

func TestParseComparison(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		op      ComparisonOperator
		literal any
	}{
		{"string", `{"type":"comparison","attribute":"title","operator":"equal","value":"val1"}`, OpEqual, "val1"},
		{"integer", `{"type":"comparison","attribute":"resource-size","operator":"greaterThan","value":42}`, OpGreaterThan, int64(42)},
		{"float", `{"type":"comparison","attribute":"resource-size","operator":"lessOrEqual","value":4.5}`, OpLessOrEqual, 4.5},
		{"bool", `{"type":"comparison","attribute":"flag","operator":"notEqual","value":true}`, OpNotEqual, true},
		{"date", `{"type":"comparison","attribute":"created","operator":"greaterOrEqual","value":"2024-03-01T10:00:00Z","value_type":"date"}`,
			OpGreaterOrEqual, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Parse([]byte(tt.json))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			cmp, ok := n.(*AttributeComparison)
			if !ok {
				t.Fatalf("expected AttributeComparison, got %T", n)
			}
			if cmp.Operator != tt.op {
				t.Errorf("expected operator %s, got %s", tt.op, cmp.Operator)
			}
			if lt, ok := tt.literal.(time.Time); ok {
				got, ok := cmp.Literal.(time.Time)
				if !ok || !got.Equal(lt) {
					t.Errorf("expected literal %v, got %v", lt, cmp.Literal)
				}
				return
			}
			if cmp.Literal != tt.literal {
				t.Errorf("expected literal %v (%T), got %v (%T)", tt.literal, tt.literal, cmp.Literal, cmp.Literal)
			}
		})
	}
}

func TestParseCompound(t *testing.T) {
	json := []byte(`{
		"type": "and",
		"children": [
			{"type": "like", "attribute": "title", "pattern": "val*"},
			{"type": "or", "children": [
				{"type": "isNull", "attribute": "description"},
				{"type": "not", "child": {"type": "like", "attribute": "anyText", "pattern": "x", "case_sensitive": true}}
			]},
			{"type": "temporal", "attribute": "modified", "operator": "during",
			 "start": "2024-01-01T00:00:00Z", "end": "2024-02-01T00:00:00Z"},
			{"type": "spatial", "attribute": "location", "operator": "dwithin",
			 "geometry": "POINT(1 2)", "distance": 100}
		]
	}`)

	n, err := Parse(json)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	and, ok := n.(*And)
	if !ok {
		t.Fatalf("expected And, got %T", n)
	}
	if len(and.Children) != 4 {
		t.Fatalf("expected 4 children, got %d", len(and.Children))
	}

	or, ok := and.Children[1].(*Or)
	if !ok {
		t.Fatalf("expected Or, got %T", and.Children[1])
	}
	not, ok := or.Children[1].(*Not)
	if !ok {
		t.Fatalf("expected Not, got %T", or.Children[1])
	}
	like, ok := not.Child.(*Like)
	if !ok || !like.CaseSensitive {
		t.Errorf("expected case sensitive Like, got %#v", not.Child)
	}

	tc, ok := and.Children[2].(*TemporalComparison)
	if !ok {
		t.Fatalf("expected TemporalComparison, got %T", and.Children[2])
	}
	if tc.Interval == nil || !tc.Interval.End.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected interval %#v", tc.Interval)
	}

	sc, ok := and.Children[3].(*SpatialComparison)
	if !ok {
		t.Fatalf("expected SpatialComparison, got %T", and.Children[3])
	}
	if p, ok := sc.Geometry.(orb.Point); !ok || p != (orb.Point{1, 2}) {
		t.Errorf("expected POINT(1 2), got %#v", sc.Geometry)
	}
	if sc.Distance != 100 {
		t.Errorf("expected distance 100, got %v", sc.Distance)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"syntax", `{"type":`},
		{"unknown type", `{"type":"between"}`},
		{"unknown operator", `{"type":"comparison","attribute":"a","operator":"~","value":1}`},
		{"bad instant", `{"type":"temporal","attribute":"a","operator":"after","instant":"yesterday"}`},
		{"bad geometry", `{"type":"spatial","attribute":"a","operator":"within","geometry":"CIRCLE(1)"}`},
		{"not without child", `{"type":"not"}`},
		{"bad child", `{"type":"and","children":[{"type":"nope"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.json)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEncodeParse(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	in := AllOf(
		Attribute("title").EqualTo("val1"),
		AnyOf(Attribute("modified").During(start, end), Attribute("created").After(start)),
		Negate(Attribute("location").Intersects(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}})),
		Attribute("effective").EqualTo(start),
	)

	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if got, want := Attributes(out), []string{"title", "modified", "created", "location", "effective"}; !equalStrings(got, want) {
		t.Errorf("expected attributes %v, got %v", want, got)
	}
	eff := out.(*And).Children[3].(*AttributeComparison)
	if lt, ok := eff.Literal.(time.Time); !ok || !lt.Equal(start) {
		t.Errorf("expected date literal %v, got %#v", start, eff.Literal)
	}
}

func TestEncodeNil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Error("expected error for nil node")
	}
	if _, err := Encode(Attribute("location").Within(nil)); err == nil {
		t.Error("expected error for spatial node without geometry")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
