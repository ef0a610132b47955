package flight

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/hugr-lab/fedquery/source"
)

// TotalKey is the schema metadata key carrying the total hit count.
const TotalKey = "fedquery.total"

var (
	timestampType  = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}
	stringListType = arrow.ListOf(arrow.BinaryTypes.String)
)

// inferType picks the Arrow type of a hit value. Unknown types are
// rendered as strings.
func inferType(v any) arrow.DataType {
	switch v.(type) {
	case int, int32, int64:
		return arrow.PrimitiveTypes.Int64
	case float32, float64:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case time.Time:
		return timestampType
	case []string:
		return stringListType
	default:
		return arrow.BinaryTypes.String
	}
}

// hitSchema derives the record schema from the hits: "id" first, then the
// remaining fields in name order, typed by their first non-nil value.
func hitSchema(rs *source.RawResultSet) *arrow.Schema {
	types := map[string]arrow.DataType{"id": nil}
	for _, hit := range rs.Hits {
		for name, v := range hit {
			if dt, seen := types[name]; !seen || (dt == nil && v != nil) {
				if v == nil {
					types[name] = nil
				} else {
					types[name] = inferType(v)
				}
			}
		}
	}

	names := make([]string, 0, len(types))
	for name := range types {
		if name != "id" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	names = append([]string{"id"}, names...)

	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		dt := types[name]
		if dt == nil {
			dt = arrow.BinaryTypes.String
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt, Nullable: true})
	}
	md := arrow.NewMetadata([]string{TotalKey}, []string{strconv.FormatInt(rs.Total, 10)})
	return arrow.NewSchema(fields, &md)
}

// buildRecord converts a result set into one record batch. Values that do
// not match their column type are stored as nulls.
func buildRecord(alloc memory.Allocator, rs *source.RawResultSet) (arrow.RecordBatch, error) {
	schema := hitSchema(rs)
	builder := array.NewRecordBuilder(alloc, schema)
	defer builder.Release()

	for i, field := range schema.Fields() {
		fb := builder.Field(i)
		for _, hit := range rs.Hits {
			if err := appendValue(fb, hit[field.Name]); err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
		}
	}
	return builder.NewRecordBatch(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch fb := b.(type) {
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			fb.Append(x)
		case []byte:
			fb.Append(string(x))
		default:
			fb.Append(fmt.Sprint(x))
		}
	case *array.Int64Builder:
		switch x := v.(type) {
		case int:
			fb.Append(int64(x))
		case int32:
			fb.Append(int64(x))
		case int64:
			fb.Append(x)
		default:
			fb.AppendNull()
		}
	case *array.Float64Builder:
		switch x := v.(type) {
		case float32:
			fb.Append(float64(x))
		case float64:
			fb.Append(x)
		default:
			fb.AppendNull()
		}
	case *array.BooleanBuilder:
		if x, ok := v.(bool); ok {
			fb.Append(x)
		} else {
			fb.AppendNull()
		}
	case *array.TimestampBuilder:
		x, ok := v.(time.Time)
		if !ok {
			fb.AppendNull()
			return nil
		}
		ts, err := arrow.TimestampFromTime(x, arrow.Microsecond)
		if err != nil {
			return err
		}
		fb.Append(ts)
	case *array.ListBuilder:
		x, ok := v.([]string)
		if !ok {
			fb.AppendNull()
			return nil
		}
		fb.Append(true)
		vb := fb.ValueBuilder().(*array.StringBuilder)
		for _, s := range x {
			vb.Append(s)
		}
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

// recordHits appends the rows of a record batch to hits.
func recordHits(hits []source.RawHit, rec arrow.RecordBatch) []source.RawHit {
	schema := rec.Schema()
	for row := 0; row < int(rec.NumRows()); row++ {
		hit := make(source.RawHit, rec.NumCols())
		for i, col := range rec.Columns() {
			hit[schema.Field(i).Name] = columnValue(col, row)
		}
		hits = append(hits, hit)
	}
	return hits
}

// columnValue returns the Go value of one cell.
func columnValue(col arrow.Array, row int) any {
	if col.IsNull(row) {
		return nil
	}
	switch arr := col.(type) {
	case *array.String:
		return arr.Value(row)
	case *array.LargeString:
		return arr.Value(row)
	case *array.Int64:
		return arr.Value(row)
	case *array.Int32:
		return int64(arr.Value(row))
	case *array.Float64:
		return arr.Value(row)
	case *array.Boolean:
		return arr.Value(row)
	case *array.Timestamp:
		unit := arr.DataType().(*arrow.TimestampType).Unit
		return arr.Value(row).ToTime(unit)
	case *array.List:
		start, end := arr.ValueOffsets(row)
		values, ok := arr.ListValues().(*array.String)
		if !ok {
			return nil
		}
		out := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			out = append(out, values.Value(int(i)))
		}
		return out
	default:
		return col.ValueStr(row)
	}
}

// schemaTotal reads the total hit count from schema metadata, or -1.
func schemaTotal(schema *arrow.Schema) int64 {
	md := schema.Metadata()
	idx := md.FindKey(TotalKey)
	if idx < 0 {
		return -1
	}
	total, err := strconv.ParseInt(md.Values()[idx], 10, 64)
	if err != nil {
		return -1
	}
	return total
}
