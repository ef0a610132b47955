package source

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/internal/recovery"
)

// DefaultIDField is the native field ColumnMapper reads record ids from.
const DefaultIDField = "id"

// ColumnMapper maps hits whose keys are native column names. Each key is
// turned back into its abstract attribute name with the attribute mapper.
type ColumnMapper struct {
	// Source is stamped on every record.
	Source string

	// IDField is the native field holding the record id.
	// OPTIONAL: defaults to DefaultIDField.
	IDField string

	// Attributes converts native names back to abstract ones.
	// OPTIONAL: names pass through unchanged if nil.
	Attributes *attrmap.Mapper
}

// MapHit implements ResultMapper.
func (m ColumnMapper) MapHit(hit RawHit) Record {
	idField := m.IDField
	if idField == "" {
		idField = DefaultIDField
	}

	rec := Record{
		ID:         stringValue(hit[idField]),
		Source:     m.Source,
		Attributes: make(map[string]any, len(hit)),
	}
	for native, v := range hit {
		name := native
		if m.Attributes != nil {
			name = m.Attributes.ToAbstract(native)
		}
		rec.Attributes[name] = normalize(v)
	}
	return rec
}

// normalize converts driver specific values into plain Go values.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case float32:
		return normalize(float64(x))
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.UTC()
	default:
		return v
	}
}

// stringValue renders ids of the common scalar types; anything else is "".
func stringValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// MapHits maps hits with m. A hit whose mapping panics is logged and
// dropped; the remaining hits are still returned.
func MapHits(logger *slog.Logger, src string, m ResultMapper, hits []RawHit) []Record {
	if logger == nil {
		logger = slog.Default()
	}
	records := make([]Record, 0, len(hits))
	for i, hit := range hits {
		rec, err := recovery.RecoverToValue(logger, "MapHit", func() (Record, error) {
			return m.MapHit(hit), nil
		})
		if err != nil {
			logger.Error("Dropping unmappable hit", "source", src, "index", i, "error", err)
			continue
		}
		if rec.Source == "" {
			rec.Source = src
		}
		records = append(records, rec)
	}
	return records
}
