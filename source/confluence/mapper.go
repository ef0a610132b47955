package confluence

import (
	"strings"
	"time"

	"github.com/hugr-lab/fedquery/source"
)

// dateLayouts are tried in order when parsing Confluence dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Mapper converts content search results into records. Fields missing from
// a result, or of an unexpected type, become nil attributes.
type Mapper struct {
	// Source is stamped on every record.
	Source string
	// BaseURL prefixes relative web UI links.
	BaseURL string
}

// MapHit implements source.ResultMapper.
func (m Mapper) MapHit(hit source.RawHit) source.Record {
	rec := source.Record{
		ID:     str(hit, "id"),
		Source: m.Source,
		Attributes: map[string]any{
			"id":                    nilIfEmpty(str(hit, "id")),
			"title":                 nilIfEmpty(str(hit, "title")),
			"metadata-content-type": nilIfEmpty(str(hit, "type")),
			"confluence.space":      nilIfEmpty(str(hit, "space", "key")),
			"contact.creator-name":  nilIfEmpty(str(hit, "history", "createdBy", "displayName")),
			"created":               date(str(hit, "history", "createdDate")),
			"modified":              date(str(hit, "version", "when")),
			"description":           nilIfEmpty(str(hit, "excerpt")),
			"resource-uri":          nil,
		},
	}
	if link := str(hit, "_links", "webui"); link != "" {
		if strings.HasPrefix(link, "/") {
			link = strings.TrimRight(m.BaseURL, "/") + link
		}
		rec.Attributes["resource-uri"] = link
	}
	return rec
}

// str walks nested objects and returns the string at path, or "".
func str(obj map[string]any, path ...string) string {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[key]
	}
	s, _ := cur.(string)
	return s
}

func date(s string) any {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
