package translate

import (
	"maps"
	"slices"
	"strings"

	"github.com/hugr-lab/fedquery/filter"
)

// Built-in profile names.
const (
	ProfileConfluence = "confluence"
	ProfileCSW        = "csw"
	ProfileDuckDB     = "duckdb"
)

var (
	equality = []filter.ComparisonOperator{filter.OpEqual, filter.OpNotEqual}
	ordering = filter.ComparisonOperators
)

// ConfluenceAttributes maps metacard attributes to Confluence CQL fields.
var ConfluenceAttributes = map[string]string{
	"id":                    "id",
	"title":                 "title",
	"created":               "created",
	"modified":              "lastmodified",
	filter.AnyText:          "text",
	"keyword":               "label",
	"metadata-content-type": "type",
	"contact.creator-name":  "creator",
	"confluence.space":      "space",
}

// Confluence returns the capability table of the Confluence CQL search API.
func Confluence() *Capabilities {
	return &Capabilities{
		Name: ProfileConfluence,
		Attributes: map[string]AttributeSupport{
			"id":           {Operators: equality},
			"title":        {Operators: equality, Like: true, Wildcards: true},
			"text":         {Like: true, Wildcards: true},
			"created":      {Operators: ordering, Temporal: true},
			"lastmodified": {Operators: ordering, Temporal: true},
			"label":        {Operators: equality},
			"type":         {Operators: equality},
			"creator":      {Operators: equality},
			"space":        {Operators: equality},
		},
		Operators: map[filter.ComparisonOperator]string{
			filter.OpEqual:          "=",
			filter.OpNotEqual:       "!=",
			filter.OpGreaterThan:    ">",
			filter.OpGreaterOrEqual: ">=",
			filter.OpLessThan:       "<",
			filter.OpLessOrEqual:    "<=",
		},
		LikeOperator: "~",
		NotKeyword:   "NOT",
		DateFormat:   "2006-01-02 15:04",
		Quote:        `"`,
		QuoteEscape:  EscapeBackslash,
		Wildcard:     "*",
		SingleChar:   "?",
		TagAttribute: filter.MetacardTags,
		TagMarkers:   []string{"confluence"},
	}
}

// CSWAttributes maps metacard attributes to CSW queryables.
var CSWAttributes = map[string]string{
	"id":                    "identifier",
	"title":                 "title",
	"description":           "abstract",
	"created":               "created",
	"modified":              "modified",
	filter.AnyText:          "AnyText",
	"keyword":               "subject",
	"metadata-content-type": "type",
	"media.format":          "format",
	"location":              "BoundingBox",
}

// CSW returns the capability table of an OGC CSW endpoint queried with CQL text.
func CSW() *Capabilities {
	return &Capabilities{
		Name: ProfileCSW,
		Attributes: map[string]AttributeSupport{
			"identifier":  {Operators: equality, Nullable: true},
			"title":       {Operators: equality, Like: true, Wildcards: true, Nullable: true},
			"abstract":    {Like: true, Wildcards: true, Nullable: true},
			"AnyText":     {Like: true, Wildcards: true},
			"subject":     {Operators: equality, Like: true, Wildcards: true, Nullable: true},
			"type":        {Operators: equality, Nullable: true},
			"format":      {Operators: equality, Nullable: true},
			"created":     {Operators: ordering, Temporal: true, Nullable: true},
			"modified":    {Operators: ordering, Temporal: true, Nullable: true},
			"BoundingBox": {Spatial: true, Nullable: true},
		},
		Operators: map[filter.ComparisonOperator]string{
			filter.OpEqual:          "=",
			filter.OpNotEqual:       "<>",
			filter.OpGreaterThan:    ">",
			filter.OpGreaterOrEqual: ">=",
			filter.OpLessThan:       "<",
			filter.OpLessOrEqual:    "<=",
		},
		LikeOperator:                "LIKE",
		CaseInsensitiveLikeOperator: "ILIKE",
		NotKeyword:                  "NOT",
		NullTest:                    "IS NULL",
		DateFormat:                  "2006-01-02T15:04:05Z",
		Quote:                       "'",
		QuoteEscape:                 EscapeDouble,
		Wildcard:                    "%",
		SingleChar:                  "_",
		TagAttribute:                filter.MetacardTags,
		TagMarkers:                  []string{"csw"},
	}
}

// DuckDBAttributes maps metacard attributes to columns of the local catalog.
var DuckDBAttributes = map[string]string{
	"id":                    "id",
	"title":                 "title",
	"description":           "description",
	"metadata-content-type": "metadata_content_type",
	"keyword":               "keywords",
	"created":               "created",
	"modified":              "modified",
	"effective":             "effective",
	"resource-size":         "resource_size",
	"location":              "location",
	filter.MetacardTags:     "tags",
	filter.AnyText:          "any_text",
}

// DuckDB returns the capability table of the local DuckDB catalog.
func DuckDB() *Capabilities {
	return &Capabilities{
		Name: ProfileDuckDB,
		Attributes: map[string]AttributeSupport{
			"id":                    {Operators: equality},
			"title":                 {Operators: ordering, Like: true, Wildcards: true, Nullable: true},
			"description":           {Like: true, Wildcards: true, Nullable: true},
			"metadata_content_type": {Operators: equality, Like: true, Wildcards: true, Nullable: true},
			"keywords":              {Operators: []filter.ComparisonOperator{filter.OpEqual}, Like: true, Wildcards: true, Nullable: true, List: true},
			"created":               {Operators: ordering, Temporal: true, Nullable: true},
			"modified":              {Operators: ordering, Temporal: true, Nullable: true},
			"effective":             {Operators: ordering, Temporal: true, Nullable: true},
			"resource_size":         {Operators: ordering, Nullable: true},
			"tags":                  {Operators: []filter.ComparisonOperator{filter.OpEqual}, Like: true, Wildcards: true, List: true},
			"any_text":              {Like: true, Wildcards: true},
		},
		Operators: map[filter.ComparisonOperator]string{
			filter.OpEqual:          "=",
			filter.OpNotEqual:       "<>",
			filter.OpGreaterThan:    ">",
			filter.OpGreaterOrEqual: ">=",
			filter.OpLessThan:       "<",
			filter.OpLessOrEqual:    "<=",
		},
		LikeOperator:                "LIKE",
		CaseInsensitiveLikeOperator: "ILIKE",
		NotKeyword:                  "NOT",
		NullTest:                    "IS NULL",
		DateFormat:                  "2006-01-02 15:04:05",
		Quote:                       "'",
		QuoteEscape:                 EscapeDouble,
		Wildcard:                    "%",
		SingleChar:                  "_",
		LikeEscape:                  `\`,
		ListPredicate:               "EXISTS (SELECT 1 FROM (SELECT unnest(%[1]s) AS el) WHERE %[2]s)",
		ListElement:                 "el",
		ContainsTokens:              true,
		TagAttribute:                filter.MetacardTags,
		TagMarkers:                  []string{"resource"},
	}
}

// Profile returns a fresh copy of a built-in capability table together with
// its default attribute table.
func Profile(name string) (*Capabilities, map[string]string, bool) {
	switch strings.ToLower(name) {
	case ProfileConfluence:
		return Confluence(), maps.Clone(ConfluenceAttributes), true
	case ProfileCSW:
		return CSW(), maps.Clone(CSWAttributes), true
	case ProfileDuckDB:
		return DuckDB(), maps.Clone(DuckDBAttributes), true
	}
	return nil, nil, false
}

// Profiles lists the built-in profile names.
func Profiles() []string {
	return slices.Sorted(slices.Values([]string{ProfileConfluence, ProfileCSW, ProfileDuckDB}))
}
