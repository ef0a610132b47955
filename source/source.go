// Package source defines the contracts between the federator and catalog
// backends: executing a native query and mapping raw hits into records.
package source

import (
	"context"

	"github.com/hugr-lab/fedquery/filter"
)

// Pagination selects a window of hits. A zero Limit means the backend default.
type Pagination struct {
	Offset int `yaml:"offset" json:"offset"`
	Limit  int `yaml:"limit" json:"limit"`
}

// Sort orders hits by an abstract attribute. An empty Attribute means the
// backend's natural order.
type Sort struct {
	Attribute  string `yaml:"attribute" json:"attribute"`
	Descending bool   `yaml:"descending" json:"descending"`
}

// RawHit is one backend hit keyed by native field name.
type RawHit map[string]any

// RawResultSet is the page of hits returned by a backend.
type RawResultSet struct {
	Hits []RawHit
	// Total is the number of hits matching the query, or -1 if unknown.
	Total int64
}

// Record is a backend-neutral search result keyed by abstract attribute name.
type Record struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Attributes map[string]any `json:"attributes"`
}

// Executor runs native queries against one backend.
// Implementations must be safe for concurrent use. Errors should be
// *BackendError values so callers can tell the failure kinds apart.
type Executor interface {
	Execute(ctx context.Context, query string, page Pagination, sort Sort) (*RawResultSet, error)
}

// FilterExecutor is implemented by executors that forward the abstract
// filter to a remote service which translates it itself. The federator
// prefers ExecuteFilter over Execute when an executor implements both.
type FilterExecutor interface {
	Executor
	ExecuteFilter(ctx context.Context, f filter.Node, page Pagination, sort Sort) (*RawResultSet, error)
}

// ResultMapper converts backend hits into records. MapHit must not fail:
// fields it cannot interpret become nil attributes.
type ResultMapper interface {
	MapHit(hit RawHit) Record
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, query string, page Pagination, sort Sort) (*RawResultSet, error)

func (f ExecutorFunc) Execute(ctx context.Context, query string, page Pagination, sort Sort) (*RawResultSet, error) {
	return f(ctx, query, page, sort)
}

// ResultMapperFunc adapts a function to the ResultMapper interface.
type ResultMapperFunc func(hit RawHit) Record

func (f ResultMapperFunc) MapHit(hit RawHit) Record {
	return f(hit)
}
