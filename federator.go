package fedquery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/internal/recovery"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

// DefaultTimeout bounds a backend query when neither the source nor the
// federator sets a timeout.
const DefaultTimeout = 30 * time.Second

// Standard errors returned by the fedquery package.
var (
	// ErrInvalidConfig indicates Config or FileConfig validation failed.
	ErrInvalidConfig = errors.New("invalid federator config")

	// ErrUnknownSource indicates a Query named a source that is not configured.
	ErrUnknownSource = errors.New("unknown source")
)

// SkipReason explains why a source contributed no query.
type SkipReason string

const (
	// SkipUnsupported: the filter has no representation in the backend vocabulary.
	SkipUnsupported SkipReason = "unsupported"
	// SkipNotOfInterest: the source requires interest and the filter does not concern it.
	SkipNotOfInterest SkipReason = "not_of_interest"
	// SkipWildcardOnly: the filter would match everything and the source opts out of that.
	SkipWildcardOnly SkipReason = "wildcard_only"
)

// Source is one federated backend.
type Source struct {
	// Name identifies the source in responses, logs and metrics.
	// REQUIRED: unique within a federator.
	Name string

	// Translator converts filters into the backend query syntax.
	// REQUIRED.
	Translator *translate.Translator

	// Executor runs native queries.
	// REQUIRED.
	Executor source.Executor

	// Mapper turns raw hits into records.
	// OPTIONAL: defaults to a source.ColumnMapper over the translator mapper.
	Mapper source.ResultMapper

	// Timeout bounds each query on this source.
	// OPTIONAL: defaults to Config.DefaultTimeout.
	Timeout time.Duration

	// RequireInterest skips the source unless the filter concerns it
	// (translate.Result.QueryOfInterest).
	RequireInterest bool

	// SkipWildcardOnly skips the source for filters that only contain
	// wildcard text searches.
	SkipWildcardOnly bool
}

// Config configures a Federator.
type Config struct {
	// Sources are queried in this order and their records merged in it.
	// REQUIRED: at least one source.
	Sources []Source

	// Logger for internal logging.
	// OPTIONAL: if nil, a text logger on stderr at LogLevel is created.
	Logger *slog.Logger

	// LogLevel sets the logging level of the default logger.
	// OPTIONAL: Info if nil. Ignored when Logger is set.
	LogLevel *slog.Level

	// MaxConcurrency bounds the number of backend queries in flight.
	// OPTIONAL: if 0, all selected sources run at once.
	MaxConcurrency int

	// DefaultTimeout applies to sources without a Timeout.
	// OPTIONAL: defaults to DefaultTimeout.
	DefaultTimeout time.Duration

	// Metrics records translations, skips, errors and query durations.
	// OPTIONAL: no metrics if nil.
	Metrics *Metrics
}

// Query is one federated search request.
type Query struct {
	Filter filter.Node
	Page   source.Pagination
	Sort   source.Sort

	// Sources restricts the search to the named sources.
	// OPTIONAL: all sources if empty.
	Sources []string
}

// SourceStatus reports what happened on one source during a search.
type SourceStatus struct {
	Name string

	// Query is the native query for the backend, empty when skipped.
	// Sources with a source.FilterExecutor receive the abstract filter and
	// translate it remotely.
	Query string

	// Skipped is set when the source was not queried.
	Skipped SkipReason

	// Hits is the number of records the source contributed.
	Hits int

	// Total is the backend's total hit count, -1 when unknown.
	Total int64

	// Err is the classified backend error (see source.BackendError).
	Err error

	Duration time.Duration
}

// Response is the merged result of a search.
type Response struct {
	ID      uuid.UUID
	Records []source.Record
	Sources []SourceStatus
}

// Err joins the errors of all failed sources.
func (r *Response) Err() error {
	var errs []error
	for _, s := range r.Sources {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Translation is the translation of a filter for one source.
type Translation struct {
	Source string
	Result *translate.Result
}

// Federator translates one filter for every configured backend, queries
// the backends that can answer it concurrently and merges their records.
// It is safe for concurrent use.
type Federator struct {
	sources        []Source
	byName         map[string]int
	logger         *slog.Logger
	maxConcurrency int
	timeout        time.Duration
	metrics        *Metrics

	// closers are the backends built from a FileConfig.
	closers []io.Closer
}

// New validates cfg and creates a federator.
func New(cfg Config) (*Federator, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := cfg.Logger
	if logger == nil {
		level := slog.LevelInfo
		if cfg.LogLevel != nil {
			level = *cfg.LogLevel
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	f := &Federator{
		sources:        make([]Source, len(cfg.Sources)),
		byName:         make(map[string]int, len(cfg.Sources)),
		logger:         logger,
		maxConcurrency: cfg.MaxConcurrency,
		timeout:        timeout,
		metrics:        cfg.Metrics,
	}
	for i, src := range cfg.Sources {
		if src.Mapper == nil {
			src.Mapper = source.ColumnMapper{Source: src.Name, Attributes: src.Translator.Mapper()}
		}
		if src.Timeout <= 0 {
			src.Timeout = timeout
		}
		f.sources[i] = src
		f.byName[src.Name] = i
	}

	logger.Info("Federator created", "sources", len(f.sources), "max_concurrency", f.maxConcurrency)
	return f, nil
}

func validateConfig(cfg Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Sources))
	for i, src := range cfg.Sources {
		switch {
		case src.Name == "":
			return fmt.Errorf("source %d: name is required", i)
		case seen[src.Name]:
			return fmt.Errorf("duplicate source name %q", src.Name)
		case src.Translator == nil:
			return fmt.Errorf("source %s: translator is required", src.Name)
		case src.Executor == nil:
			return fmt.Errorf("source %s: executor is required", src.Name)
		}
		seen[src.Name] = true
	}
	return nil
}

// Close releases the backends the federator owns (see Build). Sources
// passed to New are owned by the caller.
func (f *Federator) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := recovery.RecoverToError(f.logger, "Close", c.Close); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Sources returns the configured source names in order.
func (f *Federator) Sources() []string {
	names := make([]string, len(f.sources))
	for i, src := range f.sources {
		names[i] = src.Name
	}
	return names
}

// Translate translates node for every source without executing anything.
// A malformed filter aborts with an error wrapping
// translate.ErrInvalidFilterArgument.
func (f *Federator) Translate(node filter.Node) ([]Translation, error) {
	out := make([]Translation, 0, len(f.sources))
	for _, src := range f.sources {
		res, err := f.translate(src, node)
		if err != nil {
			return nil, err
		}
		out = append(out, Translation{Source: src.Name, Result: res})
	}
	return out, nil
}

func (f *Federator) translate(src Source, node filter.Node) (*translate.Result, error) {
	res, err := src.Translator.Translate(node)
	if err != nil {
		f.metrics.recordTranslation(src.Name, OutcomeInvalid)
		return nil, fmt.Errorf("fedquery: source %s: %w", src.Name, err)
	}
	if res.Supported {
		f.metrics.recordTranslation(src.Name, OutcomeTranslated)
	} else {
		f.metrics.recordTranslation(src.Name, OutcomeUnsupported)
	}
	return res, nil
}

// skipReason decides whether a translated source is queried.
func skipReason(src Source, res *translate.Result) SkipReason {
	switch {
	case src.RequireInterest && !res.QueryOfInterest:
		return SkipNotOfInterest
	case !res.Supported:
		return SkipUnsupported
	case src.SkipWildcardOnly && res.WildcardOnly:
		return SkipWildcardOnly
	default:
		return ""
	}
}

func (f *Federator) selected(names []string) ([]Source, error) {
	if len(names) == 0 {
		return f.sources, nil
	}
	out := make([]Source, 0, len(names))
	for _, name := range names {
		i, ok := f.byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
		}
		out = append(out, f.sources[i])
	}
	return out, nil
}

// Search translates q.Filter for every selected source, queries the sources
// that can answer it and merges their records in source order.
//
// Translation happens before any backend is contacted: a malformed filter
// returns an error and nothing is executed. Backend failures never fail the
// search; they are reported in Response.Sources.
func (f *Federator) Search(ctx context.Context, q Query) (*Response, error) {
	if q.Page.Offset < 0 || q.Page.Limit < 0 {
		return nil, fmt.Errorf("fedquery: negative pagination %+v", q.Page)
	}
	sources, err := f.selected(q.Sources)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		ID:      uuid.New(),
		Sources: make([]SourceStatus, len(sources)),
	}
	queries := make([]string, len(sources))
	for i, src := range sources {
		res, err := f.translate(src, q.Filter)
		if err != nil {
			return nil, err
		}
		resp.Sources[i] = SourceStatus{Name: src.Name, Total: -1}
		if reason := skipReason(src, res); reason != "" {
			resp.Sources[i].Skipped = reason
			f.metrics.recordSkip(src.Name, reason)
			f.logger.Debug("Source skipped", "search", resp.ID, "source", src.Name, "reason", reason)
			continue
		}
		queries[i] = res.Query
		resp.Sources[i].Query = res.Query
	}

	records := make([][]source.Record, len(sources))
	var g errgroup.Group
	if f.maxConcurrency > 0 {
		g.SetLimit(f.maxConcurrency)
	}
	for i, src := range sources {
		if queries[i] == "" {
			continue
		}
		g.Go(func() error {
			records[i] = f.execute(ctx, resp.ID, src, queries[i], q, &resp.Sources[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, recs := range records {
		resp.Records = append(resp.Records, recs...)
	}
	return resp, nil
}

// execute runs one backend query and fills status. Each goroutine owns its
// status slot.
func (f *Federator) execute(ctx context.Context, id uuid.UUID, src Source, query string, q Query, status *SourceStatus) []source.Record {
	ctx, cancel := context.WithTimeout(ctx, src.Timeout)
	defer cancel()

	start := time.Now()
	rs, err := recovery.RecoverToValue(f.logger, "Execute", func() (*source.RawResultSet, error) {
		if fe, ok := src.Executor.(source.FilterExecutor); ok {
			return fe.ExecuteFilter(ctx, q.Filter, q.Page, q.Sort)
		}
		return src.Executor.Execute(ctx, query, q.Page, q.Sort)
	})
	status.Duration = time.Since(start)

	if err == nil && rs == nil {
		err = fmt.Errorf("executor returned no result set")
	}
	if err != nil {
		status.Err = source.Classify(src.Name, err)
		kind := source.KindOf(status.Err)
		f.metrics.recordQuery(src.Name, status.Duration, kind)
		f.logger.Warn("Source query failed",
			"search", id,
			"source", src.Name,
			"kind", source.KindName(kind),
			"error", err,
		)
		return nil
	}
	f.metrics.recordQuery(src.Name, status.Duration, nil)

	recs := source.MapHits(f.logger, src.Name, src.Mapper, rs.Hits)
	status.Hits = len(recs)
	status.Total = rs.Total
	f.logger.Debug("Source query completed",
		"search", id,
		"source", src.Name,
		"hits", status.Hits,
		"duration", status.Duration,
	)
	return recs
}
