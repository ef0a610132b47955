// Package local implements the local catalog backend on an embedded DuckDB
// database. Metacards are ingested into a single table and searched with
// WHERE clauses produced by the translate package's DuckDB profile.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

// Default paging limits.
const (
	DefaultLimit = 100
	MaxLimit     = 10000
)

// Table is the metacard table name.
const Table = "metacards"

const createTable = `CREATE TABLE IF NOT EXISTS metacards (
	id VARCHAR PRIMARY KEY,
	title VARCHAR,
	description VARCHAR,
	metadata_content_type VARCHAR,
	keywords VARCHAR[],
	created TIMESTAMP,
	modified TIMESTAMP,
	effective TIMESTAMP,
	resource_size BIGINT,
	location VARCHAR,
	tags VARCHAR[],
	any_text VARCHAR
)`

// columns returned by Execute, in order. any_text is search-only.
var columns = []string{
	"id", "title", "description", "metadata_content_type", "keywords",
	"created", "modified", "effective", "resource_size", "location", "tags",
}

// listColumns hold VARCHAR lists.
var listColumns = map[string]bool{"keywords": true, "tags": true}

// listSeparator joins list values for the string_split in the insert.
const listSeparator = "\x1f"

// Entry is one metacard to ingest.
type Entry struct {
	ID           string
	Title        string
	Description  string
	ContentType  string
	Keywords     []string
	Created      time.Time
	Modified     time.Time
	Effective    time.Time
	ResourceSize int64
	Location     orb.Geometry
	// Tags defaults to the "resource" marker when empty.
	Tags []string
}

// Options configures a Store.
type Options struct {
	// Name identifies the backend in errors and records.
	// OPTIONAL: defaults to "local".
	Name string

	// Attributes maps abstract attribute names to columns. It must be the
	// mapper of the translator producing queries for this store.
	// OPTIONAL: defaults to translate.DuckDBAttributes.
	Attributes *attrmap.Mapper

	// DefaultLimit applies when a page has no limit.
	// OPTIONAL: defaults to DefaultLimit.
	DefaultLimit int

	// Logger for debug output.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Store is a DuckDB backed catalog. It is safe for concurrent use.
type Store struct {
	db           *sql.DB
	name         string
	attrs        *attrmap.Mapper
	defaultLimit int
	logger       *slog.Logger
}

// Open opens (or creates) the DuckDB database at dsn and prepares the
// metacard table. An empty dsn opens an in-memory database.
func Open(ctx context.Context, dsn string, opts *Options) (*Store, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &Store{
		name:         opts.Name,
		attrs:        opts.Attributes,
		defaultLimit: opts.DefaultLimit,
		logger:       opts.Logger,
	}
	if s.name == "" {
		s.name = "local"
	}
	if s.attrs == nil {
		s.attrs = attrmap.New(translate.DuckDBAttributes)
		s.attrs.Freeze()
	}
	if s.defaultLimit <= 0 {
		s.defaultLimit = DefaultLimit
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("local: open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: create table: %w", err)
	}
	// Queries only read the catalog; no file, network or extension access.
	if _, err := db.ExecContext(ctx, "SET enable_external_access = false"); err != nil {
		db.Close()
		return nil, fmt.Errorf("local: disable external access: %w", err)
	}
	s.db = db
	return s, nil
}

// Name returns the backend name.
func (s *Store) Name() string {
	return s.name
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Mapper returns the result mapper for hits of this store.
func (s *Store) Mapper() source.ResultMapper {
	return source.ColumnMapper{Source: s.name, Attributes: s.attrs}
}

// Ingest inserts entries, replacing existing ones with the same id.
func (s *Store) Ingest(ctx context.Context, entries ...Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("local: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO metacards
		(id, title, description, metadata_content_type, keywords, created, modified,
		 effective, resource_size, location, tags, any_text)
		VALUES (?, ?, ?, ?, string_split(?, chr(31)), ?, ?, ?, ?, ?, string_split(?, chr(31)), ?)`)
	if err != nil {
		return fmt.Errorf("local: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("local: entry without id")
		}
		tags := e.Tags
		if len(tags) == 0 {
			tags = []string{"resource"}
		}
		var location any
		if e.Location != nil {
			location = wkt.MarshalString(e.Location)
		}
		anyText := strings.Join(slices.DeleteFunc(
			[]string{e.Title, e.Description, strings.Join(e.Keywords, " ")},
			func(s string) bool { return s == "" },
		), " ")

		_, err := stmt.ExecContext(ctx,
			e.ID, nullString(e.Title), nullString(e.Description), nullString(e.ContentType),
			nullString(joinList(e.Keywords)),
			nullTime(e.Created), nullTime(e.Modified), nullTime(e.Effective),
			e.ResourceSize, location, nullString(joinList(tags)), anyText,
		)
		if err != nil {
			return fmt.Errorf("local: insert %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("local: commit: %w", err)
	}
	s.logger.Debug("Ingested metacards", "source", s.name, "count", len(entries))
	return nil
}

// Delete removes entries by id.
func (s *Store) Delete(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM metacards WHERE id = ?", id); err != nil {
			return fmt.Errorf("local: delete %s: %w", id, err)
		}
	}
	return nil
}

// Execute implements source.Executor. query is a WHERE clause rendered by a
// translator built on the DuckDB profile; an empty query matches everything.
func (s *Store) Execute(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
	if page.Offset < 0 || page.Limit < 0 {
		return nil, source.Rejected(s.name, fmt.Errorf("invalid page %+v", page))
	}
	where := strings.TrimSpace(query)
	if where == "" {
		where = "TRUE"
	}
	order, err := s.orderBy(sort)
	if err != nil {
		return nil, source.Rejected(s.name, err)
	}
	limit := page.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	limit = min(limit, MaxLimit)

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM metacards WHERE "+where).Scan(&total); err != nil {
		return nil, s.classify(err)
	}

	q := "SELECT " + strings.Join(columns, ", ") + " FROM metacards WHERE " + where +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	s.logger.Debug("Executing local query", "source", s.name, "sql", q)

	rows, err := s.db.QueryContext(ctx, q, limit, page.Offset)
	if err != nil {
		return nil, s.classify(err)
	}
	defer rows.Close()

	rs := &source.RawResultSet{Total: total}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, source.Transport(s.name, err)
		}
		hit := make(source.RawHit, len(columns))
		for i, col := range columns {
			v := values[i]
			if list, ok := v.([]any); ok && listColumns[col] {
				v = stringList(list)
			}
			hit[col] = v
		}
		rs.Hits = append(rs.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err)
	}
	return rs, nil
}

// orderBy maps an abstract sort attribute to an ORDER BY clause.
func (s *Store) orderBy(sort source.Sort) (string, error) {
	if sort.Attribute == "" {
		return "id", nil
	}
	col := strings.ToLower(s.attrs.ToNative(sort.Attribute))
	if !slices.Contains(columns, col) {
		return "", fmt.Errorf("unknown sort attribute %q", sort.Attribute)
	}
	dir := "ASC"
	if sort.Descending {
		dir = "DESC"
	}
	return col + " " + dir + " NULLS LAST, id", nil
}

// classify maps database errors to backend error kinds.
func (s *Store) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, sql.ErrConnDone) {
		return source.Unavailable(s.name, err)
	}
	var dbErr *duckdb.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Type {
		case duckdb.ErrorTypeParser, duckdb.ErrorTypeBinder, duckdb.ErrorTypeConversion,
			duckdb.ErrorTypePermission:
			return source.Rejected(s.name, err)
		case duckdb.ErrorTypeInterrupt:
			return source.Unavailable(s.name, err)
		}
	}
	return source.Transport(s.name, err)
}

// joinList drops empty values and separators inside values.
func joinList(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ReplaceAll(v, listSeparator, ""))
		if v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, listSeparator)
}

func stringList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
