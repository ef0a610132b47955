package fedquery

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/source/flight"
	"github.com/hugr-lab/fedquery/source/local"
	"github.com/hugr-lab/fedquery/translate"
)

const configYAML = `
log_level: debug
max_concurrency: 2
default_timeout: 5s
sources:
  - name: wiki
    kind: confluence
    profile: confluence
    endpoint: ${FEDQUERY_TEST_WIKI}
    token: ${FEDQUERY_TEST_TOKEN}
    timeout: 2s
    require_interest: true
    attributes:
      project: space
  - name: catalog
    kind: local
    profile: duckdb
    skip_wildcard_only: true
`

func TestParseConfig(t *testing.T) {
	t.Setenv("FEDQUERY_TEST_WIKI", "https://wiki.example.com")
	t.Setenv("FEDQUERY_TEST_TOKEN", "s3cret")

	fc, err := ParseConfig([]byte(configYAML))
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, fc.Level())
	assert.Equal(t, 2, fc.MaxConcurrency)
	assert.Equal(t, 5*time.Second, fc.DefaultTimeout)
	require.Len(t, fc.Sources, 2)

	wiki := fc.Sources[0]
	assert.Equal(t, KindConfluence, wiki.Kind)
	assert.Equal(t, "https://wiki.example.com", wiki.Endpoint)
	assert.Equal(t, "s3cret", wiki.Token)
	assert.Equal(t, 2*time.Second, wiki.Timeout)
	assert.True(t, wiki.RequireInterest)
	assert.Equal(t, map[string]string{"project": "space"}, wiki.Attributes)

	catalog := fc.Sources[1]
	assert.Equal(t, KindLocal, catalog.Kind)
	assert.Empty(t, catalog.Endpoint)
	assert.True(t, catalog.SkipWildcardOnly)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fedquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: c\n    kind: local\n    profile: duckdb\n"), 0o600))

	fc, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, fc.Level())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "sources: [",
		"no sources":   "log_level: info\n",
		"bad level":    "log_level: loud\nsources:\n  - {name: c, kind: local, profile: duckdb}\n",
		"bad kind":     "sources:\n  - {name: c, kind: solr, profile: duckdb}\n",
		"no name":      "sources:\n  - {kind: local, profile: duckdb}\n",
		"no profile":   "sources:\n  - {name: c, kind: local}\n",
		"bad profile":  "sources:\n  - {name: c, kind: local, profile: opensearch}\n",
		"no endpoint":  "sources:\n  - {name: w, kind: confluence, profile: confluence}\n",
		"bad geometry": "sources:\n  - {name: c, kind: local, profile: duckdb, geometry: postgis}\n",
		"negative":     "max_concurrency: -1\nsources:\n  - {name: c, kind: local, profile: duckdb}\n",
		"duplicate":    "sources:\n  - {name: c, kind: local, profile: duckdb}\n  - {name: c, kind: local, profile: duckdb}\n",
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(data))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestBuild(t *testing.T) {
	var requests atomic.Int32
	var cql atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		cql.Store(r.URL.Query().Get("cql"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [{"id": "7", "type": "page", "title": "Release notes"}], "totalSize": 1}`))
	}))
	defer srv.Close()

	fc := &FileConfig{
		Sources: []SourceConfig{
			{Name: "wiki", Kind: KindConfluence, Profile: translate.ProfileConfluence, Endpoint: srv.URL,
				Attributes: map[string]string{"project": "space"}},
			{Name: "catalog", Kind: KindLocal, Profile: translate.ProfileDuckDB},
		},
	}
	f, err := Build(context.Background(), fc, discard, nil)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"wiki", "catalog"}, f.Sources())

	resp, err := f.Search(context.Background(), Query{Filter: filter.AnyOf(
		filter.Attribute("title").Like("release"),
		filter.Attribute("project").EqualTo("DOC"),
	)})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	assert.Equal(t, int32(1), requests.Load())
	assert.Equal(t, `( title ~ "release" OR space = "DOC" )`, cql.Load())

	require.Len(t, resp.Records, 1)
	assert.Equal(t, "7", resp.Records[0].ID)
	assert.Equal(t, "wiki", resp.Records[0].Source)
	assert.Equal(t, "Release notes", resp.Records[0].Attributes["title"])

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, `title ILIKE 'release'`, resp.Sources[1].Query)
	assert.Equal(t, int64(0), resp.Sources[1].Total)

	assert.NoError(t, f.Close())
}

func TestBuildFlightGateway(t *testing.T) {
	ctx := context.Background()

	store, err := local.Open(ctx, "", &local.Options{Logger: discard})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ingest(ctx,
		local.Entry{ID: "a", Title: "Annual report", Keywords: []string{"finance", "report"}},
		local.Entry{ID: "b", Title: "Road map", Keywords: []string{"planning"}},
	))

	gateway, err := flight.NewServer(store, &flight.ServerConfig{Logger: discard})
	require.NoError(t, err)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcServer := grpc.NewServer(flight.ServerOptions(flight.StaticToken("s3cret", "federator"))...)
	gateway.Register(grpcServer)
	go func() {
		_ = grpcServer.Serve(lis)
	}()
	defer grpcServer.Stop()

	f, err := Build(ctx, &FileConfig{Sources: []SourceConfig{
		{Name: "remote", Kind: KindFlight, Profile: translate.ProfileDuckDB, Endpoint: lis.Addr().String(), Token: "s3cret"},
	}}, discard, nil)
	require.NoError(t, err)
	defer f.Close()

	resp, err := f.Search(ctx, Query{Filter: filter.Attribute("keyword").Like("finance")})
	require.NoError(t, err)
	require.NoError(t, resp.Err())

	require.Len(t, resp.Records, 1)
	assert.Equal(t, "a", resp.Records[0].ID)
	assert.Equal(t, "remote", resp.Records[0].Source)
	assert.Equal(t, []string{"finance", "report"}, resp.Records[0].Attributes["keyword"])
	assert.Equal(t, int64(1), resp.Sources[0].Total)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		sc   SourceConfig
	}{
		{"bad endpoint", SourceConfig{Name: "wiki", Kind: KindConfluence, Profile: translate.ProfileConfluence, Endpoint: "ftp://wiki"}},
		{"missing capabilities", SourceConfig{Name: "solr", Kind: KindLocal, CapabilitiesFile: filepath.Join(t.TempDir(), "none.yaml")}},
		{"blank override", SourceConfig{Name: "c", Kind: KindLocal, Profile: translate.ProfileDuckDB, Attributes: map[string]string{"title": " "}}},
		{"ambiguous override", SourceConfig{Name: "c", Kind: KindLocal, Profile: translate.ProfileDuckDB,
			Attributes: map[string]string{"Title": "name", "title": "heading"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &FileConfig{Sources: []SourceConfig{
				{Name: "catalog", Kind: KindLocal, Profile: translate.ProfileDuckDB},
				tt.sc,
			}}
			_, err := Build(context.Background(), fc, discard, nil)
			assert.Error(t, err)
		})
	}
}

func TestGeometryFormatter(t *testing.T) {
	assert.Equal(t, translate.OGCFormatter{}, geometryFormatter(SourceConfig{Profile: "CSW"}))
	assert.Nil(t, geometryFormatter(SourceConfig{Profile: "csw", Geometry: GeometryNone}))
	assert.Nil(t, geometryFormatter(SourceConfig{Profile: translate.ProfileDuckDB}))
	assert.Equal(t, translate.DuckDBSpatialFormatter{}, geometryFormatter(SourceConfig{Geometry: GeometryDuckDBSpatial}))
}
