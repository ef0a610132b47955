package flight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/source"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var created = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

var (
	titleIsX = filter.Attribute("title").EqualTo("x")
	orbPoint = orb.Point{1, 2}
)

// startServer serves exec on a random local port and returns its address.
func startServer(t *testing.T, exec source.Executor, auth Authenticator) string {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv, err := NewServer(exec, &ServerConfig{Logger: discard})
	require.NoError(t, err)
	grpcServer := grpc.NewServer(ServerOptions(auth)...)
	srv.Register(grpcServer)

	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(grpcServer.Stop)
	return lis.Addr().String()
}

func dial(t *testing.T, addr string, opts *Options) *Client {
	t.Helper()
	if opts == nil {
		opts = &Options{}
	}
	opts.Logger = discard
	c, err := Dial(addr, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// countingExecutor records the queries it receives.
type countingExecutor struct {
	mu      sync.Mutex
	queries []string
}

func (e *countingExecutor) Execute(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, query)
	return &source.RawResultSet{}, nil
}

func (e *countingExecutor) calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

func TestTicketRoundTrip(t *testing.T) {
	in, err := NewTicket(filter.Attribute("title").Like("*report*"), source.Pagination{Offset: 20, Limit: 10},
		source.Sort{Attribute: "modified", Descending: true})
	require.NoError(t, err)

	data, err := EncodeTicket(in)
	require.NoError(t, err)

	out, err := DecodeTicket(data)
	require.NoError(t, err)
	assert.Equal(t, in, *out)
	assert.Equal(t, source.Pagination{Offset: 20, Limit: 10}, out.Page())
	assert.Equal(t, source.Sort{Attribute: "modified", Descending: true}, out.SortOrder())

	node, err := out.FilterNode()
	require.NoError(t, err)
	like, ok := node.(*filter.Like)
	require.True(t, ok, "expected a Like node, got %T", node)
	assert.Equal(t, "*report*", like.Pattern)
}

func TestDecodeTicketErrors(t *testing.T) {
	_, err := DecodeTicket(nil)
	assert.Error(t, err)

	_, err = DecodeTicket([]byte(`{"query":"x"}`))
	assert.Error(t, err)

	data, err := EncodeTicket(Ticket{Filter: []byte(`{}`), Offset: -5})
	require.NoError(t, err)
	_, err = DecodeTicket(data)
	assert.Error(t, err)

	_, err = NewTicket(nil, source.Pagination{}, source.Sort{})
	assert.Error(t, err)

	for _, raw := range []string{"", "title = 'x'"} {
		tk := Ticket{Filter: []byte(raw)}
		_, err = tk.FilterNode()
		assert.Error(t, err, "filter %q", raw)
	}
}

func TestRecordConversion(t *testing.T) {
	rs := &source.RawResultSet{
		Total: 7,
		Hits: []source.RawHit{
			{"id": "a", "title": "Report", "resource_size": int64(10), "score": 0.5, "draft": true,
				"created": created, "keywords": []string{"x", "y"}, "empty": nil},
			{"id": "b", "title": nil, "resource_size": 3, "score": "bad", "draft": nil,
				"created": nil, "keywords": nil, "empty": nil},
		},
	}

	alloc := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer alloc.AssertSize(t, 0)

	rec, err := buildRecord(alloc, rs)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(7), schemaTotal(rec.Schema()))
	assert.Equal(t, "id", rec.Schema().Field(0).Name)
	assert.Equal(t, int64(2), rec.NumRows())

	hits := recordHits(nil, rec)
	require.Len(t, hits, 2)
	assert.Equal(t, source.RawHit{
		"id": "a", "title": "Report", "resource_size": int64(10), "score": 0.5, "draft": true,
		"created": created, "keywords": []string{"x", "y"}, "empty": nil,
	}, hits[0])
	assert.Equal(t, source.RawHit{
		"id": "b", "title": nil, "resource_size": int64(3), "score": nil, "draft": nil,
		"created": nil, "keywords": nil, "empty": nil,
	}, hits[1])
}

func TestClientServer(t *testing.T) {
	var (
		mu       sync.Mutex
		gotQuery string
		gotPage  source.Pagination
		gotSort  source.Sort
	)
	exec := source.ExecutorFunc(func(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
		mu.Lock()
		gotQuery, gotPage, gotSort = query, page, sort
		mu.Unlock()
		return &source.RawResultSet{
			Total: 42,
			Hits: []source.RawHit{
				{"id": "1", "title": "First", "resource_size": int64(5), "created": created},
				{"id": "2", "title": "Second", "keywords": []string{"k"}},
			},
		}, nil
	})
	c := dial(t, startServer(t, exec, nil), &Options{Name: "remote"})

	rs, err := c.ExecuteFilter(context.Background(), titleIsX, source.Pagination{Limit: 2}, source.Sort{Attribute: "title"})
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, "title = 'x'", gotQuery)
	assert.Equal(t, source.Pagination{Limit: 2}, gotPage)
	assert.Equal(t, source.Sort{Attribute: "title"}, gotSort)
	mu.Unlock()

	assert.Equal(t, int64(42), rs.Total)
	require.Len(t, rs.Hits, 2)
	assert.Equal(t, "First", rs.Hits[0]["title"])
	assert.Equal(t, created, rs.Hits[0]["created"])
	assert.Nil(t, rs.Hits[0]["keywords"])
	assert.Equal(t, []string{"k"}, rs.Hits[1]["keywords"])

	records := source.MapHits(discard, c.Name(), c.Mapper(), rs.Hits)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	assert.Equal(t, "remote", records[0].Source)
	assert.Equal(t, int64(5), records[0].Attributes["resource-size"])
	assert.Equal(t, []string{"k"}, records[1].Attributes["keyword"])
}

func TestClientServerEmptyResult(t *testing.T) {
	exec := source.ExecutorFunc(func(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
		return &source.RawResultSet{}, nil
	})
	c := dial(t, startServer(t, exec, nil), nil)

	rs, err := c.ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
	require.NoError(t, err)
	assert.Empty(t, rs.Hits)
	assert.Equal(t, int64(0), rs.Total)
}

func TestClientServerErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"rejected", source.Rejected("local", errors.New("Parser Error")), source.ErrBackendQueryRejected},
		{"unavailable", source.Unavailable("local", errors.New("busy")), source.ErrBackendUnavailable},
		{"transport", source.Transport("local", errors.New("disk")), source.ErrBackendTransportError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := source.ExecutorFunc(func(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
				return nil, tt.err
			})
			c := dial(t, startServer(t, exec, nil), nil)

			_, err := c.ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestServerRecoversPanics(t *testing.T) {
	exec := source.ExecutorFunc(func(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
		panic("executor bug")
	})
	c := dial(t, startServer(t, exec, nil), nil)

	_, err := c.ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrBackendTransportError)

	var be *source.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, codes.Internal, status.Code(be.Err))
}

func TestClientServerAuth(t *testing.T) {
	var (
		mu       sync.Mutex
		identity string
	)
	exec := source.ExecutorFunc(func(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
		mu.Lock()
		identity = IdentityFromContext(ctx)
		mu.Unlock()
		return &source.RawResultSet{}, nil
	})
	addr := startServer(t, exec, StaticToken("s3cret", "federator"))

	_, err := dial(t, addr, nil).ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
	assert.ErrorIs(t, err, source.ErrBackendQueryRejected)

	_, err = dial(t, addr, &Options{Token: "wrong"}).ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
	assert.ErrorIs(t, err, source.ErrBackendQueryRejected)

	_, err = dial(t, addr, &Options{Token: "s3cret"}).ExecuteFilter(context.Background(), titleIsX, source.Pagination{}, source.Sort{})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "federator", identity)
	mu.Unlock()
}

func TestServerRejectsNativeQueries(t *testing.T) {
	exec := &countingExecutor{}
	addr := startServer(t, exec, nil)

	raw, err := flight.NewClientWithMiddleware(addr, nil, nil, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	spatial, err := filter.Encode(filter.Attribute("location").Intersects(orbPoint))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter []byte
	}{
		{"sql fragment", []byte("contains((SELECT content FROM read_text('/etc/passwd')), 'root')")},
		{"sql with quote", []byte("1=1) OR (1=1")},
		{"empty filter", nil},
		{"unknown node", []byte(`{"type":"sql","query":"TRUE"}`)},
		{"no native representation", spatial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeTicket(Ticket{Filter: tt.filter})
			require.NoError(t, err)

			stream, err := raw.DoGet(context.Background(), &flight.Ticket{Ticket: data})
			if err == nil {
				_, err = stream.Recv()
			}
			require.Error(t, err)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
	assert.Empty(t, exec.calls())
}

func TestServerTranslatesLiterals(t *testing.T) {
	exec := &countingExecutor{}
	c := dial(t, startServer(t, exec, nil), nil)

	_, err := c.ExecuteFilter(context.Background(), filter.AllOf(
		filter.Attribute("title").EqualTo("x' OR 1=1 --"),
		filter.Attribute("keyword").Like("finance"),
	), source.Pagination{}, source.Sort{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"( title = 'x'' OR 1=1 --' AND EXISTS (SELECT 1 FROM (SELECT unnest(keywords) AS el) WHERE el ILIKE 'finance') )",
	}, exec.calls())
}

func TestClientExecuteTakesEncodedFilter(t *testing.T) {
	exec := &countingExecutor{}
	c := dial(t, startServer(t, exec, nil), nil)

	data, err := filter.Encode(titleIsX)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), string(data), source.Pagination{}, source.Sort{})
	require.NoError(t, err)
	assert.Equal(t, []string{"title = 'x'"}, exec.calls())

	_, err = c.Execute(context.Background(), "title = 'x'", source.Pagination{}, source.Sort{})
	assert.ErrorIs(t, err, source.ErrBackendQueryRejected)
	assert.Len(t, exec.calls(), 1)
}

func TestNewServerRequiresExecutor(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestClientUnavailable(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	lis.Close()

	c := dial(t, addr, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = c.ExecuteFilter(ctx, titleIsX, source.Pagination{}, source.Sort{})
	assert.ErrorIs(t, err, source.ErrBackendUnavailable)
}

func TestTokenFromAuthorizationHeader(t *testing.T) {
	token, err := TokenFromAuthorizationHeader("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = TokenFromAuthorizationHeader("Basic abc")
	assert.ErrorIs(t, err, ErrInvalidAuthHeader)

	_, err = TokenFromAuthorizationHeader("Bearer ")
	assert.ErrorIs(t, err, ErrTokenIsEmpty)
}

func TestAuthenticators(t *testing.T) {
	identity, err := NoAuth().Authenticate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", identity)

	static := StaticToken("s3cret", "svc")
	for _, token := range []string{"b", "s3cre", "s3cret2", "S3CRET"} {
		_, err = static.Authenticate(context.Background(), token)
		assert.Error(t, err, "token %q", token)
	}
	identity, err = static.Authenticate(context.Background(), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "svc", identity)

	assert.Empty(t, IdentityFromContext(context.Background()))
	assert.Equal(t, "x", IdentityFromContext(WithIdentity(context.Background(), "x")))
}
