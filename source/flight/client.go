// Package flight implements a remote catalog backend over Arrow Flight and
// the gateway server that exposes any source.Executor to such clients.
//
// The abstract filter travels in the DoGet ticket (see Ticket) and the
// gateway translates it with its own translator; the result comes back as
// Arrow record batches whose rows become raw hits.
package flight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

// Options configures a Client.
type Options struct {
	// Name identifies the backend in errors and records.
	// OPTIONAL: defaults to "flight".
	Name string

	// Token is sent as a bearer token with every call.
	// OPTIONAL.
	Token string

	// Attributes maps the remote native field names back to abstract ones.
	// OPTIONAL: defaults to translate.DuckDBAttributes, the table of a
	// remote local catalog.
	Attributes *attrmap.Mapper

	// Allocator for reading record batches.
	// OPTIONAL: defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// DialOptions replace the default insecure transport credentials.
	// OPTIONAL.
	DialOptions []grpc.DialOption

	// Logger for debug output.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Client executes queries on a remote Flight gateway. It is safe for
// concurrent use.
type Client struct {
	name   string
	token  string
	attrs  *attrmap.Mapper
	alloc  memory.Allocator
	client flight.Client
	logger *slog.Logger
}

// Dial connects to the Flight server at addr ("host:port").
func Dial(addr string, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{
		name:   opts.Name,
		token:  opts.Token,
		attrs:  opts.Attributes,
		alloc:  opts.Allocator,
		logger: opts.Logger,
	}
	if c.name == "" {
		c.name = "flight"
	}
	if c.attrs == nil {
		c.attrs = attrmap.New(translate.DuckDBAttributes)
		c.attrs.Freeze()
	}
	if c.alloc == nil {
		c.alloc = memory.DefaultAllocator
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	dialOpts := opts.DialOptions
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	client, err := flight.NewClientWithMiddleware(addr, nil, nil, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("flight: dial %s: %w", addr, err)
	}
	c.client = client
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.name
}

// Mapper returns the result mapper for hits of this client.
func (c *Client) Mapper() source.ResultMapper {
	return source.ColumnMapper{Source: c.name, Attributes: c.attrs}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Execute implements source.Executor. query is a filter in the JSON form
// of filter.Encode, not a native query.
func (c *Client) Execute(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
	f, err := filter.Parse([]byte(query))
	if err != nil {
		return nil, source.Rejected(c.name, err)
	}
	return c.ExecuteFilter(ctx, f, page, sort)
}

// ExecuteFilter implements source.FilterExecutor.
func (c *Client) ExecuteFilter(ctx context.Context, f filter.Node, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
	if f == nil {
		return nil, source.Rejected(c.name, errors.New("nil filter"))
	}
	t, err := NewTicket(f, page, sort)
	if err != nil {
		return nil, source.Rejected(c.name, err)
	}
	ticket, err := EncodeTicket(t)
	if err != nil {
		return nil, source.Transport(c.name, err)
	}
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", bearerPrefix+c.token)
	}

	stream, err := c.client.DoGet(ctx, &flight.Ticket{Ticket: ticket})
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	reader, err := flight.NewRecordReader(stream, ipc.WithAllocator(c.alloc))
	if err != nil {
		return nil, c.classify(ctx, err)
	}
	defer reader.Release()

	rs := &source.RawResultSet{Total: schemaTotal(reader.Schema())}
	for reader.Next() {
		rs.Hits = recordHits(rs.Hits, reader.RecordBatch())
	}
	if err := reader.Err(); err != nil {
		return nil, c.classify(ctx, err)
	}
	c.logger.Debug("Flight query completed", "source", c.name, "hits", len(rs.Hits))
	return rs, nil
}

// classify maps gRPC status codes to backend error kinds.
func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return source.Unavailable(c.name, errors.Join(ctxErr, err))
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled, codes.ResourceExhausted, codes.Aborted:
		return source.Unavailable(c.name, err)
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.OutOfRange,
		codes.Unimplemented, codes.Unauthenticated, codes.PermissionDenied:
		return source.Rejected(c.name, err)
	default:
		return source.Transport(c.name, err)
	}
}
