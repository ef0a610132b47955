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
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/internal/recovery"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Translator turns ticket filters into queries for the executor.
	// OPTIONAL: defaults to the DuckDB profile, matching a local.Store
	// opened with default options.
	Translator *translate.Translator

	// Allocator for building record batches.
	// OPTIONAL: defaults to memory.DefaultAllocator.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Server exposes an executor over Flight DoGet. Clients send abstract
// filters; the server translates them and only ever hands the executor
// queries produced by its own translator.
// Embeds BaseFlightServer for forward compatibility with protocol changes.
type Server struct {
	flight.BaseFlightServer

	exec       source.Executor
	translator *translate.Translator
	allocator  memory.Allocator
	logger     *slog.Logger
}

// NewServer creates a Flight server serving exec.
func NewServer(exec source.Executor, cfg *ServerConfig) (*Server, error) {
	if exec == nil {
		return nil, errors.New("flight: executor is required")
	}
	if cfg == nil {
		cfg = &ServerConfig{}
	}
	s := &Server{
		exec:       exec,
		translator: cfg.Translator,
		allocator:  cfg.Allocator,
		logger:     cfg.Logger,
	}
	if s.allocator == nil {
		s.allocator = memory.DefaultAllocator
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.translator == nil {
		caps, attrs, _ := translate.Profile(translate.ProfileDuckDB)
		tr, err := translate.NewTranslator(caps, &translate.Options{Mapper: attrmap.New(attrs), Logger: s.logger})
		if err != nil {
			return nil, fmt.Errorf("flight: default translator: %w", err)
		}
		s.translator = tr
	}
	return s, nil
}

// Register registers the Flight service on the provided gRPC server.
// Authentication is installed with ServerOptions when creating grpcServer.
func (s *Server) Register(grpcServer *grpc.Server) {
	flight.RegisterFlightServiceServer(grpcServer, s)
}

// DoGet decodes the ticket, translates its filter, executes the query and
// streams the hits as a single record batch. The total hit count travels
// in the schema metadata.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	ctx := stream.Context()

	t, err := DecodeTicket(ticket.GetTicket())
	if err != nil {
		s.logger.Error("Failed to decode ticket", "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
	}
	query, err := s.translate(t)
	if err != nil {
		s.logger.Warn("Rejected ticket filter", "identity", IdentityFromContext(ctx), "error", err)
		return status.Errorf(codes.InvalidArgument, "invalid filter: %v", err)
	}
	s.logger.Debug("DoGet request",
		"identity", IdentityFromContext(ctx),
		"query", query,
		"offset", t.Offset,
		"limit", t.Limit,
	)

	rs, err := recovery.RecoverToValue(s.logger, "Execute", func() (*source.RawResultSet, error) {
		return s.exec.Execute(ctx, query, t.Page(), t.SortOrder())
	})
	if err != nil {
		return toStatus(err)
	}

	record, err := buildRecord(s.allocator, rs)
	if err != nil {
		s.logger.Error("Failed to build record batch", "error", err)
		return status.Errorf(codes.Internal, "failed to build record batch: %v", err)
	}
	defer record.Release()

	writer := flight.NewRecordWriter(stream, ipc.WithSchema(record.Schema()), ipc.WithAllocator(s.allocator))
	defer writer.Close()

	if err := writer.Write(record); err != nil {
		s.logger.Error("Failed to write record batch", "error", err)
		return status.Errorf(codes.Internal, "failed to write record batch: %v", err)
	}
	s.logger.Debug("DoGet completed", "rows", record.NumRows())
	return nil
}

// translate parses and translates the ticket filter.
func (s *Server) translate(t *Ticket) (string, error) {
	node, err := t.FilterNode()
	if err != nil {
		return "", err
	}
	res, err := s.translator.Translate(node)
	if err != nil {
		return "", err
	}
	if !res.Supported {
		return "", fmt.Errorf("filter has no representation for %s", s.translator.Name())
	}
	return res.Query, nil
}

// toStatus maps executor errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, source.ErrBackendUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, source.ErrBackendQueryRejected):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
