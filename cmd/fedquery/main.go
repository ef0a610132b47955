// Command fedquery translates catalog filters for federated backends, runs
// federated searches and serves a local catalog over Arrow Flight.
//
// Usage:
//
//	fedquery translate -config fedquery.yaml -filter filter.json
//	fedquery search -config fedquery.yaml -filter filter.json -limit 20 -sort modified -desc
//	fedquery ingest -db catalog.duckdb -file entries.json
//	fedquery serve -db catalog.duckdb -addr :50051 -token secret
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"google.golang.org/grpc"

	"github.com/hugr-lab/fedquery"
	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/source/flight"
	"github.com/hugr-lab/fedquery/source/local"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "translate":
		err = runTranslate(ctx, os.Args[2:])
	case "search":
		err = runSearch(ctx, os.Args[2:])
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("fedquery %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fedquery <translate|search|ingest|serve> [flags]")
}

func readFilter(path string) (filter.Node, error) {
	if path == "" {
		return nil, errors.New("-filter is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return filter.Parse(data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runTranslate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	configPath := fs.String("config", "fedquery.yaml", "federation config file")
	filterPath := fs.String("filter", "", "filter JSON file")
	_ = fs.Parse(args)

	node, err := readFilter(*filterPath)
	if err != nil {
		return err
	}
	f, err := buildFederator(ctx, *configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	translations, err := f.Translate(node)
	if err != nil {
		return err
	}
	return printJSON(translations)
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "fedquery.yaml", "federation config file")
	filterPath := fs.String("filter", "", "filter JSON file")
	offset := fs.Int("offset", 0, "result offset per source")
	limit := fs.Int("limit", 0, "result limit per source (0 for backend default)")
	sortBy := fs.String("sort", "", "abstract attribute to sort by")
	desc := fs.Bool("desc", false, "sort descending")
	sources := fs.String("sources", "", "comma separated source names (default all)")
	_ = fs.Parse(args)

	node, err := readFilter(*filterPath)
	if err != nil {
		return err
	}
	f, err := buildFederator(ctx, *configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	q := fedquery.Query{
		Filter: node,
		Page:   source.Pagination{Offset: *offset, Limit: *limit},
		Sort:   source.Sort{Attribute: *sortBy, Descending: *desc},
	}
	if *sources != "" {
		q.Sources = strings.Split(*sources, ",")
	}
	resp, err := f.Search(ctx, q)
	if err != nil {
		return err
	}

	type status struct {
		Name     string `json:"name"`
		Query    string `json:"query,omitempty"`
		Skipped  string `json:"skipped,omitempty"`
		Hits     int    `json:"hits"`
		Total    int64  `json:"total"`
		Error    string `json:"error,omitempty"`
		Duration string `json:"duration"`
	}
	out := struct {
		ID      string          `json:"id"`
		Records []source.Record `json:"records"`
		Sources []status        `json:"sources"`
	}{ID: resp.ID.String(), Records: resp.Records}
	for _, s := range resp.Sources {
		st := status{
			Name:     s.Name,
			Query:    s.Query,
			Skipped:  string(s.Skipped),
			Hits:     s.Hits,
			Total:    s.Total,
			Duration: s.Duration.String(),
		}
		if s.Err != nil {
			st.Error = s.Err.Error()
		}
		out.Sources = append(out.Sources, st)
	}
	return printJSON(out)
}

func buildFederator(ctx context.Context, path string) (*fedquery.Federator, error) {
	fc, err := fedquery.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return fedquery.Build(ctx, fc, nil, nil)
}

// entryFile is the JSON form of local.Entry with a WKT location.
type entryFile struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ContentType  string    `json:"content_type"`
	Keywords     []string  `json:"keywords"`
	Created      time.Time `json:"created"`
	Modified     time.Time `json:"modified"`
	Effective    time.Time `json:"effective"`
	ResourceSize int64     `json:"resource_size"`
	Location     string    `json:"location"`
	Tags         []string  `json:"tags"`
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dbPath := fs.String("db", "catalog.duckdb", "DuckDB database file")
	file := fs.String("file", "", "JSON array of entries")
	_ = fs.Parse(args)

	if *file == "" {
		return errors.New("-file is required")
	}
	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var raw []entryFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode entries: %w", err)
	}

	entries := make([]local.Entry, 0, len(raw))
	for _, e := range raw {
		var loc orb.Geometry
		if e.Location != "" {
			loc, err = wkt.Unmarshal(e.Location)
			if err != nil {
				return fmt.Errorf("entry %s: location: %w", e.ID, err)
			}
		}
		entries = append(entries, local.Entry{
			ID:           e.ID,
			Title:        e.Title,
			Description:  e.Description,
			ContentType:  e.ContentType,
			Keywords:     e.Keywords,
			Created:      e.Created,
			Modified:     e.Modified,
			Effective:    e.Effective,
			ResourceSize: e.ResourceSize,
			Location:     loc,
			Tags:         e.Tags,
		})
	}

	store, err := local.Open(ctx, *dbPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Ingest(ctx, entries...); err != nil {
		return err
	}
	log.Printf("Ingested %d entries into %s", len(entries), *dbPath)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", "catalog.duckdb", "DuckDB database file")
	addr := fs.String("addr", ":50051", "listen address")
	token := fs.String("token", "", "bearer token required from clients (empty disables auth)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := local.Open(ctx, *dbPath, &local.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer store.Close()

	var auth flight.Authenticator
	if *token != "" {
		auth = flight.StaticToken(*token, "client")
	}
	srv, err := flight.NewServer(store, &flight.ServerConfig{Logger: logger})
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(flight.ServerOptions(auth)...)
	srv.Register(grpcServer)

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		grpcServer.GracefulStop()
	}()

	logger.Info("Local catalog listening", "addr", lis.Addr().String(), "db", *dbPath, "auth", auth != nil)
	return grpcServer.Serve(lis)
}
