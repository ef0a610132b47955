// Package confluence implements a catalog backend on the Confluence REST
// content search API, queried with CQL rendered by the translate package's
// Confluence profile.
package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/source"
	"github.com/hugr-lab/fedquery/translate"
)

// SearchPath is the content search endpoint relative to the base URL.
const SearchPath = "/rest/api/content/search"

// DefaultLimit applies when a page has no limit.
const DefaultLimit = 25

// DefaultTimeout is used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// expand selects the nested objects the mapper reads.
const expand = "space,history,version"

// Config configures a Client.
type Config struct {
	// Name identifies the backend in errors and records.
	// OPTIONAL: defaults to "confluence".
	Name string

	// BaseURL of the Confluence instance, e.g. "https://wiki.example.com".
	// REQUIRED.
	BaseURL string

	// Username and Token authenticate with basic auth. If only Token is
	// set it is sent as a bearer token.
	// OPTIONAL.
	Username string
	Token    string

	// Attributes maps abstract sort attributes to CQL fields.
	// OPTIONAL: defaults to translate.ConfluenceAttributes.
	Attributes *attrmap.Mapper

	// HTTPClient performs the requests.
	// OPTIONAL: a client with Timeout is created if nil.
	HTTPClient *http.Client

	// Timeout for each request when HTTPClient is nil.
	// OPTIONAL: defaults to DefaultTimeout.
	Timeout time.Duration

	// Logger for debug output.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Client executes CQL queries. It is safe for concurrent use.
type Client struct {
	name     string
	base     *url.URL
	username string
	token    string
	attrs    *attrmap.Mapper
	http     *http.Client
	logger   *slog.Logger
}

// NewClient creates a Confluence client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("confluence: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("confluence: invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("confluence: unsupported URL scheme %q", base.Scheme)
	}

	c := &Client{
		name:     cfg.Name,
		base:     base,
		username: cfg.Username,
		token:    cfg.Token,
		attrs:    cfg.Attributes,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}
	if c.name == "" {
		c.name = translate.ProfileConfluence
	}
	if c.attrs == nil {
		c.attrs = attrmap.New(translate.ConfluenceAttributes)
		c.attrs.Freeze()
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.name
}

// Mapper returns the result mapper for hits of this client.
func (c *Client) Mapper() source.ResultMapper {
	return Mapper{Source: c.name, BaseURL: c.base.String()}
}

// searchResponse is the subset of the search response the client reads.
type searchResponse struct {
	Results   []map[string]any `json:"results"`
	Start     int              `json:"start"`
	Size      int              `json:"size"`
	TotalSize *int64           `json:"totalSize"`
}

// Execute implements source.Executor.
func (c *Client) Execute(ctx context.Context, query string, page source.Pagination, sort source.Sort) (*source.RawResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return nil, source.Rejected(c.name, errors.New("empty CQL query"))
	}
	if page.Offset < 0 || page.Limit < 0 {
		return nil, source.Rejected(c.name, fmt.Errorf("invalid page %+v", page))
	}

	cql := query
	if sort.Attribute != "" {
		dir := "asc"
		if sort.Descending {
			dir = "desc"
		}
		cql += " order by " + c.attrs.ToNative(sort.Attribute) + " " + dir
	}
	limit := page.Limit
	if limit == 0 {
		limit = DefaultLimit
	}

	u := *c.base
	u.Path += SearchPath
	u.RawQuery = url.Values{
		"cql":    {cql},
		"start":  {strconv.Itoa(page.Offset)},
		"limit":  {strconv.Itoa(limit)},
		"expand": {expand},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, source.Transport(c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	switch {
	case c.username != "":
		req.SetBasicAuth(c.username, c.token)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Executing CQL search", "source", c.name, "cql", cql)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		switch {
		case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
			return nil, source.Unavailable(c.name, err)
		case resp.StatusCode >= 400:
			return nil, source.Rejected(c.name, err)
		default:
			return nil, source.Transport(c.name, err)
		}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, c.classifyTransport(fmt.Errorf("decode response: %w", err))
	}

	rs := &source.RawResultSet{Total: -1, Hits: make([]source.RawHit, 0, len(sr.Results))}
	if sr.TotalSize != nil {
		rs.Total = *sr.TotalSize
	}
	for _, r := range sr.Results {
		rs.Hits = append(rs.Hits, source.RawHit(r))
	}
	return rs, nil
}

// classifyTransport maps client side failures: timeouts and refused
// connections mean the backend is unavailable.
func (c *Client) classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return source.Unavailable(c.name, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return source.Unavailable(c.name, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return source.Unavailable(c.name, err)
	}
	return source.Transport(c.name, err)
}
