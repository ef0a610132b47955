package translate

import (
	"log/slog"
	"strings"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/filter"
)

// Result is the outcome of translating one filter for one backend.
type Result struct {
	// Query is the native query. It is empty when Supported is false.
	Query string

	// Supported is false when the filter has no representation in the
	// backend vocabulary at all.
	Supported bool

	// QueryOfInterest is true when any predicate translated, or when the
	// discriminator attribute matched one of the backend markers.
	QueryOfInterest bool

	// WildcardOnly is true when the query is supported and its only
	// predicates are wildcard-only text searches, i.e. it would match
	// everything. Negated wildcards restrict the query and do not count.
	WildcardOnly bool
}

// Options configures a Translator.
type Options struct {
	// Mapper converts abstract attribute names to native names.
	// OPTIONAL: names pass through unchanged if nil. The mapper is frozen
	// by NewTranslator.
	Mapper *attrmap.Mapper

	// Geometry renders spatial predicates.
	// OPTIONAL: if nil, spatial predicates are unsupported.
	Geometry GeometryFormatter

	// Logger for debug output about dropped predicates.
	// OPTIONAL: uses slog.Default() if nil.
	Logger *slog.Logger
}

// Translator converts filter trees into the native query syntax of one
// backend. It is immutable and safe for concurrent use.
type Translator struct {
	caps     *Capabilities
	attrs    map[string]AttributeSupport
	markers  map[string]struct{}
	mapper   *attrmap.Mapper
	geometry GeometryFormatter
	logger   *slog.Logger
}

// NewTranslator validates caps and creates a translator.
// If opts is nil, default options are used.
func NewTranslator(caps *Capabilities, opts *Options) (*Translator, error) {
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	t := &Translator{
		caps:     caps.withDefaults(),
		attrs:    make(map[string]AttributeSupport, len(caps.Attributes)),
		markers:  make(map[string]struct{}, len(caps.TagMarkers)),
		mapper:   opts.Mapper,
		geometry: opts.Geometry,
		logger:   opts.Logger,
	}
	for name, support := range caps.Attributes {
		t.attrs[strings.ToLower(name)] = support
	}
	for _, m := range caps.TagMarkers {
		t.markers[strings.ToLower(m)] = struct{}{}
	}
	if t.mapper == nil {
		t.mapper = attrmap.New(nil)
	}
	t.mapper.Freeze()
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// Name returns the backend name.
func (t *Translator) Name() string {
	return t.caps.Name
}

// Capabilities returns the capability table in use. It must not be modified.
func (t *Translator) Capabilities() *Capabilities {
	return t.caps
}

// Mapper returns the attribute mapper in use.
func (t *Translator) Mapper() *attrmap.Mapper {
	return t.mapper
}

// Translate converts a filter into a native query.
// Unsupported predicates are dropped from And/Or nodes; a filter without any
// supported predicate yields a Result with Supported false. Malformed nodes
// abort the translation with an error wrapping ErrInvalidFilterArgument.
func (t *Translator) Translate(node filter.Node) (*Result, error) {
	w := &walker{t: t}
	query, err := w.visit(node)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Query:           query,
		Supported:       query != "",
		QueryOfInterest: w.interest,
		WildcardOnly:    query != "" && w.wildcards > 0 && w.others == 0,
	}
	if !res.Supported {
		t.logger.Debug("Filter has no native representation", "backend", t.caps.Name)
	}
	return res, nil
}

// lookup maps an abstract attribute and returns its native name and support.
func (t *Translator) lookup(attribute string) (string, AttributeSupport, bool) {
	native := t.mapper.ToNative(attribute)
	support, ok := t.attrs[strings.ToLower(native)]
	return native, support, ok
}

func (t *Translator) isAnyText(attribute string) bool {
	return strings.EqualFold(attribute, t.caps.AnyText)
}

func (t *Translator) isMarker(attribute string, value any) bool {
	if t.caps.TagAttribute == "" || !strings.EqualFold(attribute, t.caps.TagAttribute) {
		return false
	}
	s, ok := value.(string)
	if !ok {
		return false
	}
	_, ok = t.markers[strings.ToLower(strings.TrimSpace(s))]
	return ok
}
