package fedquery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/fedquery/attrmap"
	"github.com/hugr-lab/fedquery/source/confluence"
	"github.com/hugr-lab/fedquery/source/flight"
	"github.com/hugr-lab/fedquery/source/local"
	"github.com/hugr-lab/fedquery/translate"
)

// Source kinds understood by Build.
const (
	KindLocal      = "local"
	KindConfluence = "confluence"
	KindFlight     = "flight"
)

// Geometry formatter names for SourceConfig.Geometry.
const (
	GeometryNone          = "none"
	GeometryOGC           = "ogc"
	GeometryDuckDBSpatial = "duckdb_spatial"
)

var validate = validator.New()

// FileConfig is the YAML federation config:
//
//	log_level: info
//	max_concurrency: 4
//	default_timeout: 10s
//	sources:
//	  - name: wiki
//	    kind: confluence
//	    profile: confluence
//	    endpoint: https://wiki.example.com
//	    token: ${WIKI_TOKEN}
//	    require_interest: true
//	  - name: catalog
//	    kind: local
//	    profile: duckdb
//	    endpoint: /var/lib/fedquery/catalog.duckdb
//
// Values of the form ${NAME} are expanded from the environment.
type FileConfig struct {
	LogLevel       string         `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	MaxConcurrency int            `yaml:"max_concurrency" validate:"gte=0"`
	DefaultTimeout time.Duration  `yaml:"default_timeout" validate:"gte=0"`
	Sources        []SourceConfig `yaml:"sources" validate:"required,min=1,dive"`
}

// SourceConfig describes one backend.
type SourceConfig struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=local confluence flight"`

	// Profile names a built-in capability profile (translate.Profiles).
	// With CapabilitiesFile set it only supplies the attribute table.
	Profile          string `yaml:"profile" validate:"required_without=CapabilitiesFile"`
	CapabilitiesFile string `yaml:"capabilities_file"`

	// Endpoint is the database path for local sources (empty for
	// in-memory), the base URL for confluence and host:port for flight.
	Endpoint string `yaml:"endpoint" validate:"required_unless=Kind local"`

	Username string        `yaml:"username"`
	Token    string        `yaml:"token"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`

	RequireInterest  bool `yaml:"require_interest"`
	SkipWildcardOnly bool `yaml:"skip_wildcard_only"`

	// Geometry selects the spatial formatter. Defaults to ogc for the
	// csw profile and none otherwise.
	Geometry string `yaml:"geometry" validate:"omitempty,oneof=none ogc duckdb_spatial"`

	// Attributes override the abstract to native attribute table.
	Attributes map[string]string `yaml:"attributes"`
}

// ParseConfig reads a YAML federation config and validates it.
func ParseConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// LoadConfig reads a YAML federation config from a file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fedquery: read config: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks field constraints, unique source names and profile names.
func (fc *FileConfig) Validate() error {
	if err := validate.Struct(fc); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, validationMessage(err))
	}
	seen := make(map[string]bool, len(fc.Sources))
	for _, sc := range fc.Sources {
		if seen[sc.Name] {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, sc.Name)
		}
		seen[sc.Name] = true
		if sc.Profile != "" {
			if _, _, ok := translate.Profile(sc.Profile); !ok {
				return fmt.Errorf("%w: source %s: unknown profile %q", ErrInvalidConfig, sc.Name, sc.Profile)
			}
		}
	}
	return nil
}

// Level returns the configured slog level, Info by default.
func (fc *FileConfig) Level() slog.Level {
	switch fc.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// Build opens every configured backend and creates the federator. The
// federator owns the backends; release them with Federator.Close.
// If logger is nil, a text logger at fc.LogLevel is used.
func Build(ctx context.Context, fc *FileConfig, logger *slog.Logger, metrics *Metrics) (*Federator, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: fc.Level()}))
	}

	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	sources := make([]Source, 0, len(fc.Sources))
	for _, sc := range fc.Sources {
		src, closer, err := buildSource(ctx, sc, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("fedquery: source %s: %w", sc.Name, err)
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		sources = append(sources, src)
	}

	f, err := New(Config{
		Sources:        sources,
		Logger:         logger,
		MaxConcurrency: fc.MaxConcurrency,
		DefaultTimeout: fc.DefaultTimeout,
		Metrics:        metrics,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	f.closers = closers
	return f, nil
}

// buildSource creates the translator and executor of one source.
func buildSource(ctx context.Context, sc SourceConfig, logger *slog.Logger) (Source, io.Closer, error) {
	tr, err := buildTranslator(sc, logger)
	if err != nil {
		return Source{}, nil, err
	}
	src := Source{
		Name:             sc.Name,
		Translator:       tr,
		Timeout:          sc.Timeout,
		RequireInterest:  sc.RequireInterest,
		SkipWildcardOnly: sc.SkipWildcardOnly,
	}

	switch sc.Kind {
	case KindLocal:
		store, err := local.Open(ctx, sc.Endpoint, &local.Options{
			Name:       sc.Name,
			Attributes: tr.Mapper(),
			Logger:     logger,
		})
		if err != nil {
			return Source{}, nil, err
		}
		src.Executor, src.Mapper = store, store.Mapper()
		return src, store, nil
	case KindConfluence:
		client, err := confluence.NewClient(confluence.Config{
			Name:       sc.Name,
			BaseURL:    sc.Endpoint,
			Username:   sc.Username,
			Token:      sc.Token,
			Attributes: tr.Mapper(),
			Timeout:    sc.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return Source{}, nil, err
		}
		src.Executor, src.Mapper = client, client.Mapper()
		return src, nil, nil
	case KindFlight:
		client, err := flight.Dial(sc.Endpoint, &flight.Options{
			Name:       sc.Name,
			Token:      sc.Token,
			Attributes: tr.Mapper(),
			Logger:     logger,
		})
		if err != nil {
			return Source{}, nil, err
		}
		src.Executor, src.Mapper = client, client.Mapper()
		return src, client, nil
	default:
		return Source{}, nil, fmt.Errorf("unknown kind %q", sc.Kind)
	}
}

// buildTranslator resolves the capability table and attribute mapper.
func buildTranslator(sc SourceConfig, logger *slog.Logger) (*translate.Translator, error) {
	var (
		caps  *translate.Capabilities
		attrs map[string]string
	)
	if sc.Profile != "" {
		caps, attrs, _ = translate.Profile(sc.Profile)
	}
	if sc.CapabilitiesFile != "" {
		loaded, err := translate.LoadCapabilities(sc.CapabilitiesFile)
		if err != nil {
			return nil, err
		}
		caps = loaded
	}

	mapper := attrmap.New(attrs)
	if err := mapper.RegisterOverrides(sc.Attributes); err != nil {
		return nil, err
	}

	return translate.NewTranslator(caps, &translate.Options{
		Mapper:   mapper,
		Geometry: geometryFormatter(sc),
		Logger:   logger,
	})
}

func geometryFormatter(sc SourceConfig) translate.GeometryFormatter {
	name := sc.Geometry
	if name == "" && strings.EqualFold(sc.Profile, translate.ProfileCSW) {
		name = GeometryOGC
	}
	switch name {
	case GeometryOGC:
		return translate.OGCFormatter{}
	case GeometryDuckDBSpatial:
		return translate.DuckDBSpatialFormatter{}
	default:
		return nil
	}
}
