package translate

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hugr-lab/fedquery/filter"
)

// validate is a singleton validator instance
var validate = validator.New()

// Quote escaping styles.
const (
	// EscapeBackslash escapes quotes and backslashes with a backslash (CQL).
	EscapeBackslash = "backslash"
	// EscapeDouble doubles the quote character (SQL).
	EscapeDouble = "double"
)

// Default grouping tokens around compound fragments.
const (
	DefaultGroupOpen  = "( "
	DefaultGroupClose = " )"
)

// ErrInvalidCapabilities indicates a capability table failed validation.
var ErrInvalidCapabilities = errors.New("translate: invalid capabilities")

// Capabilities declares the query vocabulary of one backend.
// It is configuration data: build it once per backend and do not modify it
// after handing it to NewTranslator.
type Capabilities struct {
	// Name identifies the backend in logs and metrics.
	// REQUIRED.
	Name string `yaml:"name" validate:"required"`

	// Attributes lists the supported native field names (case-insensitive).
	// REQUIRED: at least one attribute.
	Attributes map[string]AttributeSupport `yaml:"attributes" validate:"required,min=1"`

	// Operators maps comparison operators to their native symbols.
	// Operators without a symbol are unsupported for every attribute.
	// REQUIRED.
	Operators map[filter.ComparisonOperator]string `yaml:"operators" validate:"required,min=1"`

	// LikeOperator is the native text-match symbol (e.g. "~", "LIKE").
	// REQUIRED.
	LikeOperator string `yaml:"like_operator" validate:"required"`

	// CaseInsensitiveLikeOperator is used for case-insensitive Like nodes.
	// OPTIONAL: LikeOperator is used when empty.
	CaseInsensitiveLikeOperator string `yaml:"case_insensitive_like_operator,omitempty"`

	// NotKeyword is the negation keyword.
	// OPTIONAL: if empty, every Not node is unsupported.
	NotKeyword string `yaml:"not_keyword,omitempty"`

	// NullTest is appended to a field to test for absence (e.g. "IS NULL").
	// OPTIONAL: if empty, null tests are unsupported.
	NullTest string `yaml:"null_test,omitempty"`

	// DateFormat is the Go time layout for date literals. Times are rendered in UTC.
	// REQUIRED.
	DateFormat string `yaml:"date_format" validate:"required"`

	// Quote is the string literal delimiter.
	// REQUIRED: exactly one character.
	Quote string `yaml:"quote" validate:"required,len=1"`

	// QuoteEscape selects how quotes inside literals are escaped.
	// REQUIRED: "backslash" or "double".
	QuoteEscape string `yaml:"quote_escape" validate:"required,oneof=backslash double"`

	// Wildcard is the native multi-character wildcard ('*' in filters).
	// REQUIRED.
	Wildcard string `yaml:"wildcard" validate:"required"`

	// SingleChar is the native single-character wildcard ('?' in filters).
	// OPTIONAL: if empty, '?' is matched literally.
	SingleChar string `yaml:"single_char,omitempty"`

	// LikeEscape escapes native wildcard characters that occur literally in
	// a pattern. Fragments that needed escaping get an ESCAPE clause.
	// OPTIONAL: if empty, such patterns are unsupported.
	LikeEscape string `yaml:"like_escape,omitempty" validate:"omitempty,len=1"`

	// ListPredicate matches a predicate against every element of a list
	// field (AttributeSupport.List) and holds if any element does. "%[1]s"
	// is replaced with the field and "%[2]s" with the predicate on
	// ListElement. OPTIONAL: if empty, predicates on list fields are
	// unsupported.
	ListPredicate string `yaml:"list_predicate,omitempty"`
	ListElement   string `yaml:"list_element,omitempty" validate:"required_with=ListPredicate"`

	// AnyText is the abstract pseudo-attribute whose Like patterns are split
	// into words. OPTIONAL: defaults to filter.AnyText.
	AnyText string `yaml:"any_text,omitempty"`

	// ContainsTokens wraps each any-text word in native wildcards.
	ContainsTokens bool `yaml:"contains_tokens,omitempty"`

	// TagAttribute is the abstract discriminator attribute and TagMarkers the
	// values that mark a query as targeting this backend.
	// OPTIONAL.
	TagAttribute string   `yaml:"tag_attribute,omitempty"`
	TagMarkers   []string `yaml:"tag_markers,omitempty"`

	// GroupOpen and GroupClose surround compound fragments.
	// OPTIONAL: default to "( " and " )".
	GroupOpen  string `yaml:"group_open,omitempty"`
	GroupClose string `yaml:"group_close,omitempty"`
}

// AttributeSupport declares what a backend can do with one native field.
type AttributeSupport struct {
	// Operators lists the comparisons allowed on the field. Empty means none.
	Operators []filter.ComparisonOperator `yaml:"operators,omitempty"`

	// Like enables text matching.
	Like bool `yaml:"like,omitempty"`

	// Wildcards allows '*' and '?' in Like patterns.
	Wildcards bool `yaml:"wildcards,omitempty"`

	// Temporal enables after/before/during.
	Temporal bool `yaml:"temporal,omitempty"`

	// Spatial enables geometry relations.
	Spatial bool `yaml:"spatial,omitempty"`

	// Nullable enables null tests.
	Nullable bool `yaml:"nullable,omitempty"`

	// List marks a field holding a list of values. Comparisons and Like
	// match any element; null tests apply to the whole list.
	List bool `yaml:"list,omitempty"`
}

// Allows reports whether op is permitted on the field.
func (a AttributeSupport) Allows(op filter.ComparisonOperator) bool {
	for _, o := range a.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Validate checks the capability table.
func (c *Capabilities) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil capabilities", ErrInvalidCapabilities)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCapabilities, formatValidationError(err))
	}
	for op := range c.Operators {
		if !op.Valid() {
			return fmt.Errorf("%w: unknown operator %q", ErrInvalidCapabilities, op)
		}
	}
	if c.ListPredicate != "" &&
		(!strings.Contains(c.ListPredicate, "%[1]s") || !strings.Contains(c.ListPredicate, "%[2]s")) {
		return fmt.Errorf("%w: list predicate must reference %%[1]s and %%[2]s", ErrInvalidCapabilities)
	}
	for name, attr := range c.Attributes {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty attribute name", ErrInvalidCapabilities)
		}
		for _, op := range attr.Operators {
			if !op.Valid() {
				return fmt.Errorf("%w: attribute %s: unknown operator %q", ErrInvalidCapabilities, name, op)
			}
		}
	}
	return nil
}

// withDefaults returns a copy with optional fields filled in.
func (c *Capabilities) withDefaults() *Capabilities {
	cp := *c
	if cp.AnyText == "" {
		cp.AnyText = filter.AnyText
	}
	if cp.GroupOpen == "" {
		cp.GroupOpen = DefaultGroupOpen
	}
	if cp.GroupClose == "" {
		cp.GroupClose = DefaultGroupClose
	}
	return &cp
}

// ParseCapabilities reads a YAML capability table and validates it.
func ParseCapabilities(data []byte) (*Capabilities, error) {
	var c Capabilities
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("translate: invalid capabilities YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCapabilities reads a YAML capability table from a file.
func LoadCapabilities(path string) (*Capabilities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("translate: read capabilities: %w", err)
	}
	return ParseCapabilities(data)
}

// formatValidationError flattens validator errors into one line.
func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
