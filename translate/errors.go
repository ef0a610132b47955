package translate

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/fedquery/filter"
)

// ErrInvalidFilterArgument indicates a malformed filter node: an empty
// attribute name, a missing literal or an operator/value mismatch. It points
// at a bug in the code that built the filter, not at unsupported data.
var ErrInvalidFilterArgument = errors.New("invalid filter argument")

// ArgumentError describes the node that failed validation.
type ArgumentError struct {
	Kind      filter.Kind
	Attribute string
	Reason    string
}

func (e *ArgumentError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("translate: %s: %s node: %s", ErrInvalidFilterArgument, e.Kind, e.Reason)
	}
	return fmt.Sprintf("translate: %s: %s node on %q: %s", ErrInvalidFilterArgument, e.Kind, e.Attribute, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidFilterArgument
}

func argError(kind filter.Kind, attribute, format string, args ...any) error {
	return &ArgumentError{Kind: kind, Attribute: attribute, Reason: fmt.Sprintf(format, args...)}
}
