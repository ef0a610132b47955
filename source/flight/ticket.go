package flight

import (
	"errors"
	"fmt"

	"github.com/hugr-lab/fedquery/filter"
	"github.com/hugr-lab/fedquery/internal/msgpack"
	"github.com/hugr-lab/fedquery/internal/serialize"
	"github.com/hugr-lab/fedquery/source"
)

// Ticket is the decoded content of a Flight ticket: one abstract filter
// with its page and sort. The gateway translates the filter itself; native
// queries never cross the wire. On the wire the ticket is MessagePack
// compressed with zstd.
type Ticket struct {
	// Filter is the filter in the JSON form of filter.Encode.
	Filter []byte `msgpack:"f"`

	Offset int `msgpack:"o,omitempty"`
	Limit  int `msgpack:"l,omitempty"`

	// Sort is the abstract sort attribute (optional).
	Sort       string `msgpack:"s,omitempty"`
	Descending bool   `msgpack:"d,omitempty"`
}

// NewTicket builds a ticket for a filter.
func NewTicket(f filter.Node, page source.Pagination, sort source.Sort) (Ticket, error) {
	data, err := filter.Encode(f)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{
		Filter:     data,
		Offset:     page.Offset,
		Limit:      page.Limit,
		Sort:       sort.Attribute,
		Descending: sort.Descending,
	}, nil
}

// Page returns the ticket pagination.
func (t *Ticket) Page() source.Pagination {
	return source.Pagination{Offset: t.Offset, Limit: t.Limit}
}

// SortOrder returns the ticket sort.
func (t *Ticket) SortOrder() source.Sort {
	return source.Sort{Attribute: t.Sort, Descending: t.Descending}
}

// FilterNode parses the ticket filter. An empty filter is an error.
func (t *Ticket) FilterNode() (filter.Node, error) {
	n, err := filter.Parse(t.Filter)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, errors.New("ticket has no filter")
	}
	return n, nil
}

// EncodeTicket creates an opaque ticket.
func EncodeTicket(t Ticket) ([]byte, error) {
	data, err := msgpack.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return serialize.Compress(data)
}

// DecodeTicket parses an opaque ticket.
// Returns error if the ticket is empty, corrupt or has a negative page.
func DecodeTicket(data []byte) (*Ticket, error) {
	if len(data) == 0 {
		return nil, errors.New("ticket cannot be empty")
	}

	raw, err := serialize.Decompress(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	var t Ticket
	if err := msgpack.Decode(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode ticket: %w", err)
	}

	if t.Offset < 0 {
		return nil, fmt.Errorf("offset must be non-negative, got %d", t.Offset)
	}
	if t.Limit < 0 {
		return nil, fmt.Errorf("limit must be non-negative, got %d", t.Limit)
	}

	return &t, nil
}
