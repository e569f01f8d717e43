// Package payload defines the in-memory records that flow through a merge and
// the order in which they are concatenated.
package payload

import (
	"fmt"
	"strings"
)

// Record is a fully read input file. It is treated as immutable once built.
type Record struct {
	// Data is the complete byte content of the file.
	Data []byte
	// MimeType is the declared media type of the file.
	MimeType string
	// Name is the base name of the file.
	Name string
}

// Len returns the size of the record's data in bytes.
func (r Record) Len() int { return len(r.Data) }

// Order selects which payload comes first in the merged output.
type Order int

const (
	// Append places carrier bytes before cargo bytes.
	Append Order = iota
	// Prepend places cargo bytes before carrier bytes.
	Prepend
)

// String returns the lowercase name of the order.
func (o Order) String() string {
	switch o {
	case Append:
		return "append"
	case Prepend:
		return "prepend"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// Invert returns the order with carrier and cargo roles swapped.
func (o Order) Invert() Order {
	if o == Append {
		return Prepend
	}
	return Append
}

// ParseOrder parses "append" or "prepend" (case-insensitive).
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "append":
		return Append, nil
	case "prepend":
		return Prepend, nil
	}
	return Append, fmt.Errorf("unknown merge order %q (want append or prepend)", s)
}

// Concat returns a new slice holding first followed by second.
func Concat(first, second []byte) []byte {
	out := make([]byte, len(first)+len(second))
	copy(out, first)
	copy(out[len(first):], second)
	return out
}

// Arrange returns (first, second) for carrier and cargo under the given order.
func Arrange(carrier, cargo []byte, order Order) ([]byte, []byte) {
	if order == Prepend {
		return cargo, carrier
	}
	return carrier, cargo
}
