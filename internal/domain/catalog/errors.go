package catalog

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an index does not address an existing entry.
var ErrNotFound = errors.New("catalog entry not found")

// IndexError carries the offending index and the collection size.
type IndexError struct {
	Kind  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.Kind, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrNotFound }

// ValidationError lists the request fields that were rejected before any
// remote call was made.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) add(msg string) {
	e.Fields = append(e.Fields, msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
