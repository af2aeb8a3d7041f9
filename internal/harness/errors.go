package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/srs/internal/model"
)

// Sentinel errors matched with errors.Is
var (
	ErrValidation       = errors.New("invalid record")
	ErrUnsupportedTable = errors.New("unsupported table")
)

// ValidationError rejects one source record. It carries the table, as much
// of the key as could be resolved, and the full offending record so bad
// upstream data can be traced.
type ValidationError struct {
	Table  string
	Field  string
	Reason string
	Key    []string
	Record model.Record
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q field for `%s`", e.Reason, e.Field, e.Table)
	if len(e.Key) > 0 {
		fmt.Fprintf(&b, " (key %q)", e.Key)
	}
	fmt.Fprintf(&b, ": %v", map[string]any(e.Record))
	return b.String()
}

// Is makes errors.Is(err, ErrValidation) match
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UnsupportedTableError is returned for a table name that is not canonical,
// even after retrying with the scraper_ prefix
type UnsupportedTableError struct {
	Table string
}

func (e *UnsupportedTableError) Error() string {
	return fmt.Sprintf("unknown table `%s`", e.Table)
}

// Is makes errors.Is(err, ErrUnsupportedTable) match
func (e *UnsupportedTableError) Is(target error) bool {
	return target == ErrUnsupportedTable
}

func invalid(table, field, reason string, key []string, rec model.Record) *ValidationError {
	return &ValidationError{
		Table:  table,
		Field:  field,
		Reason: reason,
		Key:    key,
		Record: rec,
	}
}
