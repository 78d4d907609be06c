package domain

import (
	"errors"
	"fmt"
)

// ErrPolicyMismatch is returned when a week policy is applied to a panel other
// than the one it was computed from.
var ErrPolicyMismatch = errors.New("week policy was computed from a different date axis")

// SchemaError reports a malformed input table: a missing column, an
// unparseable date header, or ragged rows. It aborts processing of the table.
type SchemaError struct {
	Table  string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema error in %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("schema error in %s: column %q: %s", e.Table, e.Column, e.Reason)
}

// DataIntegrityError reports a value that cannot be trusted for one entity:
// an identifier that overflows the canonical width, a bad count, or a
// population that cannot serve as a denominator.
type DataIntegrityError struct {
	Table  string
	Entity string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("data integrity error in %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("data integrity error in %s: entity %q: %s", e.Table, e.Entity, e.Reason)
}

// AlignmentError reports an entity present in one panel but absent from a
// panel it must be joined against.
type AlignmentError struct {
	Entity  EntityID
	Missing string // name of the table the entity is missing from
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("alignment error: entity %q has no entry in %s", e.Entity, e.Missing)
}

// ErrorKind classifies err for metrics and logs. It returns "" for errors
// that are not domain errors.
func ErrorKind(err error) string {
	var schemaErr *SchemaError
	var integrityErr *DataIntegrityError
	var alignErr *AlignmentError
	switch {
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &integrityErr):
		return "integrity"
	case errors.As(err, &alignErr):
		return "alignment"
	case errors.Is(err, ErrPolicyMismatch):
		return "policy"
	default:
		return ""
	}
}
