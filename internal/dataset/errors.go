package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel roots for errors.Is checks.
var (
	ErrSchemaViolation = errors.New("schema violation")
	ErrMissingMetadata = errors.New("missing metadata")
)

// SchemaViolationError reports an axis or array that breaks the canonical
// schema. Index is -1 when the problem is not tied to one element.
type SchemaViolationError struct {
	Field  string
	Index  int
	Reason string
}

func (e *SchemaViolationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("schema violation in %s at index %d: %s", e.Field, e.Index, e.Reason)
	}
	return fmt.Sprintf("schema violation in %s: %s", e.Field, e.Reason)
}

func (e *SchemaViolationError) Unwrap() error { return ErrSchemaViolation }

func violation(field string, index int, format string, args ...any) error {
	return &SchemaViolationError{Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}

// MissingMetadataError lists every mandatory attribute that was absent or empty.
type MissingMetadataError struct {
	Keys []string
}

func (e *MissingMetadataError) Error() string {
	return "missing mandatory attributes: " + strings.Join(e.Keys, ", ")
}

func (e *MissingMetadataError) Unwrap() error { return ErrMissingMetadata }
