package importer

import (
	"fmt"
	"strings"
)

// ParseError means the uploaded file could not be decoded as a
// spreadsheet at all. Nothing was processed.
type ParseError struct {
	Filename string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("file %q could not be processed: %v", e.Filename, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingMappingError lists required target fields that have no mapped
// column. The caller is expected to send the user back to the mapping
// step; no rows are processed.
type MissingMappingError struct {
	Fields []Field
}

func (e *MissingMappingError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return "missing required field mapping: " + strings.Join(names, ", ")
}

// PersistError wraps a store failure while writing a snapshot. The run
// as a whole is failed; there is no automatic retry.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist snapshot: %v", e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
