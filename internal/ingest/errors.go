package ingest

import (
	"fmt"
	"strings"
)

// ValidationError rejects an upload before its content is inspected, e.g. a
// wrong extension or an oversized file.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// FormatError means no encoding/delimiter combination produced a parseable
// multi-column table.
type FormatError struct {
	Tried []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unable to detect CSV format (tried %s); use a comma, semicolon or tab separated file", strings.Join(e.Tried, ", "))
}

// EmptyContentError means the file has no content or no data rows.
type EmptyContentError struct {
	Reason string
}

func (e *EmptyContentError) Error() string {
	return e.Reason
}

// MissingHeadersError lists the canonical fields that no header matched,
// along with the raw headers that were seen.
type MissingHeadersError struct {
	Missing []Field
	Found   []string
}

func (e *MissingHeadersError) Error() string {
	missing := make([]string, len(e.Missing))
	for i, f := range e.Missing {
		missing[i] = string(f)
	}
	return fmt.Sprintf("missing required columns: %s (found: %s)", strings.Join(missing, ", "), strings.Join(e.Found, ", "))
}

// DuplicateFileError means the same content was already ingested by the user.
type DuplicateFileError struct {
	PriorJobID string
	Filename   string
}

func (e *DuplicateFileError) Error() string {
	return fmt.Sprintf("file %q has already been imported as job %s", e.Filename, e.PriorJobID)
}
