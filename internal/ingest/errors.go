package ingest

import "fmt"

// MalformedValueError reports a numeric field that could not be parsed.
// Line is the 1-based line in the source file, header included.
type MalformedValueError struct {
	Dataset string
	Line    int
	Column  string
	Value   string
	Err     error
}

func (e *MalformedValueError) Error() string {
	return fmt.Sprintf("%s line %d: malformed %s value %q: %v", e.Dataset, e.Line, e.Column, e.Value, e.Err)
}

func (e *MalformedValueError) Unwrap() error { return e.Err }

// MalformedTimestampError reports a timestamp that does not match the
// dataset's layout.
type MalformedTimestampError struct {
	Dataset string
	Line    int
	Value   string
	Layout  string
	Err     error
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("%s line %d: malformed timestamp %q (want %s)", e.Dataset, e.Line, e.Value, e.Layout)
}

func (e *MalformedTimestampError) Unwrap() error { return e.Err }
