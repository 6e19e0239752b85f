package source

import (
	"fmt"
	"strings"
)

// DataUnavailableError reports a source dataset that could not be read or
// does not have the expected columns. It is fatal for startup.
type DataUnavailableError struct {
	Dataset  string
	Location string
	Err      error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("%s dataset unavailable at %s: %v", e.Dataset, e.Location, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// MissingColumnsError lists required headers absent from a dataset.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %s (found %s)",
		quoteList(e.Missing), quoteList(e.Found))
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
