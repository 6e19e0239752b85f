package source

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// RawTable is a loaded dataset: every column holds the untouched source
// strings. Logical columns are resolved to the actual header at load time.
type RawTable struct {
	Dataset  string
	Location string
	Frame    dataframe.DataFrame
	index    map[string]string
}

// NewRawTable resolves the columns named by spec against frame. Header
// matching ignores case, surrounding whitespace and a UTF-8 byte order mark.
func NewRawTable(spec Spec, frame dataframe.DataFrame) (RawTable, error) {
	if frame.Err != nil {
		return RawTable{}, frame.Err
	}

	names := frame.Names()
	byHeader := make(map[string]string, len(names))
	for _, n := range names {
		byHeader[normalizeHeader(n)] = n
	}

	index := make(map[string]string, len(spec.Columns))
	var missing []string
	for _, c := range spec.Columns {
		actual, ok := byHeader[normalizeHeader(c.Header)]
		if !ok {
			missing = append(missing, c.Header)
			continue
		}
		index[c.Name] = actual
	}
	if len(missing) > 0 {
		return RawTable{}, &MissingColumnsError{Missing: missing, Found: names}
	}

	return RawTable{
		Dataset:  spec.Name,
		Location: spec.Location,
		Frame:    frame,
		index:    index,
	}, nil
}

// Len returns the number of data rows.
func (t RawTable) Len() int {
	if len(t.index) == 0 {
		return 0
	}
	return t.Frame.Nrow()
}

// Column returns the raw strings of a logical column, or nil if the table
// has no such column.
func (t RawTable) Column(name string) []string {
	col, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.Frame.Col(col).Records()
}

// Header returns the source column names in file order.
func (t RawTable) Header() []string {
	return t.Frame.Names()
}

// Rows returns every data row as strings, without the header.
func (t RawTable) Rows() [][]string {
	records := t.Frame.Records()
	if len(records) <= 1 {
		return nil
	}
	return records[1:]
}

// readFrame reads delimited text into a frame. Rows with the wrong number of
// fields are padded or cut to the header width; normalization rejects what
// no longer parses.
func readFrame(r io.Reader, delimiter rune) (dataframe.DataFrame, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, errors.New("no header row")
	}
	return loadFrame(records[0], records[1:]), nil
}

func fitWidth(rec []string, width int) []string {
	if len(rec) >= width {
		return rec[:width]
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

func loadFrame(header []string, rows [][]string) dataframe.DataFrame {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, header)
	for _, row := range rows {
		records = append(records, fitWidth(row, len(header)))
	}
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}
