package tabular

import (
	"encoding/csv"
	"errors"
	"os"
	"strings"

	"callout_framework/internal/faults"
)

// Table is one loaded CSV reference source: trimmed header row plus row
// access by column name. Built once at load time; read-only afterwards.
type Table struct {
	Source  string
	Headers []string
	rows    [][]string
	index   map[string]int
}

// Danish exports come with varying separators, so sniff in this order.
var separators = []rune{';', ',', '\t'}

// ReadFile loads a CSV table, trying each known separator. A parse that
// yields a single column is assumed to have used the wrong separator.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &faults.DataSourceError{Source: path, Err: err}
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	var lastErr error
	for _, sep := range separators {
		r := csv.NewReader(strings.NewReader(text))
		r.Comma = sep
		r.FieldsPerRecord = -1
		records, err := r.ReadAll()
		if err != nil {
			lastErr = err
			continue
		}
		if len(records) == 0 || len(records[0]) <= 1 {
			continue
		}
		return newTable(path, records), nil
	}
	if lastErr == nil {
		lastErr = errors.New("no usable separator found (tried ';', ',', tab)")
	}
	return nil, &faults.DataSourceError{Source: path, Err: lastErr}
}

func newTable(source string, records [][]string) *Table {
	headers := make([]string, len(records[0]))
	index := make(map[string]int, len(headers))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
		if _, dup := index[headers[i]]; !dup {
			index[headers[i]] = i
		}
	}
	return &Table{Source: source, Headers: headers, rows: records[1:], index: index}
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Require fails with a DataSourceError naming every missing column.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &faults.DataSourceError{Source: t.Source, Missing: missing, Found: t.Headers}
	}
	return nil
}

// Column returns the index of an exactly named column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// ColumnFold returns the index of a column matched case-insensitively.
func (t *Table) ColumnFold(name string) (int, bool) {
	for i, h := range t.Headers {
		if strings.EqualFold(h, name) {
			return i, true
		}
	}
	return 0, false
}

// Get returns the trimmed cell at (row, named column); "" when the row is
// short or the column is unknown.
func (t *Table) Get(row int, col string) string {
	i, ok := t.index[col]
	if !ok {
		return ""
	}
	return t.GetIdx(row, i)
}

// GetIdx returns the trimmed cell at (row, column index).
func (t *Table) GetIdx(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return ""
	}
	return strings.TrimSpace(t.rows[row][col])
}
