package model

// Frame is an ordered set of columns with positional rows. A nil cell is a
// SQL NULL.
type Frame struct {
	Columns []string
	Rows    [][]any
}

// NewFrame returns an empty frame with the given columns.
func NewFrame(columns []string) Frame {
	return Frame{Columns: columns}
}

// Len returns the number of rows.
func (f Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of column, or -1.
func (f Frame) Index(column string) int {
	for i, c := range f.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the cell at row i for column, or nil if the column is absent.
func (f Frame) Value(i int, column string) any {
	idx := f.Index(column)
	if idx < 0 || i < 0 || i >= len(f.Rows) || idx >= len(f.Rows[i]) {
		return nil
	}
	return f.Rows[i][idx]
}

// Record returns row i as a column-keyed map.
func (f Frame) Record(i int) map[string]any {
	rec := make(map[string]any, len(f.Columns))
	for j, c := range f.Columns {
		if j < len(f.Rows[i]) {
			rec[c] = f.Rows[i][j]
		}
	}
	return rec
}
