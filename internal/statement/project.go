package statement

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
)

// Project maps a raw record onto the schema's exact column order. Tag
// columns are taken from tags, the rest from raw by Source. Absent or
// unconvertible fields become nil; fields outside the schema are dropped.
func (s Schema) Project(tags, raw Record) []any {
	row := make([]any, len(s.Columns))
	for i, c := range s.Columns {
		var v any
		if tv, ok := tags[c.Name]; ok {
			v = tv
		} else if c.Source != "" {
			v = raw[c.Source]
		}
		row[i] = coerce(v, c.Type)
	}
	return row
}

// Frame returns an empty frame with the schema's columns.
func (s Schema) Frame() model.Frame {
	return model.NewFrame(s.Names())
}

// Check verifies that columns are exactly the schema's columns, in order,
// and that every row has one cell per column.
func (s Schema) Check(f model.Frame) error {
	if len(f.Columns) != len(s.Columns) {
		return eris.Wrapf(resilience.ErrSchemaMismatch, "statement: %s has %d columns, frame has %d",
			s.Table, len(s.Columns), len(f.Columns))
	}
	for i, c := range s.Columns {
		if f.Columns[i] != c.Name {
			return eris.Wrapf(resilience.ErrSchemaMismatch, "statement: %s column %d is %q, frame has %q",
				s.Table, i, c.Name, f.Columns[i])
		}
	}
	for i, row := range f.Rows {
		if len(row) != len(s.Columns) {
			return eris.Wrapf(resilience.ErrSchemaMismatch, "statement: %s row %d has %d cells",
				s.Table, i, len(row))
		}
	}
	return nil
}

func coerce(v any, t ColumnType) any {
	if v == nil {
		return nil
	}
	switch t {
	case Date:
		if d, ok := model.Date(v); ok {
			return d
		}
	case Float:
		if f, ok := model.Float(v); ok {
			return f
		}
	case BigInt, Int:
		if n, ok := model.Int(v); ok {
			return n
		}
	case Bool:
		return model.Bool(v)
	case Text:
		if s := model.Text(v); s != "" {
			return s
		}
	}
	return nil
}
