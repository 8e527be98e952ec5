package store

import (
	"github.com/huandu/go-sqlbuilder"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/db"
)

// queries builds driver-specific SQL for the table operations.
type queries struct {
	flavor sqlbuilder.Flavor
}

func checkIdents(table string, columns ...string) error {
	if !db.ValidIdent(table) {
		return eris.Errorf("store: invalid table name %q", table)
	}
	for _, c := range columns {
		if !db.ValidIdent(c) {
			return eris.Errorf("store: invalid column name %q on %s", c, table)
		}
	}
	return nil
}

func where(cond *sqlbuilder.Cond, filter Filter) []string {
	exprs := make([]string, 0, len(filter))
	for _, col := range filter.columns() {
		v := filter[col]
		if v == nil {
			exprs = append(exprs, cond.IsNull(col))
			continue
		}
		exprs = append(exprs, cond.Equal(col, v))
	}
	return exprs
}

func (q queries) selectAll(table string, filter Filter) (string, []any, error) {
	if err := checkIdents(table, filter.columns()...); err != nil {
		return "", nil, err
	}
	sb := q.flavor.NewSelectBuilder()
	sb.Select("*").From(table)
	if len(filter) > 0 {
		sb.Where(where(&sb.Cond, filter)...)
	}
	sql, args := sb.Build()
	return sql, args, nil
}

func (q queries) delete(table string, filter Filter) (string, []any, error) {
	if err := checkIdents(table, filter.columns()...); err != nil {
		return "", nil, err
	}
	b := q.flavor.NewDeleteBuilder()
	b.DeleteFrom(table)
	if len(filter) > 0 {
		b.Where(where(&b.Cond, filter)...)
	}
	sql, args := b.Build()
	return sql, args, nil
}

func (q queries) update(table string, set map[string]any, filter Filter) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, eris.Errorf("store: update %s: nothing to set", table)
	}
	setCols := Filter(set).columns()
	if err := checkIdents(table, append(setCols, filter.columns()...)...); err != nil {
		return "", nil, err
	}
	b := q.flavor.NewUpdateBuilder()
	b.Update(table)
	assignments := make([]string, 0, len(setCols))
	for _, col := range setCols {
		assignments = append(assignments, b.Assign(col, set[col]))
	}
	b.Set(assignments...)
	if len(filter) > 0 {
		b.Where(where(&b.Cond, filter)...)
	}
	sql, args := b.Build()
	return sql, args, nil
}

// insert builds one multi-row INSERT. Callers keep len(rows)*len(columns)
// under the driver's bind-variable limit.
func (q queries) insert(table string, columns []string, rows [][]any) (string, []any, error) {
	if err := checkIdents(table, columns...); err != nil {
		return "", nil, err
	}
	b := q.flavor.NewInsertBuilder()
	b.InsertInto(table).Cols(columns...)
	for _, row := range rows {
		b.Values(row...)
	}
	sql, args := b.Build()
	return sql, args, nil
}
