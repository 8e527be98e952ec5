package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/resilience"
)

// CopyFrom bulk-inserts rows into a table using the PostgreSQL COPY protocol.
// Every row must have exactly one cell per column.
func CopyFrom(ctx context.Context, conn Copier, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if !ValidIdent(table) {
		return 0, eris.Errorf("db: invalid table name %q", table)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, eris.Wrapf(resilience.ErrSchemaMismatch, "db: %s row %d has %d cells for %d columns",
				table, i, len(row), len(columns))
		}
	}

	n, err := conn.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}
