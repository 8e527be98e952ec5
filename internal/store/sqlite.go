package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
)

// sqliteMaxVars bounds the bind variables in one INSERT statement.
const sqliteMaxVars = 900

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  queries
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, resilience.NewConnectionError("sqlite", eris.Wrapf(err, "sqlite: exec %s", pragma))
		}
	}
	return &SQLiteStore{db: db, q: queries{flavor: sqlbuilder.SQLite}}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrateSQLite(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// insertTx writes rows in batches sized to stay under the bind limit.
func (s *SQLiteStore) insertTx(ctx context.Context, tx *sql.Tx, table string, frame model.Frame) (int64, error) {
	if frame.Len() == 0 {
		return 0, nil
	}
	for i, row := range frame.Rows {
		if len(row) != len(frame.Columns) {
			return 0, eris.Wrapf(resilience.ErrSchemaMismatch, "sqlite: %s row %d has %d cells for %d columns",
				table, i, len(row), len(frame.Columns))
		}
	}

	batch := sqliteMaxVars / max(len(frame.Columns), 1)
	if batch < 1 {
		batch = 1
	}
	var n int64
	for start := 0; start < len(frame.Rows); start += batch {
		end := min(start+batch, len(frame.Rows))
		query, args, err := s.q.insert(table, frame.Columns, frame.Rows[start:end])
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert into %s", table)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	return n, nil
}

func (s *SQLiteStore) Append(ctx context.Context, table string, frame model.Frame) (int64, error) {
	return s.AppendAll(ctx, []TableFrame{{Table: table, Frame: frame}})
}

func (s *SQLiteStore) AppendAll(ctx context.Context, frames []TableFrame) (int64, error) {
	for _, tf := range frames {
		if err := checkIdents(tf.Table, tf.Frame.Columns...); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var n int64
	for _, tf := range frames {
		c, err := s.insertTx(ctx, tx, tf.Table, tf.Frame)
		if err != nil {
			return 0, err
		}
		n += c
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: append: commit")
	}
	return n, nil
}

func (s *SQLiteStore) Select(ctx context.Context, table string, filter Filter) (model.Frame, error) {
	query, args, err := s.q.selectAll(table, filter)
	if err != nil {
		return model.Frame{}, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Frame{}, eris.Wrapf(err, "sqlite: select %s", table)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return model.Frame{}, eris.Wrapf(err, "sqlite: columns %s", table)
	}
	frame := model.Frame{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return model.Frame{}, eris.Wrapf(err, "sqlite: scan %s", table)
		}
		frame.Rows = append(frame.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return model.Frame{}, eris.Wrapf(err, "sqlite: iterate %s", table)
	}
	return frame, nil
}

func (s *SQLiteStore) exec(ctx context.Context, op, table, query string, args []any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s %s", op, table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: %s %s: rows affected", op, table)
	}
	return n, nil
}

func (s *SQLiteStore) Update(ctx context.Context, table string, set map[string]any, filter Filter) (int64, error) {
	query, args, err := s.q.update(table, set, filter)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "update", table, query, args)
}

func (s *SQLiteStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	query, args, err := s.q.delete(table, filter)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, "delete", table, query, args)
}

func (s *SQLiteStore) DeleteAll(ctx context.Context, table string) (int64, error) {
	return s.Delete(ctx, table, nil)
}

func (s *SQLiteStore) Replace(ctx context.Context, table string, frame model.Frame) (int64, error) {
	query, args, err := s.q.delete(table, nil)
	if err != nil {
		return 0, err
	}
	if err := checkIdents(table, frame.Columns...); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace: delete %s", table)
	}
	n, err := s.insertTx(ctx, tx, table, frame)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: commit")
	}
	return n, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, kind, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: start %s run", kind)
	}
	return run, nil
}

func (s *SQLiteStore) finishRun(ctx context.Context, runID string, status model.RunStatus, errMsg *string, stats []byte) error {
	var statsArg any
	if stats != nil {
		statsArg = string(stats)
	}
	n, err := s.exec(ctx, "finish run", runID,
		`UPDATE pipeline_runs SET status = ?, completed_at = ?, error = ?, stats = ? WHERE id = ?`,
		[]any{string(status), time.Now().UTC(), errMsg, statsArg, runID},
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return eris.Errorf("sqlite: run %s not found", runID)
	}
	return nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats map[string]any) error {
	statsJSON, err := marshalStats(stats)
	if err != nil {
		return err
	}
	return s.finishRun(ctx, runID, model.RunStatusComplete, nil, statsJSON)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	return s.finishRun(ctx, runID, model.RunStatusFailed, &errMsg, nil)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args := listRunsSQL(sqlbuilder.SQLite, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var (
			r           model.Run
			kind        string
			status      string
			startedAt   any
			completedAt any
			errStr      sql.NullString
			statsJSON   sql.NullString
		)
		if err := rows.Scan(&r.ID, &kind, &status, &startedAt, &completedAt, &errStr, &statsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		if t, ok := model.Time(startedAt); ok {
			r.StartedAt = t
		}
		if t, ok := model.Time(completedAt); ok {
			r.CompletedAt = &t
		}
		r.Error = errStr.String
		if statsJSON.Valid && statsJSON.String != "" {
			_ = json.Unmarshal([]byte(statsJSON.String), &r.Stats)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
