package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fscore-cli/internal/db"
	"github.com/sells-group/fscore-cli/internal/model"
	"github.com/sells-group/fscore-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	q       queries
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool. An unreachable
// database is reported as a connection failure.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, resilience.NewConnectionError("postgres", eris.Wrap(err, "postgres: ping"))
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close, q: queries{flavor: sqlbuilder.PostgreSQL}}, nil
}

// NewPostgresFromPool wraps an existing pool (or a pgxmock pool in tests).
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: queries{flavor: sqlbuilder.PostgreSQL}}
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return migratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, table string, frame model.Frame) (int64, error) {
	if err := checkIdents(table, frame.Columns...); err != nil {
		return 0, err
	}
	return db.CopyFrom(ctx, s.pool, table, frame.Columns, frame.Rows)
}

func (s *PostgresStore) AppendAll(ctx context.Context, frames []TableFrame) (int64, error) {
	total := 0
	for _, tf := range frames {
		if err := checkIdents(tf.Table, tf.Frame.Columns...); err != nil {
			return 0, err
		}
		total += tf.Frame.Len()
	}
	if total == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int64
	for _, tf := range frames {
		c, err := db.CopyFrom(ctx, tx, tf.Table, tf.Frame.Columns, tf.Frame.Rows)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: append")
		}
		n += c
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: append: commit")
	}
	return n, nil
}

func (s *PostgresStore) Select(ctx context.Context, table string, filter Filter) (model.Frame, error) {
	sql, args, err := s.q.selectAll(table, filter)
	if err != nil {
		return model.Frame{}, err
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return model.Frame{}, eris.Wrapf(err, "postgres: select %s", table)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	frame := model.Frame{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		frame.Columns[i] = fd.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return model.Frame{}, eris.Wrapf(err, "postgres: scan %s", table)
		}
		frame.Rows = append(frame.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return model.Frame{}, eris.Wrapf(err, "postgres: iterate %s", table)
	}
	return frame, nil
}

func (s *PostgresStore) Update(ctx context.Context, table string, set map[string]any, filter Filter) (int64, error) {
	sql, args, err := s.q.update(table, set, filter)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update %s", table)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Delete(ctx context.Context, table string, filter Filter) (int64, error) {
	sql, args, err := s.q.delete(table, filter)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete %s", table)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context, table string) (int64, error) {
	return s.Delete(ctx, table, nil)
}

func (s *PostgresStore) Replace(ctx context.Context, table string, frame model.Frame) (int64, error) {
	sql, args, err := s.q.delete(table, nil)
	if err != nil {
		return 0, err
	}
	if err := checkIdents(table, frame.Columns...); err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return 0, eris.Wrapf(err, "postgres: replace: delete %s", table)
	}
	n, err := db.CopyFrom(ctx, tx, table, frame.Columns, frame.Rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace")
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: replace: commit")
	}
	return n, nil
}

func (s *PostgresStore) StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, kind, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Kind), string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: start %s run", kind)
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats map[string]any) error {
	statsJSON, err := marshalStats(stats)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, completed_at = now(), stats = $2 WHERE id = $3`,
		string(model.RunStatusComplete), statsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		string(model.RunStatusFailed), errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run %s not found", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	sql, args := listRunsSQL(sqlbuilder.PostgreSQL, filter)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			r           model.Run
			kind        string
			status      string
			completedAt *time.Time
			errStr      *string
			statsJSON   []byte
		)
		if err := rows.Scan(&r.ID, &kind, &status, &r.StartedAt, &completedAt, &errStr, &statsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Kind = model.RunKind(kind)
		r.Status = model.RunStatus(status)
		r.CompletedAt = completedAt
		if errStr != nil {
			r.Error = *errStr
		}
		if statsJSON != nil {
			_ = json.Unmarshal(statsJSON, &r.Stats)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
