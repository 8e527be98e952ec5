package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fscore-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_Append(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"sa_country_mapping"}, []string{"ticker", "country", "name"}).
		WillReturnResult(2)

	frame := model.Frame{
		Columns: []string{"ticker", "country", "name"},
		Rows:    [][]any{{"SAP", "DE", "SAP SE"}, {"BMW", "DE", "BMW AG"}},
	}
	n, err := s.Append(context.Background(), "sa_country_mapping", frame)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Append_InvalidColumn(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	frame := model.Frame{Columns: []string{"ticker; DROP TABLE x"}, Rows: [][]any{{"SAP"}}}
	_, err := s.Append(context.Background(), "sa_country_mapping", frame)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid column name")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAll_Transactional(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"sa_balance_sheet"}, []string{"asof_date", "ticker", "country"}).
		WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"sa_cashflow_statement"}, []string{"asof_date", "ticker", "country"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	day := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	frames := []TableFrame{
		{Table: "sa_balance_sheet", Frame: model.Frame{
			Columns: []string{"asof_date", "ticker", "country"},
			Rows:    [][]any{{day, "SAP", "DE"}},
		}},
		{Table: "sa_cashflow_statement", Frame: model.Frame{
			Columns: []string{"asof_date", "ticker", "country"},
			Rows:    [][]any{{day, "SAP", "DE"}},
		}},
	}
	n, err := s.AppendAll(context.Background(), frames)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAll_CopyFailureRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectCopyFrom(pgx.Identifier{"sa_balance_sheet"}, []string{"ticker"}).
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	frames := []TableFrame{
		{Table: "sa_balance_sheet", Frame: model.Frame{Columns: []string{"ticker"}, Rows: [][]any{{"SAP"}}}},
	}
	_, err := s.AppendAll(context.Background(), frames)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AppendAll_NoRows(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	n, err := s.AppendAll(context.Background(), []TableFrame{
		{Table: "sa_balance_sheet", Frame: model.Frame{Columns: []string{"ticker"}}},
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Select(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"ticker", "country", "name"}).
		AddRow("SAP", "DE", "SAP SE").
		AddRow("BMW", "DE", "BMW AG")
	mock.ExpectQuery(`SELECT \* FROM sa_country_mapping WHERE country = \$1`).
		WithArgs("DE").
		WillReturnRows(rows)

	frame, err := s.Select(context.Background(), "sa_country_mapping", Filter{"country": "DE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ticker", "country", "name"}, frame.Columns)
	require.Equal(t, 2, frame.Len())
	assert.Equal(t, "BMW", frame.Value(1, "ticker"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Select_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT \* FROM sa_stock_profile`).WillReturnError(errors.New("boom"))

	_, err := s.Select(context.Background(), "sa_stock_profile", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select sa_stock_profile")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sa_erroneous_symbols SET confirmed_manually = \$1 WHERE suffix = \$2 AND ticker = \$3`).
		WithArgs(true, "DE", "SAP").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := s.Update(context.Background(), "sa_erroneous_symbols",
		map[string]any{"confirmed_manually": true},
		Filter{"ticker": "SAP", "suffix": "DE"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update_NothingToSet(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	_, err := s.Update(context.Background(), "sa_erroneous_symbols", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to set")
}

func TestPostgresStore_Delete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM sa_erroneous_symbols WHERE suffix = \$1 AND ticker = \$2`).
		WithArgs("L", "VOD").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	n, err := s.Delete(context.Background(), "sa_erroneous_symbols", Filter{"ticker": "VOD", "suffix": "L"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAll(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`^DELETE FROM sa_piotroski_results$`).
		WillReturnResult(pgxmock.NewResult("DELETE", 42))

	n, err := s.DeleteAll(context.Background(), "sa_piotroski_results")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Replace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sa_country_mapping`).
		WillReturnResult(pgxmock.NewResult("DELETE", 10))
	mock.ExpectCopyFrom(pgx.Identifier{"sa_country_mapping"}, []string{"ticker", "country"}).
		WillReturnResult(1)
	mock.ExpectCommit()

	n, err := s.Replace(context.Background(), "sa_country_mapping", model.Frame{
		Columns: []string{"ticker", "country"},
		Rows:    [][]any{{"SAP", "DE"}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Replace_DeleteError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM sa_country_mapping`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	_, err := s.Replace(context.Background(), "sa_country_mapping", model.Frame{Columns: []string{"ticker"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replace: delete sa_country_mapping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO pipeline_runs`).
		WithArgs(pgxmock.AnyArg(), "pipeline", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.StartRun(context.Background(), model.RunKindPipeline)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pipeline_runs SET status = \$1, completed_at = now\(\), stats = \$2 WHERE id = \$3`).
		WithArgs("complete", []byte(`{"loaded":5}`), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.CompleteRun(context.Background(), "run-1", map[string]any{"loaded": 5})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FailRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE pipeline_runs SET status = \$1`).
		WithArgs("failed", "connection refused", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FailRun(context.Background(), "missing", "connection refused")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	done := started.Add(time.Hour)
	errMsg := "xtb: login rejected"
	rows := pgxmock.NewRows(runColumns).
		AddRow("run-2", "pipeline", "failed", started, &done, &errMsg, []byte(nil)).
		AddRow("run-1", "score", "complete", started.Add(-time.Hour), &started, (*string)(nil), []byte(`{"scored":3}`))
	mock.ExpectQuery(`SELECT id, kind, status, started_at, completed_at, error, stats FROM pipeline_runs ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Equal(t, errMsg, runs[0].Error)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, float64(3), runs[1].Stats["scored"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM pipeline_runs WHERE kind = \$1 AND status = \$2 ORDER BY started_at DESC LIMIT \$3`).
		WithArgs("extract", "failed", 50).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := s.ListRuns(context.Background(), RunFilter{Kind: model.RunKindExtract, Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AllApplied(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).
			AddRow("001_statements.sql").
			AddRow("002_catalog_quarantine_scores.sql").
			AddRow("003_pipeline_runs.sql"))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_AppliesPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).
			AddRow("001_statements.sql").
			AddRow("002_catalog_quarantine_scores.sql"))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS pipeline_runs`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).WithArgs("003_pipeline_runs.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`SELECT pg_advisory_unlock`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_LockError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT pg_advisory_lock`).WillReturnError(errors.New("timeout"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory lock")
}
