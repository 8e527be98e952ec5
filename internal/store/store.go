// Package store is the table-oriented persistence layer: bulk append,
// filtered read, delete and full replace of named tables, plus the pipeline
// run log. Postgres and SQLite drivers share the same semantics.
package store

import (
	"context"
	"sort"

	"github.com/sells-group/fscore-cli/internal/model"
)

// Filter restricts an operation to rows whose columns equal the given
// values. A nil value matches NULL. An empty filter matches every row.
type Filter map[string]any

// columns returns the filter's columns in sorted order so generated SQL is
// stable.
func (f Filter) columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// TableFrame pairs a frame with its destination table.
type TableFrame struct {
	Table string
	Frame model.Frame
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Append bulk-appends frame rows to table.
	Append(ctx context.Context, table string, frame model.Frame) (int64, error)
	// AppendAll appends several frames atomically.
	AppendAll(ctx context.Context, frames []TableFrame) (int64, error)
	// Select reads the rows of table matching filter.
	Select(ctx context.Context, table string, filter Filter) (model.Frame, error)
	// Update sets columns on the rows matching filter.
	Update(ctx context.Context, table string, set map[string]any, filter Filter) (int64, error)
	// Delete removes the rows matching filter.
	Delete(ctx context.Context, table string, filter Filter) (int64, error)
	// DeleteAll removes every row of table.
	DeleteAll(ctx context.Context, table string) (int64, error)
	// Replace deletes every row of table, then appends frame.
	Replace(ctx context.Context, table string, frame model.Frame) (int64, error)

	// Run log
	StartRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, stats map[string]any) error
	FailRun(ctx context.Context, runID string, errMsg string) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
