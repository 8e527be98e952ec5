package store

import (
	"encoding/json"

	"github.com/huandu/go-sqlbuilder"
	"github.com/rotisserie/eris"
)

var runColumns = []string{"id", "kind", "status", "started_at", "completed_at", "error", "stats"}

// listRunsSQL builds the run-log listing, newest first.
func listRunsSQL(flavor sqlbuilder.Flavor, filter RunFilter) (string, []any) {
	sb := flavor.NewSelectBuilder()
	sb.Select(runColumns...).From("pipeline_runs")
	if filter.Kind != "" {
		sb.Where(sb.Equal("kind", string(filter.Kind)))
	}
	if filter.Status != "" {
		sb.Where(sb.Equal("status", string(filter.Status)))
	}
	sb.OrderBy("started_at").Desc()
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	sb.Limit(limit)
	return sb.Build()
}

func marshalStats(stats map[string]any) ([]byte, error) {
	if stats == nil {
		return nil, nil
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal run stats")
	}
	return b, nil
}
