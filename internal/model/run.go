package model

import "time"

// RunKind names the pipeline operation a run log row belongs to.
type RunKind string

const (
	RunKindPipeline RunKind = "pipeline"
	RunKindCatalog  RunKind = "catalog"
	RunKindExtract  RunKind = "extract"
	RunKindScore    RunKind = "score"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one row of the pipeline run log.
type Run struct {
	ID          string         `json:"id"`
	Kind        RunKind        `json:"kind"`
	Status      RunStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stats       map[string]any `json:"stats,omitempty"`
}
