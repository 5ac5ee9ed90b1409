package models

import "time"

// PipelineStatus represents the state of one pipeline run.
type PipelineStatus string

const (
	// StatusAnalyzing indicates the coordinator is decomposing the task.
	StatusAnalyzing PipelineStatus = "analyzing"
	// StatusExecuting indicates workers are processing sub-tasks.
	StatusExecuting PipelineStatus = "executing"
	// StatusIntegrating indicates solutions are being merged.
	StatusIntegrating PipelineStatus = "integrating"
	// StatusCompleted indicates the run finished with a final solution.
	StatusCompleted PipelineStatus = "completed"
	// StatusFailed indicates the run aborted on an unrecoverable error.
	StatusFailed PipelineStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s PipelineStatus) Valid() bool {
	switch s {
	case StatusAnalyzing, StatusExecuting, StatusIntegrating, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status ends a run.
func (s PipelineStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PipelineState is the per-run record owned by the orchestrator.
// It lives for exactly one SolveTask invocation and is archived when the
// run reaches a terminal status.
type PipelineState struct {
	// TaskID is the short run token.
	TaskID string `json:"task_id"`
	// Description is the submitted task text.
	Description string `json:"description"`
	// Analysis is the coordinator's decomposition, once available.
	Analysis *TaskAnalysis `json:"analysis,omitempty"`
	// Results holds per-specialization sub-task outcomes in list order.
	Results map[Specialization][]SubtaskResult `json:"results"`
	// Status is the current pipeline state.
	Status PipelineStatus `json:"status"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`
	// EndedAt is when the run reached a terminal status.
	EndedAt time.Time `json:"ended_at"`
	// FinalSolution is the integrated answer, or the failure report.
	FinalSolution string `json:"final_solution"`
}

// Duration returns the wall-clock time the run took so far.
func (p *PipelineState) Duration() time.Duration {
	if p.EndedAt.IsZero() {
		return time.Since(p.StartedAt)
	}
	return p.EndedAt.Sub(p.StartedAt)
}
