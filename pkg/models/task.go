// Package models contains the shared data types exchanged between the
// coordinator, the workers and the orchestrator.
package models

import "time"

// Specialization identifies the problem domain a worker agent is dedicated to.
type Specialization string

const (
	// SpecFrontend is the user-interface specialization.
	SpecFrontend Specialization = "frontend"
	// SpecBackend is the server-side specialization.
	SpecBackend Specialization = "backend"
)

// Specializations lists all known specializations in dispatch order.
var Specializations = []Specialization{SpecFrontend, SpecBackend}

// Valid returns true if the specialization is a known value.
func (s Specialization) Valid() bool {
	switch s {
	case SpecFrontend, SpecBackend:
		return true
	default:
		return false
	}
}

// TaskAnalysis is the coordinator's decomposition of one task.
// It is created once per pipeline run and read-only afterwards.
type TaskAnalysis struct {
	// OriginalTask is the task description as submitted.
	OriginalTask string `json:"original_task"`
	// Analysis is the coordinator's free-text analysis.
	Analysis string `json:"analysis"`
	// Subtasks maps each specialization to its ordered sub-task list.
	Subtasks map[Specialization][]string `json:"subtasks"`
	// IntegrationPoints lists the interface boundaries between
	// specializations that the final merge must reconcile.
	IntegrationPoints []string `json:"integration_points"`
}

// SubtaskList returns the sub-task list for a specialization.
// Unknown specializations yield an empty list.
func (a *TaskAnalysis) SubtaskList(spec Specialization) []string {
	if a == nil || a.Subtasks == nil {
		return nil
	}
	return a.Subtasks[spec]
}

// Empty reports whether the analysis produced no sub-tasks at all.
func (a *TaskAnalysis) Empty() bool {
	for _, spec := range Specializations {
		if len(a.SubtaskList(spec)) > 0 {
			return false
		}
	}
	return true
}

// Assignment is one rendered sub-task handed to a worker.
// It is built by the coordinator and consumed exactly once.
type Assignment struct {
	// Prompt is the fully rendered assignment text.
	Prompt string `json:"prompt"`
	// Context carries the structured values the prompt was rendered from.
	Context map[string]any `json:"context"`
	// Specialization is the worker the assignment is addressed to.
	Specialization Specialization `json:"specialization"`
	// SubtaskIndex is the index into the analysis sub-task list.
	SubtaskIndex int `json:"subtask_index"`
}

// Review is the coordinator's evaluation of one submitted solution.
type Review struct {
	// Specialization identifies whose work was reviewed.
	Specialization Specialization `json:"specialization"`
	// OriginalTask is the task the solution belongs to.
	OriginalTask string `json:"original_task"`
	// Evaluation is the free-text evaluation produced by the model.
	Evaluation string `json:"evaluation"`
	// Approved is the explicit verdict of the approval policy.
	Approved bool `json:"approved"`
}

// SubtaskResult records the outcome of one executed sub-task.
type SubtaskResult struct {
	// Subtask is the sub-task text from the analysis.
	Subtask string `json:"subtask"`
	// Solution is the worker's output.
	Solution string `json:"solution"`
	// Review is the coordinator's review, if one was obtained.
	Review *Review `json:"review,omitempty"`
	// Approved mirrors the review verdict for quick filtering.
	Approved bool `json:"approved"`
}

// ConversationEntry is one interaction in an agent's bounded history.
type ConversationEntry struct {
	// Timestamp is when the interaction completed.
	Timestamp time.Time `json:"timestamp"`
	// Message is the prompt or last user message sent.
	Message string `json:"message"`
	// Response is the model's reply.
	Response string `json:"response"`
	// Context is the extra context supplied by the caller, if any.
	Context map[string]any `json:"context,omitempty"`
}
