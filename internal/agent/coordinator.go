package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"devcrew/pkg/models"
)

// ErrInvalidTaskIndex is returned by CreateAssignment when the sub-task
// index is out of range. The orchestrator checks it before dispatching;
// no worker is ever invoked for an invalid index.
var ErrInvalidTaskIndex = errors.New("invalid sub-task index")

// CoordinatorConfig holds the coordinator's construction parameters.
type CoordinatorConfig struct {
	// Agent is the base agent configuration.
	Agent Config
	// Policy decides review approval. Defaults to KeywordApproval.
	Policy ApprovalPolicy
	// WorkerNames maps each specialization to its display name, used in
	// assignment and review prompts.
	WorkerNames map[models.Specialization]string
}

// Coordinator decomposes tasks, builds assignments, reviews solutions
// and integrates them into a final answer.
type Coordinator struct {
	*Agent
	policy      ApprovalPolicy
	workerNames map[models.Specialization]string
}

// NewCoordinator creates a coordinator agent.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	policy := cfg.Policy
	if policy == nil {
		policy = NewKeywordApproval()
	}
	names := cfg.WorkerNames
	if names == nil {
		names = map[models.Specialization]string{}
	}
	return &Coordinator{
		Agent:       New(cfg.Agent),
		policy:      policy,
		workerNames: names,
	}
}

// workerName returns the display name for a specialization, falling back
// to the specialization itself.
func (c *Coordinator) workerName(spec models.Specialization) string {
	if name := c.workerNames[spec]; name != "" {
		return name
	}
	return string(spec) + " developer"
}

// AnalyzeTask decomposes a task into per-specialization sub-task lists.
// Two completion calls are made: a free-text analysis, then a strict-JSON
// extraction. Malformed extraction output degrades to empty lists and
// never fails; transport failures are surfaced.
func (c *Coordinator) AnalyzeTask(ctx context.Context, task string) (*models.TaskAnalysis, error) {
	extra := map[string]any{"task": task}

	log.Printf("[coordinator] analyzing task: %.50s...", task)
	analysis, err := c.Process(ctx, fmt.Sprintf(taskAnalysisPrompt, task), extra)
	if err != nil {
		return nil, fmt.Errorf("analyze task: %w", err)
	}

	extraction, err := c.Process(ctx, fmt.Sprintf(taskExtractionPrompt, task), extra)
	if err != nil {
		return nil, fmt.Errorf("extract sub-tasks: %w", err)
	}

	frontend, backend, integration := parseTaskLists(extraction)
	log.Printf("[coordinator] task decomposed into %d frontend and %d backend sub-tasks", len(frontend), len(backend))

	return &models.TaskAnalysis{
		OriginalTask: task,
		Analysis:     analysis,
		Subtasks: map[models.Specialization][]string{
			models.SpecFrontend: frontend,
			models.SpecBackend:  backend,
		},
		IntegrationPoints: integration,
	}, nil
}

// CreateAssignment renders the assignment for one sub-task. The index is
// validated against the analysis list; a violation returns
// ErrInvalidTaskIndex without any completion call.
func (c *Coordinator) CreateAssignment(analysis *models.TaskAnalysis, spec models.Specialization, index int) (*models.Assignment, error) {
	list := analysis.SubtaskList(spec)
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("%w: %d for %s (list length %d)", ErrInvalidTaskIndex, index, spec, len(list))
	}

	subtask := list[index]
	interfaces := bulletJoin(analysis.IntegrationPoints)

	assignmentCtx := map[string]any{
		"project_context":  analysis.OriginalTask,
		"specific_task":    subtask,
		"constraints":      assignmentConstraints,
		"interfaces":       interfaces,
		"success_criteria": assignmentSuccessCriteria,
	}

	prompt := fmt.Sprintf(assignmentPrompt,
		c.workerName(spec),
		analysis.OriginalTask,
		subtask,
		assignmentConstraints,
		interfaces,
		assignmentSuccessCriteria,
	)

	return &models.Assignment{
		Prompt:         prompt,
		Context:        assignmentCtx,
		Specialization: spec,
		SubtaskIndex:   index,
	}, nil
}

// ReviewWork evaluates a submitted solution. The approval verdict comes
// from the configured policy and is always explicit.
func (c *Coordinator) ReviewWork(ctx context.Context, analysis *models.TaskAnalysis, spec models.Specialization, solution string) (*models.Review, error) {
	prompt := fmt.Sprintf(reviewPrompt, c.workerName(spec), analysis.OriginalTask, solution)

	evaluation, err := c.Process(ctx, prompt, map[string]any{"specialization": string(spec)})
	if err != nil {
		return nil, fmt.Errorf("review %s work: %w", spec, err)
	}

	return &models.Review{
		Specialization: spec,
		OriginalTask:   analysis.OriginalTask,
		Evaluation:     evaluation,
		Approved:       c.policy.Approve(evaluation),
	}, nil
}

// IntegrateSolutions merges the frontend and backend solutions into one
// final answer. Both empty: the coordinator is asked for a complete
// solution directly. One empty: a placeholder stands in for the missing
// side.
func (c *Coordinator) IntegrateSolutions(ctx context.Context, analysis *models.TaskAnalysis, frontendSolution, backendSolution string) (string, error) {
	extra := map[string]any{"task": analysis.OriginalTask}

	if frontendSolution == "" && backendSolution == "" {
		return c.Process(ctx, fmt.Sprintf(directSolutionPrompt, analysis.OriginalTask), extra)
	}
	if frontendSolution == "" {
		frontendSolution = noFrontendSolution
	}
	if backendSolution == "" {
		backendSolution = noBackendSolution
	}

	prompt := fmt.Sprintf(integrationPrompt, analysis.OriginalTask, frontendSolution, backendSolution)
	return c.Process(ctx, prompt, extra)
}

// SolveDirect asks the coordinator for a complete solution from the raw
// task description. Used when decomposition yields no sub-tasks at all.
func (c *Coordinator) SolveDirect(ctx context.Context, task string) (string, error) {
	return c.Process(ctx, fmt.Sprintf(directSolutionPrompt, task), map[string]any{"task": task})
}

func bulletJoin(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}
