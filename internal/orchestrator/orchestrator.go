// Package orchestrator drives the multi-agent pipeline: analyze the
// task, execute sub-tasks through the workers, review, and integrate a
// final solution.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"devcrew/internal/bus"
	"devcrew/pkg/models"
)

// Coordinator is the team-lead surface the pipeline needs.
// *agent.Coordinator satisfies it.
type Coordinator interface {
	AnalyzeTask(ctx context.Context, task string) (*models.TaskAnalysis, error)
	CreateAssignment(analysis *models.TaskAnalysis, spec models.Specialization, index int) (*models.Assignment, error)
	ReviewWork(ctx context.Context, analysis *models.TaskAnalysis, spec models.Specialization, solution string) (*models.Review, error)
	IntegrateSolutions(ctx context.Context, analysis *models.TaskAnalysis, frontendSolution, backendSolution string) (string, error)
	SolveDirect(ctx context.Context, task string) (string, error)
}

// Worker executes assignments for one specialization.
// *agent.Worker satisfies it.
type Worker interface {
	ExecuteTask(ctx context.Context, asn *models.Assignment) (string, error)
	Specialization() models.Specialization
}

// RunArchiver persists finished pipeline runs. *history.Store satisfies
// it; archiving is best-effort and never fails a run.
type RunArchiver interface {
	SaveRun(ctx context.Context, state *models.PipelineState) error
}

// Config holds the orchestrator's construction parameters.
type Config struct {
	// Coordinator is the team-lead agent. Required.
	Coordinator Coordinator
	// Workers maps each specialization to its worker agent.
	Workers map[models.Specialization]Worker
	// Bus, when set, receives pipeline milestones.
	Bus *bus.Bus
	// Archive, when set, receives the final run record.
	Archive RunArchiver
	// TaskTimeout is the wall-clock budget for one run. The budget gates
	// the start of new sub-tasks and cancels in-flight completion calls;
	// solutions collected before the deadline are kept.
	TaskTimeout time.Duration
	// Concurrency caps in-flight sub-tasks per specialization.
	Concurrency int
}

// Result is the tagged outcome of one pipeline run.
type Result struct {
	// TaskID is the run's short token.
	TaskID string
	// Status is the terminal pipeline status.
	Status models.PipelineStatus
	// Solution is the final answer, or the failure report.
	Solution string
	// Duration is the run's wall-clock time.
	Duration time.Duration
	// Err is the fatal error for failed runs, nil otherwise.
	Err error
}

// Orchestrator runs the analyze/execute/review/integrate pipeline.
type Orchestrator struct {
	coordinator Coordinator
	workers     map[models.Specialization]Worker
	bus         *bus.Bus
	archive     RunArchiver
	taskTimeout time.Duration
	concurrency int
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return &Orchestrator{
		coordinator: cfg.Coordinator,
		workers:     cfg.Workers,
		bus:         cfg.Bus,
		archive:     cfg.Archive,
		taskTimeout: timeout,
		concurrency: concurrency,
	}
}

// SolveTask runs the full pipeline for one task and always returns a
// tagged result with a terminal status. Failures never surface as bare
// errors: the result carries both the error and a readable report.
func (o *Orchestrator) SolveTask(ctx context.Context, task string) (result Result) {
	state := &models.PipelineState{
		TaskID:      uuid.New().String()[:8],
		Description: task,
		Results:     map[models.Specialization][]models.SubtaskResult{},
		Status:      models.StatusAnalyzing,
		StartedAt:   time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			result = o.fail(state, fmt.Errorf("pipeline panic: %v", r))
		}
		o.archiveRun(state)
	}()

	log.Printf("[orchestrator] run %s started: %.50s...", state.TaskID, task)
	o.publish("task_received", state, nil)

	// The budget is both a dispatch gate and a cancellation signal for
	// sub-task execution. Analysis and integration run on the caller's
	// context: partial work still deserves a final answer.
	budgetCtx, cancel := context.WithTimeout(ctx, o.taskTimeout)
	defer cancel()

	analysis, err := o.coordinator.AnalyzeTask(ctx, task)
	if err != nil {
		return o.fail(state, err)
	}
	state.Analysis = analysis
	o.publish("task_analyzed", state, map[string]string{
		"frontend_subtasks": fmt.Sprint(len(analysis.SubtaskList(models.SpecFrontend))),
		"backend_subtasks":  fmt.Sprint(len(analysis.SubtaskList(models.SpecBackend))),
	})

	if analysis.Empty() {
		log.Printf("[orchestrator] run %s: no sub-tasks, solving directly", state.TaskID)
		solution, err := o.coordinator.SolveDirect(ctx, task)
		if err != nil {
			return o.fail(state, err)
		}
		return o.complete(state, solution)
	}

	state.Status = models.StatusExecuting
	for _, spec := range models.Specializations {
		state.Results[spec] = make([]models.SubtaskResult, len(analysis.SubtaskList(spec)))
	}

	if err := o.executeAll(budgetCtx, state, analysis); err != nil {
		return o.fail(state, err)
	}

	state.Status = models.StatusIntegrating
	frontendSolution := joinSolutions(state.Results[models.SpecFrontend])
	backendSolution := joinSolutions(state.Results[models.SpecBackend])

	// Integration always runs, even after the budget expired: partial
	// work still deserves a final answer.
	solution, err := o.coordinator.IntegrateSolutions(ctx, analysis, frontendSolution, backendSolution)
	if err != nil {
		return o.fail(state, err)
	}
	return o.complete(state, solution)
}

// executeAll dispatches every sub-task through a bounded pool per
// specialization, both specializations in parallel, and waits for all
// in-flight work before returning.
func (o *Orchestrator) executeAll(budgetCtx context.Context, state *models.PipelineState, analysis *models.TaskAnalysis) error {
	g := new(errgroup.Group)

	for _, spec := range models.Specializations {
		list := analysis.SubtaskList(spec)
		if len(list) == 0 {
			continue
		}
		worker := o.workers[spec]
		if worker == nil {
			log.Printf("[orchestrator] run %s: no %s worker configured, skipping %d sub-tasks", state.TaskID, spec, len(list))
			continue
		}

		spec := spec
		g.Go(func() error {
			pool := new(errgroup.Group)
			pool.SetLimit(o.concurrency)

			for index := range list {
				if budgetCtx.Err() != nil {
					log.Printf("[orchestrator] run %s: budget exhausted, skipping remaining %s sub-tasks", state.TaskID, spec)
					break
				}
				index := index
				pool.Go(func() (err error) {
					defer func() {
						if r := recover(); r != nil {
							err = fmt.Errorf("%s sub-task %d panic: %v", spec, index, r)
						}
					}()
					return o.runSubtask(budgetCtx, state, analysis, worker, spec, index)
				})
			}
			return pool.Wait()
		})
	}

	return g.Wait()
}

// runSubtask executes one sub-task and writes its result at the
// sub-task's index. Each index is owned by exactly one goroutine.
// A budget-cancelled sub-task is excluded as a partial result; any other
// failure is a genuine fault and aborts the run.
func (o *Orchestrator) runSubtask(budgetCtx context.Context, state *models.PipelineState, analysis *models.TaskAnalysis, worker Worker, spec models.Specialization, index int) error {
	result := models.SubtaskResult{Subtask: analysis.SubtaskList(spec)[index]}
	defer func() { state.Results[spec][index] = result }()

	// The pool may have held this sub-task past the budget.
	if budgetCtx.Err() != nil {
		log.Printf("[orchestrator] run %s: budget exhausted, %s sub-task %d not started", state.TaskID, spec, index)
		return nil
	}

	asn, err := o.coordinator.CreateAssignment(analysis, spec, index)
	if err != nil {
		log.Printf("[orchestrator] run %s: assignment for %s sub-task %d: %v", state.TaskID, spec, index, err)
		return nil
	}

	solution, err := worker.ExecuteTask(budgetCtx, asn)
	if err != nil {
		if cancelled(budgetCtx, err) {
			log.Printf("[orchestrator] run %s: %s sub-task %d cancelled by budget", state.TaskID, spec, index)
			return nil
		}
		o.publish("subtask_failed", state, map[string]string{
			"specialization": string(spec),
			"index":          fmt.Sprint(index),
			"error":          err.Error(),
		})
		return fmt.Errorf("execute %s sub-task %d: %w", spec, index, err)
	}
	result.Solution = solution

	if budgetCtx.Err() != nil {
		log.Printf("[orchestrator] run %s: budget exhausted, %s sub-task %d kept without review", state.TaskID, spec, index)
	} else if review, err := o.coordinator.ReviewWork(budgetCtx, analysis, spec, solution); err != nil {
		if !cancelled(budgetCtx, err) {
			return fmt.Errorf("review %s sub-task %d: %w", spec, index, err)
		}
		log.Printf("[orchestrator] run %s: review of %s sub-task %d cancelled by budget", state.TaskID, spec, index)
	} else {
		result.Review = review
		result.Approved = review.Approved
	}

	o.publish("subtask_completed", state, map[string]string{
		"specialization": string(spec),
		"index":          fmt.Sprint(index),
		"approved":       fmt.Sprint(result.Approved),
	})
	return nil
}

// cancelled reports whether an execution or review error was caused by
// the budget deadline rather than a genuine fault. Transport faults,
// retry exhaustion included, are never treated as cancellation.
func cancelled(budgetCtx context.Context, err error) bool {
	if budgetCtx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// joinSolutions merges a specialization's solutions for integration.
// Approved solutions win; when none were approved, every non-empty
// solution is used rather than discarding the work outright.
func joinSolutions(results []models.SubtaskResult) string {
	var approved, all []string
	for _, r := range results {
		if r.Solution == "" {
			continue
		}
		all = append(all, r.Solution)
		if r.Approved {
			approved = append(approved, r.Solution)
		}
	}
	if len(approved) > 0 {
		return strings.Join(approved, "\n\n")
	}
	return strings.Join(all, "\n\n")
}

func (o *Orchestrator) complete(state *models.PipelineState, solution string) Result {
	state.Status = models.StatusCompleted
	state.EndedAt = time.Now()
	state.FinalSolution = solution

	log.Printf("[orchestrator] run %s completed in %.1fs", state.TaskID, state.Duration().Seconds())
	o.publish("task_completed", state, nil)

	return Result{
		TaskID:   state.TaskID,
		Status:   state.Status,
		Solution: solution,
		Duration: state.Duration(),
	}
}

func (o *Orchestrator) fail(state *models.PipelineState, err error) Result {
	state.Status = models.StatusFailed
	state.EndedAt = time.Now()
	state.FinalSolution = failureReport(state, err)

	log.Printf("[orchestrator] run %s failed: %v", state.TaskID, err)
	o.publish("task_failed", state, map[string]string{"error": err.Error()})

	return Result{
		TaskID:   state.TaskID,
		Status:   state.Status,
		Solution: state.FinalSolution,
		Duration: state.Duration(),
		Err:      err,
	}
}

// failureReport renders a readable account of a failed run so the caller
// always gets a non-empty solution string.
func failureReport(state *models.PipelineState, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TASK FAILED: %s\n\n", state.Description)
	fmt.Fprintf(&b, "Run: %s\n", state.TaskID)
	fmt.Fprintf(&b, "Error: %v\n", err)

	for _, spec := range models.Specializations {
		results := state.Results[spec]
		if len(results) == 0 {
			continue
		}
		done := 0
		for _, r := range results {
			if r.Solution != "" {
				done++
			}
		}
		fmt.Fprintf(&b, "Completed %s sub-tasks: %d/%d\n", spec, done, len(results))
	}
	return b.String()
}

// archiveRun persists the final run record. Failures are logged, never
// propagated.
func (o *Orchestrator) archiveRun(state *models.PipelineState) {
	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.SaveRun(ctx, state); err != nil {
		log.Printf("[orchestrator] archive run %s: %v", state.TaskID, err)
	}
}

func (o *Orchestrator) publish(eventType string, state *models.PipelineState, meta map[string]string) {
	if o.bus == nil {
		return
	}
	m := map[string]string{
		"task_id": state.TaskID,
		"status":  string(state.Status),
	}
	for k, v := range meta {
		m[k] = v
	}
	o.bus.Publish(bus.Message{
		SenderRole: "orchestrator",
		Type:       eventType,
		Body:       state.Description,
		Meta:       m,
	})
}
