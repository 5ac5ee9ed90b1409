package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devcrew/pkg/models"
)

func newTestCoordinator(client Completer) *Coordinator {
	return NewCoordinator(CoordinatorConfig{
		Agent: Config{Name: "coordinator", Role: "coordinator", Model: "m", Client: client},
		WorkerNames: map[models.Specialization]string{
			models.SpecFrontend: "frontend developer",
			models.SpecBackend:  "backend developer",
		},
	})
}

func TestAnalyzeTaskDecomposes(t *testing.T) {
	client := &fakeCompleter{responses: []string{
		"The task needs a form and an API.",
		`{"frontend_tasks":["Login form: build it"],"backend_tasks":["Auth API: implement it"],"integration_points":["POST /api/login"]}`,
	}}
	c := newTestCoordinator(client)

	analysis, err := c.AnalyzeTask(context.Background(), "build a login page")
	if err != nil {
		t.Fatalf("AnalyzeTask: %v", err)
	}
	if client.promptCount() != 2 {
		t.Fatalf("completion calls = %d, want 2", client.promptCount())
	}
	if analysis.Analysis != "The task needs a form and an API." {
		t.Errorf("analysis text = %q", analysis.Analysis)
	}
	if got := analysis.SubtaskList(models.SpecFrontend); len(got) != 1 || got[0] != "Login form: build it" {
		t.Errorf("frontend sub-tasks = %v", got)
	}
	if got := analysis.SubtaskList(models.SpecBackend); len(got) != 1 {
		t.Errorf("backend sub-tasks = %v", got)
	}
	if len(analysis.IntegrationPoints) != 1 {
		t.Errorf("integration points = %v", analysis.IntegrationPoints)
	}
}

func TestAnalyzeTaskToleratesMalformedExtraction(t *testing.T) {
	client := &fakeCompleter{responses: []string{
		"some analysis",
		"I refuse to emit JSON.",
	}}
	c := newTestCoordinator(client)

	analysis, err := c.AnalyzeTask(context.Background(), "tiny task")
	if err != nil {
		t.Fatalf("AnalyzeTask: %v", err)
	}
	if !analysis.Empty() {
		t.Errorf("expected empty decomposition, got %+v", analysis.Subtasks)
	}
}

func TestAnalyzeTaskSurfacesTransportErrors(t *testing.T) {
	client := &fakeCompleter{err: errors.New("connection refused")}
	c := newTestCoordinator(client)

	if _, err := c.AnalyzeTask(context.Background(), "task"); err == nil {
		t.Fatal("expected a transport error")
	}
}

func TestCreateAssignment(t *testing.T) {
	c := newTestCoordinator(&fakeCompleter{})
	analysis := &models.TaskAnalysis{
		OriginalTask: "build a shop",
		Subtasks: map[models.Specialization][]string{
			models.SpecFrontend: {"Product grid: render items"},
			models.SpecBackend:  {},
		},
		IntegrationPoints: []string{"GET /api/products"},
	}

	asn, err := c.CreateAssignment(analysis, models.SpecFrontend, 0)
	if err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}
	if asn.Specialization != models.SpecFrontend || asn.SubtaskIndex != 0 {
		t.Errorf("assignment tagged %s/%d", asn.Specialization, asn.SubtaskIndex)
	}
	if !strings.Contains(asn.Prompt, "Product grid: render items") {
		t.Error("prompt is missing the sub-task")
	}
	if !strings.Contains(asn.Prompt, "- GET /api/products") {
		t.Error("prompt is missing the integration points")
	}
	if got := asn.Context["specific_task"]; got != "Product grid: render items" {
		t.Errorf("context specific_task = %v", got)
	}
}

func TestCreateAssignmentInvalidIndex(t *testing.T) {
	client := &fakeCompleter{}
	c := newTestCoordinator(client)
	analysis := &models.TaskAnalysis{
		OriginalTask: "build a shop",
		Subtasks: map[models.Specialization][]string{
			models.SpecFrontend: {"only one"},
		},
	}

	for _, index := range []int{-1, 1, 5} {
		if _, err := c.CreateAssignment(analysis, models.SpecFrontend, index); !errors.Is(err, ErrInvalidTaskIndex) {
			t.Errorf("index %d: err = %v, want ErrInvalidTaskIndex", index, err)
		}
	}
	if _, err := c.CreateAssignment(analysis, models.SpecBackend, 0); !errors.Is(err, ErrInvalidTaskIndex) {
		t.Errorf("empty backend list: err = %v, want ErrInvalidTaskIndex", err)
	}
	if client.promptCount() != 0 {
		t.Error("invalid indexes must not reach the completion service")
	}
}

func TestReviewWorkVerdicts(t *testing.T) {
	tests := []struct {
		name       string
		evaluation string
		approved   bool
	}{
		{"approved", "Solid work, meets all criteria.", true},
		{"rejected", "This does not meet the requirements.", false},
	}

	analysis := &models.TaskAnalysis{OriginalTask: "build a shop"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeCompleter{responses: []string{tt.evaluation}}
			c := newTestCoordinator(client)

			review, err := c.ReviewWork(context.Background(), analysis, models.SpecBackend, "a solution")
			if err != nil {
				t.Fatalf("ReviewWork: %v", err)
			}
			if review.Approved != tt.approved {
				t.Errorf("Approved = %v, want %v", review.Approved, tt.approved)
			}
			if review.Evaluation != tt.evaluation {
				t.Errorf("Evaluation = %q", review.Evaluation)
			}
		})
	}
}

func TestIntegrateSolutions(t *testing.T) {
	analysis := &models.TaskAnalysis{OriginalTask: "build a shop"}

	t.Run("both sides present", func(t *testing.T) {
		client := &fakeCompleter{responses: []string{"integrated"}}
		c := newTestCoordinator(client)

		got, err := c.IntegrateSolutions(context.Background(), analysis, "frontend code", "backend code")
		if err != nil {
			t.Fatalf("IntegrateSolutions: %v", err)
		}
		if got != "integrated" {
			t.Errorf("solution = %q", got)
		}
		sent := client.prompt(0)
		if !strings.Contains(sent, "frontend code") || !strings.Contains(sent, "backend code") {
			t.Error("integration prompt is missing a component")
		}
	})

	t.Run("one side missing", func(t *testing.T) {
		client := &fakeCompleter{responses: []string{"integrated"}}
		c := newTestCoordinator(client)

		if _, err := c.IntegrateSolutions(context.Background(), analysis, "", "backend code"); err != nil {
			t.Fatalf("IntegrateSolutions: %v", err)
		}
		if !strings.Contains(client.prompt(0), noFrontendSolution) {
			t.Error("missing side should be replaced with its placeholder")
		}
	})

	t.Run("both sides missing", func(t *testing.T) {
		client := &fakeCompleter{responses: []string{"direct"}}
		c := newTestCoordinator(client)

		got, err := c.IntegrateSolutions(context.Background(), analysis, "", "")
		if err != nil {
			t.Fatalf("IntegrateSolutions: %v", err)
		}
		if got != "direct" {
			t.Errorf("solution = %q", got)
		}
		if !strings.Contains(client.prompt(0), "complete solution") {
			t.Error("expected the direct-solution prompt")
		}
	})
}
