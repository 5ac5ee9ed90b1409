package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"devcrew/pkg/models"
)

// taskKind is a worker's classification of an assignment.
type taskKind int

const (
	kindDesign taskKind = iota
	kindImplement
	kindMixed
)

// Default values substituted when extraction finds nothing. The
// completion service's output format is not contractually guaranteed, so
// every extraction miss lands on one of these.
const (
	defaultFunctionalReqs    = "Requirements derived from the task"
	defaultNonFunctionalReqs = "Performance, security and maintainability"
	defaultTargetUsers       = "General users of the application"
	defaultRequiredFeatures  = "Core features required by the task"
	defaultDataModel         = "Data model derived from the task requirements."
	defaultBackendConstr     = "Follow REST standards, ensure security and optimize performance."
	defaultFrontendIntegr    = "Use standard REST APIs for integration."
	defaultTechnologies      = "HTML, CSS, JavaScript and a modern framework such as React or Vue."
	defaultComponentName     = "Component"
	defaultAPIName           = "API"
)

// defaultEndpoints is the CRUD fallback when no endpoint bullets are
// found in the extraction output.
var defaultEndpoints = []string{
	"GET /api/{resource}",
	"POST /api/{resource}",
	"PUT /api/{resource}/{id}",
	"DELETE /api/{resource}/{id}",
}

// Worker is a specialized agent that executes assignments for one
// problem domain.
type Worker struct {
	*Agent
	spec models.Specialization
}

// NewWorker creates a worker for the given specialization.
func NewWorker(cfg Config, spec models.Specialization) *Worker {
	return &Worker{Agent: New(cfg), spec: spec}
}

// Specialization returns the worker's problem domain.
func (w *Worker) Specialization() models.Specialization { return w.spec }

// ExecuteTask classifies an assignment and runs the matching fulfillment
// strategy. Extraction over model output is best-effort throughout:
// missing or malformed sections degrade to defaults, never to an error.
// Only transport failures are returned.
func (w *Worker) ExecuteTask(ctx context.Context, asn *models.Assignment) (string, error) {
	kind, err := w.classify(ctx, asn)
	if err != nil {
		return "", err
	}

	var solution string
	switch kind {
	case kindDesign:
		solution, err = w.executeDesign(ctx, asn)
	case kindImplement:
		solution, err = w.executeImplementation(ctx, asn)
	default:
		solution, err = w.executeMixed(ctx, asn)
	}
	if err != nil {
		return "", err
	}

	log.Printf("[worker] %s executed sub-task: %.50s...", w.spec, ctxString(asn.Context, "specific_task"))
	return solution, nil
}

// classify asks the model for a single digit and maps the answer to a
// strategy. The digit check takes precedence over keyword matching;
// anything unrecognized is treated as mixed, the safe default.
func (w *Worker) classify(ctx context.Context, asn *models.Assignment) (taskKind, error) {
	template := classifyBackendPrompt
	if w.spec == models.SpecFrontend {
		template = classifyFrontendPrompt
	}

	answer, err := w.Process(ctx, fmt.Sprintf(template, asn.Prompt), map[string]any{"assignment": asn.Prompt})
	if err != nil {
		return kindMixed, fmt.Errorf("classify %s assignment: %w", w.spec, err)
	}
	return classifyAnswer(answer, w.spec), nil
}

func classifyAnswer(answer string, spec models.Specialization) taskKind {
	text := strings.ToLower(strings.TrimSpace(answer))

	switch {
	case strings.Contains(text, "1"):
		return kindDesign
	case strings.Contains(text, "2"):
		return kindImplement
	case strings.Contains(text, "3"):
		return kindMixed
	}

	if spec == models.SpecFrontend {
		switch {
		case strings.Contains(text, "design"), strings.Contains(text, "ui"):
			return kindDesign
		case strings.Contains(text, "implementation"), strings.Contains(text, "component"):
			return kindImplement
		}
	} else {
		switch {
		case strings.Contains(text, "architecture"), strings.Contains(text, "design"):
			return kindDesign
		case strings.Contains(text, "implementation"), strings.Contains(text, "api"):
			return kindImplement
		}
	}
	return kindMixed
}

// executeDesign runs the design strategy: a secondary extraction prompt
// supplies the structured fields, then the design prompt produces the
// solution.
func (w *Worker) executeDesign(ctx context.Context, asn *models.Assignment) (string, error) {
	feature := ctxString(asn.Context, "specific_task")
	project := ctxString(asn.Context, "project_context")
	extra := map[string]any{"assignment": asn.Prompt}

	if w.spec == models.SpecFrontend {
		extracted, err := w.Process(ctx, fmt.Sprintf(extractUIContextPrompt, asn.Prompt), extra)
		if err != nil {
			return "", err
		}
		users, features := splitSections(extracted, markerTargetUsers, markerFeatures)
		if users == "" {
			users = defaultTargetUsers
		}
		if features == "" {
			features = defaultRequiredFeatures
		}
		return w.Process(ctx, fmt.Sprintf(uiDesignPrompt, feature, project, users, features), asn.Context)
	}

	extracted, err := w.Process(ctx, fmt.Sprintf(extractRequirementsPrompt, asn.Prompt), extra)
	if err != nil {
		return "", err
	}
	functional, nonFunctional := splitSections(extracted, markerFunctional, markerNonFunctional)
	if functional == "" {
		functional = defaultFunctionalReqs
	}
	if nonFunctional == "" {
		nonFunctional = defaultNonFunctionalReqs
	}
	return w.Process(ctx, fmt.Sprintf(architectureDesignPrompt, feature, project, functional, nonFunctional), asn.Context)
}

// executeImplementation runs the implementation strategy. The backend
// worker extracts endpoint bullets and a data-model description first;
// the frontend worker implements straight from the sub-task text.
func (w *Worker) executeImplementation(ctx context.Context, asn *models.Assignment) (string, error) {
	subtask := ctxString(asn.Context, "specific_task")

	if w.spec == models.SpecFrontend {
		name := nameBeforeColon(subtask, defaultComponentName)
		integration := ctxString(asn.Context, "interfaces")
		if integration == "" {
			integration = defaultFrontendIntegr
		}
		prompt := fmt.Sprintf(componentImplementationPrompt, name, subtask, integration, defaultTechnologies)
		return w.Process(ctx, prompt, asn.Context)
	}

	name := nameBeforeColon(subtask, defaultAPIName)

	details, err := w.Process(ctx, fmt.Sprintf(extractAPIDetailsPrompt, asn.Prompt), map[string]any{"assignment": asn.Prompt})
	if err != nil {
		return "", err
	}
	endpointText, dataModel := splitSections(details, markerEndpoints, markerDataModel)
	endpoints := bulletLines(endpointText)
	if len(endpoints) == 0 {
		endpoints = defaultEndpoints
	}
	if dataModel == "" {
		dataModel = defaultDataModel
	}

	constraints := ctxString(asn.Context, "constraints")
	if constraints == "" {
		constraints = defaultBackendConstr
	}

	prompt := fmt.Sprintf(apiImplementationPrompt, name, bulletJoin(endpoints), dataModel, constraints)
	return w.Process(ctx, prompt, asn.Context)
}

// executeMixed handles both/unrecognized classifications with a single
// direct prompt covering design, implementation, rationale and
// integration notes.
func (w *Worker) executeMixed(ctx context.Context, asn *models.Assignment) (string, error) {
	template := mixedBackendPrompt
	if w.spec == models.SpecFrontend {
		template = mixedFrontendPrompt
	}
	return w.Process(ctx, fmt.Sprintf(template, asn.Prompt), asn.Context)
}

// ctxString reads a string value from an assignment context.
func ctxString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
