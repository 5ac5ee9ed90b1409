// Package agent provides the coordinator and worker agents and the shared
// agent base they are built on.
package agent

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"devcrew/internal/ollama"
	"devcrew/pkg/models"
)

// Completer is the completion-service surface an agent needs.
// *ollama.Client satisfies it.
type Completer interface {
	Generate(ctx context.Context, model, prompt, system string, params ollama.Params) (string, error)
	Chat(ctx context.Context, model string, messages []ollama.Message, system string, params ollama.Params) (string, error)
}

// HistorySink receives conversation entries for persistence.
// Writes are best-effort: the agent logs failures and moves on.
type HistorySink interface {
	AppendConversation(ctx context.Context, role, agentID string, entry models.ConversationEntry) error
}

// Config holds everything needed to construct an Agent.
type Config struct {
	// Name is the agent's display name.
	Name string
	// Role identifies the agent's function (coordinator, frontend, backend).
	Role string
	// Model is the completion model this agent uses.
	Model string
	// SystemPrompt is the agent's standing instructions.
	SystemPrompt string
	// Client is the completion client. Required.
	Client Completer
	// Params are the generation parameters for every call.
	Params ollama.Params
	// MaxHistory caps the in-memory conversation history.
	MaxHistory int
	// Sink, when set, receives each interaction for persistence.
	Sink HistorySink
}

// Agent wraps a completion client with an identity and a bounded
// conversation history.
type Agent struct {
	name   string
	role   string
	model  string
	system string
	id     string

	client Completer
	params ollama.Params
	sink   HistorySink

	mu         sync.Mutex
	history    []models.ConversationEntry
	maxHistory int
}

// New creates an agent with a generated short id.
func New(cfg Config) *Agent {
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 50
	}
	a := &Agent{
		name:       cfg.Name,
		role:       cfg.Role,
		model:      cfg.Model,
		system:     cfg.SystemPrompt,
		id:         uuid.New().String()[:8],
		client:     cfg.Client,
		params:     cfg.Params,
		sink:       cfg.Sink,
		maxHistory: maxHistory,
	}
	log.Printf("[agent] %s (%s) initialized with id %s", a.name, a.role, a.id)
	return a
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's role.
func (a *Agent) Role() string { return a.role }

// ID returns the agent's short id.
func (a *Agent) ID() string { return a.id }

// Model returns the model this agent calls.
func (a *Agent) Model() string { return a.model }

// Process sends one message plus a serialized context envelope and
// returns the model's response. The interaction is appended to the
// bounded history and persisted best-effort.
func (a *Agent) Process(ctx context.Context, message string, extra map[string]any) (string, error) {
	prompt := buildPrompt(message, a.envelope(extra))

	start := time.Now()
	response, err := a.client.Generate(ctx, a.model, prompt, a.system, a.params)
	if err != nil {
		return "", err
	}

	a.record(message, response, extra)
	log.Printf("[agent] %s processed a message in %.2fs", a.name, time.Since(start).Seconds())
	return response, nil
}

// Chat sends a multi-turn conversation. The context envelope is attached
// to the first user-role message only; history bookkeeping matches
// Process.
func (a *Agent) Chat(ctx context.Context, messages []ollama.Message, extra map[string]any) (string, error) {
	sent := make([]ollama.Message, len(messages))
	copy(sent, messages)

	env := a.envelope(extra)
	for i := range sent {
		if sent[i].Role == "user" {
			sent[i].Content += "\n\nCONTEXT:\n" + marshalEnvelope(env)
			break
		}
	}

	start := time.Now()
	response, err := a.client.Chat(ctx, a.model, sent, a.system, a.params)
	if err != nil {
		return "", err
	}

	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	a.record(last, response, extra)
	log.Printf("[agent] %s processed a conversation in %.2fs", a.name, time.Since(start).Seconds())
	return response, nil
}

// History returns a copy of the conversation history.
func (a *Agent) History() []models.ConversationEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.ConversationEntry, len(a.history))
	copy(out, a.history)
	return out
}

// envelope merges the agent identity, the caller-supplied context and the
// current timestamp. Caller keys win on collision.
func (a *Agent) envelope(extra map[string]any) map[string]any {
	env := map[string]any{
		"agent": map[string]any{
			"name": a.name,
			"role": a.role,
			"id":   a.id,
		},
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func buildPrompt(message string, env map[string]any) string {
	return message + "\n\nCONTEXT:\n" + marshalEnvelope(env)
}

func marshalEnvelope(env map[string]any) string {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		// Unserializable context values are the caller's bug, but the
		// prompt must still go out.
		return "{}"
	}
	return string(data)
}

// record appends one interaction, trims to the cap, and hands the entry
// to the sink without blocking the caller.
func (a *Agent) record(message, response string, extra map[string]any) {
	entry := models.ConversationEntry{
		Timestamp: time.Now(),
		Message:   message,
		Response:  response,
		Context:   extra,
	}

	a.mu.Lock()
	a.history = append(a.history, entry)
	if len(a.history) > a.maxHistory {
		a.history = a.history[len(a.history)-a.maxHistory:]
	}
	a.mu.Unlock()

	if a.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.sink.AppendConversation(ctx, a.role, a.id, entry); err != nil {
			log.Printf("[agent] persist history for %s: %v", a.name, err)
		}
	}()
}
