package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"devcrew/internal/ollama"
	"devcrew/pkg/models"
)

// fakeCompleter returns canned responses in order and records every
// prompt it was asked to complete.
type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	prompts   []string
	err       error
}

func (f *fakeCompleter) next(prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeCompleter) Generate(_ context.Context, _, prompt, _ string, _ ollama.Params) (string, error) {
	return f.next(prompt)
}

func (f *fakeCompleter) Chat(_ context.Context, _ string, messages []ollama.Message, _ string, _ ollama.Params) (string, error) {
	var last string
	for _, m := range messages {
		if m.Role == "user" {
			last = m.Content
		}
	}
	return f.next(last)
}

func (f *fakeCompleter) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeCompleter) prompt(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[i]
}

type captureSink struct {
	entries chan models.ConversationEntry
}

func (s *captureSink) AppendConversation(_ context.Context, _, _ string, entry models.ConversationEntry) error {
	s.entries <- entry
	return nil
}

func TestAgentProcessWrapsMessageWithContext(t *testing.T) {
	client := &fakeCompleter{responses: []string{"answer"}}
	a := New(Config{Name: "tester", Role: "coordinator", Model: "m", Client: client})

	got, err := a.Process(context.Background(), "hello", map[string]any{"task": "demo"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got != "answer" {
		t.Errorf("response = %q, want %q", got, "answer")
	}

	sent := client.prompt(0)
	if !strings.HasPrefix(sent, "hello") {
		t.Errorf("prompt should start with the message, got %q", sent)
	}
	if !strings.Contains(sent, "CONTEXT:") {
		t.Error("prompt is missing the context envelope")
	}
	if !strings.Contains(sent, `"task": "demo"`) {
		t.Error("prompt is missing the caller-supplied context")
	}
	if !strings.Contains(sent, `"role": "coordinator"`) {
		t.Error("prompt is missing the agent identity")
	}
}

func TestAgentProcessPropagatesClientError(t *testing.T) {
	client := &fakeCompleter{err: errors.New("boom")}
	a := New(Config{Name: "tester", Role: "backend", Model: "m", Client: client})

	if _, err := a.Process(context.Background(), "hello", nil); err == nil {
		t.Fatal("expected an error from the client")
	}
	if len(a.History()) != 0 {
		t.Error("failed interactions must not be recorded")
	}
}

func TestAgentHistoryIsBounded(t *testing.T) {
	client := &fakeCompleter{responses: []string{"a", "b", "c", "d"}}
	a := New(Config{Name: "tester", Role: "frontend", Model: "m", Client: client, MaxHistory: 2})

	for _, msg := range []string{"one", "two", "three", "four"} {
		if _, err := a.Process(context.Background(), msg, nil); err != nil {
			t.Fatalf("Process(%q): %v", msg, err)
		}
	}

	history := a.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Message != "three" || history[1].Message != "four" {
		t.Errorf("history kept %q and %q, want the two newest entries", history[0].Message, history[1].Message)
	}
}

func TestAgentChatAttachesContextToFirstUserMessage(t *testing.T) {
	var captured []ollama.Message
	client := &chatCapture{response: "ok", capture: &captured}
	a := New(Config{Name: "tester", Role: "backend", Model: "m", Client: client})

	messages := []ollama.Message{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "reply"},
		{Role: "user", Content: "second"},
	}
	if _, err := a.Chat(context.Background(), messages, map[string]any{"k": "v"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if !strings.Contains(captured[0].Content, "CONTEXT:") {
		t.Error("first user message is missing the context envelope")
	}
	if strings.Contains(captured[2].Content, "CONTEXT:") {
		t.Error("envelope must only be attached once")
	}
	if messages[0].Content != "first" {
		t.Error("caller's message slice must not be mutated")
	}
}

type chatCapture struct {
	response string
	capture  *[]ollama.Message
}

func (c *chatCapture) Generate(context.Context, string, string, string, ollama.Params) (string, error) {
	return c.response, nil
}

func (c *chatCapture) Chat(_ context.Context, _ string, messages []ollama.Message, _ string, _ ollama.Params) (string, error) {
	*c.capture = append((*c.capture)[:0], messages...)
	return c.response, nil
}

func TestAgentPersistsThroughSink(t *testing.T) {
	sink := &captureSink{entries: make(chan models.ConversationEntry, 1)}
	client := &fakeCompleter{responses: []string{"answer"}}
	a := New(Config{Name: "tester", Role: "frontend", Model: "m", Client: client, Sink: sink})

	if _, err := a.Process(context.Background(), "persist me", nil); err != nil {
		t.Fatalf("Process: %v", err)
	}

	select {
	case entry := <-sink.entries:
		if entry.Message != "persist me" || entry.Response != "answer" {
			t.Errorf("persisted entry = %+v", entry)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the entry")
	}
}
