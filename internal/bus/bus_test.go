package bus

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestFilterMatches(t *testing.T) {
	msg := Message{
		SenderRole:    "coordinator",
		RecipientRole: "frontend",
		Type:          "subtask_completed",
		Meta:          map[string]string{"task_id": "abc"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"zero filter matches all", Filter{}, true},
		{"sender match", Filter{SenderRole: "coordinator"}, true},
		{"sender mismatch", Filter{SenderRole: "backend"}, false},
		{"recipient match", Filter{RecipientRole: "frontend"}, true},
		{"type mismatch", Filter{Type: "task_analyzed"}, false},
		{"meta match", Filter{Meta: map[string]string{"task_id": "abc"}}, true},
		{"meta mismatch", Filter{Meta: map[string]string{"task_id": "xyz"}}, false},
		{"meta key absent", Filter{Meta: map[string]string{"missing": "v"}}, false},
		{"combined", Filter{SenderRole: "coordinator", Type: "subtask_completed"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(msg); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	b := New()
	frontend := b.Subscribe(Filter{RecipientRole: "frontend"}, 4)
	all := b.Subscribe(Filter{}, 4)
	backend := b.Subscribe(Filter{RecipientRole: "backend"}, 4)
	defer b.Unsubscribe(frontend)
	defer b.Unsubscribe(all)
	defer b.Unsubscribe(backend)

	sent := b.Publish(Message{SenderRole: "coordinator", RecipientRole: "frontend", Type: "assignment", Body: "go"})
	if sent.ID == "" || sent.SentAt.IsZero() {
		t.Error("Publish must assign an id and timestamp")
	}

	select {
	case got := <-frontend.C:
		if got.Body != "go" {
			t.Errorf("delivered body = %q", got.Body)
		}
	case <-time.After(time.Second):
		t.Fatal("matching subscriber never received the message")
	}

	select {
	case <-all.C:
	case <-time.After(time.Second):
		t.Fatal("broadcast subscriber never received the message")
	}

	select {
	case got := <-backend.C:
		t.Fatalf("non-matching subscriber received %+v", got)
	default:
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := New()
	slow := b.Subscribe(Filter{}, 1)
	defer b.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Message{Type: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}

	if got := len(b.Messages(Filter{Type: "tick"})); got != 10 {
		t.Errorf("recorded messages = %d, want 10", got)
	}
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
	b := New()
	sub := b.Subscribe(Filter{}, 1)

	b.Unsubscribe(sub)
	b.Unsubscribe(sub) // second call is a no-op

	if _, open := <-sub.C; open {
		t.Error("channel should be closed after Unsubscribe")
	}
}

func TestMessagesFiltersLog(t *testing.T) {
	b := New()
	b.Publish(Message{Type: "task_analyzed"})
	b.Publish(Message{Type: "subtask_completed"})
	b.Publish(Message{Type: "subtask_completed"})

	if got := len(b.Messages(Filter{Type: "subtask_completed"})); got != 2 {
		t.Errorf("filtered log length = %d, want 2", got)
	}
	if got := len(b.Messages(Filter{})); got != 3 {
		t.Errorf("full log length = %d, want 3", got)
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := b.Subscribe(Filter{}, 4)
			b.Publish(Message{Type: fmt.Sprintf("t%d", n)})
			b.Unsubscribe(sub)
		}(i)
	}
	wg.Wait()

	if got := len(b.Messages(Filter{})); got != 8 {
		t.Errorf("recorded messages = %d, want 8", got)
	}
}
