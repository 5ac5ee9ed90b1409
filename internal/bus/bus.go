// Package bus provides an in-process message bus the pipeline publishes
// milestones on. Subscribers filter by typed criteria instead of
// callback-per-topic plumbing.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one bus event.
type Message struct {
	// ID uniquely identifies the message.
	ID string
	// SenderRole is the role of the publishing component.
	SenderRole string
	// RecipientRole addresses a role, or "" for a broadcast.
	RecipientRole string
	// Type names the event (task_analyzed, subtask_completed, ...).
	Type string
	// Body is the human-readable payload.
	Body string
	// Meta carries structured key/value detail.
	Meta map[string]string
	// SentAt is the publish time.
	SentAt time.Time
}

// Filter selects messages. Zero-valued fields match everything; a set
// field must match exactly. Meta entries must all be present with equal
// values.
type Filter struct {
	// SenderRole filters on the publisher's role.
	SenderRole string
	// RecipientRole filters on the addressed role.
	RecipientRole string
	// Type filters on the event type.
	Type string
	// Meta filters on metadata entries.
	Meta map[string]string
}

// Matches reports whether the message passes the filter.
func (f Filter) Matches(m Message) bool {
	if f.SenderRole != "" && f.SenderRole != m.SenderRole {
		return false
	}
	if f.RecipientRole != "" && f.RecipientRole != m.RecipientRole {
		return false
	}
	if f.Type != "" && f.Type != m.Type {
		return false
	}
	for k, v := range f.Meta {
		if m.Meta[k] != v {
			return false
		}
	}
	return true
}

// Subscription is a registered filter with its delivery channel.
type Subscription struct {
	// C delivers matching messages. Closed on Unsubscribe.
	C      <-chan Message
	id     string
	filter Filter
	ch     chan Message
}

// Bus is an in-process publish/subscribe hub. All methods are safe for
// concurrent use.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	log  []Message
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: map[string]*Subscription{}}
}

// Publish records the message and delivers it to every matching
// subscriber. Delivery never blocks: a subscriber with a full channel
// misses the message.
func (b *Bus) Publish(m Message) Message {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.log = append(b.log, m)
	for _, sub := range b.subs {
		if !sub.filter.Matches(m) {
			continue
		}
		select {
		case sub.ch <- m:
		default:
		}
	}
	return m
}

// Subscribe registers a filter and returns the subscription. buffer
// bounds the delivery channel; values below 1 get a default of 16.
func (b *Bus) Subscribe(filter Filter, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Message, buffer)
	sub := &Subscription{
		C:      ch,
		id:     uuid.New().String(),
		filter: filter,
		ch:     ch,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscription and closes its channel. Safe to
// call twice.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Messages returns a copy of the recorded messages that pass the filter.
func (b *Bus) Messages(filter Filter) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Message{}
	for _, m := range b.log {
		if filter.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}
