// Package events fans out domain events to downstream handlers and keeps a
// bounded log of recent events for inspection.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a domain event emitted by the storefront stores.
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Topic      string          `json:"topic"`
	OwnerID    string          `json:"ownerId"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Notifier reacts to emitted events (e.g. logging, metrics).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify invokes the wrapped function.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// DefaultLogSize bounds how many recent events the bus retains.
const DefaultLogSize = 256

// Bus records domain events and dispatches them to all configured notifiers.
type Bus struct {
	Notifiers []Notifier
	Now       func() time.Time

	mu      sync.Mutex
	log     []Event
	logSize int
}

// NewBus returns a bus retaining at most logSize recent events.
func NewBus(logSize int) *Bus {
	if logSize <= 0 {
		logSize = DefaultLogSize
	}
	return &Bus{Now: time.Now, logSize: logSize}
}

// Emit records the event and dispatches it to all configured notifiers.
// Notifier failures are joined but do not abort the remaining notifiers.
func (b *Bus) Emit(ctx context.Context, topic, ownerID string, payload any) (Event, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	ev := Event{
		ID:         uuid.New(),
		Topic:      topic,
		OwnerID:    ownerID,
		Payload:    encoded,
		OccurredAt: b.Now().UTC(),
	}

	b.mu.Lock()
	b.log = append(b.log, ev)
	if len(b.log) > b.logSize {
		b.log = b.log[len(b.log)-b.logSize:]
	}
	b.mu.Unlock()

	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("events: notifier: %w", notifyErr))
		}
	}
	return ev, joined
}

// Recent returns up to n of the most recently emitted events, newest last.
func (b *Bus) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.log) {
		n = len(b.log)
	}
	out := make([]Event, n)
	copy(out, b.log[len(b.log)-n:])
	return out
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return encoded, nil
}
