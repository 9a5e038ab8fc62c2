// Package events publishes storefront domain events (placed orders, verified payments,
// merged carts) for downstream consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TypeOrderPlaced     = "order.placed"
	TypePaymentVerified = "payment.verified"
	TypeCartMerged      = "cart.merged"
)

type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Key     string    `json:"key"` // ordering key: order id or user id
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

func New(eventType, key string, payload any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Key:     key,
		At:      time.Now().UTC(),
		Payload: payload,
	}
}

// Publisher must not block the caller on broker I/O.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type nop struct{}

func (nop) Publish(context.Context, Event) error { return nil }

// Nop drops every event.
var Nop Publisher = nop{}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}
