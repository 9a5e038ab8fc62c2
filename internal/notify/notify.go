// Package notify carries user-facing notifications (toasts) out of the core.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Notifier interface {
	Notify(level Level, message string)
}

// Queue buffers notifications until the presentation layer drains them.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
	log   zerolog.Logger
}

func NewQueue(limit int, log zerolog.Logger) *Queue {
	return &Queue{limit: limit, log: log}
}

func (q *Queue) Notify(level Level, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Notification{Level: level, Message: message, At: time.Now()})
	if q.limit > 0 && len(q.items) > q.limit {
		q.items = q.items[len(q.items)-q.limit:]
	}
	q.log.Debug().Str("level", string(level)).Msg(message)
}

// Drain returns the buffered notifications oldest first and empties the queue.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	if out == nil {
		return []Notification{}
	}
	return out
}

type discard struct{}

func (discard) Notify(Level, string) {}

// Discard drops every notification.
var Discard Notifier = discard{}
