// Package flash keeps short-lived notifications to show on the next rendered page.
package flash

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the visual category of a notification
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// DefaultTTL is how long a notification stays visible when none is configured
const DefaultTTL = 3 * time.Second

// Message is a single notification
type Message struct {
	ID      string
	Text    string
	Kind    Kind
	Expires time.Time
}

// Queue holds pending notifications in insertion order
type Queue struct {
	lock     sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	messages []Message
}

// New creates a queue whose messages expire after ttl
func New(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{ttl: ttl, now: time.Now}
}

// Add queues a notification and returns its id
func (q *Queue) Add(kind Kind, text string) string {
	q.lock.Lock()
	defer q.lock.Unlock()
	m := Message{
		ID:      uuid.NewString(),
		Text:    text,
		Kind:    kind,
		Expires: q.now().Add(q.ttl),
	}
	q.messages = append(q.messages, m)
	return m.ID
}

// Pending returns the unexpired notifications, dropping the expired ones
func (q *Queue) Pending() []Message {
	q.lock.Lock()
	defer q.lock.Unlock()
	now := q.now()
	q.messages = slices.DeleteFunc(q.messages, func(m Message) bool {
		return !now.Before(m.Expires)
	})
	return slices.Clone(q.messages)
}

// Dismiss removes a notification. It reports whether the id was found.
func (q *Queue) Dismiss(id string) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	n := len(q.messages)
	q.messages = slices.DeleteFunc(q.messages, func(m Message) bool { return m.ID == id })
	return len(q.messages) != n
}
