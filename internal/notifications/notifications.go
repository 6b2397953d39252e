package notifications

import (
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/filealchemy/internal/shared"
)

// DefaultTTL is how long a notification stays visible.
const DefaultTTL = 5 * time.Second

// Type classifies a notification.
type Type string

const (
	Info    Type = "info"
	Success Type = "success"
	Warning Type = "warning"
	Error   Type = "error"
)

// Notification is one published event.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is the append-only publishing surface.
type Notifier interface {
	Notify(kind Type, title, message string) Notification
}

// Sink stores notifications in memory and expires them after a fixed delay.
type Sink struct {
	mu     sync.Mutex
	items  []Notification
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger
	subs   []chan Notification
}

// SinkOpts configures a [Sink]. Zero values select defaults.
type SinkOpts struct {
	TTL    time.Duration
	Now    func() time.Time
	Logger *log.Logger
}

// NewSink creates an empty sink.
func NewSink(opts SinkOpts) *Sink {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Sink{ttl: opts.TTL, now: opts.Now, logger: opts.Logger}
}

// Notify publishes a notification and fans it out to subscribers without blocking.
func (s *Sink) Notify(kind Type, title, message string) Notification {
	n := Notification{
		ID:        shared.GenerateID(),
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.prune()
	s.items = append(s.items, n)
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("notification", "type", kind, "title", title, "message", message)
	}

	for _, ch := range subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

// Active returns the notifications that have not yet expired, oldest first.
func (s *Sink) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	return slices.Clone(s.items)
}

// Dismiss removes a notification before it expires.
func (s *Sink) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, func(n Notification) bool { return n.ID == id })
	return len(s.items) != before
}

// Subscribe returns a channel receiving every notification published after the call.
// The returned func unsubscribes.
//
// Slow subscribers miss notifications rather than block publishers.
func (s *Sink) Subscribe(buffer int) (<-chan Notification, func()) {
	ch := make(chan Notification, max(buffer, 1))

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		s.subs = slices.DeleteFunc(s.subs, func(c chan Notification) bool { return c == ch })
		s.mu.Unlock()
	}
}

func (s *Sink) prune() {
	cutoff := s.now().Add(-s.ttl)
	s.items = slices.DeleteFunc(s.items, func(n Notification) bool {
		return !n.CreatedAt.After(cutoff)
	})
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Notify(kind Type, title, message string) Notification {
	return Notification{Type: kind, Title: title, Message: message}
}

// Recorder keeps every notification it receives, for callers that need the full log.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(kind Type, title, message string) Notification {
	n := Notification{ID: shared.GenerateID(), Type: kind, Title: title, Message: message, CreatedAt: time.Now()}

	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
	return n
}

// All returns every recorded notification in publish order.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

// Count returns how many notifications of kind were recorded.
func (r *Recorder) Count(kind Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, item := range r.items {
		if item.Type == kind {
			n++
		}
	}
	return n
}
