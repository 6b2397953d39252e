package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/filealchemy/internal/notifications"
	"github.com/desertthunder/filealchemy/internal/tasks"
)

// Broadcaster fans progress updates out to every connected event stream.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan tasks.ProgressUpdate]struct{}
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan tasks.ProgressUpdate]struct{})}
}

// Run forwards updates until ctx is done or updates is closed.
func (b *Broadcaster) Run(ctx context.Context, updates <-chan tasks.ProgressUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.Publish(u)
		}
	}
}

// Publish delivers u to every subscriber, dropping it for subscribers that are full.
func (b *Broadcaster) Publish(u tasks.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes.
func (b *Broadcaster) Subscribe(buffer int) (<-chan tasks.ProgressUpdate, func()) {
	ch := make(chan tasks.ProgressUpdate, buffer)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
	}
}

// Subscribers reports the number of connected streams.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

type progressEvent struct {
	Phase   string  `json:"phase"`
	Step    int     `json:"step"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// streamEvents serves progress and notifications as server-sent events until the client disconnects.
func (a *API) streamEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	updates, unsubscribe := a.events.Subscribe(64)
	defer unsubscribe()

	var notices <-chan notifications.Notification
	if a.sink != nil {
		ch, stop := a.sink.Subscribe(16)
		defer stop()
		notices = ch
	}

	fmt.Fprintf(w, "event: ready\ndata: {\"state\":%q}\n\n", a.orch.State().String())
	if err := rc.Flush(); err != nil {
		a.logger.Warn("event stream cannot flush", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-a.ctx.Done():
			return
		case u := <-updates:
			ev := progressEvent{
				Phase:   u.Phase.String(),
				Step:    u.Step,
				Total:   u.Total,
				Percent: u.Percent,
				Message: u.Message,
			}
			if err := writeEvent(w, rc, "progress", ev); err != nil {
				return
			}
		case n := <-notices:
			if err := writeEvent(w, rc, "notification", n); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}
