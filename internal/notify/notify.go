package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Status of a session transition worth announcing.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusTimeout   Status = "timeout"
	StatusFailed    Status = "failed"
)

// Event is what notifiers receive for a transition.
type Event struct {
	Status     Status
	Title      string
	Message    string
	URL        string // portal or workflow-run URL, may be empty
	Workflow   string
	Repository string
	RunID      string
}

// Notifier delivers one event to one channel. Implementations must
// not block past their own HTTP timeout.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
	Name() string
}

var httpClient = &http.Client{
	Timeout: 15 * time.Second,
}

// Fanout sends an event to every configured notifier. Delivery is
// best effort: failures are logged and never reach session state.
type Fanout struct {
	notifiers []Notifier
}

func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

func (f *Fanout) Send(ctx context.Context, ev Event) {
	for _, n := range f.notifiers {
		if err := n.Send(ctx, ev); err != nil {
			slog.Error("Notifier failed", "notifier", n.Name(), "status", ev.Status, "error", err)
		}
	}
}
