// Package session owns the lifecycle of one interactive collection
// run: local listener, tunnel supervision, the submission race and
// the hand-off of the final outcome to the caller.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/notify"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/tunnel"
)

const DefaultDeadline = 300 * time.Second

// WebServer is what the controller needs from the collection
// endpoint. The portal package provides the real one.
type WebServer interface {
	Serve(ln net.Listener) error
	Shutdown() error
}

// Options configure one session.
type Options struct {
	Title    string
	Fields   fields.Set
	Deadline time.Duration

	// DeadlineFromPublish starts the deadline clock when the public
	// endpoint is up instead of at session creation. The default
	// bounds the worst-case wait including tunnel startup.
	DeadlineFromPublish bool

	LocalPort     int // 0 binds an ephemeral port
	Tunnel        tunnel.Options
	TunnelRestart bool // allow one bounded restart on unexpected exit

	Notify      *notify.Fanout
	StagingRoot string // defaults to os.TempDir()

	// GitHub run context, used for notifications and the
	// post-submission redirect.
	Workflow   string
	Repository string
	RunID      string
	ServerURL  string
}

// Controller is the session state machine. Its mutex is the single
// serialization point: the submission handler, the deadline timer and
// the tunnel watcher all contend on it, and exactly one of them wins
// the terminal transition.
type Controller struct {
	id   string
	opts Options

	mu         sync.Mutex
	state      State
	err        error
	sup        *tunnel.Supervisor
	endpoint   tunnel.Endpoint
	localPort  int
	deadlineAt time.Time
	clockOn    bool
	restarted  bool

	store   Store
	staging string
	done    chan struct{}
}

func New(opts Options) (*Controller, error) {
	if err := opts.Fields.Validate(); err != nil {
		return nil, err
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.StagingRoot == "" {
		opts.StagingRoot = os.TempDir()
	}
	if opts.Notify == nil {
		opts.Notify = notify.NewFanout()
	}

	return &Controller{
		id:    uuid.NewString(),
		opts:  opts,
		state: Created,
		done:  make(chan struct{}),
	}, nil
}

func (c *Controller) ID() string         { return c.id }
func (c *Controller) Title() string      { return c.opts.Title }
func (c *Controller) Fields() fields.Set { return c.opts.Fields }
func (c *Controller) StagingDir() string { return c.staging }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Closed() bool {
	return c.State().Terminal()
}

func (c *Controller) Endpoint() tunnel.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// Remaining reports time left on the deadline clock; before the clock
// starts it is the full deadline.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.clockOn {
		return c.opts.Deadline
	}
	left := time.Until(c.deadlineAt)
	if left < 0 {
		return 0
	}
	return left
}

// RedirectURL points the operator back at the workflow run.
func (c *Controller) RedirectURL() string {
	if c.opts.ServerURL == "" || c.opts.Repository == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/actions/runs/%s", c.opts.ServerURL, c.opts.Repository, c.opts.RunID)
}

// Submit validates a raw submission and, if it is well formed, wins
// the completion race. A validation failure leaves the session open
// for a retry; any terminal state rejects with ErrSessionClosed.
func (c *Controller) Submit(raw map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return ErrSessionClosed
	}
	if c.state != AwaitingSubmission {
		return ErrNotReady
	}

	values, err := fields.ValidateAndCoerce(c.opts.Fields, raw, c.staging)
	if err != nil {
		slog.Info("Submission rejected", "session", c.id, "error", err)
		return err
	}

	c.store.Put(values)
	c.state = Completed
	close(c.done)

	slog.Info("Submission accepted", "session", c.id)
	return nil
}

// resolve is the compare-and-set terminal transition every concurrent
// actor funnels through. Only the first caller wins.
func (c *Controller) resolve(state State, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return false
	}
	c.state = state
	c.err = err
	close(c.done)
	return true
}

// transition advances to the next non-terminal state. It refuses once
// a terminal state won the race, so late tunnel or listener progress
// after a timeout or cancellation cannot clobber the result.
func (c *Controller) transition(state State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return false
	}
	c.state = state
	return true
}

// startClock arms the deadline timer once. The timer reads a
// monotonic clock, so wall-clock skew cannot shorten or stretch the
// session.
func (c *Controller) startClock() {
	c.mu.Lock()
	if c.clockOn {
		c.mu.Unlock()
		return
	}
	c.clockOn = true
	c.deadlineAt = time.Now().Add(c.opts.Deadline)
	c.mu.Unlock()

	timer := time.NewTimer(c.opts.Deadline)
	go func() {
		defer timer.Stop()
		select {
		case <-timer.C:
			if c.resolve(TimedOut, ErrTimeout) {
				slog.Info("Session deadline elapsed", "session", c.id, "deadline", c.opts.Deadline)
			}
		case <-c.done:
		}
	}()
}

// Run drives the session to a terminal state and returns the outcome.
// Teardown of the tunnel process, the listener and (on failure) the
// staging directory happens on every exit path before returning.
func (c *Controller) Run(ctx context.Context, srv WebServer) *Outcome {
	defer c.teardown(srv)

	c.staging = filepath.Join(c.opts.StagingRoot, "bore-interactive-inputs-"+c.id)
	if err := os.MkdirAll(c.staging, 0o750); err != nil {
		c.resolve(Failed, fmt.Errorf("%w: staging dir: %v", ErrTransport, err))
		return c.outcome()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", c.opts.LocalPort))
	if err != nil {
		c.resolve(Failed, fmt.Errorf("%w: %v", ErrTransport, err))
		return c.outcome()
	}
	localPort := ln.Addr().(*net.TCPAddr).Port
	c.mu.Lock()
	c.localPort = localPort
	c.mu.Unlock()
	if !c.transition(Listening) {
		return c.outcome()
	}
	slog.Info("Collection endpoint listening", "session", c.id, "port", localPort)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil {
			serveErr <- err
		}
	}()
	go func() {
		select {
		case err := <-serveErr:
			if c.resolve(Failed, fmt.Errorf("%w: %v", ErrTransport, err)) {
				slog.Error("Listener failed", "session", c.id, "error", err)
			}
		case <-c.done:
		}
	}()

	// Caller abort must be observable by every actor.
	go func() {
		select {
		case <-ctx.Done():
			if c.resolve(Cancelled, ErrCancelled) {
				slog.Info("Session cancelled", "session", c.id)
			}
		case <-c.done:
		}
	}()

	if !c.opts.DeadlineFromPublish {
		c.startClock()
	}

	tunnelOpts := c.opts.Tunnel
	tunnelOpts.LocalPort = localPort
	sup := tunnel.New(tunnelOpts)
	c.mu.Lock()
	c.sup = sup
	c.mu.Unlock()

	endpoint, err := sup.Start(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.resolve(Cancelled, ErrCancelled)
		} else {
			c.resolve(Failed, fmt.Errorf("%w: %v", ErrTunnel, err))
		}
		return c.outcome()
	}

	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
	if !c.transition(Published) {
		return c.outcome()
	}
	slog.Info("Session published", "session", c.id, "url", endpoint.URL())

	if c.opts.DeadlineFromPublish {
		c.startClock()
	}

	go c.watchTunnel(ctx, sup)

	if !c.transition(AwaitingSubmission) {
		return c.outcome()
	}
	c.notify(notify.StatusStarted, fmt.Sprintf("Waiting for user input (timeout: %s)", c.opts.Deadline), endpoint.URL())

	<-c.done
	return c.outcome()
}

// watchTunnel turns an unexpected tunnel exit into a Failed
// transition, optionally after one restart with a fresh announcement.
func (c *Controller) watchTunnel(ctx context.Context, sup *tunnel.Supervisor) {
	for {
		ev, ok := <-sup.Watch()
		if c.Closed() {
			return
		}
		if ok {
			slog.Warn("Tunnel process exited unexpectedly", "session", c.id, "code", ev.Code)
		}

		c.mu.Lock()
		canRestart := c.opts.TunnelRestart && !c.restarted
		c.restarted = true
		tunnelOpts := c.opts.Tunnel
		tunnelOpts.LocalPort = c.localPort
		c.mu.Unlock()

		if !canRestart {
			c.resolve(Failed, fmt.Errorf("%w: process exited with code %d", ErrTunnel, ev.Code))
			return
		}

		slog.Info("Restarting tunnel", "session", c.id)
		next := tunnel.New(tunnelOpts)
		endpoint, err := next.Start(ctx)
		if err != nil {
			c.resolve(Failed, fmt.Errorf("%w: restart: %v", ErrTunnel, err))
			return
		}

		c.mu.Lock()
		if c.state.Terminal() {
			// Lost the race while restarting; do not orphan the
			// fresh process.
			c.mu.Unlock()
			next.Stop()
			return
		}
		c.sup = next
		c.endpoint = endpoint
		c.mu.Unlock()

		// The address changed, so the human needs a fresh link.
		c.notify(notify.StatusStarted, "Tunnel restarted, portal address changed", endpoint.URL())
		sup = next
	}
}

func (c *Controller) event(status notify.Status, message, url string) notify.Event {
	return notify.Event{
		Status:     status,
		Title:      c.opts.Title,
		Message:    message,
		URL:        url,
		Workflow:   c.opts.Workflow,
		Repository: c.opts.Repository,
		RunID:      c.opts.RunID,
	}
}

// notify is fire-and-forget: notifier failures and latency never
// affect session state.
func (c *Controller) notify(status notify.Status, message, url string) {
	ev := c.event(status, message, url)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		c.opts.Notify.Send(ctx, ev)
	}()
}

func (c *Controller) notifySync(status notify.Status, message, url string) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	c.opts.Notify.Send(ctx, c.event(status, message, url))
}

// teardown releases every session resource. It runs on all exit
// paths; each release is idempotent.
func (c *Controller) teardown(srv WebServer) {
	c.mu.Lock()
	sup := c.sup
	state := c.state
	c.mu.Unlock()

	if sup != nil {
		sup.Stop()
	}
	if err := srv.Shutdown(); err != nil {
		slog.Debug("Listener shutdown", "session", c.id, "error", err)
	}

	// Artifacts survive only a completed session; the caller owns
	// them from here.
	if state != Completed && c.staging != "" {
		os.RemoveAll(c.staging)
	}

	// Terminal notifications are sent before returning control so a
	// process exit right after Run cannot drop them.
	switch state {
	case Completed:
		c.notifySync(notify.StatusCompleted, "Interactive inputs completed successfully", c.RedirectURL())
	case TimedOut:
		c.notifySync(notify.StatusTimeout, fmt.Sprintf("Interactive inputs timed out after %s", c.opts.Deadline), c.RedirectURL())
	case Failed:
		c.notifySync(notify.StatusFailed, fmt.Sprintf("Interactive inputs failed: %v", c.errLocked()), c.RedirectURL())
	}
}

func (c *Controller) errLocked() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) outcome() *Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := &Outcome{State: c.state, Err: c.err}
	if values, ok := c.store.Get(); ok {
		out.Values = values
	}
	return out
}
