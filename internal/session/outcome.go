package session

import (
	"errors"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
)

// State of the one session this process runs.
type State int

const (
	Created State = iota
	Listening
	Published
	AwaitingSubmission
	Completed
	TimedOut
	Failed
	Cancelled
)

var stateNames = map[State]string{
	Created:            "created",
	Listening:          "listening",
	Published:          "published",
	AwaitingSubmission: "awaiting-submission",
	Completed:          "completed",
	TimedOut:           "timed-out",
	Failed:             "failed",
	Cancelled:          "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case Completed, TimedOut, Failed, Cancelled:
		return true
	}
	return false
}

var (
	// ErrSessionClosed rejects submissions after a terminal state.
	ErrSessionClosed = errors.New("session already closed")

	// ErrNotReady rejects submissions before the endpoint is public.
	ErrNotReady = errors.New("session not ready for submissions")

	ErrTimeout   = errors.New("deadline elapsed with no submission")
	ErrTunnel    = errors.New("tunnel failure")
	ErrCancelled = errors.New("session cancelled")
	ErrTransport = errors.New("local listener failure")
)

// Exit codes let the calling pipeline branch on the outcome.
const (
	ExitOK        = 0
	ExitTimeout   = 10
	ExitTunnel    = 11
	ExitCancelled = 12
	ExitTransport = 13
	ExitError     = 1
)

// Outcome is what a finished session hands back to the caller.
type Outcome struct {
	State  State
	Values fields.Values
	Err    error
}

func (o *Outcome) ExitCode() int {
	switch {
	case o.State == Completed:
		return ExitOK
	case o.State == TimedOut:
		return ExitTimeout
	case o.State == Cancelled:
		return ExitCancelled
	case errors.Is(o.Err, ErrTunnel):
		return ExitTunnel
	case errors.Is(o.Err, ErrTransport):
		return ExitTransport
	}
	return ExitError
}
