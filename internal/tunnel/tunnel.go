package tunnel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

const (
	// DefaultCommand is the bore client binary looked up on PATH.
	DefaultCommand = "bore"

	announceGrace = 30 * time.Second
	stopGrace     = 5 * time.Second
)

var (
	ErrStartup    = errors.New("tunnel client failed to start")
	ErrNotStarted = errors.New("tunnel not started")
)

// bore prints one of these once the control connection is up, e.g.
// "listening at bore.pub:41935"
var announceRe = regexp.MustCompile(`(?:listening at|forwarding to|exposed at)\s+([^:\s]+):(\d+)`)

// Endpoint is the publicly reachable address announced by the tunnel
// server.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) URL() string {
	return "http://" + e.Addr()
}

// ExitEvent reports the tunnel process leaving.
type ExitEvent struct {
	Code int
	Err  error
}

// Options configure one tunnel client invocation.
type Options struct {
	LocalPort  int
	Server     string
	RemotePort int    // 0 lets the server assign one
	Secret     string // optional shared secret passed through to bore
	Command    string // bore binary override, used by tests
}

func (o Options) command() string {
	if o.Command != "" {
		return o.Command
	}
	return DefaultCommand
}

// Supervisor owns exactly one bore client process. Nothing else may
// signal or read from it; callers interact through Start, Watch and
// Stop only.
type Supervisor struct {
	opts Options

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan ExitEvent

	stopOnce sync.Once
}

func New(opts Options) *Supervisor {
	return &Supervisor{
		opts:   opts,
		exited: make(chan ExitEvent, 1),
	}
}

// Start spawns the bore client and blocks until it announces the
// public endpoint, the process dies, the grace period elapses or ctx
// is cancelled. Anything but an announcement is a startup failure and
// leaves no process behind.
func (s *Supervisor) Start(ctx context.Context) (Endpoint, error) {
	args := []string{"local", strconv.Itoa(s.opts.LocalPort), "--to", s.opts.Server}
	if s.opts.RemotePort > 0 {
		args = append(args, "--port", strconv.Itoa(s.opts.RemotePort))
	}
	if s.opts.Secret != "" {
		args = append(args, "--secret", s.opts.Secret)
	}

	cmd := exec.Command(s.opts.command(), args...)

	// bore logs to stderr, older builds to stdout; scan both through
	// one pipe.
	pr, pw, err := os.Pipe()
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return Endpoint{}, fmt.Errorf("%w: %v", ErrStartup, err)
	}
	pw.Close()

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	announced := make(chan Endpoint, 1)
	go s.scanOutput(pr, announced)

	go func() {
		err := cmd.Wait()
		code := 0
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		s.exited <- ExitEvent{Code: code, Err: err}
		close(s.exited)
	}()

	timer := time.NewTimer(announceGrace)
	defer timer.Stop()

	select {
	case endpoint := <-announced:
		slog.Info("Tunnel established", "endpoint", endpoint.Addr())
		return endpoint, nil

	case ev := <-s.exited:
		return Endpoint{}, fmt.Errorf("%w: client exited with code %d before announcing", ErrStartup, ev.Code)

	case <-timer.C:
		s.Stop()
		return Endpoint{}, fmt.Errorf("%w: no announcement within %s", ErrStartup, announceGrace)

	case <-ctx.Done():
		s.Stop()
		return Endpoint{}, ctx.Err()
	}
}

func (s *Supervisor) scanOutput(r *os.File, announced chan<- Endpoint) {
	defer r.Close()

	scanner := bufio.NewScanner(r)
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("bore", "line", strings.TrimSpace(line))

		if found {
			continue
		}
		if m := announceRe.FindStringSubmatch(line); m != nil {
			port, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			announced <- Endpoint{Host: m[1], Port: port}
			found = true
		}
	}
}

// Watch exposes the process exit notification. The channel delivers a
// single ExitEvent and is then closed.
func (s *Supervisor) Watch() <-chan ExitEvent {
	return s.exited
}

// Stop terminates the tunnel client: SIGTERM first, SIGKILL if it
// lingers past the grace period. Calling it again, or after the
// process already exited, is a no-op.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd := s.cmd
	s.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return ErrNotStarted
	}

	s.stopOnce.Do(func() {
		// Ignore the error: the process may be gone already.
		_ = cmd.Process.Signal(syscall.SIGTERM)

		select {
		case <-s.exited:
		case <-time.After(stopGrace):
			_ = cmd.Process.Kill()
			<-s.exited
		}
	})

	return nil
}

// Version runs `bore --version` to verify the client is installed.
func Version(command string) (string, error) {
	if command == "" {
		command = DefaultCommand
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, command, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("bore not found: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
