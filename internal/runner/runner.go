package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// waitDelay bounds how long Wait blocks on pipes held by orphaned children after a kill.
const waitDelay = 5 * time.Second

// Output is what a finished command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands, streaming their output to one writer.
type Runner struct {
	out    io.Writer
	logger *slog.Logger
	lookup func(string) (string, bool)
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLookup replaces os.LookupEnv for {{VAR}} substitution.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(r *Runner) { r.lookup = fn }
}

// NewRunner creates a runner streaming output to out (io.Discard when nil).
func NewRunner(out io.Writer, logger *slog.Logger, opts ...Option) *Runner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{out: &lockedWriter{w: out}, logger: logger, lookup: os.LookupEnv}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes cmd and waits for it. A failed command returns its output
// together with a command-category error, unless cmd.BestEffort is set.
// Cancellation of ctx is always returned.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Output, error) {
	args, missing := cmd.Expand(r.lookup)
	for _, name := range missing {
		r.logger.Warn("Command references unset variable", slog.String("variable", name), logfields.Command(cmd.String()))
	}

	r.logger.Info("Running command", logfields.Command(cmd.String()), logfields.Dir(cmd.Dir))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if cmd.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, cmd.Timeout)
		defer cancelTimeout()
	}

	var stdout, stderr bytes.Buffer
	activity := &activityClock{}
	activity.touch()

	c := exec.CommandContext(runCtx, cmd.Name, args...) // #nosec G204 -- argv from typed Command, no shell
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = &teeWriter{capture: &stdout, stream: r.out, clock: activity}
	c.Stderr = &teeWriter{capture: &stderr, stream: r.out, clock: activity}
	c.WaitDelay = waitDelay

	start := time.Now()
	if err := c.Start(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryCommand, "failed to start command").
			WithContext("command", cmd.String()).WithContext("dir", cmd.Dir).Build()
	}

	var idleFired atomic.Bool
	stopWatch := make(chan struct{})
	if cmd.IdleTimeout > 0 {
		go watchIdle(activity, cmd.IdleTimeout, stopWatch, func() {
			idleFired.Store(true)
			cancelRun()
		})
	}
	waitErr := c.Wait()
	close(stopWatch)

	out := &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(c, waitErr),
		Duration: time.Since(start),
	}
	r.logger.Debug("Command finished", logfields.Command(cmd.String()), logfields.ExitCode(out.ExitCode), logfields.Duration(out.Duration))

	if waitErr == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, errors.WrapError(ctx.Err(), errors.CategoryRuntime, "command cancelled").
			WithContext("command", cmd.String()).Build()
	}

	var failure error
	switch {
	case idleFired.Load():
		failure = errors.CommandError(fmt.Sprintf("command produced no output for %s", cmd.IdleTimeout)).
			WithCause(waitErr).WithContext("command", cmd.String()).Build()
	case stderrors.Is(runCtx.Err(), context.DeadlineExceeded):
		failure = errors.CommandError(fmt.Sprintf("command timed out after %s", cmd.Timeout)).
			WithCause(waitErr).WithContext("command", cmd.String()).Build()
	default:
		failure = errors.CommandError(fmt.Sprintf("command exited with code %d", out.ExitCode)).
			WithCause(waitErr).
			WithContext("command", cmd.String()).
			WithContext("exit_code", out.ExitCode).
			Build()
	}

	if cmd.BestEffort {
		r.logger.Warn("Best-effort command failed", logfields.Command(cmd.String()), logfields.Error(failure))
		return out, nil
	}
	if out.Stderr != "" {
		r.logger.Error("Command failed", logfields.Command(cmd.String()), slog.String("stderr", tail(out.Stderr, 2048)))
	}
	return out, failure
}

func exitCode(c *exec.Cmd, err error) int {
	if c.ProcessState != nil {
		return c.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// watchIdle calls onIdle once when clock has not been touched for limit.
func watchIdle(clock *activityClock, limit time.Duration, stop <-chan struct{}, onIdle func()) {
	tick := min(limit/4, time.Second)
	if tick <= 0 {
		tick = limit
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if clock.since() >= limit {
				onIdle()
				return
			}
		}
	}
}

type activityClock struct {
	last atomic.Int64
}

func (a *activityClock) touch() { a.last.Store(time.Now().UnixNano()) }

func (a *activityClock) since() time.Duration {
	return time.Since(time.Unix(0, a.last.Load()))
}

// teeWriter captures a stream, forwards it live and records activity.
type teeWriter struct {
	capture *bytes.Buffer
	stream  io.Writer
	clock   *activityClock
}

func (t *teeWriter) Write(p []byte) (int, error) {
	t.clock.touch()
	t.capture.Write(p)
	_, _ = t.stream.Write(p)
	return len(p), nil
}

// lockedWriter serializes stdout and stderr copies onto one writer.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
