package pyext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Swapped out in tests.
var (
	execCommandContext = exec.CommandContext
	execLookPath       = exec.LookPath
)

// Command is one external process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string            // Empty runs in the current working directory
	Env  map[string]string // Added on top of os.Environ()

	// Output is copied to these while it is captured. Nil discards.
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns the full argument vector, program name first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// CommandResult is what a finished process left behind.
type CommandResult struct {
	ExitCode int      // -1 if the process never started
	Output   []string // Combined stdout and stderr, split into lines
}

// Runner runs external processes and waits for them to exit.
//
// Run returns a non-nil error when the process could not be started or
// exited non-zero; the result is returned in both cases so callers can
// report the exit status and output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*CommandResult, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts the command, streams its output and waits for it.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*CommandResult, error) {
	cmd := execCommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = mergeEnv(cmd.Env, c.Env)
	}

	// os/exec copies each stream from its own goroutine; one lock covers
	// the shared capture buffer and both streams.
	var (
		captured bytes.Buffer
		mu       sync.Mutex
	)
	cmd.Stdout = &lockedWriter{mu: &mu, w: teeWriter(&captured, c.Stdout)}
	cmd.Stderr = &lockedWriter{mu: &mu, w: teeWriter(&captured, c.Stderr)}

	err := cmd.Run()
	result := &CommandResult{
		ExitCode: exitCode(cmd, err),
		Output:   splitOutput(captured.String()),
	}
	if err != nil {
		return result, fmt.Errorf("%s: %w", c.Name, err)
	}
	return result, nil
}

// mergeEnv layers extra on top of base, or on top of os.Environ() when base
// is empty (exec.Cmd treats a nil Env as the parent environment).
func mergeEnv(base []string, extra map[string]string) []string {
	if len(base) == 0 {
		base = os.Environ()
	}
	env := append([]string(nil), base...)
	for key, value := range extra {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}
	return env
}

// lockedWriter serializes writes to w with a mutex shared between writers.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func teeWriter(capture io.Writer, stream io.Writer) io.Writer {
	if stream == nil {
		return capture
	}
	return io.MultiWriter(capture, stream)
}

func exitCode(cmd *exec.Cmd, err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}

func splitOutput(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
