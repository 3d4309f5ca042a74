// Package proc runs external tools behind an interface so callers can be
// tested with scripted fakes.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result is the captured outcome of one process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Available reports whether name resolves on PATH.
func Available(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Describe formats a failed run for error messages, keeping the stderr tail.
func Describe(name string, res Result, err error) string {
	tail := strings.TrimSpace(res.Stderr)
	if len(tail) > 400 {
		tail = "..." + tail[len(tail)-400:]
	}
	if tail == "" {
		return fmt.Sprintf("%s exited %d: %v", name, res.ExitCode, err)
	}
	return fmt.Sprintf("%s exited %d: %v: %s", name, res.ExitCode, err, tail)
}
