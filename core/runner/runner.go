// Package runner invokes the external analysis tool and locates its binary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/cerebralab/siena-gear/internal/logging"
)

// Injectable for testing.
var execCommand = exec.CommandContext

// ExecutionResult reports how the tool ran. A non-zero ExitCode is the
// tool's own verdict and travels outside the error path entirely.
type ExecutionResult struct {
	ExitCode int
	Duration time.Duration
}

// Executor runs the analysis tool as a blocking subprocess, streaming its
// output to the configured writers as it is produced. The analyses run for
// minutes to hours, so nothing is buffered.
type Executor struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecutor creates an executor wired to this process's stdout and
// stderr.
func NewExecutor() *Executor {
	return &Executor{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes args[0] with the remaining arguments and blocks until it
// exits. The argv is logged before the process starts so the run log always
// documents the exact invocation. A non-zero exit is not a Go error; errors
// mean the process could not run at all.
func (e *Executor) Run(ctx context.Context, args []string) (*ExecutionResult, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	tool := filepath.Base(args[0])
	logging.ToolStart(tool, args)

	cmd := execCommand(ctx, args[0], args[1:]...)
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("failed to run %s: %w", tool, runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	logging.ToolExit(tool, exitCode, duration)
	return &ExecutionResult{ExitCode: exitCode, Duration: duration}, nil
}
