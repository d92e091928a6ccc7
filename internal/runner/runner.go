// Package runner invokes external tools and captures their results.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/tfci-io/tfci/internal/logging"
)

// MaxOutputBytes bounds captured tool output. Terraform plans for large
// workspaces can emit megabytes; everything past the cap is replaced by a
// visible truncation marker.
const MaxOutputBytes = 256 * 1024

const (
	// TruncationMarker is appended when output exceeds MaxOutputBytes.
	TruncationMarker = "\n... [output truncated] ..."
	// TimeoutMarker is appended when the tool was killed on timeout.
	TimeoutMarker = "\n... [tool timed out] ..."
)

// Outcome classifies a tool invocation.
type Outcome string

const (
	Success Outcome = "success"
	Failure Outcome = "failure"
	Skipped Outcome = "skipped"
)

// Spec describes one external tool invocation.
type Spec struct {
	Tool    string // logical tool name, used in logs and results
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Timeout time.Duration
}

// Result is the captured outcome of a tool invocation.
//
// Output is the interleaved stdout+stderr stream for logs and failure
// comments. Stdout carries stdout alone: tools that emit machine-readable
// documents (infracost JSON, terraform show) mix log lines into stderr in
// non-TTY runs, so parsers must read Stdout, never Output.
type Result struct {
	Tool     string
	ExitCode int
	Output   string
	Stdout   string
	Duration time.Duration
	Outcome  Outcome
	TimedOut bool
}

// Succeeded reports whether the tool exited zero.
func (r Result) Succeeded() bool {
	return r.Outcome == Success
}

// SkippedResult returns a Result representing a step that never ran.
func SkippedResult(tool string) Result {
	return Result{Tool: tool, Outcome: Skipped}
}

// Execute runs the given command, capturing combined stdout/stderr plus a
// separate stdout stream for parsers.
//
// A non-zero exit is reported as Failure here; callers that recognize
// tool-specific exit codes (terraform plan -detailed-exitcode, tflint)
// reinterpret the result themselves. A timeout kills the process and yields
// Failure with TimedOut set.
func Execute(ctx context.Context, spec Spec) Result {
	result := Result{Tool: spec.Tool}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	var combined, stdout bytes.Buffer
	cmd.Stdout = io.MultiWriter(&stdout, &combined)
	cmd.Stderr = &combined

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Output = bound(combined.String())
	result.Stdout = bound(stdout.String())
	if combined.Len() > MaxOutputBytes {
		logging.Warn("tool output truncated", "tool", spec.Tool, "bytes", combined.Len())
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.Outcome = Failure
		result.ExitCode = -1
		result.Output += TimeoutMarker
		return result
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			// Command could not be started at all (not found, permission).
			result.ExitCode = -1
			result.Output = bound(result.Output + fmt.Sprintf("\n%s: %v", spec.Tool, err))
		}
		result.Outcome = Failure
		return result
	}

	result.Outcome = Success
	return result
}

func bound(s string) string {
	if len(s) <= MaxOutputBytes {
		return s
	}
	return s[:MaxOutputBytes] + TruncationMarker
}
