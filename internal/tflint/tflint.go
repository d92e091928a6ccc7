// Package tflint invokes tflint and parses its compact-format findings.
package tflint

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tfci-io/tfci/internal/runner"
)

//go:embed default.tflint.hcl
var defaultConfig []byte

// RepoConfigFile is the repo-provided config honored over the built-in one.
const RepoConfigFile = ".tflint.hcl"

// exit code 2 = issues found, which is a reportable result, not an
// invocation failure.
const exitIssuesFound = 2

// Run lints the given directory. The repo's .tflint.hcl wins when present;
// otherwise the embedded default config is materialized into a temp file.
//
// A non-nil error means tflint itself could not run; findings never produce
// an error here.
func Run(ctx context.Context, dir string, timeout time.Duration) (*Report, runner.Result, error) {
	args := []string{"--format", "compact", "--no-color"}

	if _, err := os.Stat(filepath.Join(dir, RepoConfigFile)); os.IsNotExist(err) {
		cfgPath, cleanup, err := materializeDefaultConfig()
		if err != nil {
			return nil, runner.SkippedResult("tflint"), err
		}
		defer cleanup()
		args = append(args, "--config", cfgPath)
	}

	result := runner.Execute(ctx, runner.Spec{
		Tool:    "tflint",
		Command: "tflint",
		Args:    args,
		Dir:     dir,
		Timeout: timeout,
	})

	switch result.ExitCode {
	case 0:
	case exitIssuesFound:
		result.Outcome = runner.Success
	default:
		return nil, result, fmt.Errorf("tflint failed (exit %d)", result.ExitCode)
	}

	return NewReport(Parse(result.Stdout)), result, nil
}

func materializeDefaultConfig() (string, func(), error) {
	f, err := os.CreateTemp("", "tfci-tflint-*.hcl")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create tflint config: %w", err)
	}
	if _, err := f.Write(defaultConfig); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("failed to write tflint config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, err
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}
