// Package terraform wraps the terraform CLI subcommands tfci drives.
package terraform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tfci-io/tfci/internal/logging"
	"github.com/tfci-io/tfci/internal/runner"
)

const (
	// PlanFile is the saved binary plan consumed by show and apply.
	PlanFile = "tfci.tfplan"
	// PlanDetailFile is the human-readable plan written next to the
	// working directory for the PR comment's details block.
	PlanDetailFile = "plan.txt"

	// terraform plan -detailed-exitcode: 0 = no changes, 2 = changes
	// present. Both are success paths; anything else is a failure.
	exitNoChanges = 0
	exitChanges   = 2
)

// CLI runs terraform subcommands in one working directory.
type CLI struct {
	binary  string
	dir     string
	timeout time.Duration
	log     *slog.Logger
}

// New returns a CLI bound to the given working directory.
func New(dir string, timeout time.Duration) *CLI {
	return &CLI{
		binary:  "terraform",
		dir:     dir,
		timeout: timeout,
		log:     logging.WithComponent("terraform"),
	}
}

// FmtCheck runs terraform fmt in check mode.
func (c *CLI) FmtCheck(ctx context.Context) runner.Result {
	return c.run(ctx, "fmt", "-check", "-recursive", "-no-color")
}

// Validate runs terraform validate.
func (c *CLI) Validate(ctx context.Context) runner.Result {
	return c.run(ctx, "validate", "-no-color")
}

// Init runs terraform init without backend changes prompting.
func (c *CLI) Init(ctx context.Context) runner.Result {
	return c.run(ctx, "init", "-input=false", "-no-color")
}

// Plan runs terraform plan with a detailed exit code and a saved plan file,
// then renders the human-readable plan via terraform show into
// PlanDetailFile.
//
// The returned Result is the plan invocation itself; a nil error with
// HasChanges set means exit code 2 (changes present), which is a success
// state for plan.
func (c *CLI) Plan(ctx context.Context) (*PlanSummary, runner.Result, error) {
	result := c.run(ctx, "plan", "-input=false", "-no-color", "-detailed-exitcode", "-out="+PlanFile)

	switch result.ExitCode {
	case exitNoChanges, exitChanges:
	default:
		return nil, result, fmt.Errorf("terraform plan failed (exit %d)", result.ExitCode)
	}

	summary := ParsePlanOutput(result.Stdout)
	summary.HasChanges = result.ExitCode == exitChanges

	// show failure degrades the comment to counts only, it does not fail
	// the plan step.
	show := c.run(ctx, "show", "-no-color", PlanFile)
	if show.ExitCode == 0 {
		summary.Detail = ExtractPlanBody(show.Stdout)
		detailPath := filepath.Join(c.dir, PlanDetailFile)
		if err := os.WriteFile(detailPath, []byte(summary.Detail), 0644); err != nil {
			c.log.Warn("failed to write plan detail file", "path", detailPath, "error", err)
		}
	} else {
		c.log.Warn("terraform show failed, plan details unavailable", "exit_code", show.ExitCode)
	}

	// Exit 2 reads as Failure to the generic runner; reclassify.
	result.Outcome = runner.Success
	return summary, result, nil
}

// Apply applies the saved plan file from a previous Plan call, or runs a
// direct auto-approved apply when no plan file exists.
func (c *CLI) Apply(ctx context.Context) runner.Result {
	args := []string{"apply", "-input=false", "-no-color", "-auto-approve"}
	if _, err := os.Stat(filepath.Join(c.dir, PlanFile)); err == nil {
		args = append(args, PlanFile)
	}
	return c.run(ctx, args...)
}

func (c *CLI) run(ctx context.Context, args ...string) runner.Result {
	c.log.Debug("running terraform", "args", args, "dir", c.dir)
	return runner.Execute(ctx, runner.Spec{
		Tool:    "terraform " + args[0],
		Command: c.binary,
		Args:    args,
		Dir:     c.dir,
		Timeout: c.timeout,
	})
}
