package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tfci-io/tfci/internal/adapters/github"
	"github.com/tfci-io/tfci/internal/cost"
	"github.com/tfci-io/tfci/internal/report"
	"github.com/tfci-io/tfci/internal/runner"
)

// runPR validates a proposed change: terraform init/fmt/validate, tflint,
// plan, and a cost diff against the committed baseline artifact. Results are
// published as marker comments on the PR.
func (o *Orchestrator) runPR(ctx context.Context) error {
	dir := o.cfg.WorkingDir

	pub, err := o.newPublisher(ctx)
	if err != nil {
		o.log.Warn("could not resolve pull request, comments disabled", "error", err)
		pub = nil
	}

	tf := o.newTerraform(dir)

	for _, step := range []struct {
		name string
		run  func(context.Context) runner.Result
	}{
		{"init", tf.Init},
		{"fmt", tf.FmtCheck},
		{"validate", tf.Validate},
	} {
		res := step.run(ctx)
		if !res.Succeeded() {
			o.publishFailure(ctx, pub, github.KindPlan, step.name, res)
			return toolError("terraform "+step.name, res)
		}
	}

	if err := o.prLint(ctx, pub, dir); err != nil {
		return err
	}

	summary, res, err := tf.Plan(ctx)
	if err != nil {
		o.publishFailure(ctx, pub, github.KindPlan, "plan", res)
		return err
	}
	if o.cfg.Terraform.PlanComment {
		body := report.PlanComment(summary, o.meta())
		o.publish(ctx, pub, github.Identity{Kind: github.KindPlan, Folder: dir}, body, github.Policy{})
	}

	if o.cfg.Cost.Enabled {
		if err := o.prCost(ctx, pub, dir); err != nil {
			if o.costIsOnlyCheck() {
				return err
			}
			o.log.Warn("cost estimation failed, continuing", "error", err)
		}
	}

	return nil
}

// prLint runs tflint and publishes (or retires) the lint comment. Findings
// at error severity fail the run after the comment is up.
func (o *Orchestrator) prLint(ctx context.Context, pub commentPublisher, dir string) error {
	id := github.Identity{Kind: github.KindLint, Folder: dir}

	if !o.cfg.Lint.Enabled {
		// A previously published lint comment would otherwise outlive the
		// toggle and go stale.
		o.publish(ctx, pub, id, "", github.Policy{Remove: true})
		return nil
	}

	rep, res, err := o.runLint(ctx, dir, o.cfg.Lint.Timeout())
	if err != nil {
		o.publishFailure(ctx, pub, github.KindLint, "lint", res)
		return err
	}

	body := report.LintComment(rep, o.meta())
	o.publish(ctx, pub, id, body, github.Policy{
		SilentSkipOnZero: true,
		ZeroImpact:       rep.Clean(),
	})

	if rep.HasErrors() {
		t := rep.Totals()
		return fmt.Errorf("tflint reported %d error finding(s)", t.Errors)
	}
	return nil
}

// prCost diffs a fresh infracost breakdown against the baseline artifact and
// publishes the cost comment. A missing baseline is treated as an empty
// snapshot, so every resource reads as an addition.
func (o *Orchestrator) prCost(ctx context.Context, pub commentPublisher, dir string) error {
	newSnap, res, err := o.breakdown(ctx, dir, o.cfg.Cost.Currency, o.cfg.Cost.Timeout())
	if err != nil {
		o.publishFailure(ctx, pub, github.KindCost, "cost", res)
		return err
	}

	if err := cost.WriteSnapshot(filepath.Join(dir, cost.NewArtifact), newSnap); err != nil {
		o.log.Warn("failed to write cost snapshot artifact", "error", err)
	}

	baseline, err := cost.ReadSnapshot(filepath.Join(dir, cost.BaselineArtifact))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		o.log.Warn("no cost baseline artifact, treating all resources as new", "dir", dir)
		baseline = cost.Snapshot{Currency: newSnap.Currency}
	}

	delta, err := cost.Diff(baseline, newSnap, dir)
	if err != nil {
		return err
	}
	o.deltaAbsolute = delta.Absolute

	if err := cost.WriteDelta(filepath.Join(dir, cost.DeltaArtifact), delta); err != nil {
		o.log.Warn("failed to write cost delta artifact", "error", err)
	}

	body := report.CostComment(delta, o.cfg.Cost.CommentTitle, o.meta())
	o.publish(ctx, pub, github.Identity{Kind: github.KindCost, Folder: dir}, body, github.Policy{
		SilentSkipOnZero: o.cfg.Cost.SilentSkipOnZero,
		ZeroImpact:       delta.IsZero(),
	})
	return nil
}

// costIsOnlyCheck reports whether cost estimation is the only enabled check,
// in which case its failure must fail the run.
func (o *Orchestrator) costIsOnlyCheck() bool {
	return o.cfg.Cost.Enabled && !o.cfg.Lint.Enabled && !o.cfg.Terraform.PlanComment
}
