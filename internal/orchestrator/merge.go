package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tfci-io/tfci/internal/adapters/slack"
	"github.com/tfci-io/tfci/internal/cost"
	"github.com/tfci-io/tfci/internal/report"
	"github.com/tfci-io/tfci/internal/runner"
)

// runMerge deploys a merged change: plan, then apply when enabled, then
// refresh the cost artifacts so the next PR diffs against this state.
// Failures raise a Slack alert, subject to the notifier's toggles.
func (o *Orchestrator) runMerge(ctx context.Context) error {
	dir := o.cfg.WorkingDir
	tf := o.newTerraform(dir)

	if res := tf.Init(ctx); !res.Succeeded() {
		o.alertMergeFailure(ctx, dir, "init", res)
		return toolError("terraform init", res)
	}

	summary, res, err := tf.Plan(ctx)
	if err != nil {
		o.alertMergeFailure(ctx, dir, "plan", res)
		return err
	}

	if !o.cfg.Terraform.ApplyEnabled {
		o.log.Info("apply disabled, plan only",
			"dir", dir,
			"add", summary.Add, "change", summary.Change, "destroy", summary.Destroy,
		)
	} else if !summary.HasChanges {
		o.log.Info("no changes to apply", "dir", dir)
	} else {
		if res := tf.Apply(ctx); !res.Succeeded() {
			o.alertMergeFailure(ctx, dir, "apply", res)
			return toolError("terraform apply", res)
		}
		o.log.Info("apply completed",
			"dir", dir,
			"add", summary.Add, "change", summary.Change, "destroy", summary.Destroy,
		)
	}

	if o.cfg.Cost.Enabled {
		if err := o.mergeCost(ctx, dir); err != nil {
			o.log.Warn("cost artifact refresh failed, continuing", "error", err)
		}
	}

	return nil
}

// mergeCost writes the post-merge cost artifacts: the delta against the
// previous baseline for the rollup to pick up, and the fresh snapshot as the
// next baseline.
func (o *Orchestrator) mergeCost(ctx context.Context, dir string) error {
	newSnap, _, err := o.breakdown(ctx, dir, o.cfg.Cost.Currency, o.cfg.Cost.Timeout())
	if err != nil {
		return err
	}
	if err := cost.WriteSnapshot(filepath.Join(dir, cost.NewArtifact), newSnap); err != nil {
		return err
	}

	baseline, err := cost.ReadSnapshot(filepath.Join(dir, cost.BaselineArtifact))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		baseline = cost.Snapshot{Currency: newSnap.Currency}
	}

	delta, err := cost.Diff(baseline, newSnap, dir)
	if err != nil {
		return err
	}
	o.deltaAbsolute = delta.Absolute

	if err := cost.WriteDelta(filepath.Join(dir, cost.DeltaArtifact), delta); err != nil {
		return err
	}
	// The new snapshot becomes the baseline for subsequent PRs.
	return cost.WriteSnapshot(filepath.Join(dir, cost.BaselineArtifact), newSnap)
}

func (o *Orchestrator) alertMergeFailure(ctx context.Context, dir, stage string, res runner.Result) {
	text := report.MergeFailureSlackText(dir, stage, failureCause(res), o.cfg.GitHub.RunURL())
	msg := slack.NewAlertMessage(fmt.Sprintf("Terraform %s failed for %s", stage, dir), text, slack.ColorDanger)
	status, err := o.notifier.Notify(ctx, msg, slack.TriggerMergeFailure)
	if err != nil {
		o.log.Warn("failed to send merge failure alert", "error", err)
		return
	}
	o.log.Info("merge failure alert", "stage", stage, "status", status)
}
