package orchestrator

import (
	"context"
	"path/filepath"

	"github.com/tfci-io/tfci/internal/adapters/slack"
	"github.com/tfci-io/tfci/internal/cost"
	"github.com/tfci-io/tfci/internal/report"
)

// runRollup aggregates the per-folder cost deltas under RollupDir into a
// single rollup artifact and posts the summary to Slack.
func (o *Orchestrator) runRollup(ctx context.Context) error {
	rollup, err := cost.Aggregate(o.cfg.RollupDir)
	if err != nil {
		return err
	}
	o.deltaAbsolute = rollup.GrandTotalAbsolute

	for _, skipped := range rollup.Skipped {
		o.log.Warn("folder skipped in rollup", "folder", skipped.Folder, "reason", skipped.Reason)
	}
	o.log.Info("rollup aggregated",
		"folders", len(rollup.Deltas),
		"non_zero", rollup.NonZeroCount,
		"grand_total", rollup.GrandTotalAbsolute,
	)

	path := filepath.Join(o.cfg.RollupDir, cost.RollupArtifact)
	if err := cost.WriteRollup(path, rollup); err != nil {
		return err
	}

	text := report.RollupSlackText(rollup, o.cfg.GitHub.RunURL())
	status, err := o.notifier.Notify(ctx, slack.NewBlockMessage(text), slack.TriggerRollupSuccess)
	if err != nil {
		o.log.Warn("failed to send rollup notification", "error", err)
		return nil
	}
	o.log.Info("rollup notification", "status", status)
	return nil
}
