// Package orchestrator sequences the configured checks for one invocation:
// terraform, tflint and infracost runs, PR comment publication, Slack
// notifications and run-history recording, per the selected mode.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tfci-io/tfci/internal/adapters/github"
	"github.com/tfci-io/tfci/internal/adapters/slack"
	"github.com/tfci-io/tfci/internal/config"
	"github.com/tfci-io/tfci/internal/cost"
	"github.com/tfci-io/tfci/internal/history"
	"github.com/tfci-io/tfci/internal/logging"
	"github.com/tfci-io/tfci/internal/report"
	"github.com/tfci-io/tfci/internal/runner"
	"github.com/tfci-io/tfci/internal/terraform"
	"github.com/tfci-io/tfci/internal/tflint"
)

// ErrToolFailure marks a mandatory tool invocation that did not succeed.
var ErrToolFailure = errors.New("tool execution failed")

type terraformCLI interface {
	Init(ctx context.Context) runner.Result
	FmtCheck(ctx context.Context) runner.Result
	Validate(ctx context.Context) runner.Result
	Plan(ctx context.Context) (*terraform.PlanSummary, runner.Result, error)
	Apply(ctx context.Context) runner.Result
}

type lintFunc func(ctx context.Context, dir string, timeout time.Duration) (*tflint.Report, runner.Result, error)

type breakdownFunc func(ctx context.Context, dir, currency string, timeout time.Duration) (cost.Snapshot, runner.Result, error)

// commentPublisher is the marker-comment surface of github.Manager.
type commentPublisher interface {
	Publish(ctx context.Context, id github.Identity, body string, policy github.Policy) (github.Action, error)
}

type slackNotifier interface {
	Notify(ctx context.Context, msg *slack.Message, trigger slack.Trigger) (slack.Status, error)
}

type runRecorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Orchestrator runs one mode end to end. Steps are strictly sequential;
// reporting-channel failures (comments, Slack, history) never change the
// run outcome.
type Orchestrator struct {
	cfg *config.Config
	log *slog.Logger

	newTerraform func(dir string) terraformCLI
	runLint      lintFunc
	breakdown    breakdownFunc
	newPublisher func(ctx context.Context) (commentPublisher, error)
	notifier     slackNotifier
	recorder     runRecorder
	store        *history.Store

	// deltaAbsolute is captured by the cost steps for the history record.
	deltaAbsolute float64
}

// New wires an orchestrator with the real tool and API collaborators.
func New(cfg *config.Config) *Orchestrator {
	o := &Orchestrator{
		cfg: cfg,
		log: logging.WithComponent("orchestrator"),
		newTerraform: func(dir string) terraformCLI {
			return terraform.New(dir, cfg.Terraform.Timeout())
		},
		runLint:   tflint.Run,
		breakdown: cost.Breakdown,
		notifier:  slack.NewNotifier(cfg.Slack),
	}
	o.newPublisher = o.resolvePublisher

	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.Path)
		if err != nil {
			o.log.Warn("run history disabled", "error", err)
		} else {
			o.store = store
			o.recorder = store
		}
	}
	return o
}

// Run executes the configured mode and returns its outcome. The caller maps
// a non-nil error to a failing exit status.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	log := logging.WithRun(o.cfg.RunID)
	log.Info("run started", "mode", o.cfg.Mode, "dir", o.cfg.WorkingDir)

	start := time.Now()
	var err error
	switch o.cfg.Mode {
	case config.ModePR:
		err = o.runPR(ctx)
	case config.ModeMerge:
		err = o.runMerge(ctx)
	case config.ModeRollup:
		err = o.runRollup(ctx)
	default:
		err = fmt.Errorf("%w: unknown mode %q", config.ErrConfiguration, o.cfg.Mode)
	}

	o.record(ctx, err, time.Since(start))
	if err != nil {
		log.Error("run failed", "error", err, "duration", time.Since(start))
	} else {
		log.Info("run completed", "duration", time.Since(start))
	}
	return err
}

// Close releases the history store, if one was opened.
func (o *Orchestrator) Close() error {
	if o.store != nil {
		return o.store.Close()
	}
	return nil
}

// resolvePublisher builds a comment manager for the PR this run targets.
// A nil publisher with nil error means there is no PR to comment on.
func (o *Orchestrator) resolvePublisher(ctx context.Context) (commentPublisher, error) {
	gh := o.cfg.GitHub
	if gh.Token == "" || gh.Repository == "" {
		return nil, nil
	}
	client := github.NewClient(gh.Token)
	if gh.APIURL != "" {
		// GitHub Enterprise, or a test server.
		client = github.NewClientWithBaseURL(gh.Token, gh.APIURL)
	}
	number, err := github.ResolvePRNumber(ctx, client, gh)
	if err != nil {
		return nil, err
	}
	if number == 0 {
		return nil, nil
	}
	return github.NewManager(client, gh.Owner(), gh.Repo(), number), nil
}

func (o *Orchestrator) meta() report.Meta {
	gh := o.cfg.GitHub
	return report.Meta{
		Actor:      gh.Actor,
		WorkingDir: o.cfg.WorkingDir,
		Event:      gh.EventName,
		Workflow:   gh.Workflow,
		RunURL:     gh.RunURL(),
		CommitURL:  gh.CommitURL(),
		SHA:        gh.SHA,
	}
}

// publish sends a comment through the publisher, logging instead of failing
// when there is no PR target or the API rejects the write.
func (o *Orchestrator) publish(ctx context.Context, pub commentPublisher, id github.Identity, body string, policy github.Policy) {
	if pub == nil {
		o.log.Debug("no pull request target, comment skipped", "kind", id.Kind, "folder", id.Folder)
		return
	}
	action, err := pub.Publish(ctx, id, body, policy)
	if err != nil {
		o.log.Warn("comment publication failed", "kind", id.Kind, "folder", id.Folder, "error", err)
		return
	}
	o.log.Info("comment published", "kind", id.Kind, "folder", id.Folder, "action", action)
}

func (o *Orchestrator) publishFailure(ctx context.Context, pub commentPublisher, kind github.Kind, stage string, res runner.Result) {
	body := report.FailureComment(stage, failureCause(res), res.Output, o.meta())
	o.publish(ctx, pub, github.Identity{Kind: kind, Folder: o.cfg.WorkingDir}, body, github.Policy{})
}

func (o *Orchestrator) record(ctx context.Context, runErr error, elapsed time.Duration) {
	if o.recorder == nil {
		return
	}
	run := history.Run{
		ID:            o.cfg.RunID,
		Mode:          string(o.cfg.Mode),
		Folder:        o.cfg.WorkingDir,
		Outcome:       "success",
		DeltaAbsolute: o.deltaAbsolute,
		Duration:      elapsed,
	}
	if o.cfg.Mode == config.ModeRollup {
		run.Folder = o.cfg.RollupDir
	}
	if runErr != nil {
		run.Outcome = "failure"
		run.Detail = runErr.Error()
	}
	if err := o.recorder.Record(ctx, run); err != nil {
		o.log.Warn("failed to record run", "error", err)
	}
}

func failureCause(res runner.Result) string {
	if res.TimedOut {
		return fmt.Sprintf("timed out after %s", res.Duration.Round(time.Second))
	}
	return fmt.Sprintf("exit code %d", res.ExitCode)
}

func toolError(tool string, res runner.Result) error {
	return fmt.Errorf("%w: %s (%s)", ErrToolFailure, tool, failureCause(res))
}
