package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tfci-io/tfci/internal/config"
	"github.com/tfci-io/tfci/internal/history"
	"github.com/tfci-io/tfci/internal/logging"
	"github.com/tfci-io/tfci/internal/orchestrator"
	"github.com/tfci-io/tfci/internal/schedule"
)

var configPath string

// loadConfig builds the effective configuration for one invocation and
// initializes logging from it.
func loadConfig(mode config.Mode, dir string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if dir != "" {
		if mode == config.ModeRollup {
			cfg.RollupDir = dir
		} else {
			cfg.WorkingDir = dir
		}
	}
	if err := logging.Init(cfg.Logging); err != nil {
		return nil, err
	}
	logging.Debug("configuration loaded", "path", configPath, "mode", cfg.Mode)
	return cfg, nil
}

func runMode(cmd *cobra.Command, mode config.Mode, dir string) error {
	cfg, err := loadConfig(mode, dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg)
	defer orch.Close()
	return orch.Run(ctx)
}

func newPRCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "pr",
		Short: "Validate a pull request: fmt, validate, lint, plan, cost diff",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, config.ModePR, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "terraform working directory (default from config)")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Deploy a merged change: plan, apply, refresh cost artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, config.ModeMerge, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "terraform working directory (default from config)")
	return cmd
}

func newRollupCmd() *cobra.Command {
	var dir string
	var cronSpec string
	var timezone string
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Aggregate per-folder cost deltas into one summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cronSpec == "" {
				return runMode(cmd, config.ModeRollup, dir)
			}
			return runScheduledRollup(cmd, dir, cronSpec, timezone)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory containing per-folder delta artifacts")
	cmd.Flags().StringVar(&cronSpec, "schedule", "", "cron spec; run the rollup on a schedule instead of once")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "timezone for the schedule")
	return cmd
}

// runScheduledRollup keeps the process alive and re-runs the rollup on the
// given cron spec until interrupted. Each tick is a full run with a fresh
// run ID; a failing tick is logged, not fatal to the daemon.
func runScheduledRollup(cmd *cobra.Command, dir, cronSpec, timezone string) error {
	cfg, err := loadConfig(config.ModeRollup, dir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg)
	defer orch.Close()

	scheduler := schedule.NewScheduler(cronSpec, timezone, func(ctx context.Context) error {
		cfg.RunID = uuid.New().String()
		return orch.Run(ctx)
	}, logging.Logger())
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	logging.Info("rollup daemon running", "schedule", cronSpec, "next_run", scheduler.NextRun())

	<-ctx.Done()
	scheduler.Stop()
	logging.Info("rollup daemon stopped")
	return nil
}

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the local history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return err
			}

			store, err := history.NewStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func printRuns(runs []history.Run) {
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return
	}
	fmt.Printf("%-36s  %-7s  %-20s  %-8s  %10s  %8s  %s\n",
		"RUN", "MODE", "FOLDER", "OUTCOME", "DELTA", "TOOK", "WHEN")
	for _, run := range runs {
		fmt.Printf("%-36s  %-7s  %-20s  %-8s  %10s  %8s  %s\n",
			run.ID,
			run.Mode,
			run.Folder,
			run.Outcome,
			fmt.Sprintf("%+.2f", run.DeltaAbsolute),
			run.Duration.Round(time.Millisecond),
			run.CreatedAt.Format(time.RFC3339),
		)
	}
}
