package terraform

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// stubTerraform puts a fake terraform binary on PATH that runs the given
// shell script body with the subcommand as $1.
func stubTerraform(t *testing.T, script string) {
	t.Helper()
	binDir := t.TempDir()
	path := filepath.Join(binDir, "terraform")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestPlanWithChanges(t *testing.T) {
	stubTerraform(t, `case "$1" in
plan)
  echo "Plan: 2 to add, 1 to change, 0 to destroy."
  exit 2 ;;
show)
  echo "Terraform used the selected providers to generate the following execution"
  echo "  + aws_sqs_queue.events"
  exit 0 ;;
*)
  exit 0 ;;
esac`)

	dir := t.TempDir()
	cli := New(dir, time.Minute)

	summary, res, err := cli.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !res.Succeeded() {
		t.Errorf("exit 2 should be reclassified as success, got %+v", res)
	}
	if !summary.HasChanges {
		t.Error("expected HasChanges for exit code 2")
	}
	if summary.Add != 2 || summary.Change != 1 || summary.Destroy != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/1/0", summary.Add, summary.Change, summary.Destroy)
	}
	if !strings.Contains(summary.Detail, "aws_sqs_queue.events") {
		t.Errorf("detail missing plan body: %q", summary.Detail)
	}

	detail, err := os.ReadFile(filepath.Join(dir, PlanDetailFile))
	if err != nil {
		t.Fatalf("plan detail file not written: %v", err)
	}
	if !strings.Contains(string(detail), "aws_sqs_queue.events") {
		t.Errorf("detail file missing plan body: %q", detail)
	}
}

func TestPlanNoChanges(t *testing.T) {
	stubTerraform(t, `case "$1" in
plan)
  echo "No changes. Your infrastructure matches the configuration."
  exit 0 ;;
*)
  exit 0 ;;
esac`)

	cli := New(t.TempDir(), time.Minute)
	summary, res, err := cli.Plan(context.Background())
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !res.Succeeded() {
		t.Errorf("expected success, got %+v", res)
	}
	if summary.HasChanges {
		t.Error("expected no changes for exit code 0")
	}
	if summary.Add != 0 || summary.Change != 0 || summary.Destroy != 0 {
		t.Errorf("counts = %d/%d/%d, want all zero", summary.Add, summary.Change, summary.Destroy)
	}
}

func TestPlanFailure(t *testing.T) {
	stubTerraform(t, `echo "Error: Invalid resource type" >&2
exit 1`)

	cli := New(t.TempDir(), time.Minute)
	_, res, err := cli.Plan(context.Background())
	if err == nil {
		t.Fatal("expected error for exit code 1")
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(res.Output, "Invalid resource type") {
		t.Errorf("output not captured: %q", res.Output)
	}
}

func TestPlanShowFailureDegrades(t *testing.T) {
	stubTerraform(t, `case "$1" in
plan)
  echo "Plan: 1 to add, 0 to change, 0 to destroy."
  exit 2 ;;
show)
  exit 1 ;;
*)
  exit 0 ;;
esac`)

	cli := New(t.TempDir(), time.Minute)
	summary, _, err := cli.Plan(context.Background())
	if err != nil {
		t.Fatalf("show failure must not fail the plan step: %v", err)
	}
	if summary.Detail != "" {
		t.Errorf("expected empty detail when show fails, got %q", summary.Detail)
	}
	if summary.Add != 1 {
		t.Errorf("counts lost: %+v", summary)
	}
}

func TestApplyUsesSavedPlanFile(t *testing.T) {
	dir := t.TempDir()
	stubTerraform(t, `echo "args: $@"
exit 0`)
	if err := os.WriteFile(filepath.Join(dir, PlanFile), []byte("binary plan"), 0644); err != nil {
		t.Fatal(err)
	}

	cli := New(dir, time.Minute)
	res := cli.Apply(context.Background())
	if !res.Succeeded() {
		t.Fatalf("Apply: %+v", res)
	}
	if !strings.Contains(res.Output, PlanFile) {
		t.Errorf("apply should consume the saved plan file, args were %q", res.Output)
	}
}

func TestApplyWithoutPlanFile(t *testing.T) {
	stubTerraform(t, `echo "args: $@"
exit 0`)

	cli := New(t.TempDir(), time.Minute)
	res := cli.Apply(context.Background())
	if !res.Succeeded() {
		t.Fatalf("Apply: %+v", res)
	}
	if strings.Contains(res.Output, PlanFile) {
		t.Errorf("no plan file present, args should not name one: %q", res.Output)
	}
	if !strings.Contains(res.Output, "-auto-approve") {
		t.Errorf("direct apply must be auto-approved: %q", res.Output)
	}
}
