package cost

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseBreakdown(t *testing.T) {
	data := []byte(`{
		"currency": "USD",
		"totalMonthlyCost": "123.45",
		"projects": [{
			"breakdown": {
				"resources": [
					{"name": "aws_instance.web", "monthlyCost": "100.45"},
					{"name": "aws_s3_bucket.logs", "monthlyCost": "23.00"},
					{"name": "aws_lambda_function.cron", "monthlyCost": ""}
				]
			}
		}]
	}`)

	snap, err := ParseBreakdown(data)
	if err != nil {
		t.Fatalf("ParseBreakdown() error = %v", err)
	}
	if snap.Currency != "USD" {
		t.Errorf("Currency = %s, want USD", snap.Currency)
	}
	if snap.Total != 123.45 {
		t.Errorf("Total = %v, want 123.45", snap.Total)
	}
	if len(snap.Resources) != 3 {
		t.Fatalf("len(Resources) = %d, want 3", len(snap.Resources))
	}
	// Usage-based resources with no price count as zero.
	if snap.Resources[2].MonthlyCost != 0 {
		t.Errorf("usage-based resource cost = %v, want 0", snap.Resources[2].MonthlyCost)
	}
}

func TestParseBreakdownMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "plan output leaked into stdout"},
		{"bad total", `{"currency":"USD","totalMonthlyCost":"many"}`},
		{"bad resource cost", `{"currency":"USD","totalMonthlyCost":"1","projects":[{"breakdown":{"resources":[{"name":"r","monthlyCost":"x"}]}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseBreakdown([]byte(tt.data)); err == nil {
				t.Error("ParseBreakdown() error = nil, want error")
			}
		})
	}
}

// stubInfracost puts a fake infracost binary on PATH running the given
// shell script body.
func stubInfracost(t *testing.T, script string) {
	t.Helper()
	binDir := t.TempDir()
	path := filepath.Join(binDir, "infracost")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestBreakdownIgnoresStderrLogLines(t *testing.T) {
	stubInfracost(t, `echo "INFO Autodetected 1 Terraform project" >&2
echo "WARN Usage file not found" >&2
echo '{"currency":"USD","totalMonthlyCost":"42.00","projects":[{"breakdown":{"resources":[{"name":"aws_instance.web","monthlyCost":"42.00"}]}}]}'`)

	snap, res, err := Breakdown(context.Background(), t.TempDir(), "USD", time.Minute)
	if err != nil {
		t.Fatalf("Breakdown: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("expected success, got %+v", res)
	}
	if snap.Total != 42 {
		t.Errorf("Total = %v, want 42", snap.Total)
	}
	if len(snap.Resources) != 1 || snap.Resources[0].Address != "aws_instance.web" {
		t.Errorf("unexpected resources: %+v", snap.Resources)
	}
	// Log lines still land in the combined output for failure reporting.
	if !strings.Contains(res.Output, "Autodetected") {
		t.Errorf("combined output missing stderr logs: %q", res.Output)
	}
}

func TestBreakdownFailure(t *testing.T) {
	stubInfracost(t, `echo "Error: invalid API key" >&2
exit 1`)

	_, res, err := Breakdown(context.Background(), t.TempDir(), "USD", time.Minute)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(res.Output, "invalid API key") {
		t.Errorf("output not captured: %q", res.Output)
	}
}
