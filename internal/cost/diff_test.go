package cost

import (
	"errors"
	"math"
	"testing"
)

func TestDiffAbsoluteIsExactTotalDifference(t *testing.T) {
	tests := []struct {
		name     string
		baseline float64
		newTotal float64
		want     float64
	}{
		{"increase", 100.00, 125.50, 25.50},
		{"decrease", 80.00, 60.00, -20.00},
		{"equal", 100.00, 100.00, 0},
		{"both zero", 0, 0, 0},
		{"fractional", 10.10, 10.35, 10.35 - 10.10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delta, err := Diff(
				Snapshot{Currency: "USD", Total: tt.baseline},
				Snapshot{Currency: "USD", Total: tt.newTotal},
				"infra/app",
			)
			if err != nil {
				t.Fatalf("Diff() error = %v", err)
			}
			if delta.Absolute != tt.newTotal-tt.baseline {
				t.Errorf("Absolute = %v, want exactly %v", delta.Absolute, tt.newTotal-tt.baseline)
			}
			if delta.Absolute != tt.want {
				t.Errorf("Absolute = %v, want %v", delta.Absolute, tt.want)
			}
		})
	}
}

func TestDiffZeroDelta(t *testing.T) {
	delta, err := Diff(
		Snapshot{Currency: "USD", Total: 100.00},
		Snapshot{Currency: "USD", Total: 100.00},
		"infra/app",
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if delta.Absolute != 0 {
		t.Errorf("Absolute = %v, want 0", delta.Absolute)
	}
	if delta.Percent != 0 || delta.PercentKind != PercentNumeric {
		t.Errorf("Percent = %v (%s), want 0 (numeric)", delta.Percent, delta.PercentKind)
	}
	if !delta.IsZero() {
		t.Error("IsZero() = false, want true")
	}
}

func TestDiffNewCostFromZeroBaseline(t *testing.T) {
	delta, err := Diff(
		Snapshot{Currency: "USD", Total: 0},
		Snapshot{Currency: "USD", Total: 25.00},
		"infra/app",
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if delta.Absolute != 25.00 {
		t.Errorf("Absolute = %v, want 25.00", delta.Absolute)
	}
	if delta.PercentKind != PercentNew {
		t.Errorf("PercentKind = %s, want %s", delta.PercentKind, PercentNew)
	}
	if math.IsInf(delta.Percent, 0) || math.IsNaN(delta.Percent) {
		t.Errorf("Percent = %v, must never be infinite or NaN", delta.Percent)
	}
}

func TestDiffCurrencyMismatch(t *testing.T) {
	_, err := Diff(
		Snapshot{Currency: "USD", Total: 10},
		Snapshot{Currency: "EUR", Total: 10},
		"infra/app",
	)
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("Diff() error = %v, want ErrCurrencyMismatch", err)
	}
}

func TestDiffResourceUnion(t *testing.T) {
	baseline := Snapshot{
		Currency: "USD",
		Total:    30,
		Resources: []Resource{
			{Address: "aws_instance.web", MonthlyCost: 20},
			{Address: "aws_s3_bucket.logs", MonthlyCost: 10},
		},
	}
	newSnap := Snapshot{
		Currency: "USD",
		Total:    65,
		Resources: []Resource{
			{Address: "aws_instance.web", MonthlyCost: 25},
			{Address: "aws_rds_cluster.db", MonthlyCost: 40},
		},
	}

	delta, err := Diff(baseline, newSnap, "infra/app")
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(delta.Resources) != 3 {
		t.Fatalf("len(Resources) = %d, want 3 (union of addresses)", len(delta.Resources))
	}

	// Sorted by |delta| descending: rds +40, s3 -10, web +5.
	wantOrder := []string{"aws_rds_cluster.db", "aws_s3_bucket.logs", "aws_instance.web"}
	for i, want := range wantOrder {
		if delta.Resources[i].Address != want {
			t.Errorf("Resources[%d] = %s, want %s", i, delta.Resources[i].Address, want)
		}
	}

	byAddr := map[string]ResourceDelta{}
	for _, r := range delta.Resources {
		byAddr[r.Address] = r
	}
	if r := byAddr["aws_rds_cluster.db"]; r.Baseline != 0 || r.Absolute != 40 {
		t.Errorf("addition delta = %+v, want baseline 0, absolute 40", r)
	}
	if r := byAddr["aws_s3_bucket.logs"]; r.New != 0 || r.Absolute != -10 {
		t.Errorf("removal delta = %+v, want new 0, absolute -10", r)
	}
}

func TestDiffPercentNumeric(t *testing.T) {
	delta, err := Diff(
		Snapshot{Currency: "USD", Total: 200},
		Snapshot{Currency: "USD", Total: 250},
		"infra/app",
	)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if delta.PercentKind != PercentNumeric || delta.Percent != 25 {
		t.Errorf("Percent = %v (%s), want 25 (numeric)", delta.Percent, delta.PercentKind)
	}
}

func TestIsZeroUsesRoundedValue(t *testing.T) {
	// A residue below half a cent displays as 0.00, so it counts as zero.
	d := Delta{Absolute: 0.004}
	if !d.IsZero() {
		t.Error("IsZero() = false for 0.004, want true (rounds to 0.00)")
	}
	d = Delta{Absolute: 0.01}
	if d.IsZero() {
		t.Error("IsZero() = true for 0.01, want false")
	}
}
