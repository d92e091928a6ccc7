// Package cost computes cost deltas between infracost snapshots and
// aggregates per-folder deltas into rollup reports.
package cost

import "math"

// Snapshot is a point-in-time cost estimate for one working directory.
type Snapshot struct {
	Currency  string     `json:"currency"`
	Total     float64    `json:"total_monthly_cost"`
	Resources []Resource `json:"resources"`
}

// Resource is a single costed resource within a snapshot.
type Resource struct {
	Address     string  `json:"address"`
	MonthlyCost float64 `json:"monthly_cost"`
}

// PercentKind states how a percentage change should be read.
type PercentKind string

const (
	// PercentNumeric means Percent carries a meaningful value.
	PercentNumeric PercentKind = "numeric"
	// PercentNew means the baseline was zero and new cost appeared; there
	// is no meaningful percentage, report "new cost" instead.
	PercentNew PercentKind = "new"
	// PercentNone means no percentage applies (both totals zero, or a
	// rollup whose baseline sum is zero).
	PercentNone PercentKind = "none"
)

// ResourceDelta is the change for a single resource address.
type ResourceDelta struct {
	Address  string  `json:"address"`
	Baseline float64 `json:"baseline_monthly_cost"`
	New      float64 `json:"new_monthly_cost"`
	Absolute float64 `json:"absolute"`
}

// Delta is the computed difference between two snapshots of one folder.
type Delta struct {
	Folder        string          `json:"folder"`
	Currency      string          `json:"currency"`
	BaselineTotal float64         `json:"baseline_total"`
	NewTotal      float64         `json:"new_total"`
	Absolute      float64         `json:"absolute"`
	Percent       float64         `json:"percent"`
	PercentKind   PercentKind     `json:"percent_kind"`
	Resources     []ResourceDelta `json:"resources"`
}

// IsZero reports whether the delta is zero once rounded to the two decimal
// places the published comment displays. A sub-cent residue reads as zero
// to a reviewer, so it silent-skips like an exact zero.
func (d Delta) IsZero() bool {
	return round2(d.Absolute) == 0
}

// Rollup aggregates per-folder deltas into one report.
type Rollup struct {
	Currency           string          `json:"currency"`
	Deltas             []Delta         `json:"deltas"`
	GrandTotalAbsolute float64         `json:"grand_total_absolute"`
	GrandTotalPercent  float64         `json:"grand_total_percent"`
	PercentKind        PercentKind     `json:"percent_kind"`
	NonZeroCount       int             `json:"non_zero_count"`
	Skipped            []SkippedFolder `json:"skipped,omitempty"`
}

// SkippedFolder records a folder whose artifact could not be read.
type SkippedFolder struct {
	Folder string `json:"folder"`
	Reason string `json:"reason"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
