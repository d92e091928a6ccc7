package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tfci-io/tfci/internal/runner"
)

// breakdownOutput mirrors the slice of `infracost breakdown --format json`
// output this tool consumes. The pricing computation itself stays inside
// infracost.
type breakdownOutput struct {
	Currency         string `json:"currency"`
	TotalMonthlyCost string `json:"totalMonthlyCost"`
	Projects         []struct {
		Breakdown struct {
			Resources []struct {
				Name        string `json:"name"`
				MonthlyCost string `json:"monthlyCost"`
			} `json:"resources"`
		} `json:"breakdown"`
	} `json:"projects"`
}

// Breakdown runs infracost against dir and returns the parsed snapshot.
func Breakdown(ctx context.Context, dir, currency string, timeout time.Duration) (Snapshot, runner.Result, error) {
	args := []string{"breakdown", "--path", ".", "--format", "json", "--no-color"}
	if currency != "" {
		args = append(args, "--currency", currency)
	}

	result := runner.Execute(ctx, runner.Spec{
		Tool:    "infracost",
		Command: "infracost",
		Args:    args,
		Dir:     dir,
		Timeout: timeout,
	})
	if !result.Succeeded() {
		return Snapshot{}, result, fmt.Errorf("infracost breakdown failed (exit %d)", result.ExitCode)
	}

	// infracost logs to stderr in non-TTY runs; only stdout is the JSON
	// document.
	snap, err := ParseBreakdown([]byte(result.Stdout))
	if err != nil {
		return Snapshot{}, result, err
	}
	return snap, result, nil
}

// ParseBreakdown converts infracost JSON output into a Snapshot.
func ParseBreakdown(data []byte) (Snapshot, error) {
	var out breakdownOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Snapshot{}, fmt.Errorf("malformed infracost output: %w", err)
	}

	snap := Snapshot{Currency: out.Currency}

	total, err := parseCost(out.TotalMonthlyCost)
	if err != nil {
		return Snapshot{}, fmt.Errorf("malformed infracost total: %w", err)
	}
	snap.Total = total

	for _, p := range out.Projects {
		for _, r := range p.Breakdown.Resources {
			cost, err := parseCost(r.MonthlyCost)
			if err != nil {
				return Snapshot{}, fmt.Errorf("malformed cost for %s: %w", r.Name, err)
			}
			snap.Resources = append(snap.Resources, Resource{
				Address:     r.Name,
				MonthlyCost: cost,
			})
		}
	}

	return snap, nil
}

// parseCost handles infracost's string-encoded costs. Usage-based resources
// report null, which unmarshals to "" and counts as zero.
func parseCost(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
