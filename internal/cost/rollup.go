package cost

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNoData is returned when a rollup finds no readable delta artifact at
// all. A partial rollup is fine; an empty one has nothing to report.
var ErrNoData = errors.New("no readable cost delta artifacts")

// Aggregate scans dir for per-folder delta artifacts and combines them.
//
// Folders are visited in lexicographic order so identical inputs produce
// byte-identical reports. A folder whose artifact is missing or malformed is
// skipped and recorded, not fatal; zero readable folders is fatal.
func Aggregate(dir string) (Rollup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Rollup{}, fmt.Errorf("failed to read rollup input directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var rollup Rollup
	for _, name := range names {
		path := filepath.Join(dir, name, DeltaArtifact)
		delta, err := ReadDelta(path)
		if err != nil {
			rollup.Skipped = append(rollup.Skipped, SkippedFolder{
				Folder: name,
				Reason: skipReason(err),
			})
			continue
		}
		if delta.Folder == "" {
			delta.Folder = name
		}
		rollup.Deltas = append(rollup.Deltas, delta)
	}

	if len(rollup.Deltas) == 0 {
		return rollup, fmt.Errorf("%w in %s", ErrNoData, dir)
	}

	var baselineSum float64
	for _, d := range rollup.Deltas {
		rollup.GrandTotalAbsolute += d.Absolute
		baselineSum += d.BaselineTotal
		if !d.IsZero() {
			rollup.NonZeroCount++
		}
		if rollup.Currency == "" {
			rollup.Currency = d.Currency
		}
	}

	// Weighted by baseline totals, not a naive average of percentages.
	if baselineSum == 0 {
		rollup.PercentKind = PercentNone
	} else {
		rollup.PercentKind = PercentNumeric
		rollup.GrandTotalPercent = rollup.GrandTotalAbsolute / baselineSum * 100
	}

	return rollup, nil
}

func skipReason(err error) string {
	if os.IsNotExist(err) {
		return "no delta artifact"
	}
	return err.Error()
}
