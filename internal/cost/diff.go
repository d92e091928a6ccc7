package cost

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrCurrencyMismatch is returned when two snapshots disagree on currency.
// There is no silent coercion between currencies.
var ErrCurrencyMismatch = errors.New("snapshot currency mismatch")

// Diff computes the structured delta between a baseline and a new snapshot.
//
// Per-resource deltas cover the union of resource addresses: an address
// present only in the new snapshot is an addition (baseline cost 0), one
// present only in the baseline is a removal (new cost 0). The resource list
// is sorted by absolute delta magnitude descending for reporting.
func Diff(baseline, new Snapshot, folder string) (Delta, error) {
	if baseline.Currency != "" && new.Currency != "" && baseline.Currency != new.Currency {
		return Delta{}, fmt.Errorf("%w: baseline %s, new %s", ErrCurrencyMismatch, baseline.Currency, new.Currency)
	}

	currency := new.Currency
	if currency == "" {
		currency = baseline.Currency
	}

	delta := Delta{
		Folder:        folder,
		Currency:      currency,
		BaselineTotal: baseline.Total,
		NewTotal:      new.Total,
		// The invariant callers rely on: absolute delta is exactly the
		// difference of the snapshot totals, never recomputed from the
		// per-resource list.
		Absolute: new.Total - baseline.Total,
	}

	delta.Percent, delta.PercentKind = percentChange(baseline.Total, new.Total)
	delta.Resources = resourceDeltas(baseline, new)

	return delta, nil
}

func percentChange(baseline, new float64) (float64, PercentKind) {
	if baseline == 0 {
		if new == 0 {
			return 0, PercentNumeric
		}
		return 0, PercentNew
	}
	return (new - baseline) / baseline * 100, PercentNumeric
}

func resourceDeltas(baseline, new Snapshot) []ResourceDelta {
	baseCosts := make(map[string]float64, len(baseline.Resources))
	for _, r := range baseline.Resources {
		baseCosts[r.Address] += r.MonthlyCost
	}
	newCosts := make(map[string]float64, len(new.Resources))
	for _, r := range new.Resources {
		newCosts[r.Address] += r.MonthlyCost
	}

	addresses := make(map[string]struct{}, len(baseCosts)+len(newCosts))
	for a := range baseCosts {
		addresses[a] = struct{}{}
	}
	for a := range newCosts {
		addresses[a] = struct{}{}
	}

	deltas := make([]ResourceDelta, 0, len(addresses))
	for a := range addresses {
		deltas = append(deltas, ResourceDelta{
			Address:  a,
			Baseline: baseCosts[a],
			New:      newCosts[a],
			Absolute: newCosts[a] - baseCosts[a],
		})
	}

	sort.Slice(deltas, func(i, j int) bool {
		mi, mj := math.Abs(deltas[i].Absolute), math.Abs(deltas[j].Absolute)
		if mi != mj {
			return mi > mj
		}
		return deltas[i].Address < deltas[j].Address
	})

	return deltas
}
