package report

import (
	"fmt"
	"strings"

	"github.com/tfci-io/tfci/internal/cost"
)

// maxCostRows caps the per-resource table in the cost comment.
const maxCostRows = 50

// CostComment renders the PR comment body for a cost delta.
func CostComment(delta cost.Delta, title string, m Meta) string {
	if title == "" {
		title = "💰 Monthly Cost Estimate"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s for `%s`\n\n", title, m.WorkingDir)

	b.WriteString("| | Monthly cost |\n| :--- | ---: |\n")
	fmt.Fprintf(&b, "| Baseline | %s |\n", FormatMoney(delta.Currency, delta.BaselineTotal))
	fmt.Fprintf(&b, "| New | %s |\n", FormatMoney(delta.Currency, delta.NewTotal))
	fmt.Fprintf(&b, "| **Delta** | **%s (%s)** |\n\n",
		FormatSignedMoney(delta.Currency, delta.Absolute),
		FormatPercent(delta.Percent, delta.PercentKind))

	if delta.IsZero() {
		b.WriteString("No cost impact from this change.\n\n")
	}

	if len(delta.Resources) > 0 {
		b.WriteString(details("📖 Per-resource breakdown (Click me)", resourceTable(delta)))
	}
	b.WriteString(Footer(m))
	return b.String()
}

func resourceTable(delta cost.Delta) string {
	var b strings.Builder
	b.WriteString("| Resource | Baseline | New | Delta |\n| :--- | ---: | ---: | ---: |\n")

	truncated := false
	for i, r := range delta.Resources {
		if i >= maxCostRows {
			truncated = true
			break
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | %s |\n",
			r.Address,
			FormatMoney(delta.Currency, r.Baseline),
			FormatMoney(delta.Currency, r.New),
			FormatSignedMoney(delta.Currency, r.Absolute))
	}
	if truncated {
		fmt.Fprintf(&b, "\n_Showing the %d largest changes of %d resources._\n", maxCostRows, len(delta.Resources))
	}
	return b.String()
}

// RollupSlackText renders the Slack mrkdwn body for a completed rollup.
func RollupSlackText(r cost.Rollup, runURL string) string {
	var b strings.Builder
	b.WriteString("📊 *Terraform cost rollup*\n")
	fmt.Fprintf(&b, "Grand total delta: *%s* (%s) across %d folder(s), %d with changes.\n",
		FormatSignedMoney(r.Currency, r.GrandTotalAbsolute),
		FormatPercent(r.GrandTotalPercent, r.PercentKind),
		len(r.Deltas), r.NonZeroCount)

	for _, d := range r.Deltas {
		if d.IsZero() {
			continue
		}
		fmt.Fprintf(&b, "• `%s`: %s\n", d.Folder, FormatSignedMoney(d.Currency, d.Absolute))
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(&b, "• `%s`: skipped (%s)\n", s.Folder, s.Reason)
	}
	if runURL != "" {
		fmt.Fprintf(&b, "<%s|Run logs>\n", runURL)
	}
	return b.String()
}

// MergeFailureSlackText renders the Slack mrkdwn body for a failed merge
// deployment.
func MergeFailureSlackText(folder, stage, cause, runURL string) string {
	var b strings.Builder
	b.WriteString("🚨 *Terraform deployment failed*\n")
	fmt.Fprintf(&b, "Folder `%s`, stage *%s*: %s\n", folder, stage, cause)
	if runURL != "" {
		fmt.Fprintf(&b, "<%s|Run logs>\n", runURL)
	}
	return b.String()
}

// FormatMoney renders a monthly cost with two decimals and currency code.
func FormatMoney(currency string, v float64) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}

// FormatSignedMoney is FormatMoney with an explicit sign for deltas.
func FormatSignedMoney(currency string, v float64) string {
	if currency == "" {
		return fmt.Sprintf("%+.2f", v)
	}
	return fmt.Sprintf("%+.2f %s", v, currency)
}

// FormatPercent renders a percentage change. Zero-baseline deltas read
// "new", not a numeric infinity; inapplicable percentages read "n/a".
func FormatPercent(v float64, kind cost.PercentKind) string {
	switch kind {
	case cost.PercentNew:
		return "new"
	case cost.PercentNone:
		return "n/a"
	default:
		return fmt.Sprintf("%+.1f%%", v)
	}
}
