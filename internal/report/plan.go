package report

import (
	"fmt"
	"strings"

	"github.com/tfci-io/tfci/internal/terraform"
)

// PlanComment renders the PR comment body for a successful plan.
func PlanComment(summary *terraform.PlanSummary, m Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## 📦 Terraform Plan for `%s`\n\n", m.WorkingDir)
	b.WriteString("### 🚀 Terraform Plan Summary\n")
	fmt.Fprintf(&b, "- ➕ (+) **Add**: `%d`\n", summary.Add)
	fmt.Fprintf(&b, "- ♻️ (~) **Change**: `%d`\n", summary.Change)
	fmt.Fprintf(&b, "- 🗑️ (-) **Destroy**: `%d`\n\n", summary.Destroy)

	if summary.HasChanges {
		b.WriteString("✅ **Plan succeeded** — changes present\n\n")
	} else {
		b.WriteString("✅ **Plan succeeded** — no changes\n\n")
	}

	detail := "_Not available._"
	if summary.Detail != "" {
		detail = codeFence("terraform", summary.Detail)
	}
	b.WriteString(details("📖 Details (Click me)", detail))
	b.WriteString(Footer(m))
	return b.String()
}

// FailureComment renders the PR comment body for a failed tool step. The
// cause and a bounded tail of the tool output go into the body because the
// audience reviews PRs, not raw CI logs.
func FailureComment(stage, cause, output string, m Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## ❌ Terraform CI: %s failed for `%s`\n\n", stage, m.WorkingDir)
	fmt.Fprintf(&b, "**Cause**: %s\n\n", cause)

	if strings.TrimSpace(output) != "" {
		b.WriteString(details("📖 Tool output (Click me)", codeFence("text", tail(output, 120))))
	}
	b.WriteString(Footer(m))
	return b.String()
}
