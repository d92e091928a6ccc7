package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/tfci-io/tfci/internal/tflint"
)

// maxLintRows caps the detail tables so a pathological lint run cannot blow
// past GitHub's comment size limit.
const maxLintRows = 500

var severityEmoji = map[string]string{
	"error":   "❌",
	"warning": "⚠️",
	"notice":  "ℹ️",
	"info":    "ℹ️",
}

// LintComment renders the PR comment body for a tflint run.
func LintComment(rep *tflint.Report, m Meta) string {
	totals := rep.Totals()

	var b strings.Builder
	fmt.Fprintf(&b, "## 🧹 TFLint for `%s` — %s\n\n", m.WorkingDir, lintStatus(totals))

	b.WriteString("### 🧹 TFLint Summary\n")
	fmt.Fprintf(&b, "- ❌ **Errors**: `%d`\n", totals.Errors)
	fmt.Fprintf(&b, "- ⚠️ **Warnings**: `%d`\n", totals.Warnings)
	fmt.Fprintf(&b, "- ℹ️ **Info**: `%d`\n", totals.Info)
	fmt.Fprintf(&b, "- 📦 **Total**: `%d`\n\n", totals.Total)

	if rep.Clean() {
		b.WriteString("✅ **Lint check succeeded**\n\n")
	} else {
		b.WriteString("_How to read_: **Errors** block merges, **Warnings** need attention, **Info** is advisory.\n")
		b.WriteString("_Fix locally_: run `tflint --init && tflint` in this folder.\n\n")
	}

	b.WriteString(details("📖 Details (Click me)", lintDetails(rep, m)))
	b.WriteString(Footer(m))
	return b.String()
}

func lintStatus(t tflint.Totals) string {
	var parts []string
	if t.Errors > 0 {
		parts = append(parts, fmt.Sprintf("%d ❌ %s", t.Errors, plural("error", t.Errors)))
	}
	if t.Warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d ⚠️ %s", t.Warnings, plural("warning", t.Warnings)))
	}
	if len(parts) == 0 && t.Info > 0 {
		parts = append(parts, fmt.Sprintf("%d ℹ️ info", t.Info))
	}
	if len(parts) == 0 {
		return "no issues"
	}
	return strings.Join(parts, ", ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func lintDetails(rep *tflint.Report, m Meta) string {
	if rep.Clean() {
		return "_No issues to display._"
	}

	var b strings.Builder
	rows := 0
	truncated := false

	for _, file := range rep.Files() {
		findings := rep.ForFile(file)
		fmt.Fprintf(&b, "\n<details><summary>📄 <code>%s</code> — <strong>%d</strong> issue(s)</summary>\n\n",
			html.EscapeString(file), len(findings))
		b.WriteString("| Line | Col | Level | Rule | Message |\n")
		b.WriteString("| ---: | ---: | :--- | :--- | :--- |\n")

		for _, f := range findings {
			if rows >= maxLintRows {
				truncated = true
				break
			}
			emoji := severityEmoji[f.Severity]
			if emoji == "" {
				emoji = "ℹ️"
			}
			fmt.Fprintf(&b, "| %s | %d | %s %s | `%s` | %s |\n",
				lineCell(f, m), f.Col, emoji, capitalize(f.Severity),
				f.Rule, html.EscapeString(f.Message))
			rows++
		}
		b.WriteString("\n</details>\n")
		if truncated {
			break
		}
	}

	if truncated {
		fmt.Fprintf(&b, "\n⏳ Output truncated to %d rows for readability. Full details: %s\n", maxLintRows, m.RunURL)
	}
	return b.String()
}

// lineCell deep-links the finding to the commit blob when the SHA is known.
func lineCell(f tflint.Finding, m Meta) string {
	if m.SHA == "" || m.CommitURL == "" {
		return fmt.Sprintf("%d", f.Line)
	}
	blobURL := strings.Replace(m.CommitURL, "/commit/", "/blob/", 1)
	return fmt.Sprintf("[%d](%s/%s#L%d)", f.Line, blobURL, f.File, f.Line)
}
